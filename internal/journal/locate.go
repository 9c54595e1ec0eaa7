package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// ErrNoJournal is returned when a folder holds no journal files.
var ErrNoJournal = errors.New("no journal files found")

var journalName = regexp.MustCompile(`^Journal\.\d{4}-\d{2}-\d{2}T\d{6}\.\d{2}\.log$`)

// IsJournalName reports whether name follows the game's journal naming.
func IsJournalName(name string) bool { return journalName.MatchString(name) }

// DefaultDir is where the game writes journals on Windows.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Saved Games", "Frontier Developments", "Elite Dangerous")
}

// Latest returns the path of the newest journal in dir.
func Latest(dir string) (string, error) {
	paths, err := Recent(dir, 1)
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// Recent returns up to n journal paths in dir, newest first. Journal names
// sort chronologically. n <= 0 returns them all.
func Recent(dir string, n int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("journal folder: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && IsJournalName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoJournal)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = filepath.Join(dir, name)
	}
	return out, nil
}

// Resolve validates an explicitly chosen journal file name inside dir.
func Resolve(dir, name string) (string, error) {
	if !IsJournalName(name) {
		return "", fmt.Errorf("journal file %q: invalid name", name)
	}
	p := filepath.Join(dir, name)
	st, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("journal file %q: %w", name, err)
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("journal file %q: not a regular file", name)
	}
	return p, nil
}

// StartTime extracts the session start encoded in a journal file name.
func StartTime(name string) (time.Time, bool) {
	base := filepath.Base(name)
	if !IsJournalName(base) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02T150405", base[8:len(base)-7], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CommanderName returns the name from the first Commander record in the
// journal at path, or "" when none has been written yet.
func CommanderName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev struct {
			Event string `json:"event"`
			Name  string `json:"Name"`
		}
		if json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		if ev.Event == "Commander" {
			return ev.Name, nil
		}
	}
	return "", sc.Err()
}

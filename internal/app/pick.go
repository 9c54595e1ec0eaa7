package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"afkmon/internal/config"
	"afkmon/internal/journal"
)

// pickCount is how many journals the picker lists.
const pickCount = 10

// ErrNoSelection is returned by New when the journal picker is dismissed.
var ErrNoSelection = errors.New("no journal selected")

// locateJournal picks the journal to follow: the one chosen interactively,
// the configured file, else the newest.
func (a *App) locateJournal(jc config.JournalConfig) (string, error) {
	dir := strings.TrimSpace(jc.Folder)
	if dir == "" {
		dir = journal.DefaultDir()
	}
	switch {
	case a.opts.FileSelect:
		return a.pickJournal(dir)
	case jc.File != "":
		return journal.Resolve(dir, jc.File)
	default:
		return journal.Latest(dir)
	}
}

// pickJournal lists the newest journals with their commanders and reads a
// choice from stdin. An empty answer picks the newest.
func (a *App) pickJournal(dir string) (string, error) {
	paths, err := journal.Recent(dir, pickCount)
	if err != nil {
		return "", err
	}
	width := len(strconv.Itoa(len(paths)))
	for i, p := range paths {
		cmdr, err := journal.CommanderName(p)
		if err != nil || cmdr == "" {
			cmdr = "UNKNOWN"
		}
		a.printer.Println(fmt.Sprintf("%*d | %s | CMDR %s", width, i+1, filepath.Base(p), cmdr))
	}
	a.printer.Println("Input journal number to load")
	a.printer.Println("(ENTER for latest or any other input to quit)")

	answer, err := bufio.NewReader(a.opts.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading selection: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		if errors.Is(err, io.EOF) {
			a.printer.Println("Exiting...")
			return "", ErrNoSelection
		}
		return paths[0], nil
	}
	n, convErr := strconv.Atoi(answer)
	if convErr != nil {
		a.printer.Println("Exiting...")
		return "", ErrNoSelection
	}
	if n < 1 || n > len(paths) {
		a.printer.Println("Invalid number, exiting...")
		return "", ErrNoSelection
	}
	return paths[n-1], nil
}

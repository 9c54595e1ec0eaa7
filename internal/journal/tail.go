package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	logx "afkmon/pkg/logx"
)

// Tailer yields complete lines from the active journal, first replaying it
// from the start and then following appended data. Reads never block: when
// nothing new is available Next reports ok=false.
//
// Next and Close must be called from a single goroutine. Follow runs the
// filesystem watcher on its own goroutine and only signals through Wake.
type Tailer struct {
	log logx.Logger

	path    string
	f       *os.File
	rd      *bufio.Reader
	partial strings.Builder

	wake chan struct{}

	mu      sync.Mutex
	pending string // newer journal detected in the same folder
}

// Open starts reading the journal at path from its first line.
func Open(path string, log logx.Logger) (*Tailer, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	t := &Tailer{log: log, wake: make(chan struct{}, 1)}
	if err := t.open(path); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tailer) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if t.f != nil {
		_ = t.f.Close()
	}
	t.path = path
	t.f = f
	t.rd = bufio.NewReaderSize(f, 64*1024)
	t.partial.Reset()
	return nil
}

// Path returns the journal currently being read.
func (t *Tailer) Path() string { return t.path }

// Wake fires (coalesced) whenever the watched folder reports activity.
func (t *Tailer) Wake() <-chan struct{} { return t.wake }

// Next returns the next complete line. ok is false when no complete line is
// available yet. A trailing fragment without newline is kept until the rest
// of the line arrives. err is only returned when the journal can no longer
// be read.
func (t *Tailer) Next() (line string, ok bool, err error) {
	for {
		chunk, rerr := t.rd.ReadString('\n')
		if rerr == nil {
			t.partial.WriteString(chunk)
			line = strings.TrimRight(t.partial.String(), "\r\n")
			t.partial.Reset()
			return line, true, nil
		}
		if !errors.Is(rerr, io.EOF) {
			return "", false, fmt.Errorf("read journal %s: %w", filepath.Base(t.path), rerr)
		}
		t.partial.WriteString(chunk)

		next := t.takePending()
		if next == "" || t.partial.Len() > 0 {
			if next != "" {
				t.setPending(next)
			}
			return "", false, nil
		}
		t.log.Info("switching to newer journal", logx.String("from", filepath.Base(t.path)), logx.String("to", filepath.Base(next)))
		if err := t.open(next); err != nil {
			return "", false, err
		}
	}
}

func (t *Tailer) takePending() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.pending
	t.pending = ""
	return p
}

func (t *Tailer) setPending(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == "" || filepath.Base(p) > filepath.Base(t.pending) {
		t.pending = p
	}
}

func (t *Tailer) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Follow watches the journal folder until ctx is done. Writes to the active
// journal wake the reader; a newly created, newer journal is queued so Next
// switches to it once the current file is drained. A watcher failure is
// returned so the caller can fall back to plain polling.
func (t *Tailer) Follow(ctx context.Context) error {
	dir := filepath.Dir(t.path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("journal watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("journal watch %s: %w", dir, err)
	}
	t.log.Debug("journal watcher started", logx.String("dir", dir))

	current := filepath.Base(t.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("journal watch: events closed")
			}
			name := filepath.Base(ev.Name)
			if ev.Op&fsnotify.Create != 0 && IsJournalName(name) && name > current {
				t.setPending(ev.Name)
				current = name
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.notify()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("journal watch: errors closed")
			}
			if err != nil {
				t.log.Warn("journal watch error", logx.Err(err))
				t.notify()
			}
		}
	}
}

// Close releases the journal file.
func (t *Tailer) Close() error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

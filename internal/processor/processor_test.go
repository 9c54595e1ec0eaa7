package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"afkmon/internal/classify"
	"afkmon/internal/console"
	"afkmon/internal/gate"
	"afkmon/internal/journal"
	"afkmon/internal/notifier"
	"afkmon/internal/state"
	logx "afkmon/pkg/logx"
)

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notifier.Job
}

func (r *recordingNotifier) Notify(ctx context.Context, j notifier.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
	return nil
}

func (r *recordingNotifier) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Message.Text)
	}
	return out
}

func ts(sec int) string {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second).Format(time.RFC3339)
}

func bounty(sec int) string {
	return fmt.Sprintf(`{"timestamp":%q,"event":"Bounty","Target":"viper","TotalReward":5000,"VictimFaction":"Pirates"}`, ts(sec))
}

func writeJournal(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Journal.2025-03-01T120000.01.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write journal: %v", err)
	}
	return path
}

func appendJournal(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("append journal: %v", err)
	}
}

type harness struct {
	p     *Processor
	out   *bytes.Buffer
	sent  *recordingNotifier
	ready chan struct{}
	errc  chan error
}

func start(t *testing.T, ctx context.Context, path string, g gate.Gate, status <-chan time.Time) *harness {
	t.Helper()
	h := build(t, path, g, status, logx.Nop())
	h.run(ctx)
	return h
}

// build wires a processor without running it.
func build(t *testing.T, path string, g gate.Gate, status <-chan time.Time, log logx.Logger) *harness {
	t.Helper()
	src, err := journal.Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	h := &harness{out: &bytes.Buffer{}, sent: &recordingNotifier{}, ready: make(chan struct{}), errc: make(chan error, 1)}
	h.p = New(Deps{
		Source:   src,
		Printer:  console.New(h.out),
		Notifier: h.sent,
		Log:      log,
		Status:   status,
		RunID:    "run-1",
		OnReady:  func() { close(h.ready) },
	}, Settings{
		Classify: classify.DefaultSettings(),
		Health:   state.DefaultHealth(),
		Gate:     g,
		Poll:     10 * time.Millisecond,
	})
	return h
}

func (h *harness) run(ctx context.Context) {
	go func() { h.errc <- h.p.Run(ctx) }()
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return")
		return nil
	}
}

func (h *harness) awaitReady(t *testing.T) {
	t.Helper()
	select {
	case <-h.ready:
	case err := <-h.errc:
		t.Fatalf("Run returned before ready: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("replay did not finish")
	}
}

func TestRunReplaysThenFollows(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, `{"event":"Fileheader"}`, "not json", bounty(0))
	h := start(t, context.Background(), path, gate.Gate{Remote: true}, nil)
	h.awaitReady(t)
	if n := len(h.sent.texts()); n != 0 {
		t.Fatalf("replay sent %d remote messages", n)
	}

	appendJournal(t, path, bounty(60), bounty(120), fmt.Sprintf(`{"timestamp":%q,"event":"Shutdown"}`, ts(130)))
	if err := h.wait(t); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Run = %v, want ErrShutdown", err)
	}

	texts := h.sent.texts()
	if len(texts) < 4 {
		t.Fatalf("sent = %q", texts)
	}
	if !strings.Contains(texts[0], "**Monitor started** (Journal.2025-03-01T120000.01.log)") {
		t.Fatalf("first = %q", texts[0])
	}
	if last := texts[len(texts)-1]; !strings.Contains(last, "**Monitor stopped**") {
		t.Fatalf("last = %q", last)
	}
	var kills, quit, totals int
	for _, s := range texts {
		switch {
		case strings.Contains(s, "Viper"):
			kills++
		case strings.Contains(s, "Quit to desktop"):
			quit++
		case strings.Contains(s, "Total kills: 3"):
			totals++
		}
	}
	if kills != 2 || quit != 1 || totals != 1 {
		t.Fatalf("kills=%d quit=%d totals=%d in %q", kills, quit, totals, texts)
	}

	run := h.p.Tracker().Run
	if run.TotalKills != 3 || run.Lines != 6 {
		t.Fatalf("kills=%d lines=%d", run.TotalKills, run.Lines)
	}
}

func TestShutdownDuringReplay(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, bounty(0), bounty(60), fmt.Sprintf(`{"timestamp":%q,"event":"Shutdown"}`, ts(70)))
	h := start(t, context.Background(), path, gate.Gate{Remote: true}, nil)
	if err := h.wait(t); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Run = %v, want ErrShutdown", err)
	}
	select {
	case <-h.ready:
		t.Fatalf("OnReady ran for a finished journal")
	default:
	}
	if texts := h.sent.texts(); len(texts) != 0 {
		t.Fatalf("sent during replay: %q", texts)
	}
	if !strings.Contains(h.out.String(), "Monitor stopped") {
		t.Fatalf("output = %q", h.out.String())
	}
}

func TestTestModeEchoesInsteadOfSending(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, bounty(0))
	ctx, cancel := context.WithCancel(context.Background())
	h := start(t, ctx, path, gate.Gate{TestMode: true}, nil)
	h.awaitReady(t)
	cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if texts := h.sent.texts(); len(texts) != 0 {
		t.Fatalf("test mode sent %q", texts)
	}
	if out := h.out.String(); !strings.Contains(out, "REMOTE: 📖 **Monitor started**") {
		t.Fatalf("output = %q", out)
	}
}

func TestStatusRequest(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, bounty(0))
	status := make(chan time.Time, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := start(t, ctx, path, gate.Gate{Remote: true}, status)
	h.awaitReady(t)

	status <- time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	deadline := time.After(5 * time.Second)
	for {
		var got string
		for _, s := range h.sent.texts() {
			if strings.HasPrefix(s, "💥") {
				got = s
			}
		}
		if got != "" {
			if !strings.Contains(got, "2.0*/h ⌚30m0s 🎯0/0") {
				t.Fatalf("status = %q", got)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no status message in %q", h.sent.texts())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

func TestInterruptDuringReplayStaysLocal(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, bounty(0), bounty(60), bounty(120))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := start(t, ctx, path, gate.Gate{Remote: true}, nil)
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	select {
	case <-h.ready:
		t.Fatalf("OnReady ran for an interrupted replay")
	default:
	}
	if texts := h.sent.texts(); len(texts) != 0 {
		t.Fatalf("sent after interrupted replay: %q", texts)
	}
	out := h.out.String()
	if strings.Contains(out, "Monitor started") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "Monitor stopped") {
		t.Fatalf("output = %q", out)
	}
}

func TestCancelAfterKillsSendsTotalsThenStop(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, bounty(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := start(t, ctx, path, gate.Gate{Remote: true}, nil)
	h.awaitReady(t)

	appendJournal(t, path, bounty(60), bounty(120))
	deadline := time.After(5 * time.Second)
	for h.killsSent() < 2 {
		select {
		case <-deadline:
			t.Fatalf("kills not sent: %q", h.sent.texts())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}

	texts := h.sent.texts()
	if len(texts) < 2 {
		t.Fatalf("sent = %q", texts)
	}
	totals, stopped := texts[len(texts)-2], texts[len(texts)-1]
	if !strings.Contains(totals, "**Total kills: 3") {
		t.Fatalf("totals = %q in %q", totals, texts)
	}
	if !strings.Contains(stopped, "**Monitor stopped** (Journal.2025-03-01T120000.01.log)") {
		t.Fatalf("last = %q", stopped)
	}
}

func (h *harness) killsSent() int {
	n := 0
	for _, s := range h.sent.texts() {
		if strings.Contains(s, "Viper") {
			n++
		}
	}
	return n
}

func TestPanickingRuleIsLoggedAndSkipped(t *testing.T) {
	t.Parallel()
	path := writeJournal(t, bounty(0), fmt.Sprintf(`{"timestamp":%q,"event":"Odd"}`, ts(30)), bounty(60))
	var logs syncBuffer
	h := build(t, path, gate.Gate{}, nil, logx.NewWriter(&logs, "debug"))
	h.p.cls.Register(nil, nil, "Odd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.run(ctx)
	h.awaitReady(t)
	cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := h.p.Tracker().Run.TotalKills; got != 2 {
		t.Fatalf("kills = %d, want 2", got)
	}
	out := logs.String()
	if !strings.Contains(out, `"processing error"`) || !strings.Contains(out, `"event":"Odd"`) || !strings.Contains(out, "panic:") {
		t.Fatalf("log = %s", out)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

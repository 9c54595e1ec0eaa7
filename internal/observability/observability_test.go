package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"afkmon/internal/eventbus"
	"afkmon/internal/state"
	logx "afkmon/pkg/logx"
)

// value reads one sample from the exporter's registry. labels are matched
// by value in declaration order.
func value(t *testing.T, e *Exporter, name string, labels ...string) float64 {
	t.Helper()
	mfs, err := e.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			lp := m.GetLabel()
			if len(lp) != len(labels) {
				continue
			}
			for i, l := range lp {
				if l.GetValue() != labels[i] {
					continue metrics
				}
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestObserveSetsGauges(t *testing.T) {
	t.Parallel()
	e := NewExporter()
	e.Observe(state.Snapshot{Deployed: true, SessionKills: 12, KillsPerHour: 24.5, MissionsActive: 3})
	if got := value(t, e, "afkmon_session_kills"); got != 12 {
		t.Fatalf("session_kills = %v", got)
	}
	if got := value(t, e, "afkmon_deployed"); got != 1 {
		t.Fatalf("deployed = %v", got)
	}
	e.Observe(state.Snapshot{})
	if got := value(t, e, "afkmon_deployed"); got != 0 {
		t.Fatalf("deployed after idle = %v", got)
	}
}

func TestConsumeCountsEvents(t *testing.T) {
	t.Parallel()
	e := NewExporter()
	ch := make(chan eventbus.Event, 8)
	ch <- eventbus.Event{Type: eventbus.SessionStarted}
	ch <- eventbus.Event{Type: eventbus.NotifySent, Data: eventbus.Delivery{Channel: "discord", Took: time.Millisecond}}
	ch <- eventbus.Event{Type: eventbus.NotifyFailed, Data: eventbus.Delivery{Channel: "discord"}}
	ch <- eventbus.Event{Type: eventbus.Logged, Data: eventbus.LoggedEvent{Category: "Kill", Remote: true}}
	close(ch)

	if err := e.Consume(context.Background(), ch); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got := value(t, e, "afkmon_sessions_total"); got != 1 {
		t.Fatalf("sessions = %v", got)
	}
	if got := value(t, e, "afkmon_notifications_total", "discord", "error"); got != 1 {
		t.Fatalf("failed = %v", got)
	}
	if got := value(t, e, "afkmon_events_logged_total", "Kill", "remote"); got != 1 {
		t.Fatalf("logged = %v", got)
	}
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	t.Parallel()
	e := NewExporter()
	e.Observe(state.Snapshot{TotalKills: 7})
	s := NewServer(Config{}, e, logx.Nop())
	srv := httptest.NewServer(s.Handler(Config{Pprof: true}))
	defer srv.Close()

	for path, want := range map[string]string{
		"/healthz":      "ok",
		"/metrics":      "afkmon_run_kills 7",
		"/debug/pprof/": "goroutine",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), want) {
			t.Fatalf("GET %s = %d %q", path, resp.StatusCode, b)
		}
	}
}

func TestLoopbackCheck(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v", addr, got)
		}
	}
}

package schedule

import (
	"testing"

	logx "afkmon/pkg/logx"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw, want string
		wantErr   bool
	}{
		{raw: "", want: ""},
		{raw: "  ", want: ""},
		{raw: "*/10 * * * *", want: "*/10 * * * *"},
		{raw: "@hourly", want: "@hourly"},
		{raw: "@every 5m", want: "@every 5m"},
		{raw: "15m", want: "@every 15m0s"},
		{raw: "01:30", want: "@every 1h30m0s"},
		{raw: "30s", wantErr: true},
		{raw: "00:75", wantErr: true},
		{raw: "not a schedule", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Normalize(%q) = %q, want error", tt.raw, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("Normalize(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestApplyReplacesAndStops(t *testing.T) {
	t.Parallel()
	s := New(nil, logx.Nop())
	if err := s.Apply("@every 1h"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s.Spec() != "@every 1h" {
		t.Fatalf("Spec = %q", s.Spec())
	}
	if err := s.Apply("bogus"); err == nil {
		t.Fatalf("bogus spec accepted")
	}
	if s.Spec() != "@every 1h" {
		t.Fatalf("failed Apply changed spec to %q", s.Spec())
	}
	if err := s.Apply(""); err != nil || s.Spec() != "" {
		t.Fatalf("disable: %v spec=%q", err, s.Spec())
	}
	s.Stop()
}

func TestFireCoalesces(t *testing.T) {
	t.Parallel()
	s := New(nil, logx.Nop())
	s.fire()
	s.fire()
	<-s.C()
	select {
	case <-s.C():
		t.Fatalf("second tick not coalesced")
	default:
	}
}

// Package gate decides how a notification candidate surfaces: locally,
// remotely, deduplicated or not at all.
package gate

import (
	"time"

	"afkmon/internal/notify"
	"afkmon/internal/state"
	"afkmon/internal/transport"
)

// DupeMax is how many consecutive notifications sharing a dedup key are
// delivered remotely before further ones are suppressed.
const DupeMax = 5

// SuppressNotice replaces remote delivery once a streak exceeds DupeMax.
const SuppressNotice = "⏸️ **Suppressing further duplicate messages**"

// Gate holds the delivery options. The zero value prints locally only.
type Gate struct {
	// Remote is set when a remote channel is configured.
	Remote bool
	// TestMode echoes remote text to the terminal instead of sending it and
	// disables the preload clamp.
	TestMode bool
	// Timestamp appends " {HH:MM:SS}" to remote text.
	Timestamp bool
	// UTC renders stamps in UTC instead of local time.
	UTC bool
}

// Action is the gate's verdict for one candidate.
type Action struct {
	Candidate notify.Candidate
	Severity  notify.Severity // after clamping
	Stamp     string          // HH:MM:SS of the event

	// Local asks for the terminal line.
	Local bool
	// Remote is the message to deliver, nil when nothing goes out.
	Remote *transport.Message
	// Echo means Remote is to be printed rather than sent.
	Echo bool
	// Suppressing is set on the one-time duplicate suppression notice.
	Suppressing bool
}

// Suppressed reports whether the candidate surfaced nowhere.
func (a Action) Suppressed() bool { return !a.Local && a.Remote == nil }

// Apply gates c against run. It always counts the candidate in run.Logged
// and updates run's dedup streak for remotely eligible candidates.
func (g *Gate) Apply(c notify.Candidate, run *state.Run) Action {
	sev := c.Severity.Clamp()
	if run.Preloading && !g.TestMode && sev > notify.Local {
		sev = notify.Local
	}
	run.Logged++

	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	if g.UTC {
		at = at.UTC()
	} else {
		at = at.Local()
	}
	act := Action{Candidate: c, Severity: sev, Stamp: at.Format("15:04:05")}
	if sev == notify.Silent {
		return act
	}
	act.Local = !g.TestMode || sev == notify.Local
	if sev < notify.Remote || !(g.Remote || g.TestMode) {
		return act
	}

	d := &run.Dedup
	if c.DedupKey != "" && c.DedupKey == d.Key {
		d.Repeats++
	} else {
		d.Repeats = 1
		d.Warned = false
	}
	d.Key = c.DedupKey

	suffix := ""
	if g.Timestamp {
		suffix = " {" + act.Stamp + "}"
	}
	switch {
	case d.Repeats <= DupeMax:
		text := c.RemoteText()
		if c.Glyph != "" {
			text = c.Glyph + " " + text
		}
		act.Remote = &transport.Message{
			Text:    text + suffix,
			Mention: sev >= notify.Urgent && d.Repeats == 1,
		}
	case !d.Warned:
		act.Remote = &transport.Message{Text: SuppressNotice + suffix}
		act.Suppressing = true
		d.Warned = true
	}
	act.Echo = g.TestMode && act.Remote != nil
	return act
}

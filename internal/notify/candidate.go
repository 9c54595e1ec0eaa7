// Package notify defines the notification candidate produced by the
// classifier and health evaluator and consumed by the gate.
package notify

import "time"

// Severity controls whether and how a notification surfaces.
type Severity int

const (
	// Silent never surfaces anywhere.
	Silent Severity = 0
	// Local is printed to the terminal only.
	Local Severity = 1
	// Remote is printed and delivered to the remote channel.
	Remote Severity = 2
	// Urgent is delivered remotely with an attention mention.
	Urgent Severity = 3
)

// Clamp bounds s to the valid 0..3 range.
func (s Severity) Clamp() Severity {
	if s < Silent {
		return Silent
	}
	if s > Urgent {
		return Urgent
	}
	return s
}

// Tone selects terminal colouring for the highlighted part of a message.
type Tone int

const (
	ToneNone Tone = iota
	ToneEasy
	ToneHard
	ToneWarn
	ToneBad
	ToneGood
)

// Candidate is a notification waiting for the gate.
//
// Terminal holds the plain terminal text; Highlight (if set) is the prefix of
// Terminal rendered with Tone. Remote defaults to a bolded Terminal.
type Candidate struct {
	Terminal  string
	Highlight string
	Tone      Tone
	Remote    string
	Glyph     string
	Severity  Severity
	DedupKey  string
	Category  string
	At        time.Time
}

// RemoteText returns the remote-channel text for c.
func (c Candidate) RemoteText() string {
	if c.Remote != "" {
		return c.Remote
	}
	return "**" + c.Terminal + "**"
}

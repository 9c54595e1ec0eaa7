// Package classify maps journal records onto tracker mutations and
// notification candidates. Dispatch is a registry of rules keyed by record
// kind; for a given kind the first rule whose guard accepts the record wins.
package classify

import (
	"fmt"
	"time"

	"afkmon/internal/journal"
	"afkmon/internal/notify"
	"afkmon/internal/state"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Settings are the formatting toggles the rules honour.
type Settings struct {
	BountyFaction bool
	BountyValue   bool
	ExtendedStats bool
	// FuelFallback is the main tank size assumed when a loadout reports none.
	FuelFallback float64
}

// DefaultSettings mirrors the shipped configuration.
func DefaultSettings() Settings { return Settings{BountyFaction: true, FuelFallback: state.DefaultFuelCapacity} }

// Result is what one record produced.
type Result struct {
	Notes []notify.Candidate
	// Stop is set when the record says the game has quit.
	Stop bool
}

// Error wraps a failure while interpreting a recognised record.
type Error struct {
	Kind string
	At   time.Time // last known event time
	Err  error
}

func (e *Error) Error() string {
	at := "unknown"
	if !e.At.IsZero() {
		at = e.At.Format("15:04:05")
	}
	return fmt.Sprintf("classify %s (logtime %s): %v", e.Kind, at, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type guardFunc func(e *event) bool
type handlerFunc func(e *event)

type rule struct {
	guard  guardFunc
	handle handlerFunc
}

// Classifier holds the rule registry. It is not safe for concurrent use.
type Classifier struct {
	Settings Settings
	Sev      notify.Severities
	// Now supplies the instant for records without a timestamp.
	Now func() time.Time

	rules map[string][]rule
	title cases.Caser
}

// New returns a classifier with every built-in rule registered.
func New(settings Settings, sev notify.Severities) *Classifier {
	if sev == nil {
		sev = notify.DefaultTable{}
	}
	c := &Classifier{
		Settings: settings,
		Sev:      sev,
		Now:      func() time.Time { return time.Now().UTC() },
		rules:    make(map[string][]rule),
		title:    cases.Title(language.English),
	}
	registerRules(c)
	return c
}

// Register appends a rule for each of kinds. A nil guard always matches.
func (c *Classifier) Register(guard guardFunc, handle handlerFunc, kinds ...string) {
	for _, k := range kinds {
		c.rules[k] = append(c.rules[k], rule{guard: guard, handle: handle})
	}
}

// Known reports whether any rule exists for kind.
func (c *Classifier) Known(kind string) bool { return len(c.rules[kind]) > 0 }

// Classify applies the first matching rule for r to tr. Unrecognised kinds
// and records rejected by every guard produce an empty result. A malformed
// recognised record returns *Error; tr may hold partial updates from it.
func (c *Classifier) Classify(tr *state.Tracker, r *journal.Record) (Result, error) {
	at := r.Timestamp
	if at.IsZero() {
		at = c.Now()
	}
	tr.Run.EventTime = at

	e := &event{
		Record: r,
		f:      r.Read(),
		c:      c,
		tr:     tr,
		s:      &tr.Session,
		run:    &tr.Run,
		at:     at,
	}
	for _, ru := range c.rules[r.Kind] {
		if ru.guard != nil && !ru.guard(e) {
			continue
		}
		ru.handle(e)
		break
	}
	if err := e.f.Err(); err != nil {
		return Result{}, &Error{Kind: r.Kind, At: at, Err: err}
	}
	tr.Run.LastKind = r.Kind
	return Result{Notes: e.out, Stop: e.stop}, nil
}

// event is the per-record scratch state handed to guards and handlers.
type event struct {
	*journal.Record
	f   *journal.Fields
	c   *Classifier
	tr  *state.Tracker
	s   *state.Session
	run *state.Run
	at  time.Time

	out  []notify.Candidate
	stop bool
}

func (e *event) severity(category string) notify.Severity { return e.c.Sev.Severity(category) }

func (e *event) emit(n notify.Candidate) {
	if n.At.IsZero() {
		n.At = e.at
	}
	e.out = append(e.out, n)
}

// note starts a candidate for category with its configured severity.
func (e *event) note(category, glyph, terminal string) notify.Candidate {
	return notify.Candidate{
		Terminal: terminal,
		Glyph:    glyph,
		Severity: e.severity(category),
		Category: category,
	}
}

// titled is the fallback for identifiers without a localised name.
func (e *event) titled(s string) string { return e.c.title.String(s) }

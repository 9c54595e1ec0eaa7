// Package state owns the two nested scopes of mutable tracking state: the
// per-deployment Session and the process-wide Run. Both are mutated only by
// the processing loop, so nothing here is synchronised.
package state

import (
	"slices"
	"time"
)

// FuelReading is the last observed main tank level.
type FuelReading struct {
	At        time.Time
	Remaining float64
}

// Session accumulates while deployed at an activity site.
type Session struct {
	Scans          []string // distinct targets scanned since the last kill
	LastKill       time.Time
	KillsTime      time.Duration // summed gaps between consecutive kills
	Recent         Ring
	Kills          int
	Bounties       int64
	Merits         int64
	LastSecurity   string
	BaitFails      int
	Fuel           FuelReading
	MeritsToReport int
}

// Reset returns every field to its zero value.
func (s *Session) Reset() { *s = Session{} }

// Scanned reports whether target was already recorded this session.
func (s *Session) Scanned(target string) bool { return slices.Contains(s.Scans, target) }

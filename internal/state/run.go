package state

import (
	"slices"
	"time"
)

const (
	KillTypeBounties = "bounties"
	KillTypeBonds    = "bonds"
)

// Dedup tracks the current streak of identical remote notifications.
type Dedup struct {
	Key     string
	Repeats int
	Warned  bool // suppression notice already sent for this streak
}

// Commander is what the journal told us about the player.
type Commander struct {
	Name        string
	CombatRank  int // -1 when unknown
	CombatProgr int // -1 when unknown
}

// Health is the bookkeeping for periodic kill-rate evaluation. Instants are
// taken from the monotonic clock.
type Health struct {
	NextCheck        time.Time
	WarnedKillRate   time.Time
	WarnedNoKills    time.Time
	KillRateCooldown time.Duration // 0 means the configured base
}

// Run accumulates over the whole process lifetime.
type Run struct {
	ID         string
	DeployTime time.Time // zero while idle

	TotalKills    int
	TotalTime     time.Duration
	TotalBounties int64
	TotalMerits   int64
	KillType      string

	FuelCapacity float64
	FighterHull  float64

	Logged int
	Lines  int

	MissionsLoaded   bool
	MissionsActive   []int64
	MissionRedirects int

	LastKind  string
	EventTime time.Time

	Dedup      Dedup
	Preloading bool
	Cmdr       Commander
	Health     Health
}

// LoadMissions replaces the active set from a login snapshot. Later
// snapshots are ignored so in-session bookkeeping is not lost.
func (r *Run) LoadMissions(ids []int64) bool {
	if r.MissionsLoaded {
		return false
	}
	r.MissionsActive = append(r.MissionsActive[:0], ids...)
	r.MissionRedirects = 0
	r.MissionsLoaded = true
	return true
}

// AcceptMission adds id to the active set.
func (r *Run) AcceptMission(id int64) {
	if !slices.Contains(r.MissionsActive, id) {
		r.MissionsActive = append(r.MissionsActive, id)
	}
}

// RedirectMission counts one mission whose kill target was reached and
// reports whether every active mission is now redirected.
func (r *Run) RedirectMission() (redirected, active int, all bool) {
	r.MissionRedirects++
	active = len(r.MissionsActive)
	return r.MissionRedirects, active, r.MissionRedirects == active
}

// ResolveMission drops id from the active set after completion, abandonment
// or failure. The redirect counter never goes below zero.
func (r *Run) ResolveMission(id int64) bool {
	i := slices.Index(r.MissionsActive, id)
	if i < 0 {
		return false
	}
	r.MissionsActive = slices.Delete(r.MissionsActive, i, i+1)
	if r.MissionRedirects > 0 {
		r.MissionRedirects--
	}
	return true
}

// Deployed reports whether a session is in progress.
func (r *Run) Deployed() bool { return !r.DeployTime.IsZero() }

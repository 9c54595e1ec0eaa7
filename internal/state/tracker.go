package state

import (
	"time"

	"afkmon/internal/metrics"
)

// DefaultFuelCapacity is assumed until a loadout reports the real tank.
const DefaultFuelCapacity = 64

// Summary describes a session that has just ended.
type Summary struct {
	RunID     string
	Start     time.Time
	End       time.Time
	Kills     int
	Bounties  int64
	Merits    int64
	KillType  string
	KillsTime time.Duration
}

// Tracker drives the Idle/Deployed transitions over a Session and a Run.
type Tracker struct {
	Session Session
	Run     Run

	// CheckInterval is the nominal health evaluation period.
	CheckInterval time.Duration
	// Now reads the monotonic clock; tests replace it.
	Now func() time.Time

	OnStart func(at time.Time)
	OnEnd   func(Summary)
}

// NewTracker returns an idle tracker for run id.
func NewTracker(id string) *Tracker {
	return &Tracker{
		Run: Run{
			ID:           id,
			FuelCapacity: DefaultFuelCapacity,
			KillType:     KillTypeBounties,
			Cmdr:         Commander{CombatRank: -1, CombatProgr: -1},
		},
		CheckInterval: time.Minute,
		Now:           time.Now,
	}
}

func (t *Tracker) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

// Deployed reports whether a session is in progress.
func (t *Tracker) Deployed() bool { return t.Run.Deployed() }

// StartSession moves to Deployed using the latest event time as the
// deployment instant. It is a no-op while deployed unless force is set, in
// which case the old session is discarded. Reports whether a session began.
func (t *Tracker) StartSession(force bool) bool {
	if t.Run.Deployed() && !force {
		return false
	}
	at := t.Run.EventTime
	if at.IsZero() {
		at = time.Now().UTC()
	}
	t.Session.Reset()
	t.Run.DeployTime = at
	// The kill-rate cooldown keeps doubling across sessions for the whole run.
	t.Run.Health = Health{NextCheck: t.now().Add(t.CheckInterval), KillRateCooldown: t.Run.Health.KillRateCooldown}
	if t.OnStart != nil && !t.Run.Preloading {
		t.OnStart(at)
	}
	return true
}

// EndSession returns to Idle, clearing the session. Run totals are kept.
func (t *Tracker) EndSession() bool {
	if !t.Run.Deployed() {
		return false
	}
	sum := t.summary()
	t.Session.Reset()
	t.Run.DeployTime = time.Time{}
	if t.OnEnd != nil && !t.Run.Preloading {
		t.OnEnd(sum)
	}
	return true
}

func (t *Tracker) summary() Summary {
	end := t.Run.EventTime
	if end.IsZero() || end.Before(t.Run.DeployTime) {
		end = t.Run.DeployTime
	}
	return Summary{
		RunID:     t.Run.ID,
		Start:     t.Run.DeployTime,
		End:       end,
		Kills:     t.Session.Kills,
		Bounties:  t.Session.Bounties,
		Merits:    t.Session.Merits,
		KillType:  t.Run.KillType,
		KillsTime: t.Session.KillsTime,
	}
}

// RecordKill counts a confirmed kill at instant at worth reward. The
// returned interval is the gap since the previous kill in this session;
// ok is false for the first kill.
func (t *Tracker) RecordKill(at time.Time, reward int64, killType string) (interval time.Duration, ok bool) {
	t.StartSession(false)
	s := &t.Session
	s.Scans = s.Scans[:0]
	if !s.LastKill.IsZero() {
		interval = at.Sub(s.LastKill)
		if interval < 0 {
			interval = 0
		}
		s.KillsTime += interval
		s.Recent.Push(interval)
		t.Run.TotalTime += interval
		ok = true
	}
	s.LastKill = at
	s.Kills++
	s.MeritsToReport++
	s.Bounties += reward
	t.Run.TotalKills++
	t.Run.TotalBounties += reward
	t.Run.KillType = killType
	t.Run.Health.NextCheck = t.now().Add(t.CheckInterval)
	return interval, ok
}

// AddMerits credits merits to the session and run.
func (t *Tracker) AddMerits(n int64) {
	t.Session.Merits += n
	t.Run.TotalMerits += n
}

// Snapshot is a read-only view of the counters for exporters.
type Snapshot struct {
	Deployed         bool
	SessionKills     int
	SessionBounties  int64
	SessionMerits    int64
	KillsPerHour     float64
	TotalKills       int
	TotalBounties    int64
	TotalMerits      int64
	MissionsActive   int
	MissionRedirects int
	Logged           int
	Lines            int
}

// Snapshot captures the current counters. at is the wall-clock instant used
// for the session rate.
func (t *Tracker) Snapshot(at time.Time) Snapshot {
	s := Snapshot{
		Deployed:         t.Run.Deployed(),
		SessionKills:     t.Session.Kills,
		SessionBounties:  t.Session.Bounties,
		SessionMerits:    t.Session.Merits,
		TotalKills:       t.Run.TotalKills,
		TotalBounties:    t.Run.TotalBounties,
		TotalMerits:      t.Run.TotalMerits,
		MissionsActive:   len(t.Run.MissionsActive),
		MissionRedirects: t.Run.MissionRedirects,
		Logged:           t.Run.Logged,
		Lines:            t.Run.Lines,
	}
	if s.Deployed && s.SessionKills > 0 {
		s.KillsPerHour = metrics.SessionKillRate(s.SessionKills, at.Sub(t.Run.DeployTime))
	}
	return s
}

package state

import (
	"testing"
	"time"

	"afkmon/internal/notify"

	"pgregory.net/rapid"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(now *time.Time) *Tracker {
	tr := NewTracker("run")
	tr.Now = func() time.Time { return *now }
	return tr
}

func TestRingEvictsOldest(t *testing.T) {
	var r Ring
	for i := 1; i <= RecentCapacity+3; i++ {
		r.Push(time.Duration(i) * time.Second)
	}
	if r.Len() != RecentCapacity || !r.Full() {
		t.Fatalf("len = %d, want %d", r.Len(), RecentCapacity)
	}
	v := r.Values()
	if v[0] != 4*time.Second || v[len(v)-1] != 13*time.Second {
		t.Fatalf("values = %v", v)
	}
	var want time.Duration
	for i := 4; i <= 13; i++ {
		want += time.Duration(i) * time.Second
	}
	if r.Sum() != want {
		t.Fatalf("sum = %v, want %v", r.Sum(), want)
	}
}

func TestSessionTransitions(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	var started, ended int
	var last Summary
	tr.OnStart = func(time.Time) { started++ }
	tr.OnEnd = func(s Summary) { ended++; last = s }

	tr.Run.EventTime = t0
	if !tr.StartSession(false) || tr.StartSession(false) {
		t.Fatalf("start should fire once")
	}
	tr.Session.Scans = append(tr.Session.Scans, "python")
	tr.Run.EventTime = t0.Add(time.Minute)
	tr.RecordKill(t0.Add(time.Minute), 5000, KillTypeBounties)

	if !tr.StartSession(true) {
		t.Fatalf("forced start should restart")
	}
	if tr.Session.Kills != 0 || tr.Run.TotalKills != 1 {
		t.Fatalf("forced start: session kills %d total %d", tr.Session.Kills, tr.Run.TotalKills)
	}
	tr.RecordKill(t0.Add(2*time.Minute), 1000, KillTypeBounties)
	tr.Run.EventTime = t0.Add(3 * time.Minute)
	if !tr.EndSession() || tr.EndSession() {
		t.Fatalf("end should fire once")
	}
	if started != 2 || ended != 1 {
		t.Fatalf("hooks: started %d ended %d", started, ended)
	}
	if last.Kills != 1 || last.Bounties != 1000 || !last.End.Equal(t0.Add(3*time.Minute)) {
		t.Fatalf("summary = %+v", last)
	}
	if tr.Deployed() || tr.Session.Kills != 0 || tr.Session.Bounties != 0 {
		t.Fatalf("session not cleared: %+v", tr.Session)
	}
	if tr.Run.TotalKills != 2 || tr.Run.TotalBounties != 6000 {
		t.Fatalf("run totals: %d %d", tr.Run.TotalKills, tr.Run.TotalBounties)
	}
}

func TestHooksSilentWhilePreloading(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	tr.Run.Preloading = true
	tr.OnStart = func(time.Time) { t.Fatalf("OnStart during preload") }
	tr.OnEnd = func(Summary) { t.Fatalf("OnEnd during preload") }
	tr.StartSession(false)
	tr.EndSession()
}

func TestKillAccumulationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		now := t0
		tr := newTestTracker(&now)
		n := rapid.IntRange(1, 40).Draw(rt, "kills")
		at := t0
		var sum time.Duration
		for i := 0; i < n; i++ {
			if i > 0 {
				gap := time.Duration(rapid.IntRange(1, 3600).Draw(rt, "gap")) * time.Second
				at = at.Add(gap)
				sum += gap
			}
			tr.Run.EventTime = at
			tr.RecordKill(at, 100, KillTypeBounties)
		}
		if tr.Session.Kills != n {
			rt.Fatalf("kills = %d, want %d", tr.Session.Kills, n)
		}
		if tr.Session.KillsTime != sum {
			rt.Fatalf("kills time = %v, want %v", tr.Session.KillsTime, sum)
		}
		wantRecent := n - 1
		if wantRecent > RecentCapacity {
			wantRecent = RecentCapacity
		}
		if tr.Session.Recent.Len() != wantRecent {
			rt.Fatalf("recent len = %d, want %d", tr.Session.Recent.Len(), wantRecent)
		}
	})
}

func TestMissionBookkeeping(t *testing.T) {
	var r Run
	if !r.LoadMissions([]int64{1, 2}) || r.LoadMissions([]int64{9}) {
		t.Fatalf("missions should load once")
	}
	r.AcceptMission(3)
	r.AcceptMission(3)
	if len(r.MissionsActive) != 3 {
		t.Fatalf("active = %v", r.MissionsActive)
	}
	r.RedirectMission()
	r.RedirectMission()
	if done, active, all := r.RedirectMission(); done != 3 || active != 3 || !all {
		t.Fatalf("redirect = %d/%d all=%v", done, active, all)
	}
	if !r.ResolveMission(1) || r.ResolveMission(1) {
		t.Fatalf("resolve should succeed once")
	}
	r.ResolveMission(2)
	r.ResolveMission(3)
	if r.MissionRedirects != 0 || len(r.MissionsActive) != 0 {
		t.Fatalf("after resolve: %d %v", r.MissionRedirects, r.MissionsActive)
	}
	r.AcceptMission(4)
	r.ResolveMission(4)
	if r.MissionRedirects != 0 {
		t.Fatalf("redirects went negative: %d", r.MissionRedirects)
	}
}

func TestHealthCheckDriftCompensation(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	tr.Run.EventTime = t0
	tr.StartSession(false)
	cfg := DefaultHealth()
	sev := notify.DefaultTable{}

	if tr.Due(t0.Add(59 * time.Second)) {
		t.Fatalf("due before first interval")
	}
	tr.CheckHealth(t0.Add(60500*time.Millisecond), t0, cfg, sev)
	if want := t0.Add(120 * time.Second); !tr.Run.Health.NextCheck.Equal(want) {
		t.Fatalf("next = %v, want %v", tr.Run.Health.NextCheck, want)
	}
	tr.CheckHealth(t0.Add(300*time.Second), t0, cfg, sev)
	if want := t0.Add(360 * time.Second); !tr.Run.Health.NextCheck.Equal(want) {
		t.Fatalf("stalled loop should resync: next = %v, want %v", tr.Run.Health.NextCheck, want)
	}
}

func TestKillRateCooldownDoubles(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	tr.Run.EventTime = t0
	tr.RecordKill(t0, 1000, KillTypeBounties)
	cfg := DefaultHealth()

	var warned []time.Time
	for m := 1; m <= 180; m++ {
		now = t0.Add(time.Duration(m) * time.Minute)
		for _, c := range tr.CheckHealth(now, now, cfg, notify.DefaultTable{}) {
			if c.Category != notify.KillRate {
				t.Fatalf("unexpected %s: %s", c.Category, c.Terminal)
			}
			if c.Severity != notify.Urgent {
				t.Fatalf("severity = %d", c.Severity)
			}
			warned = append(warned, now)
		}
	}
	if len(warned) < 3 {
		t.Fatalf("warnings = %v", warned)
	}
	if !warned[0].Equal(t0.Add(5 * time.Minute)) {
		t.Fatalf("first warning at %v, want after grace", warned[0].Sub(t0))
	}
	for i := 2; i < len(warned); i++ {
		prev := warned[i-1].Sub(warned[i-2])
		gap := warned[i].Sub(warned[i-1])
		if gap < 2*prev {
			t.Fatalf("gap %d = %v, previous %v", i, gap, prev)
		}
	}
}

func TestKillRateCooldownSurvivesNewSession(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	tr.Run.EventTime = t0
	tr.StartSession(false)
	tr.Run.Health.KillRateCooldown = 60 * time.Minute
	tr.Run.Health.WarnedKillRate = t0

	now = t0.Add(time.Hour)
	tr.Run.EventTime = now
	if !tr.StartSession(true) {
		t.Fatalf("forced start should restart")
	}
	h := tr.Run.Health
	if h.KillRateCooldown != 60*time.Minute {
		t.Fatalf("cooldown = %v, want 1h kept", h.KillRateCooldown)
	}
	if !h.WarnedKillRate.IsZero() || !h.NextCheck.Equal(now.Add(tr.CheckInterval)) {
		t.Fatalf("health not reset: %+v", h)
	}
}

func TestNoKillsWarning(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	tr.Run.EventTime = t0
	tr.StartSession(false)
	cfg := DefaultHealth()

	var got []notify.Candidate
	for m := 1; m <= 25; m++ {
		now = t0.Add(time.Duration(m) * time.Minute)
		got = append(got, tr.CheckHealth(now, now, cfg, notify.DefaultTable{})...)
	}
	if len(got) != 2 {
		t.Fatalf("warnings = %d, want 2 (grace + one cooldown)", len(got))
	}
	if got[0].Terminal != "No kills logged for 5 minutes" || got[1].Terminal != "No kills logged for 20 minutes" {
		t.Fatalf("texts = %q, %q", got[0].Terminal, got[1].Terminal)
	}
}

func TestLastKillCeiling(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	tr.Run.EventTime = t0
	for i := 0; i < 30; i++ {
		at := t0.Add(time.Duration(i) * 10 * time.Second)
		tr.Run.EventTime = at
		tr.RecordKill(at, 1000, KillTypeBounties)
	}
	cfg := DefaultHealth()
	cfg.KillRateThreshold = 1
	cfg.NoKillsCeiling = 10 * time.Minute
	now = t0.Add(20 * time.Minute)
	got := tr.CheckHealth(now, now, cfg, notify.DefaultTable{})
	if len(got) != 1 || got[0].Category != notify.NoKills {
		t.Fatalf("got %+v", got)
	}
	if got[0].Terminal != "Last logged kill was 15 minutes ago" {
		t.Fatalf("text = %q", got[0].Terminal)
	}
}

func TestNoHealthWhileIdleOrPreloading(t *testing.T) {
	now := t0
	tr := newTestTracker(&now)
	if got := tr.CheckHealth(t0.Add(time.Hour), t0.Add(time.Hour), DefaultHealth(), notify.DefaultTable{}); got != nil {
		t.Fatalf("idle produced %v", got)
	}
	tr.Run.EventTime = t0
	tr.StartSession(false)
	tr.Run.Preloading = true
	if got := tr.CheckHealth(t0.Add(time.Hour), t0.Add(time.Hour), DefaultHealth(), notify.DefaultTable{}); got != nil {
		t.Fatalf("preload produced %v", got)
	}
}

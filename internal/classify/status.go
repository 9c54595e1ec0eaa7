package classify

import (
	"fmt"
	"strconv"
	"time"

	"afkmon/internal/metrics"
	"afkmon/internal/notify"
	"afkmon/internal/state"
)

// statusSettled is the kill count from which the session rate is trusted.
const statusSettled = 20

// Status renders the periodic status line for a deployed session:
// kill rate, time since the last kill (or deployment) and missions
// redirected/active. ok is false while idle or preloading.
func Status(tr *state.Tracker, wall time.Time, sev notify.Severities) (c notify.Candidate, ok bool) {
	run := &tr.Run
	if !run.Deployed() || run.Preloading {
		return c, false
	}
	s := &tr.Session
	rate, since := "-/h", wall.Sub(run.DeployTime)
	if s.Kills > 0 {
		kph := strconv.FormatFloat(metrics.SessionKillRate(s.Kills, wall.Sub(run.DeployTime)), 'f', 1, 64)
		if s.Kills < statusSettled {
			kph += "*"
		}
		rate = kph + "/h"
		since = wall.Sub(s.LastKill)
	}
	if sev == nil {
		sev = notify.DefaultTable{}
	}
	return notify.Candidate{
		Terminal: fmt.Sprintf("%s ⌚%s 🎯%d/%d", rate, metrics.FormatDuration(since), run.MissionRedirects, len(run.MissionsActive)),
		Glyph:    "💥",
		Severity: sev.Severity(notify.Status),
		Category: notify.Status,
		At:       wall,
	}, true
}

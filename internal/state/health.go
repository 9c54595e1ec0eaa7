package state

import (
	"fmt"
	"strconv"
	"time"

	"afkmon/internal/metrics"
	"afkmon/internal/notify"
)

// HealthConfig holds the tunables for periodic kill-rate evaluation.
type HealthConfig struct {
	KillRateThreshold float64       // kills per hour
	NoKillsCeiling    time.Duration // max gap since last kill once the rate is fine
	Grace             time.Duration // startup grace before any warning
	Cooldown          time.Duration // base cooldown for both warnings
}

// DefaultHealth mirrors the shipped configuration.
func DefaultHealth() HealthConfig {
	return HealthConfig{
		KillRateThreshold: 20,
		NoKillsCeiling:    20 * time.Minute,
		Grace:             5 * time.Minute,
		Cooldown:          15 * time.Minute,
	}
}

// Due reports whether a health evaluation should run at now.
func (t *Tracker) Due(now time.Time) bool {
	if !t.Run.Deployed() || t.Run.Preloading {
		return false
	}
	return !now.Before(t.Run.Health.NextCheck)
}

// advance moves NextCheck forward by one interval. When the loop fell
// further behind than that, it resyncs from now instead of firing a burst.
func (t *Tracker) advance(now time.Time) {
	h := &t.Run.Health
	if h.NextCheck.IsZero() {
		h.NextCheck = now.Add(t.CheckInterval)
		return
	}
	h.NextCheck = h.NextCheck.Add(t.CheckInterval)
	if !h.NextCheck.After(now) {
		h.NextCheck = now.Add(t.CheckInterval)
	}
}

// CheckHealth evaluates the kill-rate and no-kill rules if a check is due.
// now is the monotonic instant; wall is the matching wall-clock instant used
// against journal timestamps.
func (t *Tracker) CheckHealth(now, wall time.Time, cfg HealthConfig, sev notify.Severities) []notify.Candidate {
	if !t.Due(now) {
		return nil
	}
	t.advance(now)

	h := &t.Run.Health
	if h.KillRateCooldown <= 0 {
		h.KillRateCooldown = cfg.Cooldown
	}
	session := wall.Sub(t.Run.DeployTime)
	if session <= 0 {
		session = time.Second
	}

	if t.Session.Kills > 0 {
		if !h.WarnedKillRate.IsZero() && now.Sub(h.WarnedKillRate) >= h.KillRateCooldown {
			h.KillRateCooldown *= 2
			h.WarnedKillRate = time.Time{}
		}
		rate := metrics.SessionKillRate(t.Session.Kills, session)
		if rate < cfg.KillRateThreshold {
			noKillsFresh := !h.WarnedNoKills.IsZero() && now.Sub(h.WarnedNoKills) < cfg.Grace
			if h.WarnedKillRate.IsZero() && session >= cfg.Grace && !noKillsFresh {
				h.WarnedKillRate = now
				return []notify.Candidate{warning(notify.KillRate, sev, fmt.Sprintf("Kill rate of %s/h is below %s/h threshold",
					formatRate(rate), formatRate(cfg.KillRateThreshold)))}
			}
			return nil
		}
		since := wall.Sub(t.Session.LastKill)
		if h.WarnedKillRate.IsZero() && since >= cfg.NoKillsCeiling {
			h.WarnedKillRate = now
			return []notify.Candidate{warning(notify.NoKills, sev, fmt.Sprintf("Last logged kill was %d minutes ago", int(since/time.Minute)))}
		}
		return nil
	}

	if !h.WarnedNoKills.IsZero() && now.Sub(h.WarnedNoKills) >= cfg.Cooldown {
		h.WarnedNoKills = time.Time{}
	}
	if h.WarnedNoKills.IsZero() && session >= cfg.Grace {
		h.WarnedNoKills = now
		return []notify.Candidate{warning(notify.NoKills, sev, fmt.Sprintf("No kills logged for %d minutes", int(session/time.Minute)))}
	}
	return nil
}

func warning(category string, sev notify.Severities, text string) notify.Candidate {
	return notify.Candidate{
		Terminal: text,
		Glyph:    "⚠️",
		Tone:     notify.ToneWarn,
		Severity: sev.Severity(category),
		Category: category,
	}
}

func formatRate(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

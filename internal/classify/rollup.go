package classify

import (
	"fmt"
	"strconv"
	"time"

	"afkmon/internal/metrics"
	"afkmon/internal/notify"
	"afkmon/internal/state"
)

const rollupEvery = 10

// Totals is the input for a rollup: kills, the summed gaps between them and
// the income they produced.
type Totals struct {
	Label    string // "Session" or "Total"
	Kills    int
	Between  time.Duration
	Income   int64
	Merits   int64
	KillType string
	Recent   string // optional suffix for the kills line
}

// Rollup renders the kills, income and merits summary lines. Rates that
// cannot be computed yet render as "-".
func Rollup(t Totals, sev notify.Severities) []notify.Candidate {
	rate, avg := "-", "-"
	if kph, ok := metrics.KillsPerHour(t.Kills, t.Between); ok {
		rate = strconv.FormatFloat(kph, 'f', 1, 64)
		iv, _ := metrics.KillInterval(t.Kills, t.Between)
		avg = metrics.FormatDuration(iv)
	}
	killsText := fmt.Sprintf("%s kills: %s (%s/hr | %s/kill)", t.Label, metrics.FormatCount(int64(t.Kills)), rate, avg)
	out := []notify.Candidate{{
		Terminal: killsText + t.Recent,
		Remote:   "**" + killsText + "**" + t.Recent,
		Glyph:    "📝",
		Severity: sev.Severity(notify.SummaryKills),
		Category: notify.SummaryKills,
	}}

	income := "-"
	if v, ok := metrics.IncomePerHour(t.Income, t.Between); ok {
		income = metrics.FormatMagnitude(v)
	}
	out = append(out, notify.Candidate{
		Terminal: fmt.Sprintf("%s %s: %s (%s/hr | %s/kill)", t.Label, t.KillType,
			metrics.FormatMagnitude(float64(t.Income)), income, metrics.FormatMagnitude(float64(metrics.AveragePer(t.Income, t.Kills)))),
		Glyph:    "📝",
		Severity: sev.Severity(notify.SummaryBounties),
		Category: notify.SummaryBounties,
	})

	if t.Merits > 0 {
		perHour := "-"
		if v, ok := metrics.IncomePerHour(t.Merits, t.Between); ok {
			perHour = metrics.FormatCount(int64(v))
		}
		out = append(out, notify.Candidate{
			Terminal: fmt.Sprintf("%s merits: %s (%s/hr | %s/kill)", t.Label, metrics.FormatCount(t.Merits),
				perHour, metrics.FormatCount(metrics.AveragePer(t.Merits, t.Kills))),
			Glyph:    "📝",
			Severity: sev.Severity(notify.SummaryMerits),
			Category: notify.SummaryMerits,
		})
	}
	return out
}

// RunTotals is the shutdown summary over the whole run. It is empty until
// at least two kills exist.
func RunTotals(run *state.Run, sev notify.Severities) []notify.Candidate {
	if run.TotalKills < 2 {
		return nil
	}
	return Rollup(Totals{
		Label:    "Total",
		Kills:    run.TotalKills,
		Between:  run.TotalTime,
		Income:   run.TotalBounties,
		Merits:   run.TotalMerits,
		KillType: run.KillType,
	}, sev)
}

// recentRate renders the kill rate over the last full window of intervals.
func recentRate(s *state.Session) string {
	if s.Kills <= state.RecentCapacity || !s.Recent.Full() {
		return ""
	}
	avg := s.Recent.Sum() / time.Duration(s.Recent.Len())
	kph, ok := metrics.PerHour(1, avg)
	if !ok {
		return ""
	}
	return fmt.Sprintf(" [Last %d: %s/hr]", state.RecentCapacity, strconv.FormatFloat(metrics.Round(kph, 1), 'f', 1, 64))
}

package metrics

import "time"

// PerHour converts count over elapsed into a per-hour rate.
// ok is false when elapsed is not positive.
func PerHour(count float64, elapsed time.Duration) (rate float64, ok bool) {
	if elapsed <= 0 {
		return 0, false
	}
	return count * float64(time.Hour) / float64(elapsed), true
}

// KillInterval returns the average time between kills given the number of
// kills and the summed gaps between consecutive kills. The first kill of a
// sequence has no predecessor, so at least two kills are required.
func KillInterval(kills int, between time.Duration) (time.Duration, bool) {
	if kills < 2 || between <= 0 {
		return 0, false
	}
	return between / time.Duration(kills-1), true
}

// KillsPerHour is the kill rate implied by the average inter-kill interval,
// rounded to one decimal place.
func KillsPerHour(kills int, between time.Duration) (float64, bool) {
	avg, ok := KillInterval(kills, between)
	if !ok {
		return 0, false
	}
	rate, ok := PerHour(1, avg)
	if !ok {
		return 0, false
	}
	return Round(rate, 1), true
}

// SessionKillRate is the kill rate over a whole deployment window. A zero
// window (session started by the kill itself) is treated as one second.
func SessionKillRate(kills int, window time.Duration) float64 {
	if window <= 0 {
		window = time.Second
	}
	rate, _ := PerHour(float64(kills), window)
	return Round(rate, 1)
}

// IncomePerHour spreads total income over the summed inter-kill time.
func IncomePerHour(total int64, between time.Duration) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	rate, ok := PerHour(float64(total), between)
	if !ok {
		return 0, false
	}
	return Round(rate, 0), true
}

// AveragePer is the integer average of total over n, or 0 when n is not positive.
func AveragePer(total int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	return total / int64(n)
}

// Percent returns value as a whole percentage of capacity.
func Percent(value, capacity float64) int {
	if capacity <= 0 {
		return 0
	}
	return int(Round(value/capacity*100, 0))
}

// BurnProjection estimates how long remaining lasts given the amount consumed
// between two readings elapsed apart. ok is false when no time passed or the
// amount did not go down (refuel or identical readings).
func BurnProjection(previous, remaining float64, elapsed time.Duration) (time.Duration, bool) {
	used := previous - remaining
	if elapsed <= 0 || used <= 0 {
		return 0, false
	}
	perHour, _ := PerHour(used, elapsed)
	hours := remaining / perHour
	return time.Duration(hours * float64(time.Hour)), true
}

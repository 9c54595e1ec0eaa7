package metrics

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders d in the compact form used in notifications:
// "1h5m" above an hour, "2m0s" above a minute, otherwise "45s".
// Sub-second precision is truncated; negative durations render as "0s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := secs % 3600 / 60
	s := secs % 60
	switch {
	case h > 0:
		return strconv.FormatInt(h, 10) + "h" + strconv.FormatInt(m, 10) + "m"
	case m > 0:
		return strconv.FormatInt(m, 10) + "m" + strconv.FormatInt(s, 10) + "s"
	default:
		return strconv.FormatInt(s, 10) + "s"
	}
}

// FormatSeconds is FormatDuration for a float number of seconds.
func FormatSeconds(secs float64) string {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return "0s"
	}
	return FormatDuration(time.Duration(secs * float64(time.Second)))
}

// FormatMagnitude renders large credit values compactly:
// 1250000 -> "1.3m", 48200 -> "48k", 950 -> "950".
func FormatMagnitude(n float64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	var out string
	switch {
	case n >= 999_500:
		out = trimFloat(Round(n/1_000_000, 1)) + "m"
	case n >= 1_000:
		out = trimFloat(math.Round(n/1_000)) + "k"
	default:
		out = strconv.FormatInt(int64(n), 10)
	}
	if neg {
		return "-" + out
	}
	return out
}

// FormatCount renders an integer with thousands separators ("12,345").
func FormatCount(n int64) string { return humanize.Comma(n) }

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func trimFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

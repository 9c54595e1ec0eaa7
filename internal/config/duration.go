package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DurationSetting describes one duration-valued key of the config file.
type DurationSetting struct {
	Key     string        // dotted path, used in errors
	Default time.Duration // applies when the value is empty or zero
	Min     time.Duration // smallest accepted non-zero value
}

// Duration settings read outside this package.
var (
	PollInterval = DurationSetting{Key: "journal.poll_interval", Default: DefaultPoll, Min: 10 * time.Millisecond}
	BusyTimeout  = DurationSetting{Key: "storage.busy_timeout", Default: time.Second}
	SendTimeout  = DurationSetting{Key: "notifier.send_timeout", Default: 10 * time.Second, Min: 100 * time.Millisecond}
)

// Parse reads raw as a Go duration ("1.5s", "250ms"). A bare integer counts
// as seconds.
func (d DurationSetting) Parse(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return d.Default, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		n, nerr := strconv.ParseInt(s, 10, 64)
		if nerr != nil {
			return 0, fmt.Errorf("%s: %q is not a duration", d.Key, raw)
		}
		v = time.Duration(n) * time.Second
	}
	switch {
	case v < 0:
		return 0, fmt.Errorf("%s: %s is negative", d.Key, v)
	case v == 0:
		return d.Default, nil
	case v < d.Min:
		return 0, fmt.Errorf("%s: %s is below the minimum of %s", d.Key, v, d.Min)
	}
	return v, nil
}

package config

import (
	"maps"

	"afkmon/internal/notify"
	logx "afkmon/pkg/logx"
)

// Levels resolves notification severities: built-in defaults overlaid with
// the configured log_levels.
type Levels struct {
	m   map[string]int
	log logx.Logger
}

// Levels builds the resolver for c. Lookups that fall back are logged to log.
func (c *Config) Levels(log logx.Logger) Levels {
	m := make(map[string]int, len(notify.Defaults)+len(c.LogLevels))
	for k, v := range notify.Defaults {
		m[k] = int(v)
	}
	maps.Copy(m, c.LogLevels)
	return Levels{m: m, log: log}
}

// Severity returns the configured severity for category. Unknown categories
// and out-of-range values fall back to the built-in default with a warning.
func (l Levels) Severity(category string) notify.Severity {
	if v, ok := l.m[category]; ok {
		if v >= int(notify.Silent) && v <= int(notify.Urgent) {
			return notify.Severity(v)
		}
		def, _ := notify.DefaultSeverity(category)
		l.log.Warn("log level out of range; using default",
			logx.String("category", category), logx.Int("value", v), logx.Int("default", int(def)))
		return def
	}
	def, _ := notify.DefaultSeverity(category)
	l.log.Warn("log level not configured; using default",
		logx.String("category", category), logx.Int("default", int(def)))
	return def
}

// LogxConfig maps the logging section onto the logger's options.
func (l LoggingConfig) LogxConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Remote: logx.RemoteConfig{
			Enabled:    l.Remote.Enabled,
			MinLevel:   l.Remote.MinLevel,
			RatePerSec: l.Remote.RatePerSec,
		},
	}
}

package config

import (
	"encoding/json"
	"time"
)

type Config struct {
	Journal   JournalConfig   `json:"journal"`
	Settings  SettingsConfig  `json:"settings"`
	Discord   DiscordConfig   `json:"discord"`
	Telegram  TelegramConfig  `json:"telegram"`
	LogLevels map[string]int  `json:"log_levels,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Metrics   MetricsConfig   `json:"metrics"`

	// Profiles are partial overlays selected by name (usually the commander).
	Profiles map[string]Profile `json:"profiles,omitempty"`
}

// JournalConfig locates the journal to follow.
//
// PollInterval is a Go duration string (default "1s"); file system events
// wake the reader earlier.
type JournalConfig struct {
	Folder       string `json:"folder"`
	File         string `json:"file,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
}

type SettingsConfig struct {
	UseUTC bool `json:"use_utc"`
	// WarnKillRate is the kills/hour floor below which a warning fires.
	WarnKillRate float64 `json:"warn_kill_rate"`
	// WarnNoKills is the gap in minutes since the last kill worth a warning.
	WarnNoKills      int     `json:"warn_no_kills"`
	BountyFaction    *bool   `json:"bounty_faction,omitempty"`
	BountyValue      bool    `json:"bounty_value"`
	ExtendedStats    bool    `json:"extended_stats"`
	FuelTankFallback float64 `json:"fuel_tank_fallback,omitempty"`
	// StatusSchedule is a cron spec (or "@every 10m") for status reports.
	StatusSchedule string `json:"status_schedule,omitempty"`
	ResetSession   bool   `json:"reset_session"`
	TestMode       bool   `json:"test_mode"`
}

// DiscordConfig drives the webhook sender. An empty WebhookURL disables it.
type DiscordConfig struct {
	WebhookURL      string `json:"webhook_url"`
	UserID          string `json:"user_id,omitempty"`
	Timestamp       *bool  `json:"timestamp,omitempty"`
	Identity        *bool  `json:"identity,omitempty"`
	ForumChannel    bool   `json:"forum_channel"`
	ThreadCmdrNames bool   `json:"thread_cmdr_names"`
}

// TelegramConfig drives the bot sender. An empty Token disables it.
type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	// Mention is appended to urgent messages, e.g. "@pilot".
	Mention string `json:"mention,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Remote  LoggingRemote `json:"remote"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingRemote forwards warnings and errors to the notification channel.
type LoggingRemote struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// NotifierConfig controls the async delivery pipeline.
//
// If the whole section is omitted, delivery is enabled with defaults.
type NotifierConfig struct {
	Enabled     bool   `json:"enabled"`
	QueueSize   int    `json:"queue_size"`
	RatePerSec  int    `json:"rate_per_sec"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./afkmon.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls the HTTP exporter. Prefer a loopback address.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Pprof   bool   `json:"pprof,omitempty"`
}

// Profile overlays sections of the base config. Only keys present in the
// overlay change; log_levels merge key by key.
type Profile struct {
	Settings  json.RawMessage `json:"settings,omitempty"`
	Discord   json.RawMessage `json:"discord,omitempty"`
	Telegram  json.RawMessage `json:"telegram,omitempty"`
	LogLevels map[string]int  `json:"log_levels,omitempty"`
}

const (
	DefaultWarnKillRate = 20
	DefaultWarnNoKills  = 20
	DefaultFuelTank     = 64
	DefaultPoll         = time.Second
	DefaultMetricsAddr  = "127.0.0.1:9464"
)

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// BountyFactionOn reports whether kill lines show the victim faction.
func (s SettingsConfig) BountyFactionOn() bool { return boolOr(s.BountyFaction, true) }

// TimestampOn reports whether remote text carries the event time.
func (d DiscordConfig) TimestampOn() bool { return boolOr(d.Timestamp, true) }

// IdentityOn reports whether the webhook posts under the monitor's name.
func (d DiscordConfig) IdentityOn() bool { return boolOr(d.Identity, true) }

// PollEvery returns the journal poll interval.
func (j JournalConfig) PollEvery() time.Duration {
	d, err := PollInterval.Parse(j.PollInterval)
	if err != nil {
		return DefaultPoll
	}
	return d
}

// applyDefaults fills zero values that have a non-zero default.
func (c *Config) applyDefaults() {
	if c.Settings.WarnKillRate <= 0 {
		c.Settings.WarnKillRate = DefaultWarnKillRate
	}
	if c.Settings.WarnNoKills <= 0 {
		c.Settings.WarnNoKills = DefaultWarnNoKills
	}
	if c.Settings.FuelTankFallback < 2 {
		c.Settings.FuelTankFallback = DefaultFuelTank
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{Logging: LoggingConfig{Console: true}}
	c.applyDefaults()
	return c
}

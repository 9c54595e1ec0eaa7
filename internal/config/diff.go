package config

import (
	"maps"
	"reflect"
	"slices"

	logx "afkmon/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe structured
// attrs for logging. Secrets (webhook URL, bot token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Journal != newCfg.Journal {
		changed = append(changed, "journal")
		attrs = append(attrs, logx.String("journal.poll_interval", newCfg.Journal.PollInterval))
	}
	if !reflect.DeepEqual(oldCfg.Settings, newCfg.Settings) {
		changed = append(changed, "settings")
		attrs = append(attrs,
			logx.Float64("settings.warn_kill_rate", newCfg.Settings.WarnKillRate),
			logx.Int("settings.warn_no_kills", newCfg.Settings.WarnNoKills),
			logx.Bool("settings.extended_stats", newCfg.Settings.ExtendedStats),
			logx.String("settings.status_schedule", newCfg.Settings.StatusSchedule),
		)
	}
	if !reflect.DeepEqual(oldCfg.Discord, newCfg.Discord) {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.webhook_set", newCfg.Discord.WebhookURL != ""),
			logx.Bool("discord.forum_channel", newCfg.Discord.ForumChannel),
		)
	}
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", newCfg.Telegram.Token != ""),
			logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID),
		)
	}
	if !maps.Equal(oldCfg.LogLevels, newCfg.LogLevels) {
		changed = append(changed, "log_levels")
		keys := slices.Sorted(maps.Keys(diffKeys(oldCfg.LogLevels, newCfg.LogLevels)))
		attrs = append(attrs, logx.Any("log_levels.changed", keys))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.remote", newCfg.Logging.Remote.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	if !reflect.DeepEqual(oldCfg.Profiles, newCfg.Profiles) {
		changed = append(changed, "profiles")
	}
	return changed, attrs
}

func diffKeys(a, b map[string]int) map[string]struct{} {
	out := make(map[string]struct{})
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			out[k] = struct{}{}
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

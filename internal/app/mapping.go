package app

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"afkmon/internal/classify"
	"afkmon/internal/config"
	"afkmon/internal/gate"
	"afkmon/internal/journal"
	"afkmon/internal/notifier"
	"afkmon/internal/observability"
	"afkmon/internal/processor"
	"afkmon/internal/schedule"
	"afkmon/internal/state"
	"afkmon/internal/storage"
	logx "afkmon/pkg/logx"
)

const threadTimeLayout = "2006-01-02 15:04:05"

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.BusyTimeout.Parse(sc.BusyTimeout)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

// mapNotifierConfig treats an omitted section as enabled with defaults.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier
	if nc.QueueSize < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.queue_size must be >= 0")
	}
	if nc.RatePerSec < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.rate_per_sec must be >= 0")
	}
	timeout, err := config.SendTimeout.Parse(nc.SendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:     nc.Enabled,
		QueueSize:   nc.QueueSize,
		RatePerSec:  nc.RatePerSec,
		SendTimeout: timeout,
	}, nil
}

func mapServerConfig(cfg *config.Config) (observability.Config, error) {
	m := cfg.Metrics
	out := observability.Config{Enabled: m.Enabled, Addr: m.Addr, Pprof: m.Pprof}
	if !m.Enabled {
		return out, nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return observability.Config{}, fmt.Errorf("metrics.addr: %w", err)
	}
	return out, nil
}

// settingsFrom derives the processor's reloadable settings. remote reports
// whether any remote channel is configured.
func settingsFrom(cfg *config.Config, remote bool, log logx.Logger) processor.Settings {
	s := cfg.Settings
	health := state.DefaultHealth()
	health.KillRateThreshold = s.WarnKillRate
	health.NoKillsCeiling = time.Duration(s.WarnNoKills) * time.Minute
	return processor.Settings{
		Classify: classify.Settings{
			BountyFaction: s.BountyFactionOn(),
			BountyValue:   s.BountyValue,
			ExtendedStats: s.ExtendedStats,
			FuelFallback:  s.FuelTankFallback,
		},
		Health: health,
		Gate: gate.Gate{
			Remote:    remote || s.TestMode,
			TestMode:  s.TestMode,
			Timestamp: cfg.Discord.TimestampOn(),
			UTC:       s.UseUTC,
		},
		Levels: cfg.Levels(log.With(logx.String("comp", "levels"))),
		Poll:   cfg.Journal.PollEvery(),
	}
}

// threadName names the forum thread after the journal's start time,
// optionally prefixed with the commander.
func threadName(journalPath, cmdr string, withCmdr bool) string {
	start, ok := journal.StartTime(journalPath)
	if !ok {
		return ""
	}
	name := start.Format(threadTimeLayout)
	if withCmdr && cmdr != "" {
		name = cmdr + " " + name
	}
	return name
}

// validate rejects configs that would fail when applied. It runs at
// startup and before every hot reload is committed.
func validate(_ context.Context, cfg *config.Config) error {
	if _, err := config.PollInterval.Parse(cfg.Journal.PollInterval); err != nil {
		return err
	}
	if _, err := schedule.Normalize(cfg.Settings.StatusSchedule); err != nil {
		return fmt.Errorf("settings.status_schedule: %w", err)
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}

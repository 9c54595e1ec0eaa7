// Package app wires the monitor together: configuration, the journal
// tailer, the processor, remote delivery, storage and the metrics server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"afkmon/internal/config"
	"afkmon/internal/console"
	"afkmon/internal/eventbus"
	"afkmon/internal/journal"
	"afkmon/internal/metrics"
	"afkmon/internal/notifier"
	"afkmon/internal/observability"
	"afkmon/internal/processor"
	rtsup "afkmon/internal/runtime/supervisor"
	"afkmon/internal/schedule"
	"afkmon/internal/state"
	"afkmon/internal/storage"
	"afkmon/internal/transport"
	logx "afkmon/pkg/logx"
)

const stopTimeout = 8 * time.Second

// Options are the command line overrides. Zero values keep the config file's
// setting.
type Options struct {
	ConfigPath   string
	Profile      string
	JournalDir   string
	JournalFile  string
	Webhook      string
	ResetSession bool
	TestMode     bool
	Debug        bool
	// FileSelect lists recent journals and asks which one to follow.
	FileSelect bool

	// Stdout receives the notification lines; nil means os.Stdout.
	Stdout io.Writer
	// Stdin answers the journal picker; nil means os.Stdin.
	Stdin io.Reader
}

type App struct {
	opts  Options
	runID string

	cfgm    *config.Manager
	cfg     *config.Config // effective: base + profile + overrides
	profile string
	matched string // profile name as configured, empty when none matched
	cmdr    string

	log  logx.Logger
	logs *logx.Service

	printer *console.Printer
	bus     eventbus.Bus
	store   storage.Store
	senders transport.Fanout
	notif   *notifier.Service
	exp     *observability.Exporter
	server  *observability.Server
	sched   *schedule.Scheduler
	tail    *journal.Tailer
	proc    *processor.Processor

	updates chan processor.Settings
	sup     *rtsup.Supervisor
}

// New loads configuration, resolves the journal and builds every component.
// Nothing runs until Run.
func New(opts Options) (*App, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	a := &App{opts: opts, runID: uuid.NewString(), updates: make(chan processor.Settings, 1)}
	a.printer = console.New(opts.Stdout)

	base := config.Default()
	if opts.ConfigPath != "" {
		a.cfgm = config.NewManager(opts.ConfigPath)
		c, err := a.cfgm.Load()
		if err != nil {
			return nil, err
		}
		base = c
	}
	if err := validate(context.Background(), base); err != nil {
		return nil, err
	}
	boot := a.override(base)

	a.logs, a.log = logx.New(boot.Logging.LogxConfig())
	a.log = a.log.With(logx.String("run", a.runID[:8]))

	path, err := a.locateJournal(boot.Journal)
	if err != nil {
		_ = a.logs.Close()
		return nil, err
	}
	a.cmdr, err = journal.CommanderName(path)
	if err != nil {
		a.log.Warn("reading commander name", logx.Err(err))
	}
	a.profile = opts.Profile
	if a.profile == "" {
		a.profile = a.cmdr
	}
	if a.cfg, a.matched, err = a.effective(base); err != nil {
		return nil, err
	}
	a.logs.Apply(a.cfg.Logging.LogxConfig())

	a.senders, err = buildSenders(a.cfg, threadName(path, a.cmdr, a.cfg.Discord.ThreadCmdrNames), a.log)
	if err != nil {
		return nil, err
	}
	var sender transport.Sender
	if len(a.senders) > 0 {
		sender = a.senders
		a.logs.SetRemote(sender)
		a.logs.Apply(a.cfg.Logging.LogxConfig())
	}

	a.bus = eventbus.New()
	if scfg, ok, err := mapStorageConfig(a.cfg); err != nil {
		return nil, err
	} else if ok {
		if a.store, err = storage.Open(scfg, a.log.With(logx.String("comp", "storage"))); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}

	ncfg, err := mapNotifierConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	a.notif = notifier.New(ncfg, sender, a.log, a.bus, a.store)
	a.notif.SetRunID(a.runID)

	a.exp = observability.NewExporter()
	srvCfg, err := mapServerConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	a.server = observability.NewServer(srvCfg, a.exp, a.log)

	loc := time.Local
	if a.cfg.Settings.UseUTC {
		loc = time.UTC
	}
	a.sched = schedule.New(loc, a.log.With(logx.String("comp", "schedule")))

	if a.tail, err = journal.Open(path, a.log.With(logx.String("comp", "journal"))); err != nil {
		return nil, err
	}

	a.proc = processor.New(processor.Deps{
		Source:       a.tail,
		Printer:      a.printer,
		Notifier:     a.notif,
		Bus:          a.bus,
		Observer:     a.exp,
		Log:          a.log,
		Updates:      a.updates,
		Status:       a.sched.C(),
		RunID:        a.runID,
		ResetSession: a.cfg.Settings.ResetSession,
		OnReady:      a.ready,
	}, settingsFrom(a.cfg, len(a.senders) > 0, a.log))
	return a, nil
}

// override applies the command line on top of c without touching c.
func (a *App) override(c *config.Config) *config.Config {
	out := *c
	o := a.opts
	if o.JournalDir != "" {
		out.Journal.Folder = o.JournalDir
	}
	if o.JournalFile != "" {
		out.Journal.File = o.JournalFile
	}
	if o.Webhook != "" {
		out.Discord.WebhookURL = o.Webhook
	}
	out.Settings.ResetSession = out.Settings.ResetSession || o.ResetSession
	out.Settings.TestMode = out.Settings.TestMode || o.TestMode
	if o.Debug {
		out.Logging.Level = "debug"
	}
	return &out
}

// effective resolves the profile overlay and the command line for base.
func (a *App) effective(base *config.Config) (*config.Config, string, error) {
	c, matched, err := base.WithProfile(a.profile)
	if err != nil {
		return nil, "", err
	}
	if a.profile != "" && matched == "" {
		a.log.Debug("no config profile matched", logx.String("profile", a.profile))
	}
	return a.override(c), matched, nil
}

// Run blocks until ctx ends, the game shuts down or the journal fails. A
// game shutdown is a clean exit.
func (a *App) Run(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(validate)
	}
	a.header(ctx)

	// Deliveries outlive the signal so the stop notice and totals still go
	// out; Stop bounds the drain.
	a.notif.Start(context.WithoutCancel(ctx))
	a.server.Start(a.sup.Context())
	if err := a.sched.Apply(a.cfg.Settings.StatusSchedule); err != nil {
		a.log.Warn("status schedule not set", logx.Err(err))
	}

	a.sup.Go("journal.follow", func(c context.Context) error {
		if err := a.tail.Follow(c); err != nil {
			a.log.Warn("journal watcher unavailable; polling only", logx.Err(err))
		}
		return nil
	})
	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go("config.watch", a.cfgm.Watch)
		a.sup.Go("config.reload", func(c context.Context) error {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
			return nil
		})
	}
	events, unsub := a.bus.Subscribe(256)
	a.sup.Go("metrics.consume", func(c context.Context) error {
		defer unsub()
		return a.exp.Consume(c, events)
	})

	// Session persistence drains after the processor returns, so it runs
	// outside the supervisor's context.
	persistCtx, stopPersist := context.WithCancel(context.WithoutCancel(ctx))
	persistDone := make(chan struct{})
	ended, unsubEnded := a.bus.Subscribe(32)
	go func() {
		defer close(persistDone)
		defer unsubEnded()
		a.persistSessions(persistCtx, ended)
	}()

	err := a.proc.Run(a.sup.Context())
	reason := StopSignal
	switch {
	case errors.Is(err, processor.ErrShutdown):
		reason, err = StopShutdown, nil
	case err != nil:
		reason = StopError
		a.log.Error("monitor failed", logx.Bool("fatal", true), logx.Err(err))
	case a.sup.Err() != nil:
		reason, err = StopError, a.sup.Err()
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	a.stop(stopCtx, reason, func(c context.Context) error {
		stopPersist()
		select {
		case <-persistDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	return err
}

func (a *App) header(ctx context.Context) {
	a.printer.Field("Journal folder", filepath.Dir(a.tail.Path()))
	a.printer.Field("Journal file", filepath.Base(a.tail.Path()))
	if a.cmdr != "" {
		a.printer.Field("Commander name", a.cmdr)
	}
	if a.matched != "" {
		a.printer.Field("Config profile", a.matched)
	}
	if len(a.senders) > 0 {
		a.printer.Field("Remote", a.senders.Name())
	}
	if a.cfg.Settings.TestMode {
		a.printer.Field("Test mode", "remote messages are printed, not sent")
	}
	if last, ok := a.lastSession(ctx); ok {
		a.printer.Field("Last session", last)
	}
	a.printer.Println("\nStarting... (Press Ctrl+C to stop)\n")
}

// lastSession describes the most recently stored session.
func (a *App) lastSession(ctx context.Context) (string, bool) {
	if a.store == nil {
		return "", false
	}
	c, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	recs, err := a.store.Sessions(c, 1)
	if err != nil {
		a.log.Debug("reading last session", logx.Err(err))
		return "", false
	}
	if len(recs) == 0 {
		return "", false
	}
	r := recs[0]
	return fmt.Sprintf("%s kills, %s %s, ended %s", metrics.FormatCount(int64(r.Kills)),
		metrics.FormatMagnitude(float64(r.Bounties)), r.KillType, r.End.Local().Format(threadTimeLayout)), true
}

// ready runs once the journal has been replayed.
func (a *App) ready() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready", logx.Err(err))
	} else if ok {
		a.log.Debug("notified systemd")
	}
}

func (a *App) stop(ctx context.Context, reason StopReason, persist func(context.Context) error) {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.step(ctx, "notifier", 4*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	if sent, failed := deliverySummary(a.notif.History()); sent+failed > 0 {
		a.log.Info("remote deliveries", logx.Int("sent", sent), logx.Int("failed", failed))
	}
	a.step(ctx, "sessions", time.Second, persist)

	a.sup.Cancel()
	a.step(ctx, "schedule", time.Second, func(context.Context) error { a.sched.Stop(); return nil })
	a.step(ctx, "metrics", 2*time.Second, func(c context.Context) error { a.server.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	if c := a.sup.Counters(); c.Active > 0 {
		a.log.Warn("tasks still running after stop", logx.Int64("active", c.Active), logx.Uint64("started", c.Started))
	}

	if a.store != nil {
		a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })
	}
	a.step(ctx, "senders", time.Second, func(context.Context) error { return a.senders.Close() })
	if err := a.tail.Close(); err != nil {
		a.log.Warn("closing journal", logx.Err(err))
	}
	_ = a.logs.Close()
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return
		case base, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						base = newer
					}
				default:
					break drain
				}
			}
			cfg, _, err := a.effective(base)
			if err != nil {
				a.log.Warn("invalid profile after reload; keeping previous", logx.Err(err))
				continue
			}
			a.apply(ctx, last, cfg)
			last = cfg
		}
	}
}

// apply pushes a reloaded config to every live component.
func (a *App) apply(ctx context.Context, prev, cfg *config.Config) {
	sections, attrs := config.SummarizeChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if s, ok := restartRequired(sections); ok {
		a.log.Warn("config change requires a restart to take effect", logx.String("section", s))
	}

	a.logs.Apply(cfg.Logging.LogxConfig())

	select {
	case <-a.updates:
	default:
	}
	a.updates <- settingsFrom(cfg, len(a.senders) > 0, a.log)

	if err := a.sched.Apply(cfg.Settings.StatusSchedule); err != nil {
		a.log.Warn("invalid status schedule; keeping previous", logx.Err(err))
	}

	if ncfg, err := mapNotifierConfig(cfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		was := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch now := a.notif.Enabled(); {
		case was && !now:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !was && now:
			a.log.Info("notifier enabled via config")
			a.notif.Start(context.WithoutCancel(ctx))
		}
	}

	if scfg, err := mapServerConfig(cfg); err != nil {
		a.log.Warn("invalid metrics config; keeping previous", logx.Err(err))
	} else {
		a.server.Reconfigure(ctx, scfg)
	}
	a.cfg = cfg
}

// persistSessions stores every ended session. Once ctx ends it drains what
// is already queued and returns.
func (a *App) persistSessions(ctx context.Context, events <-chan eventbus.Event) {
	record := func(ev eventbus.Event) {
		s, ok := ev.Data.(state.Summary)
		if ev.Type != eventbus.SessionEnded || !ok || a.store == nil {
			return
		}
		c, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := a.store.RecordSession(c, sessionRecord(s)); err != nil {
			a.log.Warn("storing session", logx.Err(err))
		}
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			record(ev)
		case <-ctx.Done():
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					record(ev)
				default:
					return
				}
			}
		}
	}
}

func sessionRecord(s state.Summary) storage.SessionRecord {
	return storage.SessionRecord{
		RunID:        s.RunID,
		Start:        s.Start,
		End:          s.End,
		Kills:        s.Kills,
		Bounties:     s.Bounties,
		Merits:       s.Merits,
		KillType:     s.KillType,
		KillsSeconds: int64(s.KillsTime / time.Second),
	}
}

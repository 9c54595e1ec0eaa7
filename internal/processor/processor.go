// Package processor drives the monitor: it replays the journal to rebuild
// state, then follows new records, runs periodic health checks and routes
// every notification through the gate to the terminal and remote channels.
package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"afkmon/internal/classify"
	"afkmon/internal/console"
	"afkmon/internal/eventbus"
	"afkmon/internal/gate"
	"afkmon/internal/journal"
	"afkmon/internal/notifier"
	"afkmon/internal/notify"
	"afkmon/internal/state"
	logx "afkmon/pkg/logx"
)

// ErrShutdown is returned by Run when the journal records the game quitting.
var ErrShutdown = errors.New("game shut down")

// Source yields journal lines. journal.Tailer implements it.
type Source interface {
	Next() (line string, ok bool, err error)
	Wake() <-chan struct{}
	Path() string
}

// Notifier queues remote messages. notifier.Service implements it.
type Notifier interface {
	Notify(ctx context.Context, j notifier.Job) error
}

// Observer receives counter snapshots after each pass of the loop.
type Observer interface {
	Observe(state.Snapshot)
}

// Settings are the reloadable knobs.
type Settings struct {
	Classify classify.Settings
	Health   state.HealthConfig
	Gate     gate.Gate
	Levels   notify.Severities
	// Poll bounds how long the loop sleeps without file system events.
	Poll time.Duration
}

// Deps wires the processor. Only Source and Printer are required.
type Deps struct {
	Source   Source
	Printer  *console.Printer
	Notifier Notifier
	Bus      eventbus.Bus
	Observer Observer
	Log      logx.Logger

	// Updates delivers new settings; they apply between records.
	Updates <-chan Settings
	// Status delivers scheduled status report requests.
	Status <-chan time.Time

	RunID string
	// ResetSession clears session counters once the replay is done.
	ResetSession bool
	// OnReady runs once the replay is done.
	OnReady func()
	// Clock replaces time.Now in tests.
	Clock func() time.Time
}

type Processor struct {
	d   Deps
	log logx.Logger
	set Settings

	tr  *state.Tracker
	cls *classify.Classifier

	// lastErr suppresses repeats of the same classify error.
	lastErr string
}

func New(d Deps, s Settings) *Processor {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	p := &Processor{d: d, log: d.Log.With(logx.String("comp", "processor"))}
	p.tr = state.NewTracker(d.RunID)
	p.tr.Now = d.Clock
	p.tr.OnStart = p.sessionStarted
	p.tr.OnEnd = p.sessionEnded
	p.cls = classify.New(s.Classify, s.Levels)
	p.cls.Now = func() time.Time { return d.Clock().UTC() }
	p.apply(s)
	if s.Classify.FuelFallback >= 2 {
		p.tr.Run.FuelCapacity = s.Classify.FuelFallback
	}
	return p
}

// Tracker exposes state for inspection once Run has returned.
func (p *Processor) Tracker() *state.Tracker { return p.tr }

func (p *Processor) apply(s Settings) {
	if s.Levels == nil {
		s.Levels = notify.DefaultTable{}
	}
	if s.Poll <= 0 {
		s.Poll = time.Second
	}
	p.set = s
	p.cls.Settings = s.Classify
	p.cls.Sev = s.Levels
}

func (p *Processor) file() string { return filepath.Base(p.d.Source.Path()) }

// Run replays the journal, then follows it until ctx ends, the game shuts
// down (ErrShutdown) or the journal becomes unreadable. If ctx ends during
// the replay Run reports locally and returns nil without going live.
func (p *Processor) Run(ctx context.Context) error {
	p.tr.Run.Preloading = true
	stopped, err := p.drain(ctx)
	if err != nil {
		return err
	}
	if stopped {
		// The replayed journal already ended; report it without going live.
		p.finish(ctx)
		return ErrShutdown
	}
	if ctx.Err() != nil {
		p.log.Info("interrupted during replay", logx.Int("lines", p.tr.Run.Lines))
		p.finish(ctx)
		return nil
	}
	p.tr.Run.Preloading = false
	p.log.Info("journal replayed", logx.Int("lines", p.tr.Run.Lines), logx.Int("kills", p.tr.Run.TotalKills), logx.Bool("deployed", p.tr.Deployed()))

	if p.d.ResetSession {
		p.tr.Session.Reset()
		p.emit(ctx, notify.Candidate{Terminal: "Session stats reset", Glyph: "🔄", Severity: notify.Local, Category: notify.Monitor})
	}
	if p.d.OnReady != nil {
		p.d.OnReady()
	}
	p.emit(ctx, notify.Candidate{
		Terminal: fmt.Sprintf("Monitor started (%s)", p.file()),
		Remote:   fmt.Sprintf("**Monitor started** (%s)", p.file()),
		Glyph:    "📖",
		Severity: p.set.Levels.Severity(notify.Monitor),
		Category: notify.Monitor,
	})

	err = p.loop(ctx)
	p.finish(ctx)
	return err
}

func (p *Processor) loop(ctx context.Context) error {
	poll := time.NewTicker(p.set.Poll)
	defer poll.Stop()
	for {
		stopped, err := p.drain(ctx)
		if err != nil {
			return err
		}
		if stopped {
			return ErrShutdown
		}
		p.checkHealth(ctx)
		p.observe()

		select {
		case <-ctx.Done():
			return nil
		case <-p.d.Source.Wake():
		case <-poll.C:
		case s, ok := <-p.d.Updates:
			if ok {
				prev := p.set.Poll
				p.apply(s)
				if p.set.Poll != prev {
					poll.Reset(p.set.Poll)
				}
				p.log.Info("settings reloaded")
			}
		case at := <-p.d.Status:
			if c, ok := classify.Status(p.tr, at, p.set.Levels); ok {
				p.emit(ctx, c)
			}
		}
	}
}

// drain processes every complete line available now. stopped reports a
// Shutdown record.
func (p *Processor) drain(ctx context.Context) (stopped bool, err error) {
	for ctx.Err() == nil {
		line, ok, err := p.d.Source.Next()
		if err != nil {
			return false, fmt.Errorf("journal: %w", err)
		}
		if !ok {
			return false, nil
		}
		p.tr.Run.Lines++
		if p.process(ctx, line) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Processor) process(ctx context.Context, line string) (stop bool) {
	rec, err := journal.Parse(line)
	if err != nil {
		p.log.Warn("skipping journal line", logx.Int("line", p.tr.Run.Lines), logx.Err(err))
		return false
	}
	res, err := p.classifyRecord(rec)
	if err != nil {
		var ce *classify.Error
		if errors.As(err, &ce) && ce.Error() != p.lastErr {
			p.lastErr = ce.Error()
			p.log.Warn("processing error", logx.String("event", ce.Kind), logx.Time("logtime", ce.At), logx.Err(ce.Err))
		}
		return false
	}
	for _, c := range res.Notes {
		p.emit(ctx, c)
	}
	return res.Stop
}

// classifyRecord turns a panicking rule into a *classify.Error so one bad
// record can't take the monitor down.
func (p *Processor) classifyRecord(rec *journal.Record) (res classify.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = classify.Result{}
			err = &classify.Error{Kind: rec.Kind, At: p.tr.Run.EventTime, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return p.cls.Classify(p.tr, rec)
}

func (p *Processor) checkHealth(ctx context.Context) {
	now := p.d.Clock()
	for _, c := range p.tr.CheckHealth(now, now.UTC(), p.set.Health, p.set.Levels) {
		c.At = now
		p.emit(ctx, c)
	}
}

func (p *Processor) observe() {
	if p.d.Observer != nil {
		p.d.Observer.Observe(p.tr.Snapshot(p.d.Clock().UTC()))
	}
}

// emit gates c and surfaces it.
func (p *Processor) emit(ctx context.Context, c notify.Candidate) {
	act := p.set.Gate.Apply(c, &p.tr.Run)
	if p.d.Printer != nil {
		p.d.Printer.Show(act)
	}
	if p.d.Bus != nil && !act.Suppressed() {
		p.d.Bus.Publish(eventbus.Event{Type: eventbus.Logged, Data: eventbus.LoggedEvent{
			Category: c.Category, Severity: int(act.Severity), Remote: act.Remote != nil && !act.Echo,
		}})
	}
	if act.Remote == nil || act.Echo || p.d.Notifier == nil {
		return
	}
	err := p.d.Notifier.Notify(ctx, notifier.Job{Message: *act.Remote, Category: c.Category})
	if err != nil && !errors.Is(err, notifier.ErrDisabled) {
		p.log.Warn("remote notification not queued", logx.String("category", c.Category), logx.Err(err))
	}
}

// finish reports run totals and the stop notice. It runs after ctx may
// have ended, so deliveries use a detached context.
func (p *Processor) finish(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, c := range classify.RunTotals(&p.tr.Run, p.set.Levels) {
		p.emit(ctx, c)
	}
	p.emit(ctx, notify.Candidate{
		Terminal: fmt.Sprintf("Monitor stopped (%s)", p.file()),
		Remote:   fmt.Sprintf("**Monitor stopped** (%s)", p.file()),
		Glyph:    "📕",
		Severity: p.set.Levels.Severity(notify.Monitor),
		Category: notify.Monitor,
	})
	p.observe()
}

func (p *Processor) sessionStarted(at time.Time) {
	p.log.Debug("session started", logx.Time("deploy", at))
	if p.d.Bus != nil {
		p.d.Bus.Publish(eventbus.Event{Type: eventbus.SessionStarted, Data: eventbus.Started{RunID: p.tr.Run.ID, At: at}})
	}
}

func (p *Processor) sessionEnded(s state.Summary) {
	p.log.Debug("session ended", logx.Int("kills", s.Kills), logx.Int64("bounties", s.Bounties))
	if p.d.Bus != nil {
		p.d.Bus.Publish(eventbus.Event{Type: eventbus.SessionEnded, Data: s})
	}
}

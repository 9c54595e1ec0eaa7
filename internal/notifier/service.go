package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"afkmon/internal/eventbus"
	rtsup "afkmon/internal/runtime/supervisor"
	"afkmon/internal/storage"
	"afkmon/internal/transport"
	logx "afkmon/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender transport.Sender
	bus    eventbus.Bus
	store  storage.Store
	runID  string

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan Job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds a stopped service. bus and store may be nil.
func New(cfg Config, sender transport.Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	s := &Service{sender: sender, log: log.With(logx.String("comp", "notifier")), bus: bus, store: store}
	s.applyLocked(cfg)
	return s
}

// SetRunID tags stored deliveries.
func (s *Service) SetRunID(id string) {
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled && s.sender != nil
}

// Apply swaps rate and timeout. Queue size changes take effect on restart.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start launches the worker. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled || s.sender == nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan Job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	sup, q := s.sup, s.queue
	s.mu.Unlock()

	sup.GoRestart("worker", func(c context.Context) error {
		s.workerLoop(c, q)
		s.mu.Lock()
		stopping := s.stopDone != nil
		s.mu.Unlock()
		if stopping || c.Err() != nil {
			return nil
		}
		return errors.New("notifier worker exited unexpectedly")
	})
}

// Stop refuses new jobs and drains the queue until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Notify enqueues j without blocking.
func (s *Service) Notify(ctx context.Context, j Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.cfg.Enabled || s.sender == nil {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- j:
		return nil
	default:
		s.publish(eventbus.NotifyDropped, j, 0, ErrQueueFull)
		return ErrQueueFull
	}
}

// History returns the most recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) workerLoop(ctx context.Context, q <-chan Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.send(ctx, j)
		}
	}
}

func (s *Service) send(ctx context.Context, j Job) {
	s.mu.Lock()
	cfg, lim, sender, runID := s.cfg, s.limiter, s.sender, s.runID
	s.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	start := time.Now()
	err := sender.Send(callCtx, j.Message)
	took := time.Since(start)
	cancel()

	item := HistoryItem{At: start, Text: j.Message.Text}
	topic := eventbus.NotifySent
	if err != nil {
		item.Error = err.Error()
		topic = eventbus.NotifyFailed
		s.log.Warn("remote send failed", logx.String("channel", sender.Name()), logx.String("category", j.Category), logx.Err(err))
	}
	s.appendHistory(item)
	s.publish(topic, j, took, err)

	if s.store != nil {
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		d := storage.Delivery{
			At: start, RunID: runID, Channel: sender.Name(), Category: j.Category,
			Text: j.Message.Text, Error: item.Error, TookMS: took.Milliseconds(),
		}
		if serr := s.store.AppendDelivery(sctx, d); serr != nil {
			s.log.Debug("delivery not stored", logx.Err(serr))
		}
		scancel()
	}
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(topic string, j Job, took time.Duration, err error) {
	if s.bus == nil {
		return
	}
	d := eventbus.Delivery{Category: j.Category, Text: j.Message.Text, Took: took}
	if s.sender != nil {
		d.Channel = s.sender.Name()
	}
	if err != nil {
		d.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: topic, Data: d})
}

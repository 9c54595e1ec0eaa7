package app

import (
	"context"
	"fmt"
	"time"

	"afkmon/internal/notifier"
	logx "afkmon/pkg/logx"
)

// StopReason is logged when the monitor shuts down.
type StopReason string

const (
	StopSignal   StopReason = "signal"
	StopShutdown StopReason = "game_shutdown"
	StopError    StopReason = "error"
)

// step runs one shutdown step bounded by limit so a stalled component can't
// hold up the rest. fn must honour its context.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	stepCtx := ctx
	if limit > 0 {
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < limit {
				limit = max(rem, 0)
			}
		}
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			if err := <-done; err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
			}
		}()
	}
}

// deliverySummary counts successful and failed sends in h.
func deliverySummary(h []notifier.HistoryItem) (sent, failed int) {
	for _, it := range h {
		if it.Error != "" {
			failed++
		} else {
			sent++
		}
	}
	return sent, failed
}

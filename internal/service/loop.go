package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"patchbay/internal/adapter"
)

// Loop feeds registry events to an Engine. It is the only goroutine that
// touches the engine once Run has been called.
type Loop struct {
	engine   *Engine
	reg      adapter.Registry
	interval time.Duration
	reload   <-chan struct{}
	logger   *zap.Logger
}

// NewLoop creates a loop that polls reg with the given timeout. The timeout
// only bounds how long shutdown can take.
func NewLoop(engine *Engine, reg adapter.Registry, interval time.Duration, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		engine:   engine,
		reg:      reg,
		interval: interval,
		logger:   logger,
	}
}

// WatchStore makes the loop reload the engine's store whenever ch fires
func (l *Loop) WatchStore(ch <-chan struct{}) {
	l.reload = ch
}

// Run processes events in delivery order until ctx is cancelled (returns nil)
// or an event cannot be persisted (returns the error).
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Watching registry", zap.Duration("poll_interval", l.interval))

	for {
		if ctx.Err() != nil {
			return nil
		}

		events, err := l.reg.Poll(ctx, l.interval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("poll registry: %w", err)
		}

		for _, ev := range events {
			l.logger.Debug("Event", zap.Stringer("event", ev))
			if err := l.engine.Handle(ctx, ev); err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					l.logger.Warn("Shutdown interrupted a store write", zap.Error(err))
					return nil
				}
				return err
			}
		}

		l.drainReload(ctx)
	}
}

// drainReload coalesces every pending change notification into one reload
func (l *Loop) drainReload(ctx context.Context) {
	if l.reload == nil {
		return
	}
	pending := false
drain:
	for {
		select {
		case _, ok := <-l.reload:
			if !ok {
				l.reload = nil
				break drain
			}
			pending = true
		default:
			break drain
		}
	}
	if !pending {
		return
	}
	if err := l.engine.Reload(ctx); err != nil {
		// The file is probably mid-edit or malformed; keep what we have.
		l.logger.Warn("Ignoring store change", zap.Error(err))
	}
}

// Package scheduler drives time-based workflow triggers. A background loop
// ticks once a minute and hands the tick to the router, which decides which
// cron-bound definitions are due.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TickHandler receives scheduler ticks. Satisfied by *router.Router.
type TickHandler interface {
	OnSchedule(ctx context.Context, tick time.Time) error
}

// Scheduler runs the minute tick loop.
type Scheduler struct {
	handler  TickHandler
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	sweeps   sync.WaitGroup
	sweeping sync.Mutex // held for the duration of one sweep
}

// NewScheduler creates a Scheduler. A non-positive interval defaults to one
// minute, the granularity at which cron expressions are matched.
func NewScheduler(handler TickHandler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	tickCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(tickCtx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweeps.Add(1)
			go func() {
				defer s.sweeps.Done()
				s.sweep(ctx, now)
			}()
		}
	}
}

// sweep runs one tick. If the previous sweep is still in flight the tick is
// dropped rather than doubled: a slow sweep must not pile up concurrent
// copies of the same cron matches.
func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	if !s.sweeping.TryLock() {
		s.logger.Warn("previous sweep still running, skipping tick",
			slog.Time("tick", now),
		)
		return
	}
	defer s.sweeping.Unlock()

	if err := s.handler.OnSchedule(ctx, now); err != nil {
		s.logger.Error("schedule sweep failed",
			slog.Time("tick", now),
			slog.String("error", err.Error()),
		)
	}
}

// Stop gracefully shuts down the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	// Every sweep is registered before its goroutine starts, so once the
	// loop has exited this drains all of them, launched or in flight.
	s.sweeps.Wait()
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

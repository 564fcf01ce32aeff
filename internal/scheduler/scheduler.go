package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler drives the periodic delivery sweep: every interval it invokes
// the sweep function, which pushes collected photos for assigned orders to
// their result chats. A panicking sweep is recovered so one bad order cannot
// stop the loop.
type Scheduler struct {
	interval time.Duration
	sweepFn  func(context.Context)

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, sweepFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if sweepFn == nil {
		return nil, errors.New("sweepFn must not be nil")
	}
	return &Scheduler{
		interval: interval,
		sweepFn:  sweepFn,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("delivery sweep started", "interval", s.interval.String())

		s.safeSweep(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("delivery sweep stopping")
				return
			case <-ticker.C:
				s.safeSweep(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("delivery sweep stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("delivery sweep panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	s.sweepFn(ctx)
	slog.Info("delivery sweep completed", "duration_ms", time.Since(start).Milliseconds())
}

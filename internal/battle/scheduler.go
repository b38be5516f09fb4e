package battle

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs fn once after d. Tasks are never cancelled; they re-check
// room state when they fire.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler hands due tasks to a fixed pool of workers.
type TimerScheduler struct {
	tasks   chan func()
	done    chan struct{}
	workers int
	logger  zerolog.Logger
}

func NewTimerScheduler(workers int, logger zerolog.Logger) *TimerScheduler {
	if workers <= 0 {
		workers = 5
	}
	return &TimerScheduler{
		tasks:   make(chan func(), workers*16),
		done:    make(chan struct{}),
		workers: workers,
		logger:  logger.With().Str("component", "battle_scheduler").Logger(),
	}
}

// After schedules fn. Tasks that come due after Run has returned are dropped.
func (s *TimerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case s.tasks <- fn:
		case <-s.done:
		}
	})
}

// Run executes due tasks until ctx is cancelled.
func (s *TimerScheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case fn := <-s.tasks:
					s.run(fn)
				}
			}
		})
	}
	err := g.Wait()
	close(s.done)
	s.logger.Info().Msg("scheduler stopped")
	return err
}

func (s *TimerScheduler) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Msg("scheduled task panicked")
		}
	}()
	fn()
}

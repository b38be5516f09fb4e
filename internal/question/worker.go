package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type poolWarmer interface {
	Warm(ctx context.Context, tier string) (int, error)
}

// Warmer periodically reloads every tier's pool into the cache so the first
// battle after expiry does not pay for the Postgres round trip.
type Warmer struct {
	service  poolWarmer
	tiers    []string
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewWarmer(service poolWarmer, tiers []string, interval time.Duration, logger zerolog.Logger) *Warmer {
	if interval <= 0 {
		interval = 4 * time.Minute
	}
	return &Warmer{
		service:  service,
		tiers:    tiers,
		interval: interval,
		timeout:  4 * time.Second,
		logger:   logger.With().Str("component", "question_warmer").Logger(),
	}
}

// Run warms immediately and then on every tick until ctx is done.
func (w *Warmer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.warmAll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("question warmer stopping")
			return nil
		case <-ticker.C:
			w.warmAll(ctx)
		}
	}
}

func (w *Warmer) warmAll(ctx context.Context) {
	for _, tier := range w.tiers {
		if ctx.Err() != nil {
			return
		}
		tctx, cancel := context.WithTimeout(ctx, w.timeout)
		n, err := w.service.Warm(tctx, tier)
		cancel()
		if err != nil {
			w.logger.Warn().Err(err).Str("tier", tier).Msg("warm failed")
			continue
		}
		if n == 0 {
			w.logger.Warn().Str("tier", tier).Msg("question pool is empty")
		}
	}
}

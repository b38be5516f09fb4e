package leaderboard

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
)

type snapshotSaver interface {
	Save(ctx context.Context, snap repository.Snapshot) error
}

type topReader interface {
	Top(ctx context.Context, window string, limit int) ([]Entry, error)
}

// SnapshotWorker periodically persists Redis leaderboards into Postgres so
// rankings survive a Redis flush.
type SnapshotWorker struct {
	svc      topReader
	store    snapshotSaver
	logger   zerolog.Logger
	interval time.Duration
	topN     int
	now      func() time.Time
	// last hash written per window; unchanged rankings are skipped
	lastHash map[string]string
}

func NewSnapshotWorker(svc topReader, store snapshotSaver, interval time.Duration, topN int, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if topN <= 0 {
		topN = 50
	}
	return &SnapshotWorker{
		svc:      svc,
		store:    store,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
		topN:     topN,
		now:      time.Now,
		lastHash: make(map[string]string, len(Windows)),
	}
}

// Run blocks until context cancellation.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	for _, window := range Windows {
		if err := w.snapshotWindow(ctx, window); err != nil {
			w.logger.Warn().Err(err).Str("window", window).Msg("snapshot failed")
		}
	}
}

func (w *SnapshotWorker) snapshotWindow(ctx context.Context, window string) error {
	entries, err := w.svc.Top(ctx, window, w.topN)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	wsEntries := toWSEntries(entries)
	data, err := json.Marshal(wsEntries)
	if err != nil {
		return err
	}

	sum := blake2b.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if w.lastHash[window] == hash {
		return nil
	}

	now := w.now().UTC()
	if err := w.store.Save(ctx, repository.Snapshot{
		Window:      window,
		GeneratedAt: now,
		Entries:     data,
		SourceHash:  hash,
	}); err != nil {
		return err
	}
	w.lastHash[window] = hash

	w.logger.Info().
		Str("window", window).
		Int("entries", len(wsEntries)).
		Time("generated_at", now).
		Msg("leaderboard snapshot persisted")

	return nil
}

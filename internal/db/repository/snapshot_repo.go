package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

// ErrSnapshotNotFound is returned when a window has never been snapshotted.
var ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")

type snapshotStore interface {
	InsertLeaderboardSnapshot(ctx context.Context, arg store.InsertLeaderboardSnapshotParams) (store.LeaderboardSnapshot, error)
	GetLatestLeaderboardSnapshot(ctx context.Context, timeWindow string) (store.LeaderboardSnapshot, error)
}

// Snapshot is a persisted copy of a leaderboard window. Entries is the
// encoded ranking as served to clients.
type Snapshot struct {
	Window      string
	GeneratedAt time.Time
	Entries     []byte
	SourceHash  string
}

// SnapshotRepository stores periodic leaderboard copies in Postgres.
type SnapshotRepository struct {
	store snapshotStore
}

func NewSnapshotRepository(store snapshotStore) *SnapshotRepository {
	return &SnapshotRepository{store: store}
}

// Save inserts a snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, snap Snapshot) error {
	_, err := r.store.InsertLeaderboardSnapshot(ctx, store.InsertLeaderboardSnapshotParams{
		TimeWindow:  snap.Window,
		GeneratedAt: snap.GeneratedAt,
		Entries:     snap.Entries,
		SourceHash:  snap.SourceHash,
	})
	if err != nil {
		return fmt.Errorf("insert leaderboard snapshot %s: %w", snap.Window, err)
	}
	return nil
}

// Latest returns the newest snapshot for window.
func (r *SnapshotRepository) Latest(ctx context.Context, window string) (Snapshot, error) {
	row, err := r.store.GetLatestLeaderboardSnapshot(ctx, window)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get leaderboard snapshot %s: %w", window, err)
	}
	return Snapshot{
		Window:      row.TimeWindow,
		GeneratedAt: row.GeneratedAt,
		Entries:     row.Entries,
		SourceHash:  row.SourceHash,
	}, nil
}

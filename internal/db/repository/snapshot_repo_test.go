package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

type mockSnapshotStore struct {
	mock.Mock
}

func (m *mockSnapshotStore) InsertLeaderboardSnapshot(ctx context.Context, arg store.InsertLeaderboardSnapshotParams) (store.LeaderboardSnapshot, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(store.LeaderboardSnapshot), args.Error(1)
}

func (m *mockSnapshotStore) GetLatestLeaderboardSnapshot(ctx context.Context, timeWindow string) (store.LeaderboardSnapshot, error) {
	args := m.Called(ctx, timeWindow)
	return args.Get(0).(store.LeaderboardSnapshot), args.Error(1)
}

func TestSnapshotRepository_Save(t *testing.T) {
	st := new(mockSnapshotStore)
	repo := NewSnapshotRepository(st)
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	params := store.InsertLeaderboardSnapshotParams{TimeWindow: "daily", GeneratedAt: at, Entries: []byte(`[]`), SourceHash: "abc"}
	st.On("InsertLeaderboardSnapshot", mock.Anything, params).Return(store.LeaderboardSnapshot{SnapshotID: 1}, nil)

	err := repo.Save(context.Background(), Snapshot{Window: "daily", GeneratedAt: at, Entries: []byte(`[]`), SourceHash: "abc"})
	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestSnapshotRepository_SaveError(t *testing.T) {
	st := new(mockSnapshotStore)
	st.On("InsertLeaderboardSnapshot", mock.Anything, mock.Anything).Return(store.LeaderboardSnapshot{}, errors.New("boom"))

	err := NewSnapshotRepository(st).Save(context.Background(), Snapshot{Window: "weekly"})
	assert.ErrorContains(t, err, "insert leaderboard snapshot weekly")
}

func TestSnapshotRepository_Latest(t *testing.T) {
	st := new(mockSnapshotStore)
	repo := NewSnapshotRepository(st)
	st.On("GetLatestLeaderboardSnapshot", mock.Anything, "all_time").
		Return(store.LeaderboardSnapshot{TimeWindow: "all_time", Entries: []byte(`[{"user_id":"a"}]`), SourceHash: "h"}, nil)
	st.On("GetLatestLeaderboardSnapshot", mock.Anything, "daily").
		Return(store.LeaderboardSnapshot{}, pgx.ErrNoRows)

	snap, err := repo.Latest(context.Background(), "all_time")
	require.NoError(t, err)
	assert.Equal(t, "all_time", snap.Window)
	assert.JSONEq(t, `[{"user_id":"a"}]`, string(snap.Entries))

	_, err = repo.Latest(context.Background(), "daily")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

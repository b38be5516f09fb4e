package leaderboard

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(client, zerolog.Nop(), ServiceOptions{TopN: 5})
	svc.now = func() time.Time { return fixedNow }
	return svc, mr, client
}

func TestRecordResult_AccumulatesAcrossBattles(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordResult(ctx, MatchResult{MatchID: "r1", Standings: []Standing{
		{UserID: "a", DisplayName: "Aiko", Score: 95, Won: true},
		{UserID: "b", DisplayName: "Ben", Score: 0},
	}}))
	require.NoError(t, svc.RecordResult(ctx, MatchResult{MatchID: "r2", Standings: []Standing{
		{UserID: "b", DisplayName: "Ben", Score: 150, Draw: true},
		{UserID: "a", DisplayName: "Aiko", Score: 150, Draw: true},
	}}))

	for _, window := range Windows {
		top, err := svc.Top(ctx, window, 10)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{UserID: "a", DisplayName: "Aiko", Score: 245, Wins: 1, Draws: 1, Games: 2},
			{UserID: "b", DisplayName: "Ben", Score: 150, Wins: 0, Draws: 1, Games: 2},
		}, top, window)
	}
}

func TestRecordResult_PeriodKeys(t *testing.T) {
	svc, mr, _ := newTestService(t)
	require.NoError(t, svc.RecordResult(context.Background(), MatchResult{Standings: []Standing{{UserID: "a", Score: 10}}}))

	assert.True(t, mr.Exists("lb:daily:20261018"))
	assert.True(t, mr.Exists("lb:weekly:2026-W42"))
	assert.True(t, mr.Exists("lb:all_time"))
	assert.Equal(t, 48*time.Hour, mr.TTL("lb:daily:20261018"))
	assert.Equal(t, 14*24*time.Hour, mr.TTL("lb:weekly:2026-W42"))
	assert.Zero(t, mr.TTL("lb:all_time"))

	// a new day starts an empty daily board
	svc.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	daily, err := svc.Top(context.Background(), WindowDaily, 10)
	require.NoError(t, err)
	assert.Empty(t, daily)
	all, err := svc.Top(context.Background(), WindowAllTime, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTop_LimitAndValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var standings []Standing
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		standings = append(standings, Standing{UserID: id, Score: int(id[0])})
	}
	require.NoError(t, svc.RecordResult(ctx, MatchResult{Standings: standings}))

	top, err := svc.Top(ctx, WindowAllTime, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "g", top[0].UserID)
	assert.Equal(t, "g", top[0].DisplayName, "missing names fall back to the user id")

	capped, err := svc.Top(ctx, WindowAllTime, 100)
	require.NoError(t, err)
	assert.Len(t, capped, 5)

	_, err = svc.Top(ctx, "monthly", 10)
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []ws.Message
}

func (h *recordingHub) BroadcastAll(msg ws.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func TestBroadcaster_ForwardsPublishedUpdates(t *testing.T) {
	svc, _, client := newTestService(t)
	hub := &recordingHub{}
	b := NewBroadcaster(client, hub, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = svc.RecordResult(context.Background(), MatchResult{MatchID: "r1", Standings: []Standing{{UserID: "a", DisplayName: "Aiko", Score: 95, Won: true}}})
		return hub.count() > 0
	}, 3*time.Second, 50*time.Millisecond)

	hub.mu.Lock()
	msg := hub.msgs[0]
	hub.mu.Unlock()
	assert.Equal(t, ws.TypeLeaderboardUpdate, msg.Type)
	var payload ws.LeaderboardUpdatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "r1", payload.MatchID)
	require.NotEmpty(t, payload.Top)
	assert.Equal(t, 1, payload.Top[0].Rank)
	assert.Equal(t, "a", payload.Top[0].UserID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

package battle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateManager(t *testing.T) (*StateManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStateManager(client, time.Minute, zerolog.Nop()), mr
}

func TestStateManager_SaveAndLookup(t *testing.T) {
	sm, mr := newStateManager(t)
	ctx := context.Background()

	snap := RoomSnapshot{RoomID: "r1", Tier: TierN5, Status: StatusInProgress, Player1ID: "a", Player2ID: "b", Player2Score: 95, TotalQuestions: 2}
	require.NoError(t, sm.SaveRoom(ctx, snap))
	assert.Equal(t, time.Minute, mr.TTL("battle:room:r1"))

	got, err := sm.RoomForUser(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.RoomID)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 95, got.Player2Score)
	assert.Equal(t, 2, got.TotalQuestions)

	none, err := sm.RoomForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStateManager_DeleteKeepsNewerPointers(t *testing.T) {
	sm, mr := newStateManager(t)
	ctx := context.Background()

	old := RoomSnapshot{RoomID: "r1", Player1ID: "a", Player2ID: "b"}
	require.NoError(t, sm.SaveRoom(ctx, old))
	require.NoError(t, sm.SaveRoom(ctx, RoomSnapshot{RoomID: "r2", Player1ID: "a", Player2ID: "c"}))

	require.NoError(t, sm.DeleteRoom(ctx, old))
	assert.False(t, mr.Exists("battle:room:r1"))
	assert.False(t, mr.Exists("battle:player:b"))

	ptr, err := mr.Get("battle:player:a")
	require.NoError(t, err)
	assert.Equal(t, "r2", ptr)
}

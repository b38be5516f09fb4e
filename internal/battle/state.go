package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultStateTTL = time.Hour

// releasePlayer deletes a player pointer only if it still names the room.
var releasePlayer = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// StateManager mirrors room snapshots into Redis so any instance can
// answer status queries.
type StateManager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

var _ StateMirror = (*StateManager)(nil)

// NewStateManager creates a state manager backed by Redis.
func NewStateManager(redis *redis.Client, ttl time.Duration, logger zerolog.Logger) *StateManager {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateManager{
		redis:  redis,
		ttl:    ttl,
		logger: logger.With().Str("component", "battle_state").Logger(),
	}
}

func roomKey(roomID string) string {
	return "battle:room:" + roomID
}

func playerKey(userID string) string {
	return "battle:player:" + userID
}

// SaveRoom writes the snapshot and both player pointers.
func (s *StateManager) SaveRoom(ctx context.Context, snap RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, roomKey(snap.RoomID), data, s.ttl)
	pipe.Set(ctx, playerKey(snap.Player1ID), snap.RoomID, s.ttl)
	pipe.Set(ctx, playerKey(snap.Player2ID), snap.RoomID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save room %s: %w", snap.RoomID, err)
	}
	return nil
}

// DeleteRoom drops the snapshot. Player pointers already moved on to a
// newer room are left alone.
func (s *StateManager) DeleteRoom(ctx context.Context, snap RoomSnapshot) error {
	if err := s.redis.Del(ctx, roomKey(snap.RoomID)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", snap.RoomID, err)
	}
	for _, userID := range []string{snap.Player1ID, snap.Player2ID} {
		if err := releasePlayer.Run(ctx, s.redis, []string{playerKey(userID)}, snap.RoomID).Err(); err != nil {
			return fmt.Errorf("release player %s: %w", userID, err)
		}
	}
	return nil
}

// RoomForUser returns the mirrored room of userID, or nil if there is none.
func (s *StateManager) RoomForUser(ctx context.Context, userID string) (*RoomSnapshot, error) {
	roomID, err := s.redis.Get(ctx, playerKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get player room: %w", err)
	}

	data, err := s.redis.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	var snap RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal room: %w", err)
	}
	return &snap, nil
}

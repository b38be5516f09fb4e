package leaderboard

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

type broadcaster interface {
	BroadcastAll(msg ws.Message) error
}

// Broadcaster relays leaderboard updates published by any instance to the
// sockets connected to this one.
type Broadcaster struct {
	redis   *redis.Client
	hub     broadcaster
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered leaderboard broadcaster.
func NewBroadcaster(redis *redis.Client, hub broadcaster, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = UpdateChannel
	}
	return &Broadcaster{
		redis:   redis,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "leaderboard_broadcaster").Logger(),
	}
}

// Run subscribes to the update channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription so no update published after Run starts is lost
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt ws.LeaderboardUpdatePayload
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode leaderboard update payload")
		return
	}

	if err := b.hub.BroadcastAll(ws.NewMessage(ws.TypeLeaderboardUpdate, evt)); err != nil {
		b.logger.Debug().Err(err).Msg("leaderboard update not delivered to every socket")
	}
}

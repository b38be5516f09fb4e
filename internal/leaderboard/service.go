package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

// Supported leaderboard windows.
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowAllTime = "all_time"
)

// Windows lists every window a result is counted in.
var Windows = []string{WindowDaily, WindowWeekly, WindowAllTime}

var ErrUnknownWindow = errors.New("unknown leaderboard window")

// ValidWindow reports whether window is served.
func ValidWindow(window string) bool {
	for _, w := range Windows {
		if w == window {
			return true
		}
	}
	return false
}

// Entry is a ranked leaderboard row. Score is the sum of battle points
// earned inside the window.
type Entry struct {
	UserID      string
	DisplayName string
	Score       int
	Wins        int
	Draws       int
	Games       int
}

// Standing is one player's share of a finished battle.
type Standing struct {
	UserID      string
	DisplayName string
	Score       int
	Won         bool
	Draw        bool
}

// MatchResult is what the leaderboard needs from a finished battle.
type MatchResult struct {
	MatchID   string
	Standings []Standing
}

// UpdateChannel is the Pub/Sub channel rank changes are announced on.
const UpdateChannel = "lb:updates"

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN           int
	PubSubChannel  string
	RedisKeyPrefix string
	// DailyTTL and WeeklyTTL bound how long a finished period stays readable.
	DailyTTL  time.Duration
	WeeklyTTL time.Duration
}

// Service keeps per-window rankings in Redis sorted sets and announces
// changes over Pub/Sub.
type Service struct {
	redis         *redis.Client
	logger        zerolog.Logger
	topN          int
	pubsubChannel string
	prefix        string
	dailyTTL      time.Duration
	weeklyTTL     time.Duration
	now           func() time.Time
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	if opts.TopN <= 0 {
		opts.TopN = 50
	}
	if opts.PubSubChannel == "" {
		opts.PubSubChannel = UpdateChannel
	}
	if opts.RedisKeyPrefix == "" {
		opts.RedisKeyPrefix = "lb"
	}
	if opts.DailyTTL <= 0 {
		opts.DailyTTL = 48 * time.Hour
	}
	if opts.WeeklyTTL <= 0 {
		opts.WeeklyTTL = 14 * 24 * time.Hour
	}

	return &Service{
		redis:         redis,
		logger:        logger.With().Str("component", "leaderboard").Logger(),
		topN:          opts.TopN,
		pubsubChannel: opts.PubSubChannel,
		prefix:        opts.RedisKeyPrefix,
		dailyTTL:      opts.DailyTTL,
		weeklyTTL:     opts.WeeklyTTL,
		now:           time.Now,
	}
}

// TopN is the largest page Top serves.
func (s *Service) TopN() int {
	return s.topN
}

// RecordResult adds a finished battle to every window in one transaction,
// then publishes the new top of each window.
func (s *Service) RecordResult(ctx context.Context, result MatchResult) error {
	if len(result.Standings) == 0 {
		return nil
	}

	now := s.now()
	pipe := s.redis.TxPipeline()
	for _, window := range Windows {
		zKey := s.leaderboardKey(window, now)
		ttl := s.ttl(window)
		for _, st := range result.Standings {
			metaKey := s.metaKey(zKey, st.UserID)
			pipe.ZIncrBy(ctx, zKey, float64(st.Score), st.UserID)
			pipe.HIncrBy(ctx, metaKey, "wins", int64(boolToInt(st.Won)))
			pipe.HIncrBy(ctx, metaKey, "draws", int64(boolToInt(st.Draw)))
			pipe.HIncrBy(ctx, metaKey, "games", 1)
			pipe.HSet(ctx, metaKey, "display_name", st.DisplayName)
			if ttl > 0 {
				pipe.Expire(ctx, metaKey, ttl)
			}
		}
		if ttl > 0 {
			pipe.Expire(ctx, zKey, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	go s.publishUpdate(context.Background(), result.MatchID)
	return nil
}

// Top returns up to limit entries of the window's current period, best first.
func (s *Service) Top(ctx context.Context, window string, limit int) ([]Entry, error) {
	if !ValidWindow(window) {
		return nil, ErrUnknownWindow
	}
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.leaderboardKey(window, s.now())
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	metas := make([]*redis.MapStringStringCmd, len(results))
	for i, z := range results {
		metas[i] = pipe.HGetAll(ctx, s.metaKey(zKey, z.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fetch leaderboard metadata: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		userID := z.Member.(string)
		data := metas[i].Val()
		name := data["display_name"]
		if name == "" {
			name = userID
		}
		entries = append(entries, Entry{
			UserID:      userID,
			DisplayName: name,
			Score:       int(z.Score),
			Wins:        parseInt(data["wins"]),
			Draws:       parseInt(data["draws"]),
			Games:       parseInt(data["games"]),
		})
	}
	return entries, nil
}

func (s *Service) publishUpdate(ctx context.Context, matchID string) {
	for _, window := range Windows {
		entries, err := s.Top(ctx, window, 10)
		if err != nil {
			s.logger.Warn().Err(err).Str("window", window).Msg("failed to collect leaderboard update")
			continue
		}
		if len(entries) == 0 {
			continue
		}

		data, err := json.Marshal(ws.LeaderboardUpdatePayload{
			Window:  window,
			MatchID: matchID,
			Top:     toWSEntries(entries),
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
			continue
		}
		if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
		}
	}
}

func (s *Service) ttl(window string) time.Duration {
	switch window {
	case WindowDaily:
		return s.dailyTTL
	case WindowWeekly:
		return s.weeklyTTL
	}
	return 0
}

// leaderboardKey names the sorted set of the period containing now:
// lb:daily:20261018, lb:weekly:2026-W42, lb:all_time.
func (s *Service) leaderboardKey(window string, now time.Time) string {
	now = now.UTC()
	switch window {
	case WindowDaily:
		return fmt.Sprintf("%s:%s:%s", s.prefix, window, now.Format("20060102"))
	case WindowWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%s:%s:%d-W%02d", s.prefix, window, year, week)
	}
	return fmt.Sprintf("%s:%s", s.prefix, window)
}

func (s *Service) metaKey(zKey, userID string) string {
	return zKey + ":meta:" + userID
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}

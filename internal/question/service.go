package question

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

const defaultPoolSize = 200

type itemStore interface {
	ListByLevel(ctx context.Context, level, limit int) ([]store.QuizItem, error)
	Insert(ctx context.Context, params store.InsertQuizItemParams) (store.QuizItem, error)
}

// PoolCache stores a tier's playable pool. Get returns nil on a miss.
type PoolCache interface {
	Get(ctx context.Context, tier string) ([]Item, error)
	Set(ctx context.Context, tier string, items []Item) error
	Invalidate(ctx context.Context, tier string) error
}

// RemoteGenerator produces fresh items when the pool runs short.
type RemoteGenerator interface {
	Generate(ctx context.Context, tier string, count int) ([]Item, error)
}

// ServiceOptions configures the question service.
type ServiceOptions struct {
	PoolSize int
	// KeepGenerated writes remote items back into the pool.
	KeepGenerated bool
}

// Service assembles question sets for battles.
type Service struct {
	store         itemStore
	cache         PoolCache
	remote        RemoteGenerator
	poolSize      int
	keepGenerated bool
	logger        zerolog.Logger
}

// NewService wires the pool store, its cache and an optional remote generator.
func NewService(store itemStore, cache PoolCache, remote RemoteGenerator, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	return &Service{
		store:         store,
		cache:         cache,
		remote:        remote,
		poolSize:      opts.PoolSize,
		keepGenerated: opts.KeepGenerated,
		logger:        logger.With().Str("component", "question_service").Logger(),
	}
}

// Generate returns up to count random items for tier, respecting the
// priority: cached pool -> Postgres pool -> remote generator. A short or
// empty result is not an error; callers decide what a short set means.
func (s *Service) Generate(ctx context.Context, tier string, count int) ([]Item, error) {
	level, err := LevelForTier(tier)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	pool, err := s.pool(ctx, tier, level)
	if err != nil {
		if s.remote == nil {
			return nil, err
		}
		s.logger.Warn().Err(err).Str("tier", tier).Msg("question pool unavailable, using remote generator")
	}

	picked := sample(pool, count)
	if len(picked) < count && s.remote != nil {
		extra, err := s.fetchRemote(ctx, tier, level, count-len(picked))
		if err != nil {
			s.logger.Warn().Err(err).Str("tier", tier).Msg("remote generator failed")
		}
		picked = append(picked, extra...)
	}

	if len(picked) < count {
		s.logger.Info().Str("tier", tier).Int("wanted", count).Int("got", len(picked)).Msg("short question set")
	}
	return picked, nil
}

// Warm reloads the tier's pool from Postgres into the cache.
func (s *Service) Warm(ctx context.Context, tier string) (int, error) {
	level, err := LevelForTier(tier)
	if err != nil {
		return 0, err
	}
	items, err := s.load(ctx, level)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, tier, items); err != nil {
			return len(items), fmt.Errorf("cache pool %s: %w", tier, err)
		}
	}
	return len(items), nil
}

func (s *Service) pool(ctx context.Context, tier string, level int) ([]Item, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tier)
		if err != nil {
			s.logger.Warn().Err(err).Str("tier", tier).Msg("question cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	items, err := s.load(ctx, level)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, tier, items); err != nil {
			s.logger.Warn().Err(err).Str("tier", tier).Msg("question cache write failed")
		}
	}
	return items, nil
}

func (s *Service) load(ctx context.Context, level int) ([]Item, error) {
	rows, err := s.store.ListByLevel(ctx, level, s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("load question pool level %d: %w", level, err)
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item := toDomain(row)
		if !item.Valid() {
			s.logger.Warn().Int64("item_id", row.ItemID).Msg("skipping malformed quiz item")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) fetchRemote(ctx context.Context, tier string, level, count int) ([]Item, error) {
	generated, err := s.remote.Generate(ctx, tier, count)
	if err != nil {
		return nil, err
	}

	out := make([]Item, 0, count)
	for _, item := range generated {
		if len(out) == count {
			break
		}
		if !item.Valid() {
			continue
		}
		item.Source = SourceRemote
		out = append(out, item)
	}

	if s.keepGenerated && len(out) > 0 {
		s.persist(ctx, tier, level, out)
	}
	return out, nil
}

func (s *Service) persist(ctx context.Context, tier string, level int, items []Item) {
	for _, item := range items {
		_, err := s.store.Insert(ctx, store.InsertQuizItemParams{
			Level:        int16(level),
			Prompt:       item.Prompt,
			Options:      item.Options,
			CorrectIndex: int32(item.CorrectIndex),
			Explanation:  pgtype.Text{String: item.Explanation, Valid: item.Explanation != ""},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("tier", tier).Msg("failed to keep generated item")
			return
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tier); err != nil {
			s.logger.Warn().Err(err).Str("tier", tier).Msg("question cache invalidate failed")
		}
	}
}

func toDomain(row store.QuizItem) Item {
	return Item{
		ID:           strconv.FormatInt(row.ItemID, 10),
		Prompt:       row.Prompt,
		Options:      row.Options,
		CorrectIndex: int(row.CorrectIndex),
		Explanation:  row.Explanation.String,
		Source:       SourcePool,
	}
}

// sample picks up to n distinct items in random order.
func sample(pool []Item, n int) []Item {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]Item, 0, n)
	for _, idx := range rand.Perm(len(pool))[:n] {
		out = append(out, pool[idx])
	}
	return out
}

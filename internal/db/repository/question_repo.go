package repository

import (
	"context"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

type questionStore interface {
	ListQuizItemsByLevel(ctx context.Context, arg store.ListQuizItemsByLevelParams) ([]store.QuizItem, error)
	InsertQuizItem(ctx context.Context, arg store.InsertQuizItemParams) (store.QuizItem, error)
}

// QuestionRepository wraps the quiz item queries.
type QuestionRepository struct {
	store questionStore
}

func NewQuestionRepository(store questionStore) *QuestionRepository {
	return &QuestionRepository{store: store}
}

// ListByLevel returns up to limit random items of the given level.
func (r *QuestionRepository) ListByLevel(ctx context.Context, level, limit int) ([]store.QuizItem, error) {
	return r.store.ListQuizItemsByLevel(ctx, store.ListQuizItemsByLevelParams{
		Level: int16(level),
		Limit: int32(limit),
	})
}

// Insert stores an item produced by the remote generator into the pool.
func (r *QuestionRepository) Insert(ctx context.Context, params store.InsertQuizItemParams) (store.QuizItem, error) {
	return r.store.InsertQuizItem(ctx, params)
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

// ErrUserNotFound is returned when no user row matches.
var ErrUserNotFound = errors.New("user not found")

type userStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

// UserRepository resolves player identities from the users table.
type UserRepository struct {
	store userStore
}

// NewUserRepository wraps the queries for user lookups.
func NewUserRepository(store userStore) *UserRepository {
	return &UserRepository{store: store}
}

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (store.User, error) {
	user, err := r.store.GetUserByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, ErrUserNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

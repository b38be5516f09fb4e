package app

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
	"github.com/gokatarajesh/quiz-battle/internal/battle"
	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

type stubUsers map[string]store.User

func (s stubUsers) GetByID(_ context.Context, userID string) (store.User, error) {
	if userID == "broken" {
		return store.User{}, errors.New("connection reset")
	}
	user, ok := s[userID]
	if !ok {
		return store.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func TestIdentityResolver(t *testing.T) {
	r := identityResolver{users: stubUsers{
		"a": {UserID: "a", DisplayName: "Aiko", Email: pgtype.Text{String: "aiko@example.com", Valid: true}},
	}}

	id, err := r.ResolveIdentity(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, battle.Identity{UserID: "a", DisplayName: "Aiko", Email: "aiko@example.com"}, id)

	_, err = r.ResolveIdentity(context.Background(), "b")
	assert.ErrorIs(t, err, battle.ErrUnknownPlayer)

	ctx := auth.WithClaims(context.Background(), &jwt.Claims{UserID: "b", DisplayName: "Ben", Email: "ben@example.com"})
	id, err = r.ResolveIdentity(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Ben", id.DisplayName)

	// claims of someone else do not vouch for b
	other := auth.WithClaims(context.Background(), &jwt.Claims{UserID: "c", DisplayName: "Chie"})
	_, err = r.ResolveIdentity(other, "b")
	assert.ErrorIs(t, err, battle.ErrUnknownPlayer)

	_, err = r.ResolveIdentity(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, battle.ErrUnknownPlayer)
}

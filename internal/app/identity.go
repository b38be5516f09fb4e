package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	"github.com/gokatarajesh/quiz-battle/internal/battle"
	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

type userLookup interface {
	GetByID(ctx context.Context, userID string) (store.User, error)
}

// identityResolver answers who a player is from the users table, falling
// back to the claims of the player's own token for accounts that were
// never synced into it.
type identityResolver struct {
	users userLookup
}

var _ battle.IdentityResolver = identityResolver{}

func (r identityResolver) ResolveIdentity(ctx context.Context, userID string) (battle.Identity, error) {
	user, err := r.users.GetByID(ctx, userID)
	switch {
	case err == nil:
		return battle.Identity{UserID: user.UserID, DisplayName: user.DisplayName, Email: user.Email.String}, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return battle.Identity{}, err
	}

	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok || claims.UserID != userID || claims.DisplayName == "" {
		return battle.Identity{}, fmt.Errorf("%w: %s", battle.ErrUnknownPlayer, userID)
	}
	return battle.Identity{UserID: userID, DisplayName: claims.DisplayName, Email: claims.Email}, nil
}

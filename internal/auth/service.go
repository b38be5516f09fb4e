package auth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
)

var (
	// ErrTokenRevoked means a battle token is no longer the user's current one.
	ErrTokenRevoked = errors.New("battle token revoked")
	// ErrTokenUserMismatch means a refreshed token belongs to someone else.
	ErrTokenUserMismatch = errors.New("token belongs to a different user")
	// ErrAccessTokenRequired means a battle token was used to mint another one.
	ErrAccessTokenRequired = errors.New("access token required")
)

// BattleToken is what the token endpoint hands to clients.
type BattleToken struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Service validates tokens and manages the battle token registry.
type Service struct {
	tokenMgr *jwt.Manager
	redis    *redis.Client
	logger   zerolog.Logger
}

// NewService creates an authentication service.
func NewService(tokenMgr *jwt.Manager, redis *redis.Client, logger zerolog.Logger) *Service {
	return &Service{
		tokenMgr: tokenMgr,
		redis:    redis,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

func battleTokenKey(userID string) string {
	return "battle:token:" + userID
}

// fingerprint is what the registry stores in place of the bearer token.
func fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken accepts access tokens on signature and expiry alone. Battle
// tokens must also still be the user's registered token.
func (s *Service) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.tokenMgr.Validate(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsBattle() {
		return claims, nil
	}

	stored, err := s.redis.Get(ctx, battleTokenKey(claims.UserID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("lookup battle token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(fingerprint(token))) != 1 {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// IssueBattleToken mints a battle token for an authenticated user and makes
// it the only valid one for that user.
func (s *Service) IssueBattleToken(ctx context.Context, claims *jwt.Claims) (*BattleToken, error) {
	if claims.IsBattle() {
		return nil, ErrAccessTokenRequired
	}

	token, err := s.tokenMgr.GenerateBattleToken(jwt.User{
		ID:          claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("sign battle token: %w", err)
	}

	ttl := s.tokenMgr.BattleTTL()
	if err := s.redis.Set(ctx, battleTokenKey(claims.UserID), fingerprint(token), ttl).Err(); err != nil {
		return nil, fmt.Errorf("store battle token: %w", err)
	}

	s.logger.Info().Str("user_id", claims.UserID).Msg("battle token issued")
	return &BattleToken{Token: token, ExpiresIn: int(ttl / time.Second)}, nil
}

// RevokeBattleToken invalidates the user's battle token, if any.
func (s *Service) RevokeBattleToken(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, battleTokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("revoke battle token: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Msg("battle token revoked")
	return nil
}

// RefreshFor validates a replacement token presented on an open battle
// connection owned by userID.
func (s *Service) RefreshFor(ctx context.Context, userID, token string) (*jwt.Claims, error) {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.UserID != userID {
		return nil, ErrTokenUserMismatch
	}
	return claims, nil
}

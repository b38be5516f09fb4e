package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess = "ACCESS"
	TokenTypeBattle = "BATTLE"
)

// Claims for JWT tokens.
type Claims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// IsBattle reports whether the token was minted for the battle socket.
func (c *Claims) IsBattle() bool {
	return c.TokenType == TokenTypeBattle
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenConfig holds JWT signing configuration.
type TokenConfig struct {
	Secret    []byte
	AccessTTL time.Duration // default: 1 hour
	BattleTTL time.Duration // default: 30 minutes
	Issuer    string
}

// Manager handles JWT token generation and validation.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
	battleTTL time.Duration
	issuer    string
	now       func() time.Time
}

// NewManager creates a JWT token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 1 * time.Hour
	}
	if cfg.BattleTTL == 0 {
		cfg.BattleTTL = 30 * time.Minute
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "quiz-battle"
	}

	return &Manager{
		secret:    cfg.Secret,
		accessTTL: cfg.AccessTTL,
		battleTTL: cfg.BattleTTL,
		issuer:    cfg.Issuer,
		now:       time.Now,
	}
}

// User represents user data for token generation.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// BattleTTL is the lifetime of battle tokens.
func (m *Manager) BattleTTL() time.Duration {
	return m.battleTTL
}

// GenerateAccessToken creates a short-lived general session token.
func (m *Manager) GenerateAccessToken(user User) (string, error) {
	return m.sign(user, TokenTypeAccess, m.accessTTL)
}

// GenerateBattleToken creates a token scoped to the battle socket.
func (m *Manager) GenerateBattleToken(user User) (string, error) {
	return m.sign(user, TokenTypeBattle, m.battleTTL)
}

func (m *Manager) sign(user User, tokenType string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates a token of any type.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
)

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type claimsKey struct{}

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims injected by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// AuthMiddleware validates JWT tokens and injects user claims into request context.
func AuthMiddleware(validator tokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r) // Allow unauthenticated requests
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid authorization header")
				return
			}

			claims, err := validator.ValidateToken(r.Context(), parts[1])
			if err != nil {
				logger.Warn().Err(err).Msg("token validation failed")
				code, msg := TokenErrorCode(err)
				httperrors.RespondUnauthorized(w, code, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAuth ensures the request is authenticated.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenErrorCode maps a validation error to its client-facing code and message.
func TokenErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, jwt.ErrExpiredToken):
		return httperrors.ErrCodeTokenExpired, "Token expired"
	case errors.Is(err, ErrTokenRevoked):
		return httperrors.ErrCodeTokenRevoked, "Token revoked"
	case errors.Is(err, ErrTokenUserMismatch):
		return httperrors.ErrCodeTokenUserMismatch, "Token belongs to a different user"
	default:
		return httperrors.ErrCodeInvalidToken, "Invalid or expired token"
	}
}

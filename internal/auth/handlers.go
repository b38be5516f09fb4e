package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
)

type battleTokens interface {
	IssueBattleToken(ctx context.Context, claims *jwt.Claims) (*BattleToken, error)
	RevokeBattleToken(ctx context.Context, userID string) error
}

// HTTPHandlers provides REST endpoints for battle tokens.
type HTTPHandlers struct {
	authSvc battleTokens
	wsPath  string
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc battleTokens, wsPath string, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc: authSvc,
		wsPath:  wsPath,
		logger:  logger.With().Str("component", "auth_http").Logger(),
	}
}

type battleTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	WSURL     string `json:"ws_url"`
}

// BattleToken handles GET (issue) and DELETE (revoke) on /v1/battle/token.
func (h *HTTPHandlers) BattleToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		token, err := h.authSvc.IssueBattleToken(r.Context(), claims)
		if errors.Is(err, ErrAccessTokenRequired) {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidToken, "Use an access token to request a battle token")
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to issue battle token")
			httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeTokenIssueFailed, "Could not issue battle token")
			return
		}
		httperrors.RespondJSON(w, http.StatusOK, battleTokenResponse{
			Token:     token.Token,
			ExpiresIn: token.ExpiresIn,
			WSURL:     h.wsURL(r),
		})
	case http.MethodDelete:
		if err := h.authSvc.RevokeBattleToken(r.Context(), claims.UserID); err != nil {
			h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to revoke battle token")
			httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeTokenRevokeFailed, "Could not revoke battle token")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httperrors.RespondMethodNotAllowed(w)
	}
}

func (h *HTTPHandlers) wsURL(r *http.Request) string {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + h.wsPath
}

package history

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type historyReader interface {
	History(ctx context.Context, userID string, limit int) ([]repository.HistoryEntry, error)
	Stats(ctx context.Context, userID string) (repository.Stats, error)
}

// HTTPHandlers serves a player's own battle record.
type HTTPHandlers struct {
	battles historyReader
	logger  zerolog.Logger
}

func NewHTTPHandlers(battles historyReader, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		battles: battles,
		logger:  logger.With().Str("component", "history_http").Logger(),
	}
}

type historyResponse struct {
	Battles []repository.HistoryEntry `json:"battles"`
	Count   int                       `json:"count"`
}

// History handles GET /v1/battle/history?limit=20
func (h *HTTPHandlers) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	entries, err := h.battles.History(r.Context(), claims.UserID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to fetch battle history")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeHistoryFetchFailed, "Failed to fetch battle history")
		return
	}
	if entries == nil {
		entries = []repository.HistoryEntry{}
	}
	httperrors.RespondJSON(w, http.StatusOK, historyResponse{Battles: entries, Count: len(entries)})
}

// Stats handles GET /v1/battle/stats
func (h *HTTPHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	stats, err := h.battles.Stats(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to fetch battle stats")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeStatsFetchFailed, "Failed to fetch battle stats")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, stats)
}

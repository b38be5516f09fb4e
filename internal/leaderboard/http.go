package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type snapshotReader interface {
	Latest(ctx context.Context, window string) (repository.Snapshot, error)
}

type winnerReader interface {
	TopWinners(ctx context.Context, limit int) ([]repository.Winner, error)
}

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc       topReader
	snapshots snapshotReader
	winners   winnerReader
	logger    zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler. snapshots and
// winners are fallbacks and may be nil.
func NewHTTPHandler(svc topReader, snapshots snapshotReader, winners winnerReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		snapshots: snapshots,
		winners:   winners,
		logger:    logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

type response struct {
	Window      string                `json:"window"`
	Top         []ws.LeaderboardEntry `json:"top"`
	Source      string                `json:"source"`
	RetrievedAt string                `json:"retrieved_at"`
}

// HandleGet responds with the current leaderboard for a window.
// Route: GET /v1/battle/leaderboard?window=daily&limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}

	window := r.URL.Query().Get("window")
	if window == "" {
		window = WindowAllTime
	}
	if !ValidWindow(window) {
		httperrors.RespondError(w, http.StatusNotFound, httperrors.ErrCodeUnknownWindow, "Unknown leaderboard window")
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		top      []ws.LeaderboardEntry
		source   = "redis"
		redisErr error
	)

	entries, err := h.svc.Top(ctx, window, limit)
	if err != nil {
		redisErr = err
		h.logger.Warn().Err(err).Str("window", window).Msg("redis leaderboard fetch failed")
	} else {
		top = toWSEntries(entries)
	}

	if len(top) == 0 {
		source = "snapshot"
		top = h.snapshotFallback(ctx, window, limit)
	}
	if len(top) == 0 && window == WindowAllTime {
		source = "history"
		top, err = h.historyFallback(ctx, limit)
		if err != nil && redisErr != nil {
			httperrors.RespondError(w, http.StatusServiceUnavailable, httperrors.ErrCodeLeaderboardFetchFailed, "Leaderboard unavailable")
			return
		}
	}
	if top == nil {
		top = []ws.LeaderboardEntry{}
	}

	httperrors.RespondJSON(w, http.StatusOK, response{
		Window:      window,
		Top:         top,
		Source:      source,
		RetrievedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, window string, limit int) []ws.LeaderboardEntry {
	if h.snapshots == nil {
		return nil
	}
	snap, err := h.snapshots.Latest(ctx, window)
	if err != nil {
		if !errors.Is(err, repository.ErrSnapshotNotFound) {
			h.logger.Warn().Err(err).Str("window", window).Msg("snapshot fetch failed")
		}
		return nil
	}

	var entries []ws.LeaderboardEntry
	if err := json.Unmarshal(snap.Entries, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		return nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// historyFallback ranks by wins straight from battle history.
func (h *HTTPHandler) historyFallback(ctx context.Context, limit int) ([]ws.LeaderboardEntry, error) {
	if h.winners == nil {
		return nil, nil
	}
	winners, err := h.winners.TopWinners(ctx, limit)
	if err != nil {
		h.logger.Warn().Err(err).Msg("history leaderboard fetch failed")
		return nil, err
	}
	out := make([]ws.LeaderboardEntry, len(winners))
	for i, wr := range winners {
		out[i] = ws.LeaderboardEntry{Rank: i + 1, UserID: wr.UserID, DisplayName: wr.DisplayName, Wins: wr.Wins}
	}
	return out, nil
}

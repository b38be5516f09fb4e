package battle

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
)

type roomLookup interface {
	RoomForUser(ctx context.Context, userID string) (*RoomSnapshot, error)
}

// HTTPHandlers provides REST endpoints for queue and room status.
type HTTPHandlers struct {
	orchestrator *Orchestrator
	rooms        roomLookup
	logger       zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for battle endpoints. rooms may be
// nil, in which case only rooms hosted by this instance are visible.
func NewHTTPHandlers(orchestrator *Orchestrator, rooms roomLookup, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		orchestrator: orchestrator,
		rooms:        rooms,
		logger:       logger.With().Str("component", "battle_http").Logger(),
	}
}

type queueStatusResponse struct {
	Queues       map[string]int `json:"queues"`
	TotalWaiting int            `json:"total_waiting"`
	ActiveRooms  int            `json:"active_rooms"`
}

// QueueStatus handles GET /v1/battle/queue/status
func (h *HTTPHandlers) QueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, queueStatusResponse{
		Queues:       h.orchestrator.QueueSizes(),
		TotalWaiting: h.orchestrator.QueuedTotal(),
		ActiveRooms:  h.orchestrator.ActiveRoomCount(),
	})
}

type userStatusResponse struct {
	UserState
	MyScore       *int `json:"my_score,omitempty"`
	OpponentScore *int `json:"opponent_score,omitempty"`
	Remote        bool `json:"remote,omitempty"`
}

// Status handles GET /v1/battle/status for the authenticated user.
func (h *HTTPHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	resp := userStatusResponse{UserState: h.orchestrator.StateOf(claims.UserID)}
	if resp.State == UserIdle && h.rooms != nil {
		snap, err := h.rooms.RoomForUser(r.Context(), claims.UserID)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("room state lookup failed")
		} else if snap != nil {
			resp.UserState = UserState{State: UserInRoom, Tier: snap.Tier, Room: snap}
			resp.Remote = true
		}
	}
	if resp.Room != nil {
		mine, theirs := resp.Room.ScoreFor(claims.UserID)
		resp.MyScore, resp.OpponentScore = &mine, &theirs
	}

	httperrors.RespondJSON(w, http.StatusOK, resp)
}

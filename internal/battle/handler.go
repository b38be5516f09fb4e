package battle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
	RefreshFor(ctx context.Context, userID, token string) (*jwt.Claims, error)
}

// GatewayOptions tunes per-connection behaviour.
type GatewayOptions struct {
	MessageRate  float64
	MessageBurst int
	SendBuffer   int
	ReadTimeout  time.Duration
}

// Gateway authenticates battle sockets and turns frames into orchestrator calls.
type Gateway struct {
	orchestrator *Orchestrator
	hub          *ws.Hub
	auth         tokenValidator
	upgrader     *websocket.Upgrader
	opts         GatewayOptions
	logger       zerolog.Logger
}

// NewGateway creates the battle WebSocket handler.
func NewGateway(orchestrator *Orchestrator, hub *ws.Hub, auth tokenValidator, upgrader *websocket.Upgrader, opts GatewayOptions, logger zerolog.Logger) *Gateway {
	if opts.MessageRate <= 0 {
		opts.MessageRate = 10
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 20
	}
	return &Gateway{
		orchestrator: orchestrator,
		hub:          hub,
		auth:         auth,
		upgrader:     upgrader,
		opts:         opts,
		logger:       logger.With().Str("component", "battle_gateway").Logger(),
	}
}

// HandleWebSocket authenticates the ?token= query parameter, then upgrades.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Missing token")
		return
	}

	claims, err := g.auth.ValidateToken(r.Context(), token)
	if err != nil {
		g.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		code, msg := auth.TokenErrorCode(err)
		httperrors.RespondUnauthorized(w, code, msg)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	g.serve(conn, claims)
}

type session struct {
	userID  string
	claims  *jwt.Claims
	conn    *ws.Connection
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func (s *session) sendError(code, message string) {
	if err := s.conn.Send(errorMessage(code, message)); err != nil {
		s.logger.Debug().Err(err).Str("code", code).Msg("error not delivered")
	}
}

func (g *Gateway) serve(raw *websocket.Conn, claims *jwt.Claims) {
	userID := claims.UserID
	logger := g.logger.With().Str("user_id", userID).Logger()
	conn := ws.NewConnection(raw, ws.ConnectionOptions{
		SendBuffer:  g.opts.SendBuffer,
		ReadTimeout: g.opts.ReadTimeout,
	}, logger)

	// the user reconnected: the old session ends like any other disconnect
	if old := g.hub.Register(userID, conn); old != nil {
		g.orchestrator.HandleDisconnect(userID)
	}
	g.orchestrator.metrics.connections.Set(float64(g.hub.Count()))

	go conn.WritePump()
	if err := g.hub.SendToUser(userID, ws.NewMessage(ws.TypeConnected, ws.ConnectedPayload{UserID: userID})); err != nil {
		logger.Debug().Err(err).Msg("connected ack not delivered")
	}
	logger.Info().Msg("battle socket connected")

	s := &session{
		userID:  userID,
		claims:  claims,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(g.opts.MessageRate), g.opts.MessageBurst),
		logger:  logger,
	}
	conn.ReadPump(
		func(msg ws.Message) error { return g.dispatch(s, msg) },
		func(err error) {
			logger.Debug().Err(err).Msg("malformed frame")
			s.sendError(httperrors.ErrCodeInvalidPayload, "Malformed message")
		},
	)

	if g.hub.Unregister(userID, conn) {
		g.orchestrator.HandleDisconnect(userID)
	}
	g.orchestrator.metrics.connections.Set(float64(g.hub.Count()))
	logger.Info().Msg("battle socket closed")
}

// dispatch routes one client message. A panic is contained to the message.
func (g *Gateway) dispatch(s *session, msg ws.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Str("type", msg.Type).Msg("message handler panicked")
			s.sendError(httperrors.ErrCodeInternalError, "Internal error")
			err = nil
		}
	}()

	if !s.limiter.Allow() {
		s.sendError(httperrors.ErrCodeRateLimited, "Too many messages, slow down")
		return nil
	}

	// identity resolvers may fall back to the connection's claims
	ctx := auth.WithClaims(context.Background(), s.claims)
	switch msg.Type {
	case ws.TypeJoinQueue:
		var p ws.JoinQueuePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError(httperrors.ErrCodeInvalidPayload, "Invalid JOIN_QUEUE payload")
			return nil
		}
		return g.joinQueue(ctx, s, p)
	case ws.TypeLeaveQueue:
		g.orchestrator.LeaveQueue(s.userID)
	case ws.TypeReady:
		g.orchestrator.MarkReady(s.userID)
	case ws.TypeAnswer:
		var p ws.AnswerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.sendError(httperrors.ErrCodeInvalidPayload, "Invalid ANSWER payload")
			return nil
		}
		g.orchestrator.SubmitAnswer(s.userID, p.QuestionIndex, p.AnswerIndex, p.ElapsedMs)
	case ws.TypeRefreshToken:
		var p ws.RefreshTokenPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Token == "" {
			s.sendError(httperrors.ErrCodeInvalidPayload, "Invalid REFRESH_TOKEN payload")
			return nil
		}
		return g.refreshToken(ctx, s, p.Token)
	default:
		s.sendError(httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
	return nil
}

func (g *Gateway) joinQueue(ctx context.Context, s *session, p ws.JoinQueuePayload) error {
	err := g.orchestrator.JoinQueue(ctx, s.userID, p.Tier, p.QuestionCount, s.conn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownTier):
		s.sendError(httperrors.ErrCodeUnknownTier, fmt.Sprintf("Unknown tier %q", p.Tier))
		return nil
	case errors.Is(err, ErrStillSeated):
		s.sendError(httperrors.ErrCodeJoinFailed, "Your current battle is still finishing. Join again once it has ended.")
		return nil
	case errors.Is(err, ErrUnknownPlayer):
		s.sendError(httperrors.ErrCodeUserNotFound, "User not found")
		return nil
	default:
		s.sendError(httperrors.ErrCodeJoinFailed, "Could not join the queue")
		return err
	}
}

func (g *Gateway) refreshToken(ctx context.Context, s *session, token string) error {
	claims, err := g.auth.RefreshFor(ctx, s.userID, token)
	if err != nil {
		code, msg := auth.TokenErrorCode(err)
		s.sendError(code, msg)
		return nil
	}
	s.claims = claims

	var expiresAt int64
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}
	return s.conn.Send(ws.NewMessage(ws.TypeTokenRefreshed, ws.TokenRefreshedPayload{ExpiresAt: expiresAt}))
}

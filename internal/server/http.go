package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/config"
	"github.com/gokatarajesh/quiz-battle/internal/logging"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
)

// BattleWSPath is where clients open the battle socket.
const BattleWSPath = "/ws/battle"

// WSUpgrader handles WebSocket upgrades. Origin checks are left to the
// fronting proxy; sockets are authenticated by battle token.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Routes are the feature handlers mounted by NewHTTPServer. Nil handlers
// are skipped.
type Routes struct {
	// Auth wraps every /v1/battle endpoint.
	Auth func(http.Handler) http.Handler

	BattleToken http.HandlerFunc
	QueueStatus http.HandlerFunc
	Status      http.HandlerFunc
	Leaderboard http.HandlerFunc
	History     http.HandlerFunc
	Stats       http.HandlerFunc
	BattleWS    http.HandlerFunc
}

// Dependencies are the backing stores checked by /v1/ping. Nil entries are skipped.
type Dependencies struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// NewHTTPServer wires base routes (health, metrics) and the battle API.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, deps Dependencies, gatherer prometheus.Gatherer, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := pingDependencies(ctx, deps.Pool, deps.Redis); err != nil {
			logger := logging.FromContext(ctx)
			logger.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "upstream error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	authed := routes.Auth
	if authed == nil {
		authed = func(next http.Handler) http.Handler { return next }
	}
	for path, handler := range map[string]http.HandlerFunc{
		"/v1/battle/token":        routes.BattleToken,
		"/v1/battle/queue/status": routes.QueueStatus,
		"/v1/battle/status":       routes.Status,
		"/v1/battle/leaderboard":  routes.Leaderboard,
		"/v1/battle/history":      routes.History,
		"/v1/battle/stats":        routes.Stats,
	} {
		if handler != nil {
			mux.Handle(path, authed(handler))
		}
	}

	// the socket authenticates with ?token= itself
	if routes.BattleWS != nil {
		mux.HandleFunc(BattleWSPath, routes.BattleWS)
	} else {
		mux.HandleFunc(BattleWSPath, func(w http.ResponseWriter, r *http.Request) {
			httperrors.RespondError(w, http.StatusNotImplemented, httperrors.ErrCodeInternalError, "battle socket not available")
		})
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: requestLogger(logger, mux),
	}
}

// requestLogger puts the server logger on every request context.
func requestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), logger)))
	})
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redis != nil {
		if err := redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/quiz-battle/internal/auth"
	"github.com/gokatarajesh/quiz-battle/internal/auth/jwt"
	"github.com/gokatarajesh/quiz-battle/internal/battle"
	"github.com/gokatarajesh/quiz-battle/internal/config"
	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	"github.com/gokatarajesh/quiz-battle/internal/db/store"
	"github.com/gokatarajesh/quiz-battle/internal/history"
	"github.com/gokatarajesh/quiz-battle/internal/leaderboard"
	"github.com/gokatarajesh/quiz-battle/internal/logging"
	"github.com/gokatarajesh/quiz-battle/internal/question"
	"github.com/gokatarajesh/quiz-battle/internal/question/remote"
	"github.com/gokatarajesh/quiz-battle/internal/server"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

// job is a long running loop supervised by Run. A critical job failing
// brings the process down; the others only log.
type job struct {
	name     string
	run      func(ctx context.Context) error
	critical bool
}

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
	hub   *ws.Hub

	jobs []job
}

// New bootstraps logger, Postgres, Redis, the battle services and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	queries := store.New(pool)
	userRepo := repository.NewUserRepository(queries)
	battleRepo := repository.NewBattleRepository(queries)
	questionRepo := repository.NewQuestionRepository(queries)
	snapshotRepo := repository.NewSnapshotRepository(queries)

	tokenMgr := jwt.NewManager(jwt.TokenConfig{
		Secret:    []byte(cfg.Security.JWTSecret),
		AccessTTL: cfg.Security.AccessTokenTTL,
		BattleTTL: cfg.Security.BattleTokenTTL,
		Issuer:    cfg.Name,
	})
	authSvc := auth.NewService(tokenMgr, redisClient, logger)

	var generator question.RemoteGenerator
	if cfg.Questions.GeneratorURL != "" {
		generator = remote.NewGenerator(remote.Config{
			GeneratorURL: cfg.Questions.GeneratorURL,
			GeneratorKey: cfg.Questions.GeneratorKey,
			Timeout:      cfg.Questions.HTTPTimeout,
		}, logger)
	} else {
		logger.Warn().Msg("QUIZ_GENERATOR_URL not set; battles draw from the stored pool only")
	}
	questionSvc := question.NewService(
		questionRepo,
		question.NewCache(redisClient, cfg.Questions.PoolCacheTTL),
		generator,
		question.ServiceOptions{
			PoolSize:      cfg.Questions.PoolSize,
			KeepGenerated: cfg.Questions.KeepGenerated,
		},
		logger,
	)
	warmer := question.NewWarmer(questionSvc, battle.Tiers, cfg.Questions.WarmInterval, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{TopN: cfg.Leaderboard.TopN})
	scheduler := battle.NewTimerScheduler(cfg.Battle.SchedulerWorkers, logger)
	stateMgr := battle.NewStateManager(redisClient, cfg.Battle.StateTTL, logger)

	orchestrator := battle.NewOrchestrator(battle.Dependencies{
		Questions:  questionSvc,
		Identities: identityResolver{users: userRepo},
		Results:    history.NewRecorder(battleRepo, leaderboardSvc, logger),
		Scheduler:  scheduler,
		State:      stateMgr,
		Metrics:    battle.NewMetrics(registry),
	}, battle.Options{
		QuestionCount:     cfg.Battle.QuestionCount,
		MaxQuestionCount:  cfg.Battle.MaxQuestionCount,
		TimePerQuestion:   cfg.Battle.TimePerQuestion,
		NetworkGrace:      cfg.Battle.NetworkGrace,
		NextQuestionDelay: cfg.Battle.NextQuestionDelay,
		GameEndDelay:      cfg.Battle.GameEndDelay,
		CleanupDelay:      cfg.Battle.CleanupDelay,
		PersistTimeout:    cfg.Battle.PersistTimeout,
		MaxScore:          cfg.Battle.MaxScore,
		MinScore:          cfg.Battle.MinScore,
	}, logger)

	wsHub := ws.NewHub(logger)
	gateway := battle.NewGateway(orchestrator, wsHub, authSvc, &server.WSUpgrader, battle.GatewayOptions{
		MessageRate:  cfg.Gateway.MessageRate,
		MessageBurst: cfg.Gateway.MessageBurst,
		SendBuffer:   cfg.Gateway.SendBuffer,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
	}, logger)

	authHandlers := auth.NewHTTPHandlers(authSvc, server.BattleWSPath, logger)
	battleHandlers := battle.NewHTTPHandlers(orchestrator, stateMgr, logger)
	historyHandlers := history.NewHTTPHandlers(battleRepo, logger)
	lbHandler := leaderboard.NewHTTPHandler(leaderboardSvc, snapshotRepo, battleRepo, logger)

	authMiddleware := auth.AuthMiddleware(authSvc, logger)
	apiServer := server.NewHTTPServer(cfg, logger,
		server.Dependencies{Pool: pool, Redis: redisClient},
		registry,
		server.Routes{
			Auth:        func(next http.Handler) http.Handler { return authMiddleware(auth.RequireAuth(next)) },
			BattleToken: authHandlers.BattleToken,
			QueueStatus: battleHandlers.QueueStatus,
			Status:      battleHandlers.Status,
			Leaderboard: lbHandler.HandleGet,
			History:     historyHandlers.History,
			Stats:       historyHandlers.Stats,
			BattleWS:    gateway.HandleWebSocket,
		})

	jobs := []job{
		{name: "battle_scheduler", run: scheduler.Run, critical: true},
		{name: "question_warmer", run: warmer.Run},
		{name: "leaderboard_broadcaster", run: leaderboard.NewBroadcaster(redisClient, wsHub, leaderboard.UpdateChannel, logger).Run},
	}
	if cfg.Leaderboard.SnapshotInterval > 0 {
		worker := leaderboard.NewSnapshotWorker(leaderboardSvc, snapshotRepo,
			cfg.Leaderboard.SnapshotInterval, cfg.Leaderboard.SnapshotTopN, logger)
		jobs = append(jobs, job{name: "leaderboard_snapshot_worker", run: worker.Run})
	}

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
		hub:    wsHub,
		jobs:   jobs,
	}, nil
}

// Run serves HTTP and the background jobs until a termination signal, ctx
// cancellation or a critical failure, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		// hijacked sockets are not covered by Shutdown
		a.hub.CloseAll()
		return nil
	})

	for _, j := range a.jobs {
		j := j
		g.Go(func() error {
			err := j.run(gctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if j.critical {
				return fmt.Errorf("%s: %w", j.name, err)
			}
			a.logger.Warn().Err(err).Str("job", j.name).Msg("background job stopped")
			return nil
		})
	}

	err := g.Wait()

	a.pool.Close()
	if cerr := a.redis.Close(); cerr != nil {
		a.logger.Error().Err(cerr).Msg("redis shutdown error")
	}
	a.logger.Info().Msg("shutdown complete")
	return err
}

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-battle"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Battle      Battle
	Questions   Questions
	Gateway     Gateway
	Leaderboard Leaderboard
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders a keyword/value connection string understood by pgx.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret      string        `env:"JWT_SECRET,notEmpty"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	BattleTokenTTL time.Duration `env:"BATTLE_TOKEN_TTL" envDefault:"30m"`
}

// Battle groups gameplay timing and scoring.
type Battle struct {
	QuestionCount     int           `env:"BATTLE_QUESTION_COUNT" envDefault:"10"`
	MaxQuestionCount  int           `env:"BATTLE_MAX_QUESTION_COUNT" envDefault:"20"`
	TimePerQuestion   time.Duration `env:"BATTLE_TIME_PER_QUESTION" envDefault:"10s"`
	NetworkGrace      time.Duration `env:"BATTLE_NETWORK_GRACE" envDefault:"2s"`
	NextQuestionDelay time.Duration `env:"BATTLE_NEXT_QUESTION_DELAY" envDefault:"1s"`
	GameEndDelay      time.Duration `env:"BATTLE_GAME_END_DELAY" envDefault:"3s"`
	CleanupDelay      time.Duration `env:"BATTLE_CLEANUP_DELAY" envDefault:"10s"`
	MaxScore          int           `env:"BATTLE_MAX_SCORE" envDefault:"100"`
	MinScore          int           `env:"BATTLE_MIN_SCORE" envDefault:"50"`
	SchedulerWorkers  int           `env:"BATTLE_SCHEDULER_WORKERS" envDefault:"5"`
	PersistTimeout    time.Duration `env:"BATTLE_PERSIST_TIMEOUT" envDefault:"5s"`
	StateTTL          time.Duration `env:"BATTLE_STATE_TTL" envDefault:"1h"`
}

// Questions configures the question pool and the remote generator.
type Questions struct {
	GeneratorURL string        `env:"QUIZ_GENERATOR_URL" envDefault:""`
	GeneratorKey string        `env:"QUIZ_GENERATOR_API_KEY" envDefault:""`
	HTTPTimeout  time.Duration `env:"QUIZ_GENERATOR_TIMEOUT" envDefault:"6s"`
	PoolSize     int           `env:"QUESTION_POOL_SIZE" envDefault:"200"`
	PoolCacheTTL time.Duration `env:"QUESTION_POOL_CACHE_TTL" envDefault:"5m"`
	// KeepGenerated stores remote items in the pool for later battles.
	KeepGenerated bool          `env:"QUESTION_KEEP_GENERATED" envDefault:"true"`
	WarmInterval  time.Duration `env:"QUESTION_WARM_INTERVAL" envDefault:"4m"`
}

// Gateway tunes per-connection websocket behaviour.
type Gateway struct {
	MessageRate  float64       `env:"WS_MESSAGE_RATE" envDefault:"10"`
	MessageBurst int           `env:"WS_MESSAGE_BURST" envDefault:"20"`
	SendBuffer   int           `env:"WS_SEND_BUFFER" envDefault:"256"`
	ReadTimeout  time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
}

// Leaderboard governs leaderboard reads and Postgres snapshots.
type Leaderboard struct {
	TopN             int           `env:"LEADERBOARD_TOP_N" envDefault:"50"`
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP_N" envDefault:"100"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Battle.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPostgres parses only the database section; used by the migrator.
func LoadPostgres() (*Postgres, error) {
	cfg := &Postgres{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	return cfg, nil
}

func (b Battle) validate() error {
	if b.MinScore < 0 || b.MaxScore < b.MinScore {
		return fmt.Errorf("invalid score bounds: min=%d max=%d", b.MinScore, b.MaxScore)
	}
	if b.TimePerQuestion <= 0 {
		return fmt.Errorf("BATTLE_TIME_PER_QUESTION must be positive")
	}
	if b.QuestionCount <= 0 || b.QuestionCount > b.MaxQuestionCount {
		return fmt.Errorf("BATTLE_QUESTION_COUNT must be within [1, %d]", b.MaxQuestionCount)
	}
	return nil
}

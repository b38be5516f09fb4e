//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "battle", "POSTGRES_PASSWORD": "battlepass", "POSTGRES_DB": "battles"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://battle:battlepass@%s:%s/battles?sslmode=disable", host, port.Port())
}

func migrate(t *testing.T, dsn string) {
	t.Helper()

	var db *sql.DB
	var err error
	// the port opens before postgres accepts queries
	for attempt := 0; attempt < 20; attempt++ {
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
			_ = db.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "../../../db/migrations"))
}

func TestRepositories_Postgres(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t, ctx)
	migrate(t, dsn)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	queries := store.New(pool)
	battles := NewBattleRepository(queries)
	users := NewUserRepository(queries)
	questions := NewQuestionRepository(queries)

	_, err = pool.Exec(ctx, `INSERT INTO users (user_id, display_name, email) VALUES ('a', 'Aiko', 'aiko@example.com'), ('b', 'Ben', NULL)`)
	require.NoError(t, err)

	user, err := users.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Aiko", user.DisplayName)
	assert.Equal(t, "aiko@example.com", user.Email.String)

	_, err = users.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = battles.Record(ctx, BattleRecord{
		RoomID: "r1", Player1ID: "a", Player2ID: "b", WinnerID: "b",
		Player1Score: 0, Player2Score: 95, Level: "N5", TotalQuestions: 2, FinishReason: "forfeit",
	})
	require.NoError(t, err)
	_, err = battles.Record(ctx, BattleRecord{
		RoomID: "r2", Player1ID: "b", Player2ID: "a",
		Player1Score: 150, Player2Score: 150, Level: "N5", TotalQuestions: 2, FinishReason: "completed",
	})
	require.NoError(t, err)

	history, err := battles.History(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "r2", history[0].RoomID)
	assert.True(t, history[0].IsDraw)
	assert.Equal(t, 95, history[1].OpponentScore)

	stats, err := battles.Stats(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBattles)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1, stats.Draws)
	assert.Equal(t, 150, stats.HighestScore)
	assert.Equal(t, "N5", stats.FavoriteLevel)

	top, err := battles.TopWinners(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []Winner{{UserID: "b", DisplayName: "Ben", Wins: 1}}, top)

	_, err = questions.Insert(ctx, store.InsertQuizItemParams{
		Level: 5, Prompt: "水", Options: []string{"water", "fire", "tree", "gold"}, CorrectIndex: 0,
	})
	require.NoError(t, err)
	items, err := questions.ListByLevel(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"water", "fire", "tree", "gold"}, items[0].Options)

	empty, err := questions.ListByLevel(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	snapshots := NewSnapshotRepository(queries)
	_, err = snapshots.Latest(ctx, "daily")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	require.NoError(t, snapshots.Save(ctx, Snapshot{
		Window: "daily", GeneratedAt: time.Now().UTC(), Entries: []byte(`[{"user_id":"b","score":95}]`), SourceHash: "h1",
	}))
	snap, err := snapshots.Latest(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, "h1", snap.SourceHash)
	assert.JSONEq(t, `[{"user_id":"b","score":95}]`, string(snap.Entries))
}

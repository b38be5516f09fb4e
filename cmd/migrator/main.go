package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/quiz-battle/internal/config"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:           "migrator",
		Short:         "Apply quiz battle database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if os.Getenv("APP_ENV") != "production" {
				_ = godotenv.Load("configs/.env")
			}
		},
	}
	root.PersistentFlags().StringVar(&dir, "dir", "db/migrations", "directory containing migration files")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(dir, func(db *sql.DB, migrations string) error {
					if err := goose.Up(db, migrations); err != nil {
						return fmt.Errorf("migrate up: %w", err)
					}
					log.Info().Msg("migrations applied successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(dir, func(db *sql.DB, migrations string) error {
					if err := goose.Down(db, migrations); err != nil {
						return fmt.Errorf("migrate down: %w", err)
					}
					log.Info().Msg("migrations rolled back successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(dir, func(db *sql.DB, migrations string) error {
					return goose.Status(db, migrations)
				})
			},
		},
	)
	return root
}

// withDB opens the database described by the PG_* environment and runs fn
// against the resolved migration directory.
func withDB(dir string, fn func(db *sql.DB, migrations string) error) error {
	pg, err := config.LoadPostgres()
	if err != nil {
		return err
	}

	migrations, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve migration directory %s: %w", dir, err)
	}
	if _, err := os.Stat(migrations); err != nil {
		return fmt.Errorf("migration directory %s: %w", migrations, err)
	}

	db, err := sql.Open("pgx", pg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info().
		Str("host", pg.Host).
		Int("port", pg.Port).
		Str("database", pg.Database).
		Str("migration_dir", migrations).
		Msg("connected to database")

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetTableName("goose_db_version")
	return fn(db, migrations)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/quiz-battle/internal/db/store"
)

type battleStore interface {
	InsertBattleHistory(ctx context.Context, arg store.InsertBattleHistoryParams) (store.BattleHistory, error)
	ListBattleHistoryByUser(ctx context.Context, arg store.ListBattleHistoryByUserParams) ([]store.BattleHistory, error)
	GetBattleStatsByUser(ctx context.Context, userID string) (store.GetBattleStatsByUserRow, error)
	GetFavoriteLevelByUser(ctx context.Context, userID string) (string, error)
	ListTopWinners(ctx context.Context, limit int32) ([]store.ListTopWinnersRow, error)
}

// BattleRecord is one finished battle. An empty WinnerID is a draw.
type BattleRecord struct {
	RoomID         string
	Player1ID      string
	Player2ID      string
	WinnerID       string
	Player1Score   int
	Player2Score   int
	Level          string
	TotalQuestions int
	FinishReason   string
}

// HistoryEntry is a battle seen from one participant's side.
type HistoryEntry struct {
	BattleID       int64     `json:"battle_id"`
	RoomID         string    `json:"room_id"`
	OpponentID     string    `json:"opponent_id"`
	MyScore        int       `json:"my_score"`
	OpponentScore  int       `json:"opponent_score"`
	IsWinner       bool      `json:"is_winner"`
	IsDraw         bool      `json:"is_draw"`
	Level          string    `json:"level"`
	TotalQuestions int       `json:"total_questions"`
	FinishReason   string    `json:"finish_reason"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Stats aggregates a player's battle record.
type Stats struct {
	TotalBattles  int     `json:"total_battles"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Draws         int     `json:"draws"`
	WinRate       float64 `json:"win_rate"`
	HighestScore  int     `json:"highest_score"`
	AverageScore  float64 `json:"average_score"`
	FavoriteLevel string  `json:"favorite_level,omitempty"`
}

// Winner is a row of the all-time wins ranking.
type Winner struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Wins        int    `json:"wins"`
}

// BattleRepository persists finished battles and answers history queries.
type BattleRepository struct {
	store battleStore
}

// NewBattleRepository constructs a new battle repository.
func NewBattleRepository(store battleStore) *BattleRepository {
	return &BattleRepository{store: store}
}

// Record inserts a finished battle and returns its id.
func (r *BattleRepository) Record(ctx context.Context, rec BattleRecord) (int64, error) {
	if rec.WinnerID != "" && rec.WinnerID != rec.Player1ID && rec.WinnerID != rec.Player2ID {
		return 0, fmt.Errorf("winner %q is not a participant", rec.WinnerID)
	}

	params := store.InsertBattleHistoryParams{
		RoomID:         rec.RoomID,
		Player1ID:      rec.Player1ID,
		Player2ID:      rec.Player2ID,
		WinnerID:       pgtype.Text{String: rec.WinnerID, Valid: rec.WinnerID != ""},
		Player1Score:   int32(rec.Player1Score),
		Player2Score:   int32(rec.Player2Score),
		Level:          rec.Level,
		TotalQuestions: int32(rec.TotalQuestions),
		FinishReason:   rec.FinishReason,
	}
	row, err := r.store.InsertBattleHistory(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("insert battle history: %w", err)
	}
	return row.BattleID, nil
}

// History returns the user's most recent battles, newest first.
func (r *BattleRepository) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	rows, err := r.store.ListBattleHistoryByUser(ctx, store.ListBattleHistoryByUserParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list battle history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := HistoryEntry{
			BattleID:       row.BattleID,
			RoomID:         row.RoomID,
			IsDraw:         !row.WinnerID.Valid,
			IsWinner:       row.WinnerID.Valid && row.WinnerID.String == userID,
			Level:          row.Level,
			TotalQuestions: int(row.TotalQuestions),
			FinishReason:   row.FinishReason,
			CompletedAt:    row.CompletedAt,
		}
		if row.Player1ID == userID {
			entry.OpponentID = row.Player2ID
			entry.MyScore = int(row.Player1Score)
			entry.OpponentScore = int(row.Player2Score)
		} else {
			entry.OpponentID = row.Player1ID
			entry.MyScore = int(row.Player2Score)
			entry.OpponentScore = int(row.Player1Score)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats aggregates the user's record across all battles.
func (r *BattleRepository) Stats(ctx context.Context, userID string) (Stats, error) {
	row, err := r.store.GetBattleStatsByUser(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("get battle stats: %w", err)
	}

	stats := Stats{
		TotalBattles: int(row.TotalBattles),
		Wins:         int(row.Wins),
		Draws:        int(row.Draws),
		HighestScore: int(row.HighestScore),
	}
	stats.Losses = stats.TotalBattles - stats.Wins - stats.Draws
	if stats.TotalBattles > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalBattles)
		stats.AverageScore = float64(row.TotalScore) / float64(stats.TotalBattles)
	}

	level, err := r.store.GetFavoriteLevelByUser(ctx, userID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return Stats{}, fmt.Errorf("get favorite level: %w", err)
	default:
		stats.FavoriteLevel = level
	}
	return stats, nil
}

// TopWinners ranks players by number of battles won.
func (r *BattleRepository) TopWinners(ctx context.Context, limit int) ([]Winner, error) {
	rows, err := r.store.ListTopWinners(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list top winners: %w", err)
	}
	out := make([]Winner, 0, len(rows))
	for _, row := range rows {
		out = append(out, Winner{UserID: row.WinnerID, DisplayName: row.DisplayName, Wins: int(row.Wins)})
	}
	return out, nil
}

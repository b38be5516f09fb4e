package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertBattleHistory = `
INSERT INTO battle_history (
    room_id, player1_id, player2_id, winner_id,
    player1_score, player2_score, level, total_questions, finish_reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING battle_id, room_id, player1_id, player2_id, winner_id,
          player1_score, player2_score, level, total_questions, finish_reason, completed_at
`

type InsertBattleHistoryParams struct {
	RoomID         string
	Player1ID      string
	Player2ID      string
	WinnerID       pgtype.Text
	Player1Score   int32
	Player2Score   int32
	Level          string
	TotalQuestions int32
	FinishReason   string
}

func (q *Queries) InsertBattleHistory(ctx context.Context, arg InsertBattleHistoryParams) (BattleHistory, error) {
	row := q.db.QueryRow(ctx, insertBattleHistory,
		arg.RoomID, arg.Player1ID, arg.Player2ID, arg.WinnerID,
		arg.Player1Score, arg.Player2Score, arg.Level, arg.TotalQuestions, arg.FinishReason,
	)
	var b BattleHistory
	err := row.Scan(&b.BattleID, &b.RoomID, &b.Player1ID, &b.Player2ID, &b.WinnerID,
		&b.Player1Score, &b.Player2Score, &b.Level, &b.TotalQuestions, &b.FinishReason, &b.CompletedAt)
	return b, err
}

const listBattleHistoryByUser = `
SELECT battle_id, room_id, player1_id, player2_id, winner_id,
       player1_score, player2_score, level, total_questions, finish_reason, completed_at
FROM battle_history
WHERE player1_id = $1 OR player2_id = $1
ORDER BY completed_at DESC, battle_id DESC
LIMIT $2
`

type ListBattleHistoryByUserParams struct {
	UserID string
	Limit  int32
}

func (q *Queries) ListBattleHistoryByUser(ctx context.Context, arg ListBattleHistoryByUserParams) ([]BattleHistory, error) {
	rows, err := q.db.Query(ctx, listBattleHistoryByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BattleHistory
	for rows.Next() {
		var b BattleHistory
		if err := rows.Scan(&b.BattleID, &b.RoomID, &b.Player1ID, &b.Player2ID, &b.WinnerID,
			&b.Player1Score, &b.Player2Score, &b.Level, &b.TotalQuestions, &b.FinishReason, &b.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const getBattleStatsByUser = `
SELECT
    COUNT(*)                                         AS total_battles,
    COUNT(*) FILTER (WHERE winner_id = $1)           AS wins,
    COUNT(*) FILTER (WHERE winner_id IS NULL)        AS draws,
    COALESCE(MAX(CASE WHEN player1_id = $1 THEN player1_score ELSE player2_score END), 0) AS highest_score,
    COALESCE(SUM(CASE WHEN player1_id = $1 THEN player1_score ELSE player2_score END), 0) AS total_score
FROM battle_history
WHERE player1_id = $1 OR player2_id = $1
`

type GetBattleStatsByUserRow struct {
	TotalBattles int64
	Wins         int64
	Draws        int64
	HighestScore int32
	TotalScore   int64
}

func (q *Queries) GetBattleStatsByUser(ctx context.Context, userID string) (GetBattleStatsByUserRow, error) {
	row := q.db.QueryRow(ctx, getBattleStatsByUser, userID)
	var s GetBattleStatsByUserRow
	err := row.Scan(&s.TotalBattles, &s.Wins, &s.Draws, &s.HighestScore, &s.TotalScore)
	return s, err
}

const getFavoriteLevelByUser = `
SELECT level
FROM battle_history
WHERE player1_id = $1 OR player2_id = $1
GROUP BY level
ORDER BY COUNT(*) DESC, level
LIMIT 1
`

func (q *Queries) GetFavoriteLevelByUser(ctx context.Context, userID string) (string, error) {
	row := q.db.QueryRow(ctx, getFavoriteLevelByUser, userID)
	var level string
	err := row.Scan(&level)
	return level, err
}

const listTopWinners = `
SELECT b.winner_id, COALESCE(u.display_name, b.winner_id) AS display_name, COUNT(*) AS wins
FROM battle_history b
LEFT JOIN users u ON u.user_id = b.winner_id
WHERE b.winner_id IS NOT NULL
GROUP BY b.winner_id, u.display_name
ORDER BY wins DESC, b.winner_id
LIMIT $1
`

type ListTopWinnersRow struct {
	WinnerID    string
	DisplayName string
	Wins        int64
}

func (q *Queries) ListTopWinners(ctx context.Context, limit int32) ([]ListTopWinnersRow, error) {
	rows, err := q.db.Query(ctx, listTopWinners, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ListTopWinnersRow
	for rows.Next() {
		var r ListTopWinnersRow
		if err := rows.Scan(&r.WinnerID, &r.DisplayName, &r.Wins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

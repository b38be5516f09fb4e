package store

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	UserID      string
	DisplayName string
	Email       pgtype.Text
	CreatedAt   time.Time
}

type QuizItem struct {
	ItemID       int64
	Level        int16
	Prompt       string
	Options      []string
	CorrectIndex int32
	Explanation  pgtype.Text
}

type BattleHistory struct {
	BattleID       int64
	RoomID         string
	Player1ID      string
	Player2ID      string
	WinnerID       pgtype.Text
	Player1Score   int32
	Player2Score   int32
	Level          string
	TotalQuestions int32
	FinishReason   string
	CompletedAt    time.Time
}

type LeaderboardSnapshot struct {
	SnapshotID  int64
	TimeWindow  string
	GeneratedAt time.Time
	Entries     []byte
	SourceHash  string
}

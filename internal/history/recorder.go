package history

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/battle"
	"github.com/gokatarajesh/quiz-battle/internal/db/repository"
	"github.com/gokatarajesh/quiz-battle/internal/leaderboard"
)

type battleWriter interface {
	Record(ctx context.Context, rec repository.BattleRecord) (int64, error)
}

type rankingWriter interface {
	RecordResult(ctx context.Context, result leaderboard.MatchResult) error
}

// Recorder is the battle result sink: Postgres is the record of truth, the
// leaderboard is updated on a best-effort basis.
type Recorder struct {
	battles battleWriter
	ranking rankingWriter
	logger  zerolog.Logger
}

var _ battle.ResultSink = (*Recorder)(nil)

// NewRecorder creates a result recorder. ranking may be nil.
func NewRecorder(battles battleWriter, ranking rankingWriter, logger zerolog.Logger) *Recorder {
	return &Recorder{
		battles: battles,
		ranking: ranking,
		logger:  logger.With().Str("component", "battle_recorder").Logger(),
	}
}

// Record stores a finished battle. Only the history insert can fail it.
func (r *Recorder) Record(ctx context.Context, result battle.Result) error {
	id, err := r.battles.Record(ctx, repository.BattleRecord{
		RoomID:         result.RoomID,
		Player1ID:      result.Player1ID,
		Player2ID:      result.Player2ID,
		WinnerID:       result.WinnerID,
		Player1Score:   result.Player1Score,
		Player2Score:   result.Player2Score,
		Level:          result.Tier,
		TotalQuestions: result.QuestionCount,
		FinishReason:   result.Reason,
	})
	if err != nil {
		return fmt.Errorf("record battle %s: %w", result.RoomID, err)
	}
	r.logger.Debug().Int64("battle_id", id).Str("room_id", result.RoomID).Msg("battle recorded")

	if r.ranking == nil {
		return nil
	}
	draw := result.WinnerID == ""
	err = r.ranking.RecordResult(ctx, leaderboard.MatchResult{
		MatchID: result.RoomID,
		Standings: []leaderboard.Standing{
			{
				UserID:      result.Player1ID,
				DisplayName: result.Player1Name,
				Score:       result.Player1Score,
				Won:         result.WinnerID == result.Player1ID,
				Draw:        draw,
			},
			{
				UserID:      result.Player2ID,
				DisplayName: result.Player2Name,
				Score:       result.Player2Score,
				Won:         result.WinnerID == result.Player2ID,
				Draw:        draw,
			},
		},
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("room_id", result.RoomID).Msg("leaderboard update failed")
	}
	return nil
}

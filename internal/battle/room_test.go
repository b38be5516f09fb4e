package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(n int) *Room {
	return newRoom("room-1", TierN5,
		&Player{Identity: Identity{UserID: "A", DisplayName: "Alice"}},
		&Player{Identity: Identity{UserID: "B", DisplayName: "Bob"}},
		makeItems(n), time.Unix(0, 0))
}

func fixedScore(points int) func(bool) int {
	return func(correct bool) int {
		if correct {
			return points
		}
		return 0
	}
}

func TestRoomMarkReady(t *testing.T) {
	r := newTestRoom(2)

	assert.False(t, r.markReady("A"))
	assert.False(t, r.markReady("A"), "repeat ready must not start the room")
	assert.False(t, r.markReady("stranger"))
	assert.Equal(t, StatusWaitingReady, r.Status())

	assert.True(t, r.markReady("B"))
	assert.Equal(t, StatusInProgress, r.Status())
	assert.False(t, r.markReady("B"))
}

func TestRoomBeginQuestionOncePerIndex(t *testing.T) {
	r := newTestRoom(2)
	_, ok := r.beginQuestion(0, time.Now())
	assert.False(t, ok, "not started")

	r.markReady("A")
	r.markReady("B")

	_, ok = r.beginQuestion(1, time.Now())
	assert.False(t, ok, "future index")

	item, ok := r.beginQuestion(0, time.Now())
	require.True(t, ok)
	assert.Equal(t, "q0", item.ID)

	_, ok = r.beginQuestion(0, time.Now())
	assert.False(t, ok, "already delivered")
}

func TestRoomAnswerRules(t *testing.T) {
	r := newTestRoom(2)
	r.markReady("A")
	r.markReady("B")

	_, _, ok := r.answer("A", 0, 0, fixedScore(90))
	assert.False(t, ok, "answer before delivery")

	r.beginQuestion(0, time.Now())

	_, _, ok = r.answer("A", 1, 0, fixedScore(90))
	assert.False(t, ok, "future index")
	_, _, ok = r.answer("stranger", 0, 0, fixedScore(90))
	assert.False(t, ok)

	out, resolved, ok := r.answer("A", 0, 0, fixedScore(90))
	require.True(t, ok)
	assert.False(t, resolved)
	assert.True(t, out.Correct)
	assert.Equal(t, 90, out.Gained)
	assert.Equal(t, 90, out.Total)
	assert.Equal(t, "B", out.Opponent.UserID)

	_, _, ok = r.answer("A", 0, 0, fixedScore(90))
	assert.False(t, ok, "repeat answer")

	out, resolved, ok = r.answer("B", 0, 3, fixedScore(90))
	require.True(t, ok)
	assert.True(t, resolved)
	assert.False(t, out.Correct)
	assert.Zero(t, out.Gained)

	_, _, ok = r.answer("B", 0, 0, fixedScore(90))
	assert.False(t, ok, "stale index")
}

func TestRoomTimeoutResolvesOnce(t *testing.T) {
	r := newTestRoom(1)
	r.markReady("A")
	r.markReady("B")
	r.beginQuestion(0, time.Now())
	r.answer("A", 0, 0, fixedScore(80))

	outs, resolved, ok := r.timeout(0)
	require.True(t, ok)
	assert.True(t, resolved)
	require.Len(t, outs, 1)
	assert.Equal(t, "B", outs[0].Player.UserID)
	assert.True(t, outs[0].TimedOut)
	assert.Zero(t, outs[0].Gained)

	_, _, ok = r.timeout(0)
	assert.False(t, ok)
	_, _, ok = r.answer("B", 0, 0, fixedScore(80))
	assert.False(t, ok)
}

func TestRoomFinishCompleted(t *testing.T) {
	r := newTestRoom(1)
	r.markReady("A")
	r.markReady("B")
	r.beginQuestion(0, time.Now())

	_, ok := r.finishCompleted()
	assert.False(t, ok, "question still open")

	r.answer("A", 0, 3, fixedScore(70))
	r.answer("B", 0, 0, fixedScore(70))

	result, ok := r.finishCompleted()
	require.True(t, ok)
	assert.Equal(t, "B", result.WinnerID)
	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Equal(t, 0, result.Player1Score)
	assert.Equal(t, 70, result.Player2Score)
	assert.Equal(t, StatusFinished, r.Status())

	_, ok = r.finishCompleted()
	assert.False(t, ok)
}

func TestRoomFinishCompletedDraw(t *testing.T) {
	r := newTestRoom(1)
	r.markReady("A")
	r.markReady("B")
	r.beginQuestion(0, time.Now())
	r.answer("A", 0, 0, fixedScore(70))
	r.answer("B", 0, 0, fixedScore(70))

	result, ok := r.finishCompleted()
	require.True(t, ok)
	assert.Empty(t, result.WinnerID)
}

func TestRoomForfeit(t *testing.T) {
	r := newTestRoom(2)

	_, _, ok := r.forfeit("A")
	assert.False(t, ok, "waiting rooms are cancelled, not forfeited")

	r.markReady("A")
	r.markReady("B")
	r.beginQuestion(0, time.Now())
	r.answer("B", 0, 0, fixedScore(60))

	result, winner, ok := r.forfeit("B")
	require.True(t, ok)
	assert.Equal(t, "A", winner.UserID)
	assert.Equal(t, "A", result.WinnerID)
	assert.Equal(t, ReasonForfeit, result.Reason)
	assert.Equal(t, 60, result.Player2Score)

	_, _, ok = r.forfeit("A")
	assert.False(t, ok)
}

func TestRoomForfeitAfterLastQuestionRefused(t *testing.T) {
	r := newTestRoom(1)
	r.markReady("A")
	r.markReady("B")
	r.beginQuestion(0, time.Now())
	r.answer("A", 0, 0, fixedScore(60))
	r.answer("B", 0, 0, fixedScore(60))

	_, _, ok := r.forfeit("A")
	assert.False(t, ok)

	_, ok = r.finishCompleted()
	assert.True(t, ok)
}

func TestRoomCancel(t *testing.T) {
	r := newTestRoom(1)
	assert.True(t, r.cancel())
	assert.False(t, r.cancel())
	assert.Equal(t, ReasonCancelled, r.Snapshot().Reason)

	started := newTestRoom(1)
	started.markReady("A")
	started.markReady("B")
	assert.False(t, started.cancel())
}

func TestRoomSnapshotScoreFor(t *testing.T) {
	r := newTestRoom(1)
	r.markReady("A")
	r.markReady("B")
	r.beginQuestion(0, time.Now())
	r.answer("A", 0, 0, fixedScore(55))

	snap := r.Snapshot()
	mine, theirs := snap.ScoreFor("A")
	assert.Equal(t, 55, mine)
	assert.Zero(t, theirs)
	mine, theirs = snap.ScoreFor("B")
	assert.Zero(t, mine)
	assert.Equal(t, 55, theirs)
	assert.Equal(t, 1, snap.Delivered)
}

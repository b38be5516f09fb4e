package battle

import (
	"sync"
	"time"

	"github.com/gokatarajesh/quiz-battle/internal/question"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

// Player is one side of a room. Score and readiness are guarded by the
// owning room's lock.
type Player struct {
	Identity
	conn  Conn
	score int
	ready bool
}

func (p *Player) send(msg ws.Message) error {
	if p.conn == nil {
		return ws.ErrConnectionClosed
	}
	return p.conn.Send(msg)
}

// Room is one head-to-head battle. Players, questions and tier never change
// after creation; everything else is behind mu.
type Room struct {
	ID        string
	Tier      string
	Player1   *Player
	Player2   *Player
	Questions []question.Item
	CreatedAt time.Time

	mu            sync.Mutex
	status        Status
	current       int
	delivered     int // questions pushed to players
	resolved      int // questions answered by both sides
	questionStart time.Time
	answered      map[int]map[string]bool
	reason        string
	winnerID      string
}

func newRoom(id, tier string, p1, p2 *Player, items []question.Item, now time.Time) *Room {
	return &Room{
		ID:        id,
		Tier:      tier,
		Player1:   p1,
		Player2:   p2,
		Questions: items,
		CreatedAt: now,
		status:    StatusWaitingReady,
		answered:  make(map[int]map[string]bool),
	}
}

func (r *Room) player(userID string) *Player {
	switch userID {
	case r.Player1.UserID:
		return r.Player1
	case r.Player2.UserID:
		return r.Player2
	}
	return nil
}

func (r *Room) opponent(userID string) *Player {
	switch userID {
	case r.Player1.UserID:
		return r.Player2
	case r.Player2.UserID:
		return r.Player1
	}
	return nil
}

func (r *Room) players() [2]*Player {
	return [2]*Player{r.Player1, r.Player2}
}

// Status returns the current phase.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// markReady records the player's readiness and reports whether this call
// moved the room to IN_PROGRESS.
func (r *Room) markReady(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.player(userID)
	if p == nil || r.status != StatusWaitingReady {
		return false
	}
	p.ready = true
	if !r.Player1.ready || !r.Player2.ready {
		return false
	}
	r.status = StatusInProgress
	r.current = 0
	return true
}

// beginQuestion marks question index as delivered. It succeeds once per
// index, and only for the current one.
func (r *Room) beginQuestion(index int, now time.Time) (question.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress || index != r.current || r.delivered != index || index >= len(r.Questions) {
		return question.Item{}, false
	}
	r.delivered = index + 1
	r.questionStart = now
	return r.Questions[index], true
}

// answerOutcome is one player's resolved answer for one question.
type answerOutcome struct {
	Player   *Player
	Opponent *Player
	Index    int
	Item     question.Item
	Correct  bool
	TimedOut bool
	Gained   int
	Total    int
}

// answer applies a submission. ok is false when the submission is ignored:
// wrong phase, stale or future index, unknown player or a repeat. resolved
// is true when this answer was the last one missing for the question.
func (r *Room) answer(userID string, index, choice int, score func(correct bool) int) (out answerOutcome, resolved, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress || index != r.current || r.delivered <= index || r.resolved > index {
		return out, false, false
	}
	p := r.player(userID)
	if p == nil || r.answered[index][userID] {
		return out, false, false
	}

	item := r.Questions[index]
	correct := choice == item.CorrectIndex
	gained := score(correct)
	p.score += gained
	r.markAnsweredLocked(index, userID)

	opp := r.opponent(userID)
	out = answerOutcome{
		Player:   p,
		Opponent: opp,
		Index:    index,
		Item:     item,
		Correct:  correct,
		Gained:   gained,
		Total:    p.score,
	}
	return out, r.resolveLocked(index), true
}

// timeout marks every player still missing an answer for index as timed out.
func (r *Room) timeout(index int) (outs []answerOutcome, resolved, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress || index != r.current || r.delivered <= index || r.resolved > index {
		return nil, false, false
	}

	item := r.Questions[index]
	for _, p := range r.players() {
		if r.answered[index][p.UserID] {
			continue
		}
		r.markAnsweredLocked(index, p.UserID)
		opp := r.opponent(p.UserID)
		outs = append(outs, answerOutcome{
			Player:   p,
			Opponent: opp,
			Index:    index,
			Item:     item,
			TimedOut: true,
			Total:    p.score,
		})
	}
	return outs, r.resolveLocked(index), true
}

func (r *Room) markAnsweredLocked(index int, userID string) {
	if r.answered[index] == nil {
		r.answered[index] = make(map[string]bool, 2)
	}
	r.answered[index][userID] = true
}

func (r *Room) bothAnsweredLocked(index int) bool {
	marks := r.answered[index]
	return marks[r.Player1.UserID] && marks[r.Player2.UserID]
}

// resolveLocked advances past index once both answers are in. It fires at
// most once per index.
func (r *Room) resolveLocked(index int) bool {
	if r.resolved != index || !r.bothAnsweredLocked(index) {
		return false
	}
	r.resolved = index + 1
	if r.resolved < len(r.Questions) {
		r.current = r.resolved
	}
	return true
}

func (r *Room) allResolvedLocked() bool {
	return r.resolved >= len(r.Questions)
}

// finishCompleted ends a room whose questions are all resolved.
func (r *Room) finishCompleted() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress || !r.allResolvedLocked() {
		return Result{}, false
	}
	r.status = StatusFinished
	r.reason = ReasonCompleted
	switch {
	case r.Player1.score > r.Player2.score:
		r.winnerID = r.Player1.UserID
	case r.Player2.score > r.Player1.score:
		r.winnerID = r.Player2.UserID
	}
	return r.resultLocked(), true
}

// forfeit ends an in-progress room in favour of the player who stayed. A
// room whose last question is already resolved finishes normally instead.
func (r *Room) forfeit(leaverID string) (Result, *Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	winner := r.opponent(leaverID)
	if winner == nil || r.status != StatusInProgress || r.allResolvedLocked() {
		return Result{}, nil, false
	}
	r.status = StatusFinished
	r.reason = ReasonForfeit
	r.winnerID = winner.UserID
	return r.resultLocked(), winner, true
}

// cancel abandons a room that never started.
func (r *Room) cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusWaitingReady {
		return false
	}
	r.status = StatusFinished
	r.reason = ReasonCancelled
	return true
}

func (r *Room) resultLocked() Result {
	return Result{
		RoomID:        r.ID,
		Player1ID:     r.Player1.UserID,
		Player1Name:   r.Player1.DisplayName,
		Player2ID:     r.Player2.UserID,
		Player2Name:   r.Player2.DisplayName,
		WinnerID:      r.winnerID,
		Player1Score:  r.Player1.score,
		Player2Score:  r.Player2.score,
		Tier:          r.Tier,
		QuestionCount: len(r.Questions),
		Reason:        r.reason,
	}
}

// RoomSnapshot is a point-in-time copy of a room, safe to serialize.
type RoomSnapshot struct {
	RoomID          string    `json:"room_id"`
	Tier            string    `json:"tier"`
	Status          Status    `json:"status"`
	Player1ID       string    `json:"player1_id"`
	Player1Name     string    `json:"player1_name"`
	Player1Score    int       `json:"player1_score"`
	Player2ID       string    `json:"player2_id"`
	Player2Name     string    `json:"player2_name"`
	Player2Score    int       `json:"player2_score"`
	CurrentQuestion int       `json:"current_question"`
	Delivered       int       `json:"delivered"`
	TotalQuestions  int       `json:"total_questions"`
	WinnerID        string    `json:"winner_id,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot copies the room's current state.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSnapshot{
		RoomID:          r.ID,
		Tier:            r.Tier,
		Status:          r.status,
		Player1ID:       r.Player1.UserID,
		Player1Name:     r.Player1.DisplayName,
		Player1Score:    r.Player1.score,
		Player2ID:       r.Player2.UserID,
		Player2Name:     r.Player2.DisplayName,
		Player2Score:    r.Player2.score,
		CurrentQuestion: r.current,
		Delivered:       r.delivered,
		TotalQuestions:  len(r.Questions),
		WinnerID:        r.winnerID,
		Reason:          r.reason,
		CreatedAt:       r.CreatedAt,
	}
}

// ScoreFor returns the snapshot score of userID and of their opponent.
func (s RoomSnapshot) ScoreFor(userID string) (mine, theirs int) {
	if userID == s.Player1ID {
		return s.Player1Score, s.Player2Score
	}
	return s.Player2Score, s.Player1Score
}

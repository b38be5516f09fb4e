package battle

import (
	"context"
	"errors"
	"strings"

	"github.com/gokatarajesh/quiz-battle/internal/question"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

// Tiers, easiest first.
const (
	TierN5 = "N5"
	TierN4 = "N4"
	TierN3 = "N3"
	TierN2 = "N2"
	TierN1 = "N1"
)

// Tiers lists every tier a player can queue for.
var Tiers = []string{TierN5, TierN4, TierN3, TierN2, TierN1}

// Status is a room's phase.
type Status string

const (
	StatusWaitingReady Status = "WAITING_READY"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusFinished     Status = "FINISHED"
)

// Finish reasons.
const (
	ReasonCompleted = "completed"
	ReasonForfeit   = "forfeit"
	ReasonCancelled = "cancelled"
)

var (
	ErrUnknownTier = errors.New("unknown tier")
	ErrNoQuestions = errors.New("no questions available for tier")
	// ErrStillSeated means the user's previous room has not finished yet.
	ErrStillSeated = errors.New("player is still seated in a room")
	// ErrUnknownPlayer is returned by identity resolvers for unknown users.
	ErrUnknownPlayer = errors.New("unknown player")
)

// ParseTier normalizes a client supplied tier ("n5" -> "N5").
func ParseTier(raw string) (string, error) {
	tier := strings.ToUpper(strings.TrimSpace(raw))
	for _, t := range Tiers {
		if t == tier {
			return tier, nil
		}
	}
	return "", ErrUnknownTier
}

// Conn is the push side of a player's live connection.
type Conn interface {
	Send(msg ws.Message) error
}

// Identity is what the battle needs to know about a user.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
}

// IdentityResolver looks up a user's display data.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (Identity, error)
}

// QuestionSource produces the question set for a new room. It may return
// fewer items than asked for, including none.
type QuestionSource interface {
	Generate(ctx context.Context, tier string, count int) ([]question.Item, error)
}

// Result is a finished battle as handed to the sink.
type Result struct {
	RoomID        string
	Player1ID     string
	Player1Name   string
	Player2ID     string
	Player2Name   string
	WinnerID      string // empty on a draw
	Player1Score  int
	Player2Score  int
	Tier          string
	QuestionCount int
	Reason        string
}

// ResultSink durably records finished battles.
type ResultSink interface {
	Record(ctx context.Context, result Result) error
}

// StateMirror keeps a shared copy of room state. Failures are not fatal.
type StateMirror interface {
	SaveRoom(ctx context.Context, snap RoomSnapshot) error
	DeleteRoom(ctx context.Context, snap RoomSnapshot) error
}

// queued is the value held in the matchmaking queue.
type queued struct {
	identity       Identity
	conn           Conn
	requestedCount int
}

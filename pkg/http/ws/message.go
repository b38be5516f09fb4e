package ws

import "encoding/json"

// MessageType constants for the battle WebSocket protocol.
const (
	// Client -> Server
	TypeJoinQueue    = "JOIN_QUEUE"
	TypeLeaveQueue   = "LEAVE_QUEUE"
	TypeReady        = "READY"
	TypeAnswer       = "ANSWER"
	TypeRefreshToken = "REFRESH_TOKEN"

	// Server -> Client
	TypeConnected         = "CONNECTED"
	TypeQueueJoined       = "QUEUE_JOINED"
	TypeMatchFound        = "MATCH_FOUND"
	TypeGameStart         = "GAME_START"
	TypeQuestion          = "QUESTION"
	TypeAnswerResult      = "ANSWER_RESULT"
	TypeOpponentAnswered  = "OPPONENT_ANSWERED"
	TypeGameEnd           = "GAME_END"
	TypeTokenRefreshed    = "TOKEN_REFRESHED"
	TypeLeaderboardUpdate = "LEADERBOARD_UPDATE"
	TypeError             = "ERROR"
)

// Message wraps all WebSocket payloads with their type tag.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload under the given type. Payload structs in this
// package always marshal, so an encoding failure yields an empty payload.
func NewMessage(msgType string, payload any) Message {
	msg := Message{Type: msgType}
	if payload != nil {
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// Client Messages (incoming)

type JoinQueuePayload struct {
	Tier          string `json:"tier"`
	QuestionCount int    `json:"question_count,omitempty"`
}

type AnswerPayload struct {
	QuestionIndex int   `json:"question_index"`
	AnswerIndex   int   `json:"answer_index"`
	ElapsedMs     int64 `json:"elapsed_ms"`
}

type RefreshTokenPayload struct {
	Token string `json:"token"`
}

// Server Messages (outgoing)

type ConnectedPayload struct {
	UserID string `json:"user_id"`
}

type QueueJoinedPayload struct {
	Tier      string `json:"tier"`
	QueueSize int    `json:"queue_size"`
}

type Opponent struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

type MatchFoundPayload struct {
	RoomID        string   `json:"room_id"`
	Tier          string   `json:"tier"`
	QuestionCount int      `json:"question_count"`
	OpponentName  string   `json:"opponent_name"`
	Opponent      Opponent `json:"opponent"`
}

// QuestionView is a question as shown to players; it never carries the answer.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type GameStartPayload struct {
	RoomID          string         `json:"room_id"`
	Questions       []QuestionView `json:"questions"`
	TotalQuestions  int            `json:"total_questions"`
	TimePerQuestion int            `json:"time_per_question"`
}

type QuestionPayload struct {
	Index       int          `json:"index"`
	Question    QuestionView `json:"question"`
	StartTime   int64        `json:"start_time"`
	TimeLimitMs int64        `json:"time_limit_ms"`
}

type AnswerResultPayload struct {
	Index        int    `json:"index"`
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correct_index"`
	ScoreGained  int    `json:"score_gained"`
	TotalScore   int    `json:"total_score"`
	Explanation  string `json:"explanation,omitempty"`
	TimedOut     bool   `json:"timed_out"`
}

type OpponentAnsweredPayload struct {
	Index         int `json:"index"`
	OpponentScore int `json:"opponent_score"`
}

type GameEndPayload struct {
	RoomID       string `json:"room_id"`
	WinnerID     string `json:"winner_id,omitempty"`
	WinnerName   string `json:"winner_name,omitempty"`
	Draw         bool   `json:"draw"`
	Player1ID    string `json:"player1_id"`
	Player1Name  string `json:"player1_name"`
	Player1Score int    `json:"player1_score"`
	Player2ID    string `json:"player2_id"`
	Player2Name  string `json:"player2_name"`
	Player2Score int    `json:"player2_score"`
	Reason       string `json:"reason"`
}

type TokenRefreshedPayload struct {
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LeaderboardEntry is one ranked row pushed to clients.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Wins        int    `json:"wins"`
	Draws       int    `json:"draws"`
	Games       int    `json:"games"`
}

type LeaderboardUpdatePayload struct {
	Window  string             `json:"window"`
	MatchID string             `json:"match_id,omitempty"`
	Top     []LeaderboardEntry `json:"top"`
}

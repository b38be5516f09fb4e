package battle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-battle/internal/battle/queue"
	"github.com/gokatarajesh/quiz-battle/internal/battle/scoring"
	"github.com/gokatarajesh/quiz-battle/internal/question"
	httperrors "github.com/gokatarajesh/quiz-battle/pkg/http/errors"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

const (
	stateTimeout   = time.Second
	timeUpPrefix   = "Time is up!"
	defaultGenWait = 8 * time.Second
)

// Options tunes battle timing and scoring. Zero values use the defaults.
type Options struct {
	QuestionCount     int
	MaxQuestionCount  int
	TimePerQuestion   time.Duration
	NetworkGrace      time.Duration
	NextQuestionDelay time.Duration
	GameEndDelay      time.Duration
	CleanupDelay      time.Duration
	PersistTimeout    time.Duration
	GenerateTimeout   time.Duration
	MaxScore          int
	MinScore          int
}

func (o Options) withDefaults() Options {
	if o.QuestionCount <= 0 {
		o.QuestionCount = 10
	}
	if o.MaxQuestionCount < o.QuestionCount {
		o.MaxQuestionCount = max(20, o.QuestionCount)
	}
	if o.TimePerQuestion <= 0 {
		o.TimePerQuestion = 10 * time.Second
	}
	if o.NetworkGrace < 0 {
		o.NetworkGrace = 0
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = defaultGenWait
	}
	return o
}

// Dependencies are the collaborators of the orchestrator. State and Metrics
// are optional.
type Dependencies struct {
	Questions  QuestionSource
	Identities IdentityResolver
	Results    ResultSink
	Scheduler  Scheduler
	State      StateMirror
	Metrics    *Metrics
}

// Orchestrator pairs queued players into rooms and drives each room from
// the first question to the final result.
type Orchestrator struct {
	queue      *queue.Manager[*queued]
	scorer     *scoring.Engine
	questions  QuestionSource
	identities IdentityResolver
	results    ResultSink
	scheduler  Scheduler
	state      StateMirror
	metrics    *Metrics
	opts       Options
	now        func() time.Time
	newID      func() string
	logger     zerolog.Logger

	mu         sync.RWMutex
	rooms      map[string]*Room
	playerRoom map[string]string
}

// NewOrchestrator wires the battle core.
func NewOrchestrator(deps Dependencies, opts Options, logger zerolog.Logger) *Orchestrator {
	opts = opts.withDefaults()
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Orchestrator{
		queue: queue.NewManager[*queued](logger),
		scorer: scoring.NewEngine(scoring.ScoringConfig{
			MaxScore:  opts.MaxScore,
			MinScore:  opts.MinScore,
			TimeLimit: opts.TimePerQuestion,
		}),
		questions:  deps.Questions,
		identities: deps.Identities,
		results:    deps.Results,
		scheduler:  deps.Scheduler,
		state:      deps.State,
		metrics:    metrics,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger.With().Str("component", "battle").Logger(),
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
	}
}

// JoinQueue puts the user in the tier's queue after clearing whatever they
// were doing before, then tries to pair the tier.
func (o *Orchestrator) JoinQueue(ctx context.Context, userID, rawTier string, questionCount int, conn Conn) error {
	tier, err := ParseTier(rawTier)
	if err != nil {
		return err
	}
	identity, err := o.identities.ResolveIdentity(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	o.HandleDisconnect(userID)
	if room := o.roomFor(userID); room != nil {
		o.logger.Info().Str("user_id", userID).Str("room_id", room.ID).Msg("join refused, room still finishing")
		return ErrStillSeated
	}

	size := o.queue.Enqueue(tier, userID, &queued{
		identity:       identity,
		conn:           conn,
		requestedCount: questionCount,
	})
	o.metrics.setQueueSizes(o.queue.Sizes())
	o.logger.Info().Str("user_id", userID).Str("tier", tier).Int("queue_size", size).Msg("player queued")

	if err := conn.Send(ws.NewMessage(ws.TypeQueueJoined, ws.QueueJoinedPayload{Tier: tier, QueueSize: size})); err != nil {
		o.logger.Debug().Err(err).Str("user_id", userID).Msg("queue ack not delivered")
	}

	o.tryPair(ctx, tier)
	return nil
}

// LeaveQueue removes the user from matchmaking. Rooms are not affected.
func (o *Orchestrator) LeaveQueue(userID string) bool {
	removed := o.queue.Dequeue(userID)
	if removed {
		o.metrics.setQueueSizes(o.queue.Sizes())
		o.logger.Info().Str("user_id", userID).Msg("player left queue")
	}
	return removed
}

func (o *Orchestrator) tryPair(ctx context.Context, tier string) {
	pair, ok := o.queue.TryPair(tier)
	if !ok {
		return
	}
	o.metrics.setQueueSizes(o.queue.Sizes())

	first, second := pair.First.Player, pair.Second.Player
	count := o.questionCount(first.requestedCount)
	logger := o.logger.With().Str("tier", tier).Str("player1", pair.First.ID).Str("player2", pair.Second.ID).Logger()

	gctx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	items, err := o.questions.Generate(gctx, tier, count)
	cancel()
	if err == nil && len(items) == 0 {
		err = ErrNoQuestions
	}
	if err != nil {
		logger.Warn().Err(err).Int("requested", count).Msg("no questions for pair, abandoning match")
		o.metrics.pairingFailures.WithLabelValues(tier).Inc()
		msg := errorMessage(httperrors.ErrCodeNoQuestions, "No questions are available for this level right now. Please try again later.")
		_ = first.conn.Send(msg)
		_ = second.conn.Send(msg)
		return
	}
	if len(items) > count {
		items = items[:count]
	}

	room := newRoom(o.newID(), tier,
		&Player{Identity: first.identity, conn: first.conn},
		&Player{Identity: second.identity, conn: second.conn},
		items, o.now())
	if busy := o.register(room); len(busy) > 0 {
		o.recoverPair(ctx, tier, pair, busy)
		return
	}
	o.metrics.matches.WithLabelValues(tier).Inc()
	o.mirror(room)
	logger.Info().Str("room_id", room.ID).Int("questions", len(items)).Msg("match found")

	var unreachable []string
	for _, p := range room.players() {
		opp := room.opponent(p.UserID)
		err := p.send(ws.NewMessage(ws.TypeMatchFound, ws.MatchFoundPayload{
			RoomID:        room.ID,
			Tier:          tier,
			QuestionCount: len(items),
			OpponentName:  opp.DisplayName,
			Opponent: ws.Opponent{
				UserID:      opp.UserID,
				DisplayName: opp.DisplayName,
				Email:       opp.Email,
			},
		}))
		if err != nil {
			unreachable = append(unreachable, p.UserID)
		}
	}
	for _, userID := range unreachable {
		o.HandleDisconnect(userID)
	}
}

func (o *Orchestrator) questionCount(requested int) int {
	if requested >= 1 && requested <= o.opts.MaxQuestionCount {
		return requested
	}
	return o.opts.QuestionCount
}

// recoverPair handles a pair that could not be seated because some of its
// players already hold a room. Busy players are told to retry; the others
// go back to the head of the queue.
func (o *Orchestrator) recoverPair(ctx context.Context, tier string, pair *queue.Pair[*queued], busy map[string]bool) {
	requeued := false
	// second first, so the earlier arrival ends up at the head
	for _, wp := range []queue.WaitingPlayer[*queued]{pair.Second, pair.First} {
		if busy[wp.ID] {
			o.logger.Warn().Str("user_id", wp.ID).Str("tier", tier).Msg("paired player already in a room")
			_ = wp.Player.conn.Send(errorMessage(httperrors.ErrCodeJoinFailed, "Could not start the battle. Please join the queue again."))
			continue
		}
		if o.queue.Requeue(wp) {
			requeued = true
		}
	}
	o.metrics.setQueueSizes(o.queue.Sizes())
	if requeued {
		o.tryPair(ctx, tier)
	}
}

// register adds room to both registries unless a player already has a
// room. It returns the ids of the players that blocked registration.
func (o *Orchestrator) register(room *Room) map[string]bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	var busy map[string]bool
	for _, p := range room.players() {
		if _, seated := o.playerRoom[p.UserID]; seated {
			if busy == nil {
				busy = make(map[string]bool, 2)
			}
			busy[p.UserID] = true
		}
	}
	if len(busy) > 0 {
		return busy
	}
	o.rooms[room.ID] = room
	for _, p := range room.players() {
		o.playerRoom[p.UserID] = room.ID
		// a player who re-queued while questions were generated
		o.queue.Dequeue(p.UserID)
	}
	o.metrics.activeRooms.Set(float64(len(o.rooms)))
	return nil
}

// MarkReady flags the user ready. The second ready player starts the game.
func (o *Orchestrator) MarkReady(userID string) {
	room := o.roomFor(userID)
	if room == nil {
		o.logger.Warn().Str("user_id", userID).Msg("ready without a room")
		return
	}
	if !room.markReady(userID) {
		o.logger.Debug().Str("user_id", userID).Str("room_id", room.ID).Msg("player ready")
		return
	}

	views := make([]ws.QuestionView, len(room.Questions))
	for i, item := range room.Questions {
		views[i] = viewOf(item)
	}
	o.broadcast(room, ws.NewMessage(ws.TypeGameStart, ws.GameStartPayload{
		RoomID:          room.ID,
		Questions:       views,
		TotalQuestions:  len(views),
		TimePerQuestion: int(o.opts.TimePerQuestion / time.Second),
	}))
	o.logger.Info().Str("room_id", room.ID).Msg("battle started")

	o.deliverQuestion(room.ID, 0)
}

// SubmitAnswer scores the user's answer to question index. Answers for any
// index other than the current one, and repeats, are dropped.
func (o *Orchestrator) SubmitAnswer(userID string, index, choice int, elapsedMs int64) {
	room := o.roomFor(userID)
	if room == nil {
		o.logger.Debug().Str("user_id", userID).Msg("answer without a room")
		return
	}

	out, resolved, ok := room.answer(userID, index, choice, func(correct bool) int {
		return o.scorer.CalculateScore(correct, elapsedMs)
	})
	if !ok {
		o.logger.Debug().Str("user_id", userID).Str("room_id", room.ID).Int("question_index", index).Msg("answer ignored")
		return
	}
	o.metrics.answered(out)
	o.sendAnswerResult(out)

	if resolved {
		o.advance(room, index)
	}
}

func (o *Orchestrator) deliverQuestion(roomID string, index int) {
	room := o.room(roomID)
	if room == nil {
		return
	}
	now := o.now()
	item, ok := room.beginQuestion(index, now)
	if !ok {
		return
	}

	o.broadcast(room, ws.NewMessage(ws.TypeQuestion, ws.QuestionPayload{
		Index:       index,
		Question:    viewOf(item),
		StartTime:   now.UnixMilli(),
		TimeLimitMs: o.scorer.TimeLimit().Milliseconds(),
	}))
	o.scheduler.After(o.opts.TimePerQuestion+o.opts.NetworkGrace, func() {
		o.handleTimeout(roomID, index)
	})
	o.mirror(room)
}

func (o *Orchestrator) handleTimeout(roomID string, index int) {
	room := o.room(roomID)
	if room == nil {
		return
	}
	outs, resolved, ok := room.timeout(index)
	if !ok {
		return
	}
	for _, out := range outs {
		o.logger.Debug().Str("room_id", roomID).Str("user_id", out.Player.UserID).Int("question_index", index).Msg("answer timed out")
		o.metrics.answered(out)
		o.sendAnswerResult(out)
	}
	if resolved {
		o.advance(room, index)
	}
}

func (o *Orchestrator) advance(room *Room, index int) {
	roomID := room.ID
	if index+1 >= len(room.Questions) {
		o.scheduler.After(o.opts.GameEndDelay, func() { o.endGame(roomID) })
		return
	}
	next := index + 1
	o.scheduler.After(o.opts.NextQuestionDelay, func() { o.deliverQuestion(roomID, next) })
}

func (o *Orchestrator) endGame(roomID string) {
	room := o.room(roomID)
	if room == nil {
		return
	}
	result, ok := room.finishCompleted()
	if !ok {
		return
	}

	o.finish(result)
	o.broadcast(room, gameEndMessage(result))
	o.scheduler.After(o.opts.CleanupDelay, func() { o.evict(roomID) })
}

// HandleDisconnect takes the user out of matchmaking and settles any room
// they are in: a room that never started is cancelled, a running one is
// forfeited to the opponent, a finished one is released early.
func (o *Orchestrator) HandleDisconnect(userID string) {
	o.LeaveQueue(userID)

	room := o.roomFor(userID)
	if room == nil {
		return
	}
	logger := o.logger.With().Str("user_id", userID).Str("room_id", room.ID).Logger()

	if room.cancel() {
		logger.Info().Msg("player left before the battle started")
		o.metrics.gamesFinished.WithLabelValues(ReasonCancelled).Inc()
		if opp := room.opponent(userID); opp != nil {
			_ = opp.send(errorMessage(httperrors.ErrCodeOpponentLeft, "Your opponent left before the battle started."))
		}
		o.evict(room.ID)
		return
	}

	if result, winner, ok := room.forfeit(userID); ok {
		logger.Info().Str("winner_id", winner.UserID).Msg("battle forfeited")
		o.finish(result)
		_ = winner.send(gameEndMessage(result))
		o.evict(room.ID)
		return
	}

	if room.Status() == StatusFinished {
		o.evict(room.ID)
	}
}

// finish records a finished room. A storage failure is logged and the
// end of game flow carries on.
func (o *Orchestrator) finish(result Result) {
	o.metrics.gamesFinished.WithLabelValues(result.Reason).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.PersistTimeout)
	defer cancel()
	if err := o.results.Record(ctx, result); err != nil {
		o.logger.Error().Err(err).Str("room_id", result.RoomID).Msg("failed to persist battle result")
	}

	if room := o.room(result.RoomID); room != nil {
		o.mirror(room)
	}
	o.logger.Info().
		Str("room_id", result.RoomID).
		Str("reason", result.Reason).
		Str("winner_id", result.WinnerID).
		Int("player1_score", result.Player1Score).
		Int("player2_score", result.Player2Score).
		Msg("battle finished")
}

func (o *Orchestrator) evict(roomID string) {
	o.mu.Lock()
	room, ok := o.rooms[roomID]
	if ok {
		delete(o.rooms, roomID)
		for _, p := range room.players() {
			if o.playerRoom[p.UserID] == roomID {
				delete(o.playerRoom, p.UserID)
			}
		}
	}
	active := len(o.rooms)
	o.mu.Unlock()

	if !ok {
		return
	}
	o.metrics.activeRooms.Set(float64(active))

	if o.state != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
		defer cancel()
		if err := o.state.DeleteRoom(ctx, room.Snapshot()); err != nil {
			o.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to drop room state")
		}
	}
	o.logger.Debug().Str("room_id", roomID).Msg("room evicted")
}

func (o *Orchestrator) mirror(room *Room) {
	if o.state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()
	if err := o.state.SaveRoom(ctx, room.Snapshot()); err != nil {
		o.logger.Warn().Err(err).Str("room_id", room.ID).Msg("failed to mirror room state")
	}
}

func (o *Orchestrator) sendAnswerResult(out answerOutcome) {
	explanation := out.Item.Explanation
	if out.TimedOut {
		explanation = strings.TrimSpace(timeUpPrefix + " " + explanation)
	}
	if err := out.Player.send(ws.NewMessage(ws.TypeAnswerResult, ws.AnswerResultPayload{
		Index:        out.Index,
		Correct:      out.Correct,
		CorrectIndex: out.Item.CorrectIndex,
		ScoreGained:  out.Gained,
		TotalScore:   out.Total,
		Explanation:  explanation,
		TimedOut:     out.TimedOut,
	})); err != nil {
		o.logger.Debug().Err(err).Str("user_id", out.Player.UserID).Msg("answer result not delivered")
	}
	// a timeout is not an answer the opponent needs to hear about
	if out.TimedOut {
		return
	}
	_ = out.Opponent.send(ws.NewMessage(ws.TypeOpponentAnswered, ws.OpponentAnsweredPayload{
		Index:         out.Index,
		OpponentScore: out.Total,
	}))
}

func (o *Orchestrator) broadcast(room *Room, msg ws.Message) {
	for _, p := range room.players() {
		if err := p.send(msg); err != nil {
			o.logger.Debug().Err(err).Str("user_id", p.UserID).Str("type", msg.Type).Msg("message not delivered")
		}
	}
}

func (o *Orchestrator) room(roomID string) *Room {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rooms[roomID]
}

func (o *Orchestrator) roomFor(userID string) *Room {
	o.mu.RLock()
	defer o.mu.RUnlock()
	roomID, ok := o.playerRoom[userID]
	if !ok {
		return nil
	}
	return o.rooms[roomID]
}

// ActiveRoomCount returns the number of registered rooms.
func (o *Orchestrator) ActiveRoomCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.rooms)
}

// QueueSizes returns the number of waiting players per tier.
func (o *Orchestrator) QueueSizes() map[string]int {
	sizes := o.queue.Sizes()
	out := make(map[string]int, len(Tiers))
	for _, tier := range Tiers {
		out[tier] = sizes[tier]
	}
	return out
}

// QueuedTotal returns the number of waiting players across tiers.
func (o *Orchestrator) QueuedTotal() int {
	return o.queue.TotalSize()
}

// UserState describes where a user currently is.
type UserState struct {
	State string        `json:"state"`
	Tier  string        `json:"tier,omitempty"`
	Room  *RoomSnapshot `json:"room,omitempty"`
}

// User states.
const (
	UserIdle   = "idle"
	UserQueued = "queued"
	UserInRoom = "in_room"
)

// StateOf reports the user's queue or room membership on this instance.
func (o *Orchestrator) StateOf(userID string) UserState {
	if room := o.roomFor(userID); room != nil {
		snap := room.Snapshot()
		return UserState{State: UserInRoom, Tier: snap.Tier, Room: &snap}
	}
	if tier, ok := o.queue.TierOf(userID); ok {
		return UserState{State: UserQueued, Tier: tier}
	}
	return UserState{State: UserIdle}
}

func viewOf(item question.Item) ws.QuestionView {
	return ws.QuestionView{ID: item.ID, Prompt: item.Prompt, Options: item.Options}
}

func gameEndMessage(result Result) ws.Message {
	payload := ws.GameEndPayload{
		RoomID:       result.RoomID,
		WinnerID:     result.WinnerID,
		Draw:         result.WinnerID == "",
		Player1ID:    result.Player1ID,
		Player1Name:  result.Player1Name,
		Player1Score: result.Player1Score,
		Player2ID:    result.Player2ID,
		Player2Name:  result.Player2Name,
		Player2Score: result.Player2Score,
		Reason:       result.Reason,
	}
	switch result.WinnerID {
	case result.Player1ID:
		payload.WinnerName = result.Player1Name
	case result.Player2ID:
		payload.WinnerName = result.Player2Name
	}
	return ws.NewMessage(ws.TypeGameEnd, payload)
}

func errorMessage(code, message string) ws.Message {
	return ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

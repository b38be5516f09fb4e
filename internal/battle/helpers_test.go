package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-battle/internal/question"
	"github.com/gokatarajesh/quiz-battle/pkg/http/ws"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []ws.Message
	closed bool
}

func (c *fakeConn) Send(msg ws.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrConnectionClosed
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) ofType(msgType string) []ws.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ws.Message
	for _, m := range c.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func decodeLast[T any](t *testing.T, c *fakeConn, msgType string) T {
	t.Helper()
	msgs := c.ofType(msgType)
	require.NotEmpty(t, msgs, "no %s message", msgType)
	var out T
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &out))
	return out
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

// manualScheduler runs tasks only when the test says so.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []scheduled
}

func (s *manualScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, scheduled{delay: d, fn: fn})
}

func (s *manualScheduler) pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = task.delay
	}
	return out
}

// runNext fires the oldest task and reports whether there was one.
func (s *manualScheduler) runNext() bool {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return false
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.mu.Unlock()

	task.fn()
	return true
}

func (s *manualScheduler) runAll() {
	for s.runNext() {
	}
}

type stubQuestions struct {
	mu    sync.Mutex
	items map[string][]question.Item
	err   error
	asked []int
}

func (q *stubQuestions) Generate(_ context.Context, tier string, count int) ([]question.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.asked = append(q.asked, count)
	if q.err != nil {
		return nil, q.err
	}
	items := q.items[tier]
	return items[:min(count, len(items))], nil
}

type stubIdentities struct {
	unknown map[string]bool
}

func (s stubIdentities) ResolveIdentity(_ context.Context, userID string) (Identity, error) {
	if s.unknown[userID] {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, userID)
	}
	return Identity{UserID: userID, DisplayName: "Player " + userID, Email: userID + "@example.com"}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (s *recordingSink) Record(_ context.Context, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return s.err
}

func (s *recordingSink) all() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

func makeItems(n int) []question.Item {
	items := make([]question.Item, n)
	for i := range items {
		items[i] = question.Item{
			ID:           fmt.Sprintf("q%d", i),
			Prompt:       fmt.Sprintf("prompt %d", i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Explanation:  fmt.Sprintf("explanation %d", i),
		}
	}
	return items
}

type harness struct {
	orch      *Orchestrator
	sched     *manualScheduler
	questions *stubQuestions
	sink      *recordingSink
}

func newHarness(t *testing.T, pool map[string][]question.Item) *harness {
	t.Helper()
	h := &harness{
		sched:     &manualScheduler{},
		questions: &stubQuestions{items: pool},
		sink:      &recordingSink{},
	}
	h.orch = NewOrchestrator(Dependencies{
		Questions:  h.questions,
		Identities: stubIdentities{},
		Results:    h.sink,
		Scheduler:  h.sched,
	}, Options{
		QuestionCount:     2,
		MaxQuestionCount:  5,
		TimePerQuestion:   10 * time.Second,
		NetworkGrace:      2 * time.Second,
		NextQuestionDelay: time.Second,
		GameEndDelay:      3 * time.Second,
		CleanupDelay:      10 * time.Second,
	}, zerolog.Nop())
	return h
}

// match queues a and b for tier and returns their room.
func (h *harness) match(t *testing.T, tier string, count int) (*fakeConn, *fakeConn, *Room) {
	t.Helper()
	a, b := &fakeConn{}, &fakeConn{}
	ctx := context.Background()
	require.NoError(t, h.orch.JoinQueue(ctx, "A", tier, count, a))
	require.NoError(t, h.orch.JoinQueue(ctx, "B", tier, count, b))
	room := h.orch.roomFor("A")
	require.NotNil(t, room)
	return a, b, room
}

func (h *harness) start(t *testing.T, tier string, count int) (*fakeConn, *fakeConn, *Room) {
	t.Helper()
	a, b, room := h.match(t, tier, count)
	h.orch.MarkReady("A")
	h.orch.MarkReady("B")
	require.Equal(t, StatusInProgress, room.Status())
	return a, b, room
}

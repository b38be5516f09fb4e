package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WaitingPlayer is one queued entry. P carries the caller's player value.
type WaitingPlayer[P any] struct {
	ID       string
	Tier     string
	QueuedAt time.Time
	Player   P
}

// Pair holds the two earliest players of a tier, in arrival order.
type Pair[P any] struct {
	First  WaitingPlayer[P]
	Second WaitingPlayer[P]
}

// Manager keeps one FIFO queue per tier plus a player -> tier index. A
// player id is in at most one tier queue at any time.
type Manager[P any] struct {
	mu     sync.Mutex
	queues map[string][]WaitingPlayer[P]
	index  map[string]string
	now    func() time.Time
	logger zerolog.Logger
}

// NewManager creates an empty matchmaking queue manager.
func NewManager[P any](logger zerolog.Logger) *Manager[P] {
	return &Manager[P]{
		queues: make(map[string][]WaitingPlayer[P]),
		index:  make(map[string]string),
		now:    time.Now,
		logger: logger.With().Str("component", "battle_queue").Logger(),
	}
}

// Enqueue appends the player to tier. A player already waiting anywhere is
// moved, so a player never occupies two queues. Returns the new tier size.
func (m *Manager[P]) Enqueue(tier, playerID string, player P) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(playerID)
	m.queues[tier] = append(m.queues[tier], WaitingPlayer[P]{
		ID:       playerID,
		Tier:     tier,
		QueuedAt: m.now(),
		Player:   player,
	})
	m.index[playerID] = tier

	m.logger.Debug().Str("user_id", playerID).Str("tier", tier).Msg("player enqueued")
	return len(m.queues[tier])
}

// Requeue puts a previously paired player back at the head of its tier,
// keeping the original arrival time. It is a no-op when the player has
// queued again in the meantime.
func (m *Manager[P]) Requeue(wp WaitingPlayer[P]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, queued := m.index[wp.ID]; queued {
		return false
	}
	m.queues[wp.Tier] = append([]WaitingPlayer[P]{wp}, m.queues[wp.Tier]...)
	m.index[wp.ID] = wp.Tier

	m.logger.Debug().Str("user_id", wp.ID).Str("tier", wp.Tier).Msg("player requeued")
	return true
}

// Dequeue removes the player from whatever queue holds it.
func (m *Manager[P]) Dequeue(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.removeLocked(playerID)
	if removed {
		m.logger.Debug().Str("user_id", playerID).Msg("player dequeued")
	}
	return removed
}

// TryPair pops the two earliest players of tier when at least two wait.
func (m *Manager[P]) TryPair(tier string) (*Pair[P], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[tier]
	if len(q) < 2 {
		return nil, false
	}

	pair := &Pair[P]{First: q[0], Second: q[1]}
	rest := q[2:]
	if len(rest) == 0 {
		delete(m.queues, tier)
	} else {
		m.queues[tier] = append([]WaitingPlayer[P](nil), rest...)
	}
	delete(m.index, pair.First.ID)
	delete(m.index, pair.Second.ID)
	return pair, true
}

// TierOf returns the tier the player is waiting in.
func (m *Manager[P]) TierOf(playerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tier, ok := m.index[playerID]
	return tier, ok
}

// Size returns the number of players waiting in tier.
func (m *Manager[P]) Size(tier string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[tier])
}

// TotalSize returns the number of players waiting across all tiers.
func (m *Manager[P]) TotalSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

// Sizes returns a per-tier snapshot of queue lengths.
func (m *Manager[P]) Sizes() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.queues))
	for tier, q := range m.queues {
		out[tier] = len(q)
	}
	return out
}

func (m *Manager[P]) removeLocked(playerID string) bool {
	tier, ok := m.index[playerID]
	if !ok {
		return false
	}
	delete(m.index, playerID)

	q := m.queues[tier]
	for i, wp := range q {
		if wp.ID != playerID {
			continue
		}
		q = append(q[:i:i], q[i+1:]...)
		break
	}
	if len(q) == 0 {
		delete(m.queues, tier)
	} else {
		m.queues[tier] = q
	}
	return true
}

package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultSendBuffer  = 256
	defaultReadTimeout = 60 * time.Second
	writeTimeout       = 10 * time.Second
	maxMessageSize     = 64 * 1024
)

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "User connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
	ErrEmptyMessageType   = errors.New("message type is required")
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Hub tracks the live connection of every authenticated user.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Register makes conn the user's current connection. A previous connection
// is closed and returned so the caller can end its session.
func (h *Hub) Register(userID string, conn *Connection) *Connection {
	h.mu.Lock()
	old := h.connections[userID]
	h.connections[userID] = conn
	h.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
		h.logger.Info().Str("user_id", userID).Msg("connection superseded")
		return old
	}
	h.logger.Debug().Str("user_id", userID).Msg("connection registered")
	return nil
}

// Unregister closes conn and drops it from the registry if it is still the
// user's current connection. It reports whether the entry was removed.
func (h *Hub) Unregister(userID string, conn *Connection) bool {
	conn.Close()

	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.connections[userID]; !ok || current != conn {
		return false
	}
	delete(h.connections, userID)
	h.logger.Debug().Str("user_id", userID).Msg("connection unregistered")
	return true
}

// SendToUser delivers a message to a specific user.
func (h *Hub) SendToUser(userID string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// BroadcastAll queues msg on every registered connection. It returns the
// first delivery error; the remaining connections still get the message.
func (h *Hub) BroadcastAll(msg Message) error {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll closes every registered connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for id, conn := range h.connections {
		conns = append(conns, conn)
		delete(h.connections, id)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// ConnectionOptions tunes buffering and liveness for a Connection.
type ConnectionOptions struct {
	SendBuffer  int
	ReadTimeout time.Duration
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn        *websocket.Conn
	sendCh      chan Message
	readTimeout time.Duration
	mu          sync.Mutex
	closed      bool
	logger      zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, opts ConnectionOptions, logger zerolog.Logger) *Connection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	return &Connection{
		conn:        conn,
		sendCh:      make(chan Message, opts.SendBuffer),
		readTimeout: opts.ReadTimeout,
		logger:      logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	_ = c.conn.Close()
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// WritePump sends queued messages and keeps the peer alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(c.readTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump decodes incoming frames and hands them to handler. Frames that are
// not a valid envelope go to onInvalid and the connection stays open. It
// returns when the peer goes away, closing the connection.
func (c *Connection) ReadPump(handler func(Message) error, onInvalid func(error)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			onInvalid(err)
			continue
		}
		if msg.Type == "" {
			onInvalid(ErrEmptyMessageType)
			continue
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Str("type", msg.Type).Msg("message handler error")
		}
	}
}

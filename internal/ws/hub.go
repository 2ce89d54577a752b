// Package ws keeps the set of live WebSocket connections and fans out
// issue events to them.
package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"issueInsightsTracker/internal/metrics"
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	writeWait = 10 * time.Second
	// eventBuffer bounds the events waiting for delivery.
	eventBuffer = 256
)

// ErrEventQueueFull is returned when an event is dropped because delivery
// has fallen eventBuffer events behind.
var ErrEventQueueFull = errors.New("websocket event queue full")

// Issue event types.
const (
	EventIssueCreated = "issue_created"
	EventIssueUpdated = "issue_updated"
	EventIssueDeleted = "issue_deleted"
)

// Event is the envelope sent to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn   Conn
	userID *int64
	// gorilla connections support one concurrent writer
	mu sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub is the connection registry. The zero value is not usable; call NewHub.
// Issue events are delivered by a goroutine the hub owns until Close.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[Conn]*client
	byUser  map[int64]map[*client]struct{}
	closed  bool

	events   chan []byte
	quit     chan struct{}
	quitOnce sync.Once
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:     log,
		clients: make(map[Conn]*client),
		byUser:  make(map[int64]map[*client]struct{}),
		events:  make(chan []byte, eventBuffer),
		quit:    make(chan struct{}),
	}
	go h.dispatch()
	return h
}

func (h *Hub) dispatch() {
	for {
		select {
		case msg := <-h.events:
			h.Broadcast(msg)
		case <-h.quit:
			return
		}
	}
}

// Connect registers conn, tagged with userID when non-nil. Connecting the
// same conn twice is a no-op. After Close, conn is closed immediately.
func (h *Hub) Connect(conn Conn, userID *int64) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if _, ok := h.clients[conn]; ok {
		h.mu.Unlock()
		return
	}
	c := &client{conn: conn}
	if userID != nil {
		id := *userID
		c.userID = &id
		set := h.byUser[id]
		if set == nil {
			set = make(map[*client]struct{})
			h.byUser[id] = set
		}
		set[c] = struct{}{}
	}
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	h.log.Info("websocket connected", zap.Int("connections", n))
}

// Disconnect removes conn from every set it belongs to. It does not close conn.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	removed := h.removeLocked(conn)
	n := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Set(float64(n))
		h.log.Info("websocket disconnected", zap.Int("connections", n))
	}
}

func (h *Hub) removeLocked(conn Conn) bool {
	c, ok := h.clients[conn]
	if !ok {
		return false
	}
	delete(h.clients, conn)
	if c.userID != nil {
		if set := h.byUser[*c.userID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byUser, *c.userID)
			}
		}
	}
	return true
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// UserCount returns the number of connections tagged with userID.
func (h *Hub) UserCount(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser[userID])
}

// Broadcast sends msg to every connection. Connections that fail are
// dropped and closed; the remaining ones still receive the message.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	h.send(targets, msg)
}

// SendToUser sends msg to every connection tagged with userID.
func (h *Hub) SendToUser(userID int64, msg []byte) {
	h.mu.Lock()
	set := h.byUser[userID]
	targets := make([]*client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	h.send(targets, msg)
}

// BroadcastIssueEvent queues {"type": eventType, "data": data} for every
// connection and returns without waiting for delivery. Events are delivered
// in the order they were queued.
func (h *Hub) BroadcastIssueEvent(eventType string, data any) error {
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	select {
	case <-h.quit:
		return nil
	default:
	}
	select {
	case h.events <- b:
		return nil
	default:
		metrics.WSMessages.WithLabelValues("dropped").Inc()
		return ErrEventQueueFull
	}
}

// send writes msg to every target concurrently and waits for all writes.
func (h *Hub) send(targets []*client, msg []byte) {
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.write(websocket.TextMessage, msg); err != nil {
				metrics.WSMessages.WithLabelValues("error").Inc()
				h.log.Warn("websocket send failed, dropping connection", zap.Error(err))
				h.Disconnect(c.conn)
				_ = c.conn.Close()
				return
			}
			metrics.WSMessages.WithLabelValues("ok").Inc()
		}(c)
	}
	wg.Wait()
}

// Close stops event delivery, closes every registered connection and
// refuses new ones.
func (h *Hub) Close() error {
	h.quitOnce.Do(func() { close(h.quit) })
	h.mu.Lock()
	h.closed = true
	conns := make([]Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[Conn]*client)
	h.byUser = make(map[int64]map[*client]struct{})
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	var result *multierror.Error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Package realtime is the in-process room registry that fans chat events out
// to connected sockets.
package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
)

const defaultOutboxSize = 64

var (
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrHubClosed           = errors.New("hub closed")
)

// Emitter is a connected client the hub can push events to.
type Emitter interface {
	ID() string
	Emit(event string, payload any) error
	Close() error
}

// Relay forwards room events to other server instances.
type Relay interface {
	Publish(room, event string, payload any) error
}

type outbound struct {
	event   string
	payload any
}

type member struct {
	conn   Emitter
	rooms  map[string]struct{}
	outbox chan outbound
}

// Hub tracks which connections are joined to which rooms. Every registered
// connection gets a buffered outbox drained by its own goroutine, so a slow
// client never blocks Broadcast; when the outbox is full the event is dropped.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]*member
	rooms      map[string]map[string]*member
	relay      Relay
	outboxSize int
	closed     bool
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

// NewHub creates an empty hub. outboxSize <= 0 uses the default.
func NewHub(logger zerolog.Logger, outboxSize int) *Hub {
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	return &Hub{
		conns:      make(map[string]*member),
		rooms:      make(map[string]map[string]*member),
		outboxSize: outboxSize,
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// SetRelay enables cross-instance fan-out. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Register adds a connection and starts its write pump.
func (h *Hub) Register(conn Emitter) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.conns[conn.ID()]; ok {
		return ErrDuplicateConnection
	}

	m := &member{
		conn:   conn,
		rooms:  make(map[string]struct{}),
		outbox: make(chan outbound, h.outboxSize),
	}
	h.conns[conn.ID()] = m
	metrics.ChatConnections.Inc()

	h.wg.Add(1)
	go h.writePump(m)
	return nil
}

func (h *Hub) writePump(m *member) {
	defer h.wg.Done()
	for ev := range m.outbox {
		if err := m.conn.Emit(ev.event, ev.payload); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", m.conn.ID()).Str("event", ev.event).Msg("emit failed")
		}
	}
}

// Join subscribes a connection to a room. Joining a room twice is a no-op.
func (h *Hub) Join(connID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*member)
		h.rooms[room] = members
	}
	members[connID] = m
	m.rooms[room] = struct{}{}
	metrics.ChatRoomsActive.Set(float64(len(h.rooms)))
	return nil
}

// Broadcast queues an event for every connection joined to room except
// exclude, then hands it to the relay if one is set. It returns the number
// of local connections the event was queued for.
func (h *Hub) Broadcast(room, event string, payload any, exclude string) int {
	n := h.deliver(room, event, payload, exclude)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Publish(room, event, payload); err != nil {
			h.logger.Warn().Err(err).Str("room", room).Msg("relay publish failed")
		}
	}
	return n
}

// DeliverLocal queues an event for local room members only. The relay calls
// it for events that originated on another instance.
func (h *Hub) DeliverLocal(room, event string, payload any) int {
	return h.deliver(room, event, payload, "")
}

func (h *Hub) deliver(room, event string, payload any, exclude string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, m := range h.rooms[room] {
		if id == exclude {
			continue
		}
		select {
		case m.outbox <- outbound{event: event, payload: payload}:
			delivered++
		default:
			metrics.BroadcastDropped.Inc()
			h.logger.Warn().Str("conn_id", id).Str("room", room).Msg("outbox full, dropping event")
		}
	}
	metrics.BroadcastDeliveries.Add(float64(delivered))
	return delivered
}

// Leave removes a connection from every room and stops its write pump.
// Unknown connections are ignored.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[connID]
	if !ok {
		return
	}
	h.removeLocked(connID, m)
	metrics.ChatRoomsActive.Set(float64(len(h.rooms)))
}

func (h *Hub) removeLocked(connID string, m *member) {
	for room := range m.rooms {
		members := h.rooms[room]
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.conns, connID)
	close(m.outbox)
	metrics.ChatConnections.Dec()
}

// Rooms returns the rooms a connection is joined to, sorted.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Members returns the connection ids joined to room, sorted.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close drops every connection, waits for the write pumps to drain and
// closes the underlying transports. Register fails afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]Emitter, 0, len(h.conns))
	for id, m := range h.conns {
		conns = append(conns, m.conn)
		h.removeLocked(id, m)
	}
	metrics.ChatRoomsActive.Set(0)
	h.mu.Unlock()

	h.wg.Wait()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", c.ID()).Msg("close connection")
		}
	}
	h.logger.Info().Int("connections", len(conns)).Msg("hub closed")
}

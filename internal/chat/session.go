package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/realtime"
)

// Broadcaster is the room registry the endpoint drives.
type Broadcaster interface {
	Register(conn realtime.Emitter) error
	Join(connID, room string) error
	Broadcast(room, event string, payload any, exclude string) int
	Leave(connID string)
	Rooms(connID string) []string
	Members(room string) []string
}

// MessageAppender is the write side of the message store.
type MessageAppender interface {
	Append(ctx context.Context, roomID, senderID, recipientID, text string) (*models.Message, error)
}

// Options tunes the endpoint. The zero value is the default behavior:
// broadcast first, persist independently, any connection may join any room.
type Options struct {
	// PersistFirst appends before broadcasting and only broadcasts saved
	// messages. The sender gets an Ack either way.
	PersistFirst bool
	// StrictRooms limits joins and sends to the two users named in the room
	// id and requires senderId to be the connection's user.
	StrictRooms bool
	// SendRate caps send_message events per second per connection. Zero
	// disables throttling.
	SendRate  rate.Limit
	SendBurst int
}

type session struct {
	userID  string
	limiter *rate.Limiter
}

// Endpoint handles the socket events of connected chat clients.
type Endpoint struct {
	hub    Broadcaster
	store  MessageAppender
	opts   Options
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewEndpoint(hub Broadcaster, store MessageAppender, opts Options, logger zerolog.Logger) *Endpoint {
	if opts.SendRate > 0 && opts.SendBurst <= 0 {
		opts.SendBurst = 1
	}
	return &Endpoint{
		hub:      hub,
		store:    store,
		opts:     opts,
		logger:   logger.With().Str("component", "chat").Logger(),
		sessions: make(map[string]*session),
	}
}

// OnConnect registers a new connection for userID.
func (e *Endpoint) OnConnect(conn realtime.Emitter, userID string) error {
	if err := e.hub.Register(conn); err != nil {
		return err
	}

	s := &session{userID: userID}
	if e.opts.SendRate > 0 {
		s.limiter = rate.NewLimiter(e.opts.SendRate, e.opts.SendBurst)
	}

	e.mu.Lock()
	e.sessions[conn.ID()] = s
	e.mu.Unlock()

	e.logger.Debug().Str("conn_id", conn.ID()).Str("user_id", userID).Msg("connected")
	return nil
}

func (e *Endpoint) session(connID string) (*session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[connID]
	return s, ok
}

// OnJoinRoom subscribes the connection to roomID.
func (e *Endpoint) OnJoinRoom(ctx context.Context, connID, roomID string) error {
	s, ok := e.session(connID)
	if !ok {
		return apperr.Unauthorized("unknown connection")
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		metrics.RoomJoins.WithLabelValues("invalid").Inc()
		return apperr.Validation("room id is required")
	}
	if e.opts.StrictRooms && !IsParticipant(roomID, s.userID) {
		metrics.RoomJoins.WithLabelValues("forbidden").Inc()
		e.logger.Warn().Str("conn_id", connID).Str("user_id", s.userID).Str("room", roomID).Msg("join rejected")
		return apperr.Forbidden("not a participant of this room")
	}

	if err := e.hub.Join(connID, roomID); err != nil {
		return err
	}
	metrics.RoomJoins.WithLabelValues("joined").Inc()
	e.logger.Debug().
		Str("conn_id", connID).
		Str("room", roomID).
		Int("members", len(e.hub.Members(roomID))).
		Msg("joined room")
	return nil
}

// OnSendMessage broadcasts a message to the room and stores it.
//
// By default the broadcast happens first and the append runs after it,
// independently: a storage failure is only logged, and a payload without
// senderId or recipientId is broadcast but never stored. With PersistFirst
// the message is stored first and only broadcast once saved.
func (e *Endpoint) OnSendMessage(ctx context.Context, connID string, p SendPayload) Ack {
	s, ok := e.session(connID)
	if !ok {
		return e.reject(apperr.Unauthorized("unknown connection"))
	}
	if s.limiter != nil && !s.limiter.Allow() {
		metrics.MessagesSent.WithLabelValues("rate_limited").Inc()
		return Ack{Error: "rate limit exceeded"}
	}

	p.RoomID = strings.TrimSpace(p.RoomID)
	switch {
	case p.RoomID == "":
		return e.reject(apperr.Validation("room id is required"))
	case strings.TrimSpace(p.Text) == "":
		return e.reject(apperr.Validation("text must not be empty"))
	}

	if e.opts.StrictRooms {
		if !IsParticipant(p.RoomID, s.userID) {
			return e.reject(apperr.Forbidden("not a participant of this room"))
		}
		if p.SenderID != s.userID {
			return e.reject(apperr.Forbidden("sender does not match the connected user"))
		}
	}

	if e.opts.PersistFirst {
		return e.persistThenBroadcast(ctx, connID, p)
	}
	return e.broadcastThenPersist(ctx, connID, p)
}

func (e *Endpoint) broadcastThenPersist(ctx context.Context, connID string, p SendPayload) Ack {
	delivered := e.hub.Broadcast(p.RoomID, EventReceiveMessage, newReceivePayload(p, nil), connID)

	log := e.logger.With().
		Str("conn_id", connID).
		Str("room", p.RoomID).
		Int("delivered", delivered).
		Logger()

	if p.SenderID == "" || p.RecipientID == "" {
		metrics.MessagesSent.WithLabelValues("broadcast_only").Inc()
		log.Warn().
			Bool("has_sender", p.SenderID != "").
			Bool("has_recipient", p.RecipientID != "").
			Msg("message broadcast without persistence")
		return Ack{OK: true}
	}

	msg, err := e.store.Append(ctx, p.RoomID, p.SenderID, p.RecipientID, p.Text)
	if err != nil {
		metrics.MessagesSent.WithLabelValues("persist_failed").Inc()
		log.Error().Err(err).Str("sender_id", p.SenderID).Msg("failed to persist message")
		return Ack{OK: true}
	}

	metrics.MessagesSent.WithLabelValues("persisted").Inc()
	log.Debug().Str("message_id", msg.ID).Msg("message persisted")
	return Ack{OK: true, Message: msg}
}

func (e *Endpoint) persistThenBroadcast(ctx context.Context, connID string, p SendPayload) Ack {
	if p.SenderID == "" || p.RecipientID == "" {
		return e.reject(apperr.Validation("senderId and recipientId are required"))
	}

	msg, err := e.store.Append(ctx, p.RoomID, p.SenderID, p.RecipientID, p.Text)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPersistence {
			metrics.MessagesSent.WithLabelValues("persist_failed").Inc()
			e.logger.Error().Err(err).Str("conn_id", connID).Str("room", p.RoomID).Msg("failed to persist message")
			return Ack{Error: clientMessage(err)}
		}
		return e.reject(err)
	}
	metrics.MessagesSent.WithLabelValues("persisted").Inc()

	delivered := e.hub.Broadcast(p.RoomID, EventReceiveMessage, newReceivePayload(p, msg), connID)
	e.logger.Debug().
		Str("conn_id", connID).
		Str("room", p.RoomID).
		Str("message_id", msg.ID).
		Int("delivered", delivered).
		Msg("message persisted and broadcast")
	return Ack{OK: true, Message: msg}
}

func (e *Endpoint) reject(err error) Ack {
	metrics.MessagesSent.WithLabelValues("rejected").Inc()
	return Ack{Error: clientMessage(err)}
}

// OnDisconnect drops the connection from every room.
func (e *Endpoint) OnDisconnect(connID string) {
	rooms := e.hub.Rooms(connID)
	e.hub.Leave(connID)

	e.mu.Lock()
	delete(e.sessions, connID)
	e.mu.Unlock()

	e.logger.Debug().Str("conn_id", connID).Strs("rooms", rooms).Msg("disconnected")
}

// clientMessage returns the part of err that is safe to show a client.
func clientMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

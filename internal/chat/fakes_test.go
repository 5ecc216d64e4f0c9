package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// memStore is an in-memory message store with a controllable clock.
type memStore struct {
	mu      sync.Mutex
	msgs    []models.Message
	seq     int64
	now     func() time.Time
	failErr error
}

func newMemStore() *memStore {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick int64
	return &memStore{now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}}
}

func (s *memStore) Append(ctx context.Context, roomID, senderID, recipientID, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" || senderID == "" || recipientID == "" {
		return nil, apperr.Validation("invalid message")
	}
	if s.failErr != nil {
		return nil, apperr.Persistence(s.failErr)
	}
	s.seq++
	msg := models.Message{
		ID:          fmt.Sprintf("m%d", s.seq),
		Seq:         s.seq,
		RoomID:      roomID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		SentAt:      s.now(),
	}
	s.msgs = append(s.msgs, msg)
	return &msg, nil
}

func (s *memStore) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for _, m := range s.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, apperr.Persistence(s.failErr)
	}
	out := []models.Message{}
	for _, m := range s.msgs {
		if m.SenderID == userID || m.RecipientID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// mapDirectory resolves identities from a fixed map.
type mapDirectory struct {
	users map[string]*models.Identity
	err   error
	calls int
}

func (d *mapDirectory) Resolve(ctx context.Context, userID string) (*models.Identity, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if id, ok := d.users[userID]; ok {
		return id, nil
	}
	return nil, apperr.NotFound("user not found")
}

var errDiskFull = errors.New("disk full")

// fakeConn records emitted events.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []emitted
}

type emitted struct {
	name    string
	payload any
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(name string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{name: name, payload: payload})
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) received() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

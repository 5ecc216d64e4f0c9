package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// MessageStore is the append-only chat log. Implementations are the only
// writers of messages.
type MessageStore interface {
	// Append validates and persists one message, assigning its ID, Seq and
	// SentAt. It returns an apperr validation error when text or either
	// identity is missing, and an apperr persistence error on storage
	// failure.
	Append(ctx context.Context, roomID, senderID, recipientID, text string) (*models.Message, error)

	// ListByRoom returns the room history in ascending (SentAt, Seq) order.
	// A room without history yields an empty slice.
	ListByRoom(ctx context.Context, roomID string) ([]models.Message, error)

	// ListByParticipant returns every message where userID is the sender or
	// the recipient, in ascending (SentAt, Seq) order.
	ListByParticipant(ctx context.Context, userID string) ([]models.Message, error)

	Ping(ctx context.Context) error
}

// UserStore backs the identity directory and account endpoints.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, role models.Role, profileImage string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// DataStore defines the interface for persistent storage of users and messages.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	UserStore
	MessageStore
}

// Clock returns the current time. Stores assign SentAt from it so tests can
// force timestamp ties.
type Clock func() time.Time

// newMessage validates the append arguments and builds the message that a
// backend will persist. Seq is filled in by the backend.
func newMessage(now Clock, roomID, senderID, recipientID, text string) (*models.Message, error) {
	switch {
	case strings.TrimSpace(roomID) == "":
		return nil, apperr.Validation("room id is required")
	case strings.TrimSpace(senderID) == "":
		return nil, apperr.Validation("sender id is required")
	case strings.TrimSpace(recipientID) == "":
		return nil, apperr.Validation("recipient id is required")
	case strings.TrimSpace(text) == "":
		return nil, apperr.Validation("text must not be empty")
	}

	return &models.Message{
		ID:          ulid.Make().String(),
		RoomID:      roomID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		SentAt:      now().UTC(),
	}, nil
}

// sortMessages orders messages by (SentAt, Seq) ascending.
func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Before(&msgs[j])
	})
}

func defaultClock() time.Time {
	return time.Now()
}

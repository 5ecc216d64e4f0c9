package chat

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// MessageReader is the read side of the message store.
type MessageReader interface {
	ListByRoom(ctx context.Context, roomID string) ([]models.Message, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.Message, error)
}

// Index builds conversation lists from persisted messages. Nothing is cached:
// every call reads the store, so only durable messages are ever shown.
type Index struct {
	messages MessageReader
	dir      Directory
	logger   zerolog.Logger
}

func NewIndex(messages MessageReader, dir Directory, logger zerolog.Logger) *Index {
	return &Index{messages: messages, dir: dir, logger: logger}
}

// History returns a room's messages, oldest first.
func (ix *Index) History(ctx context.Context, roomID string) ([]models.Message, error) {
	return ix.messages.ListByRoom(ctx, roomID)
}

// ListForUser returns one conversation per room userID has sent or received
// a message in, most recently active first. A counterpart that cannot be
// resolved gets a placeholder identity.
func (ix *Index) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	start := time.Now()
	defer func() {
		metrics.ConversationBuildDuration.Observe(time.Since(start).Seconds())
	}()

	msgs, err := ix.messages.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.Message)
	for _, m := range msgs {
		if cur, ok := latest[m.RoomID]; !ok || cur.Before(&m) {
			latest[m.RoomID] = m
		}
	}

	convos := make([]models.Conversation, 0, len(latest))
	resolved := make(map[string]*models.Identity)
	for roomID, last := range latest {
		other := last.Counterpart(userID)
		identity, ok := resolved[other]
		if !ok {
			identity = ix.resolve(ctx, other)
			resolved[other] = identity
		}
		convos = append(convos, models.Conversation{
			RoomID:      roomID,
			LastMessage: last,
			OtherUser:   identity,
		})
	}

	sort.Slice(convos, func(i, j int) bool {
		return convos[j].LastMessage.Before(&convos[i].LastMessage)
	})
	return convos, nil
}

func (ix *Index) resolve(ctx context.Context, userID string) *models.Identity {
	identity, err := ix.dir.Resolve(ctx, userID)
	if err == nil {
		return identity
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		ix.logger.Warn().Err(err).Str("user_id", userID).Msg("identity lookup failed")
	}
	return Placeholder(userID)
}

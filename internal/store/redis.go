package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

const (
	messageSeqKey = "chat:messages:seq"
	identityTTL   = 5 * time.Minute
)

// RedisStore keeps chat history in sorted sets and caches identities.
// It is also the backing client for HTTP rate limiting.
type RedisStore struct {
	client *redis.Client
	clock  Clock
	logger zerolog.Logger
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, clock: defaultClock, logger: zerolog.Nop()}
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// SetClock overrides the time source used for SentAt.
func (s *RedisStore) SetClock(c Clock) {
	s.clock = c
}

// SetLogger sets the logger used for entries that cannot be decoded.
func (s *RedisStore) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "redis_store").Logger()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomMessagesKey returns the key for a room's message sorted set.
func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:messages", roomID)
}

// userRoomsKey returns the key for the set of rooms a user has messages in.
func userRoomsKey(userID string) string {
	return fmt.Sprintf("chat:user:%s:rooms", userID)
}

// identityKey returns the key for a cached identity.
func identityKey(userID string) string {
	return fmt.Sprintf("chat:identity:%s", userID)
}

// Append persists a chat message. Seq comes from a global counter so it
// stays strictly increasing across rooms.
func (s *RedisStore) Append(ctx context.Context, roomID, senderID, recipientID, text string) (*models.Message, error) {
	msg, err := newMessage(s.clock, roomID, senderID, recipientID, text)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("redis", "append").Observe(time.Since(start).Seconds())
	}()

	seq, err := s.client.Incr(ctx, messageSeqKey).Result()
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	msg.Seq = seq

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, roomMessagesKey(roomID), redis.Z{
		Score:  float64(msg.SentAt.UnixMilli()),
		Member: string(data),
	})
	pipe.SAdd(ctx, userRoomsKey(senderID), roomID)
	pipe.SAdd(ctx, userRoomsKey(recipientID), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperr.Persistence(err)
	}

	return msg, nil
}

// ListByRoom returns a room's history, oldest first.
func (s *RedisStore) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("redis", "list_by_room").Observe(time.Since(start).Seconds())
	}()

	messages, err := s.roomMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	sortMessages(messages)
	return messages, nil
}

// ListByParticipant returns every message sent or received by userID.
func (s *RedisStore) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("redis", "list_by_participant").Observe(time.Since(start).Seconds())
	}()

	rooms, err := s.client.SMembers(ctx, userRoomsKey(userID)).Result()
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	messages := []models.Message{}
	for _, roomID := range rooms {
		roomMsgs, err := s.roomMessages(ctx, roomID)
		if err != nil {
			return nil, err
		}
		for _, msg := range roomMsgs {
			if msg.SenderID == userID || msg.RecipientID == userID {
				messages = append(messages, msg)
			}
		}
	}
	sortMessages(messages)
	return messages, nil
}

// roomMessages decodes every member of a room's sorted set. Score only
// carries milliseconds, so callers re-sort on (SentAt, Seq).
func (s *RedisStore) roomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	results, err := s.client.ZRange(ctx, roomMessagesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			s.logger.Warn().Err(err).Str("room", roomID).Int("bytes", len(data)).Msg("skipping undecodable message")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// GetIdentity returns a cached identity, or (nil, nil) on a cache miss.
func (s *RedisStore) GetIdentity(ctx context.Context, userID string) (*models.Identity, error) {
	data, err := s.client.Get(ctx, identityKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var identity models.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// CacheIdentity stores a resolved identity for a short time.
func (s *RedisStore) CacheIdentity(ctx context.Context, identity *models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, identityKey(identity.ID), data, identityTTL).Err()
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, clock: defaultClock}, nil
}

// SetClock overrides the time source used for SentAt.
func (s *PostgresStore) SetClock(c Clock) {
	s.clock = c
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = `id, name, email, password_hash, role, profile_image, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.ProfileImage,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return user, nil
}

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// CreateUser creates a new user record. A duplicate email is a conflict.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, passwordHash string, role models.Role, profileImage string) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, profile_image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		name, email, passwordHash, string(role), profileImage))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperr.Conflict("email already registered", err)
		}
		return nil, apperr.Persistence(err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID. A missing user is (nil, nil).
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence(err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email. A missing user is (nil, nil).
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence(err)
	}
	return user, nil
}

// Append persists a chat message.
func (s *PostgresStore) Append(ctx context.Context, roomID, senderID, recipientID, text string) (*models.Message, error) {
	msg, err := newMessage(s.clock, roomID, senderID, recipientID, text)
	if err != nil {
		return nil, err
	}
	// TIMESTAMPTZ keeps microseconds; return what will be read back.
	msg.SentAt = msg.SentAt.Truncate(time.Microsecond)

	start := time.Now()
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, room_id, sender_id, recipient_id, text, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, msg.ID, msg.RoomID, msg.SenderID, msg.RecipientID, msg.Text, msg.SentAt).Scan(&msg.Seq)
	metrics.StoreLatency.WithLabelValues("postgres", "append").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return msg, nil
}

// ListByRoom returns a room's history, oldest first.
func (s *PostgresStore) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("postgres", "list_by_room").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, room_id, sender_id, recipient_id, text, sent_at, read
		FROM messages
		WHERE room_id = $1
		ORDER BY sent_at ASC, seq ASC
	`, roomID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return collectMessages(rows)
}

// ListByParticipant returns every message sent or received by userID.
func (s *PostgresStore) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("postgres", "list_by_participant").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, room_id, sender_id, recipient_id, text, sent_at, read
		FROM messages
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY sent_at ASC, seq ASC
	`, userID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.RecipientID,
			&msg.Text,
			&msg.SentAt,
			&msg.Read,
		)
		if err != nil {
			return nil, apperr.Persistence(err)
		}
		msg.SentAt = msg.SentAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err)
	}
	return messages, nil
}

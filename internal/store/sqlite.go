package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db    *sql.DB
	clock Clock
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/agrolink.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/agrolink.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer keeps seq assignment and inserts serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db, clock: defaultClock}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
// sent_at is stored as unix nanoseconds so ordering stays exact.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'buyer',
		profile_image TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		room_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		text TEXT NOT NULL CHECK (text <> ''),
		sent_at INTEGER NOT NULL,
		read INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages(room_id, sent_at, seq);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SetClock overrides the time source used for SentAt.
func (s *SQLiteStore) SetClock(c Clock) {
	s.clock = c
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record. A duplicate email is a conflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string, role models.Role, profileImage string) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, profile_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), name, email, passwordHash, string(role), profileImage, now, now)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, apperr.Conflict("email already registered", err)
		}
		return nil, apperr.Persistence(err)
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	var idStr, role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, profile_image, created_at, updated_at
		FROM users WHERE `+where+` = ?
	`, arg).Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.ProfileImage,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence(err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	user.ID = id
	user.Role = models.Role(role)
	return user, nil
}

// GetUserByID retrieves a user by ID. A missing user is (nil, nil).
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, "id", id.String())
}

// GetUserByEmail retrieves a user by email. A missing user is (nil, nil).
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// Append persists a chat message.
func (s *SQLiteStore) Append(ctx context.Context, roomID, senderID, recipientID, text string) (*models.Message, error) {
	msg, err := newMessage(s.clock, roomID, senderID, recipientID, text)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, recipient_id, text, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.RecipientID, msg.Text, msg.SentAt.UnixNano())
	metrics.StoreLatency.WithLabelValues("sqlite", "append").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	msg.Seq = seq
	return msg, nil
}

// ListByRoom returns a room's history, oldest first.
func (s *SQLiteStore) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("sqlite", "list_by_room").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, room_id, sender_id, recipient_id, text, sent_at, read
		FROM messages
		WHERE room_id = ?
		ORDER BY sent_at ASC, seq ASC
	`, roomID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return scanSQLiteMessages(rows)
}

// ListByParticipant returns every message sent or received by userID.
func (s *SQLiteStore) ListByParticipant(ctx context.Context, userID string) ([]models.Message, error) {
	start := time.Now()
	defer func() {
		metrics.StoreLatency.WithLabelValues("sqlite", "list_by_participant").Observe(time.Since(start).Seconds())
	}()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, room_id, sender_id, recipient_id, text, sent_at, read
		FROM messages
		WHERE sender_id = ? OR recipient_id = ?
		ORDER BY sent_at ASC, seq ASC
	`, userID, userID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return scanSQLiteMessages(rows)
}

func scanSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var sentAt int64
		var read int
		err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.RecipientID,
			&msg.Text,
			&sentAt,
			&read,
		)
		if err != nil {
			return nil, apperr.Persistence(err)
		}
		msg.SentAt = time.Unix(0, sentAt).UTC()
		msg.Read = read != 0
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence(err)
	}
	return messages, nil
}

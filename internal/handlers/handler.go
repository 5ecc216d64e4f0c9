package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Conversations serves the chat read endpoints.
type Conversations interface {
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	History(ctx context.Context, roomID string) ([]models.Message, error)
}

// Deps are the handler dependencies. Checks maps a health check name to
// the dependency it pings.
type Deps struct {
	Users         store.UserStore
	Conversations Conversations
	Tokens        *auth.Issuer
	Checks        map[string]Pinger
	StrictRooms   bool
	Logger        zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	users       store.UserStore
	convos      Conversations
	tokens      *auth.Issuer
	checks      map[string]Pinger
	strictRooms bool
	logger      zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		users:       d.Users,
		convos:      d.Conversations,
		tokens:      d.Tokens,
		checks:      d.Checks,
		strictRooms: d.StrictRooms,
		logger:      d.Logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps err to a status code and a client-safe message. Errors without
// a kind are logged and reported as internal errors.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ae.Kind == apperr.KindPersistence {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("storage error")
	}
	h.Error(w, ae.HTTPStatus(), ae.Message)
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Limit to 100 characters
	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

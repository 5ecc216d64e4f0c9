package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// racedUsers behaves like a store where another request inserted the same
// email between the lookup and the insert.
type racedUsers struct {
	createErr error
}

func (u *racedUsers) CreateUser(ctx context.Context, name, email, passwordHash string, role models.Role, profileImage string) (*models.User, error) {
	return nil, u.createErr
}

func (u *racedUsers) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, nil
}

func (u *racedUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func register(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	return rec
}

func TestRegisterStoreErrors(t *testing.T) {
	body := `{"name":"Ama","email":"ama@example.com","password":"harvest-2024"}`

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "lost insert race",
			err:      apperr.Conflict("email already registered", errors.New("UNIQUE constraint failed: users.email")),
			wantCode: http.StatusConflict,
			wantBody: "email already registered",
		},
		{
			name:     "storage down",
			err:      apperr.Persistence(errors.New("connection refused")),
			wantCode: http.StatusInternalServerError,
			wantBody: "storage failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{
				Users:  &racedUsers{createErr: tt.err},
				Tokens: auth.NewIssuer("test-secret"),
				Logger: zerolog.Nop(),
			})

			rec := register(h, body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "UNIQUE")
		})
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

const (
	minPasswordLength = 8
	// bcrypt only hashes the first 72 bytes.
	maxPasswordLength = 72
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	ProfileImage string `json:"profileImage"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	if len(req.Password) < minPasswordLength {
		h.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if len(req.Password) > maxPasswordLength {
		h.Error(w, http.StatusBadRequest, "password must be at most 72 bytes")
		return
	}

	role := models.RoleBuyer
	if req.Role != "" {
		role = models.Role(strings.ToLower(req.Role))
	}
	// admin accounts are not self-service
	if !role.Valid() || role == models.RoleAdmin {
		h.Error(w, http.StatusBadRequest, "role must be farmer, buyer or expert")
		return
	}

	existing, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	// a concurrent registration can still win the unique index; the store
	// reports that as a conflict
	user, err := h.users.CreateUser(r.Context(), name, email, hash, role, strings.TrimSpace(req.ProfileImage))
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	metrics.UsersRegistered.WithLabelValues(string(user.Role)).Inc()

	token, err := h.tokens.Generate(user.ID.String())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.logger.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("user registered")
	h.JSON(w, http.StatusCreated, AuthResponse{Token: token, User: newUserResponse(user)})
}

// Login exchanges email and password for a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.logger.Warn().Str("email", email).Msg("login failed")
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user.ID.String())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, AuthResponse{Token: token, User: newUserResponse(user)})
}

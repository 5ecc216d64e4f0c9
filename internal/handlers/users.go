package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// UserResponse is a public user profile.
type UserResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         models.Role `json:"role"`
	ProfileImage string      `json:"profileImage,omitempty"`
	JoinedAt     string      `json:"joinedAt"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID.String(),
		Name:         u.Name,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
		JoinedAt:     u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// GetUser handles public profile lookup.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	// Validate UUID format
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, newUserResponse(user))
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a marketplace participant type.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered marketplace account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity returns the public view of the user.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:           u.ID.String(),
		Name:         u.Name,
		ProfileImage: u.ProfileImage,
		Role:         u.Role,
	}
}

// Identity is the display information the chat UI needs for a counterpart.
type Identity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage,omitempty"`
	Role         Role   `json:"role,omitempty"`
	Placeholder  bool   `json:"placeholder,omitempty"` // counterpart could not be resolved
}

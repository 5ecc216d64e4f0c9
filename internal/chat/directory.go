package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

// PlaceholderName is shown for a counterpart whose account cannot be resolved.
const PlaceholderName = "Deleted user"

// Directory resolves a user id to display information. Resolve returns an
// apperr not-found error for unknown users.
type Directory interface {
	Resolve(ctx context.Context, userID string) (*models.Identity, error)
}

// Placeholder is the identity used when a counterpart cannot be resolved.
func Placeholder(userID string) *models.Identity {
	return &models.Identity{ID: userID, Name: PlaceholderName, Placeholder: true}
}

// UserLookup is the slice of the user store the directory needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// StoreDirectory resolves identities from the users table.
type StoreDirectory struct {
	users UserLookup
}

func NewStoreDirectory(users UserLookup) *StoreDirectory {
	return &StoreDirectory{users: users}
}

func (d *StoreDirectory) Resolve(ctx context.Context, userID string) (*models.Identity, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}

	user, err := d.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user.Identity(), nil
}

// IdentityCache stores resolved identities. RedisStore implements it.
type IdentityCache interface {
	GetIdentity(ctx context.Context, userID string) (*models.Identity, error)
	CacheIdentity(ctx context.Context, identity *models.Identity) error
}

// CachedDirectory serves identities from a cache in front of another
// Directory. Cache failures fall through to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	cache  IdentityCache
	logger zerolog.Logger
}

func NewCachedDirectory(next Directory, cache IdentityCache, logger zerolog.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache, logger: logger}
}

func (d *CachedDirectory) Resolve(ctx context.Context, userID string) (*models.Identity, error) {
	identity, err := d.cache.GetIdentity(ctx, userID)
	if err != nil {
		d.logger.Debug().Err(err).Str("user_id", userID).Msg("identity cache read failed")
	} else if identity != nil {
		return identity, nil
	}

	identity, err = d.next.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := d.cache.CacheIdentity(ctx, identity); err != nil {
		d.logger.Debug().Err(err).Str("user_id", userID).Msg("identity cache write failed")
	}
	return identity, nil
}

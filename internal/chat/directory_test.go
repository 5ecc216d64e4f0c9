package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/models"
)

type userMap map[uuid.UUID]*models.User

func (m userMap) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m[id], nil
}

type failingUsers struct{}

func (failingUsers) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, apperr.Persistence(errors.New("connection refused"))
}

func TestStoreDirectoryResolve(t *testing.T) {
	id := uuid.New()
	dir := NewStoreDirectory(userMap{id: {
		ID:           id,
		Name:         "Amina",
		Email:        "amina@example.com",
		Role:         models.RoleFarmer,
		ProfileImage: "https://img.example.com/amina.png",
	}})

	identity, err := dir.Resolve(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), identity.ID)
	assert.Equal(t, "Amina", identity.Name)
	assert.Equal(t, models.RoleFarmer, identity.Role)
	assert.False(t, identity.Placeholder)
}

func TestStoreDirectoryNotFound(t *testing.T) {
	dir := NewStoreDirectory(userMap{})

	_, err := dir.Resolve(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = dir.Resolve(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestStoreDirectoryPropagatesStoreErrors(t *testing.T) {
	dir := NewStoreDirectory(failingUsers{})
	_, err := dir.Resolve(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
}

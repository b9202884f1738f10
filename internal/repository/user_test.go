package repository

import (
	"context"
	"testing"

	"jammer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_DuplicateUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Username: "riffraff", Email: "riff@e.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, u))

	dup := &models.User{Username: "riffraff", Email: "other@e.com", Password: "x"}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, 400, models.StatusForError(err))
}

func TestUserRepository_GetByEmail_MissingReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.GetByEmail(ctx, "nobody@e.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserRepository_Search(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	users := []*models.User{
		{Username: "bassmaster", Email: "a@e.com", Password: "x", DisplayName: "Marcus Low", City: "Austin"},
		{Username: "drumlord", Email: "b@e.com", Password: "x", DisplayName: "Ana Beat", City: "Nashville"},
		{Username: "keysplease", Email: "c@e.com", Password: "x", DisplayName: "Bass Addict", City: "Denver"},
	}
	for _, u := range users {
		require.NoError(t, repo.Create(ctx, u))
	}

	// Matches username, display name, and city case-insensitively
	found, err := repo.Search(ctx, "BASS", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "bassmaster", found[0].Username)
	assert.Equal(t, "keysplease", found[1].Username)

	byCity, err := repo.Search(ctx, "nashville", 10)
	require.NoError(t, err)
	require.Len(t, byCity, 1)
	assert.Equal(t, "drumlord", byCity[0].Username)

	// SQL wildcards are stripped, so "%" degrades to an unfiltered listing
	// instead of matching everything via LIKE
	all, err := repo.Search(ctx, "%", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

package repository

import (
	"context"
	"testing"
	"time"

	"jammer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJamRepository_Membership(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJamRepository(db)
	ctx := context.Background()

	host := &models.User{Username: "host", Email: "host@e.com", Password: "x"}
	guest := &models.User{Username: "guest", Email: "guest@e.com", Password: "x"}
	db.Create(host)
	db.Create(guest)

	jam := &models.Jam{
		HostID:  host.ID,
		Title:   "Tuesday blues session",
		JamTime: time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, jam))
	require.NotZero(t, jam.ID)

	t.Run("CreateMember and GetMember", func(t *testing.T) {
		member := &models.JamMember{
			JamID:  jam.ID,
			UserID: guest.ID,
			Role:   models.JamMemberRoleAttendee,
			Status: models.JamMemberStatusPending,
		}
		require.NoError(t, repo.CreateMember(ctx, member))

		found, err := repo.GetMember(ctx, jam.ID, guest.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, models.JamMemberStatusPending, found.Status)
	})

	t.Run("duplicate join request conflicts", func(t *testing.T) {
		dup := &models.JamMember{
			JamID:  jam.ID,
			UserID: guest.ID,
			Status: models.JamMemberStatusPending,
		}
		err := repo.CreateMember(ctx, dup)
		require.Error(t, err)
		appErr, ok := err.(*models.AppError)
		require.True(t, ok)
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	t.Run("counts split pending and approved", func(t *testing.T) {
		counts, err := repo.CountMembers(ctx, jam.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), counts.Confirmed)
		assert.Equal(t, int64(1), counts.Pending)

		require.NoError(t, repo.UpdateMemberStatus(ctx, jam.ID, guest.ID, models.JamMemberStatusApproved))

		counts, err = repo.CountMembers(ctx, jam.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts.Confirmed)
		assert.Equal(t, int64(0), counts.Pending)
	})

	t.Run("UpdateMemberStatus on missing row is silent", func(t *testing.T) {
		require.NoError(t, repo.UpdateMemberStatus(ctx, jam.ID, 9999, models.JamMemberStatusApproved))

		member, err := repo.GetMember(ctx, jam.ID, 9999)
		require.NoError(t, err)
		assert.Nil(t, member, "zero-row update must not create a membership")
	})

	t.Run("ListJamsForMember", func(t *testing.T) {
		jams, err := repo.ListJamsForMember(ctx, guest.ID, models.JamMemberStatusApproved)
		require.NoError(t, err)
		require.Len(t, jams, 1)
		assert.Equal(t, jam.ID, jams[0].ID)
	})

	t.Run("DeleteMember", func(t *testing.T) {
		require.NoError(t, repo.DeleteMember(ctx, jam.ID, guest.ID))
		found, err := repo.GetMember(ctx, jam.ID, guest.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestJamRepository_ListUpcoming(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJamRepository(db)
	ctx := context.Background()

	host := &models.User{Username: "lister", Email: "lister@e.com", Password: "x"}
	db.Create(host)

	past := &models.Jam{HostID: host.ID, Title: "Last week", JamTime: time.Now().Add(-72 * time.Hour)}
	soon := &models.Jam{HostID: host.ID, Title: "Tonight", JamTime: time.Now().Add(4 * time.Hour)}
	later := &models.Jam{HostID: host.ID, Title: "Next month", JamTime: time.Now().Add(30 * 24 * time.Hour)}
	db.Create(past)
	db.Create(soon)
	db.Create(later)

	jams, err := repo.ListUpcoming(ctx, 200)
	require.NoError(t, err)
	require.Len(t, jams, 2)

	// Soonest first, past jams never surface
	assert.Equal(t, "Tonight", jams[0].Title)
	assert.Equal(t, "Next month", jams[1].Title)
}

// sqlite has no trig functions, so the in-database distance path must fail
// loudly there. The search service watches for exactly this failure mode and
// falls back to in-memory filtering.
func TestJamRepository_SearchByDistance_UnsupportedEngine(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJamRepository(db)
	ctx := context.Background()

	_, err := repo.SearchByDistance(ctx, 40.7, -74.0, 40, 40)
	assert.Error(t, err)
}

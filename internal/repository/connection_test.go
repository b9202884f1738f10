package repository

import (
	"context"
	"regexp"
	"testing"

	"jammer/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestConnectionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()

	u1 := &models.User{Username: "alice", Email: "alice@e.com", Password: "x"}
	u2 := &models.User{Username: "bob", Email: "bob@e.com", Password: "x"}
	u3 := &models.User{Username: "carol", Email: "carol@e.com", Password: "x"}
	db.Create(u1)
	db.Create(u2)
	db.Create(u3)

	t.Run("Create and GetBetweenUsers either order", func(t *testing.T) {
		edge := &models.Connection{
			RequesterID: u1.ID,
			ReceiverID:  u2.ID,
			Status:      models.ConnectionStatusPending,
		}
		err := repo.Create(ctx, edge)
		require.NoError(t, err)
		require.NotZero(t, edge.ID)

		found, err := repo.GetBetweenUsers(ctx, u1.ID, u2.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, edge.ID, found.ID)

		// Argument order must not matter
		reversed, err := repo.GetBetweenUsers(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		require.NotNil(t, reversed)
		assert.Equal(t, edge.ID, reversed.ID)
	})

	t.Run("GetBetweenUsers returns nil when no edge", func(t *testing.T) {
		found, err := repo.GetBetweenUsers(ctx, u1.ID, u3.ID)
		assert.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("AcceptPending flips the edge once", func(t *testing.T) {
		edge, err := repo.GetBetweenUsers(ctx, u1.ID, u2.ID)
		require.NoError(t, err)

		affected, err := repo.AcceptPending(ctx, edge.ID, u2.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		accepted, err := repo.GetByID(ctx, edge.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ConnectionStatusConnected, accepted.Status)
		assert.NotNil(t, accepted.ResolvedAt)

		// A second accept finds no pending row and changes nothing
		affected, err = repo.AcceptPending(ctx, edge.ID, u2.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), affected)
	})

	t.Run("AcceptPending ignores non-receiver", func(t *testing.T) {
		edge := &models.Connection{
			RequesterID: u1.ID,
			ReceiverID:  u3.ID,
			Status:      models.ConnectionStatusPending,
		}
		require.NoError(t, repo.Create(ctx, edge))

		// The requester cannot accept their own request
		affected, err := repo.AcceptPending(ctx, edge.ID, u1.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), affected)
	})

	t.Run("GetConnectedUsers", func(t *testing.T) {
		users, err := repo.GetConnectedUsers(ctx, u1.ID)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "bob", users[0].Username)

		users, err = repo.GetConnectedUsers(ctx, u2.ID)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Username)
	})

	t.Run("Incoming and sent requests", func(t *testing.T) {
		incoming, err := repo.GetIncomingRequests(ctx, u3.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, u1.ID, incoming[0].RequesterID)

		sent, err := repo.GetSentRequests(ctx, u1.ID)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, u3.ID, sent[0].ReceiverID)
	})

	t.Run("Duplicate edge is a conflict", func(t *testing.T) {
		dup := &models.Connection{
			RequesterID: u1.ID,
			ReceiverID:  u2.ID,
			Status:      models.ConnectionStatusPending,
		}
		err := repo.Create(ctx, dup)
		require.Error(t, err)
		appErr, ok := err.(*models.AppError)
		require.True(t, ok)
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	t.Run("Delete removes the edge", func(t *testing.T) {
		edge, err := repo.GetBetweenUsers(ctx, u1.ID, u3.ID)
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, edge.ID))

		found, err := repo.GetBetweenUsers(ctx, u1.ID, u3.ID)
		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// The accept guard must be a single conditional UPDATE, not read-then-write,
// so a concurrent accept or withdraw cannot slip between the check and the
// status change.
func TestConnectionRepository_AcceptPending_ConditionalUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "connections" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.AcceptPending(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

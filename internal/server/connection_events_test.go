package server

import (
	"context"
	"testing"

	"jammer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userLookupStub struct {
	users map[uint]*models.User
	seen  []uint
}

func (s *userLookupStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	s.seen = append(s.seen, id)
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, models.NewNotFoundError("User", id)
}
func (s *userLookupStub) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *userLookupStub) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *userLookupStub) Create(context.Context, *models.User) error { return nil }
func (s *userLookupStub) Update(context.Context, *models.User) error { return nil }
func (s *userLookupStub) Delete(context.Context, uint) error         { return nil }
func (s *userLookupStub) List(context.Context, int, int) ([]models.User, error) {
	return nil, nil
}
func (s *userLookupStub) Search(context.Context, string, int) ([]models.User, error) {
	return nil, nil
}

func TestPublishConnectionAcceptedNotifiesBothEndpoints(t *testing.T) {
	repo := &userLookupStub{users: map[uint]*models.User{
		1: {ID: 1, Username: "bassline"},
		2: {ID: 2, Username: "keysplease"},
	}}
	s := &Server{userRepo: repo}

	edge := &models.Connection{
		ID:          9,
		RequesterID: 1,
		ReceiverID:  2,
		Status:      models.ConnectionStatusConnected,
	}

	// Plain background context; hub and notifier absent means the event is
	// built and dropped, which is the no-realtime deployment path.
	s.publishConnectionAccepted(context.Background(), edge)

	require.Len(t, repo.seen, 2)
	assert.ElementsMatch(t, []uint{1, 2}, repo.seen)
}

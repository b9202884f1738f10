// Package service contains the business logic layer of the application.
package service

import (
	"context"
	"log/slog"

	"jammer/internal/middleware"
	"jammer/internal/models"
	"jammer/internal/observability"
	"jammer/internal/repository"
)

// dmWelcomeMessage seeds a freshly created DM so the conversation view is
// never empty right after two musicians connect.
const dmWelcomeMessage = "Start planning your next jam."

// ConnectionService provides connection-request and connection business logic.
type ConnectionService struct {
	connRepo repository.ConnectionRepository
	userRepo repository.UserRepository
	dmRepo   repository.DMRepository
	msgRepo  repository.MessageRepository
}

// NewConnectionService returns a new ConnectionService.
func NewConnectionService(connRepo repository.ConnectionRepository, userRepo repository.UserRepository, dmRepo repository.DMRepository, msgRepo repository.MessageRepository) *ConnectionService {
	return &ConnectionService{
		connRepo: connRepo,
		userRepo: userRepo,
		dmRepo:   dmRepo,
		msgRepo:  msgRepo,
	}
}

// SendRequest sends a connection request to the target user. If the target
// already has an open request toward the sender, the two requests cross and
// the existing edge is accepted instead of erroring. Any other existing edge
// is returned unchanged, so repeated sends are idempotent for the caller.
func (s *ConnectionService) SendRequest(ctx context.Context, userID, targetUserID uint, contextJamID *uint) (*models.Connection, error) {
	if userID == targetUserID {
		return nil, models.NewValidationError("Cannot send a connection request to yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
		return nil, err
	}

	existing, err := s.connRepo.GetBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.ConnectionStatusPending && existing.ReceiverID == userID {
			// Crossing requests express mutual intent; accept the open one
			return s.Accept(ctx, userID, existing.ID)
		}
		// Already connected or already requested: hand back the existing
		// edge so the caller sees the current state instead of an error.
		return existing, nil
	}

	edge := &models.Connection{
		RequesterID:  userID,
		ReceiverID:   targetUserID,
		Status:       models.ConnectionStatusPending,
		ContextJamID: contextJamID,
	}
	if err := s.connRepo.Create(ctx, edge); err != nil {
		return nil, err
	}
	observability.ConnectionEvents.WithLabelValues("requested").Inc()

	return s.connRepo.GetByID(ctx, edge.ID)
}

// Accept accepts a pending connection request addressed to the user. The
// status flip is a single guarded update, so racing accepts resolve to one
// winner and the loser sees the already-connected edge instead of an error.
func (s *ConnectionService) Accept(ctx context.Context, userID, edgeID uint) (*models.Connection, error) {
	edge, err := s.connRepo.GetByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	if edge.ReceiverID != userID {
		return nil, models.NewForbiddenError("You can only accept connection requests sent to you")
	}

	affected, err := s.connRepo.AcceptPending(ctx, edgeID, userID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Someone got here first. If the edge ended up connected the
		// outcome the caller wanted already holds.
		current, err := s.connRepo.GetByID(ctx, edgeID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.ConnectionStatusConnected {
			return current, nil
		}
		return nil, models.NewValidationError("Connection request is not pending")
	}

	observability.ConnectionEvents.WithLabelValues("accepted").Inc()
	s.seedDM(ctx, edge.RequesterID, edge.ReceiverID, userID)

	return s.connRepo.GetByID(ctx, edgeID)
}

// seedDM ensures the DM channel between two freshly connected users exists
// and drops a welcome message into it when new. A failure here never fails
// the accept; the DM gets created lazily on first chat instead.
func (s *ConnectionService) seedDM(ctx context.Context, userID1, userID2, senderID uint) {
	dm, err := s.dmRepo.GetOrCreate(ctx, userID1, userID2)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to create DM for new connection",
			slog.Any("user_a", userID1), slog.Any("user_b", userID2), slog.String("error", err.Error()))
		return
	}

	count, err := s.msgRepo.CountRoom(ctx, models.RoomTypeDM, dm.ID)
	if err != nil || count > 0 {
		return
	}

	welcome := &models.Message{
		RoomType: models.RoomTypeDM,
		RoomID:   dm.ID,
		SenderID: senderID,
		Content:  dmWelcomeMessage,
	}
	if err := s.msgRepo.Create(ctx, welcome); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to seed DM welcome message",
			slog.Any("dm_id", dm.ID), slog.String("error", err.Error()))
	}
}

// Remove declines an incoming request, withdraws a sent one, or severs an
// accepted connection. All three collapse to deleting the edge.
func (s *ConnectionService) Remove(ctx context.Context, userID, targetUserID uint) (*models.Connection, error) {
	edge, err := s.connRepo.GetBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, models.NewNotFoundError("Connection", targetUserID)
	}
	if !edge.Involves(userID) {
		return nil, models.NewForbiddenError("You are not part of this connection")
	}

	if err := s.connRepo.Delete(ctx, edge.ID); err != nil {
		return nil, err
	}
	observability.ConnectionEvents.WithLabelValues("removed").Inc()
	return edge, nil
}

// Status returns the viewer-relative connection state toward the target user.
func (s *ConnectionService) Status(ctx context.Context, viewerID, targetUserID uint) (models.ConnectionView, *models.Connection, error) {
	if viewerID != targetUserID {
		if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
			return "", nil, err
		}
	}

	edge, err := s.connRepo.GetBetweenUsers(ctx, viewerID, targetUserID)
	if err != nil {
		return "", nil, err
	}

	return models.DeriveConnectionView(edge, viewerID, targetUserID), edge, nil
}

// GetConnections returns the users connected to the given user.
func (s *ConnectionService) GetConnections(ctx context.Context, userID uint) ([]models.User, error) {
	return s.connRepo.GetConnectedUsers(ctx, userID)
}

// GetIncomingRequests returns open requests addressed to the user.
func (s *ConnectionService) GetIncomingRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.connRepo.GetIncomingRequests(ctx, userID)
}

// GetSentRequests returns open requests the user has sent.
func (s *ConnectionService) GetSentRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.connRepo.GetSentRequests(ctx, userID)
}

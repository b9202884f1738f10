package repository

import (
	"context"
	"errors"
	"time"

	"jammer/internal/models"

	"gorm.io/gorm"
)

// ConnectionRepository defines the data access interface for connection edges.
type ConnectionRepository interface {
	Create(ctx context.Context, edge *models.Connection) error
	GetByID(ctx context.Context, id uint) (*models.Connection, error)
	// GetBetweenUsers finds the edge for an unordered user pair. Returns
	// (nil, nil) when no edge exists.
	GetBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Connection, error)
	// AcceptPending flips a pending edge to connected, guarded so a
	// concurrent accept or removal makes this a no-op. Returns the number
	// of rows changed (0 or 1).
	AcceptPending(ctx context.Context, edgeID, receiverID uint) (int64, error)
	Delete(ctx context.Context, edgeID uint) error
	GetConnectedUsers(ctx context.Context, userID uint) ([]models.User, error)
	GetIncomingRequests(ctx context.Context, userID uint) ([]models.Connection, error)
	GetSentRequests(ctx context.Context, userID uint) ([]models.Connection, error)
}

type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, edge *models.Connection) error {
	if err := r.db.WithContext(ctx).Create(edge).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A connection already exists between these users")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	var edge models.Connection
	if err := r.db.WithContext(ctx).Preload("Requester").Preload("Receiver").First(&edge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Connection", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &edge, nil
}

func (r *connectionRepository) GetBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Connection, error) {
	var edge models.Connection

	// The edge may have been created in either direction
	if err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND receiver_id = ?) OR (requester_id = ? AND receiver_id = ?)",
			userID1, userID2, userID2, userID1).
		First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &edge, nil
}

func (r *connectionRepository) AcceptPending(ctx context.Context, edgeID, receiverID uint) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND receiver_id = ? AND status = ?", edgeID, receiverID, models.ConnectionStatusPending).
		Updates(map[string]interface{}{
			"status":      models.ConnectionStatusConnected,
			"resolved_at": &now,
		})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *connectionRepository) Delete(ctx context.Context, edgeID uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Connection{}, edgeID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *connectionRepository) GetConnectedUsers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User

	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN connections c ON (users.id = c.requester_id OR users.id = c.receiver_id)").
		Where("c.status = ? AND (c.requester_id = ? OR c.receiver_id = ?) AND users.id != ?",
			models.ConnectionStatusConnected, userID, userID, userID).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	return users, nil
}

func (r *connectionRepository) GetIncomingRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	var edges []models.Connection

	if err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.ConnectionStatusPending).
		Preload("Requester").
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	return edges, nil
}

func (r *connectionRepository) GetSentRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	var edges []models.Connection

	if err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", userID, models.ConnectionStatusPending).
		Preload("Receiver").
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	return edges, nil
}

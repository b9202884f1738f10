package repository

import (
	"context"
	"errors"

	"jammer/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines the data access interface for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListRoom returns messages for a room, newest first.
	ListRoom(ctx context.Context, roomType models.RoomType, roomID uint, limit, offset int) ([]models.Message, error)
	CountRoom(ctx context.Context, roomType models.RoomType, roomID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &message, nil
}

func (r *messageRepository) ListRoom(ctx context.Context, roomType models.RoomType, roomID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("room_type = ? AND room_id = ?", roomType, roomID).
		Preload("Sender").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) CountRoom(ctx context.Context, roomType models.RoomType, roomID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("room_type = ? AND room_id = ?", roomType, roomID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Message{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

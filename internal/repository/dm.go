package repository

import (
	"context"
	"errors"

	"jammer/internal/models"

	"gorm.io/gorm"
)

// DMRepository defines the data access interface for direct-message channels.
type DMRepository interface {
	// GetOrCreate returns the DM for an unordered user pair, creating it if
	// missing. Creation is idempotent because the pair is stored in
	// canonical order behind a unique index.
	GetOrCreate(ctx context.Context, userID1, userID2 uint) (*models.DM, error)
	GetByID(ctx context.Context, id uint) (*models.DM, error)
	GetByPair(ctx context.Context, userID1, userID2 uint) (*models.DM, error)
	ListForUser(ctx context.Context, userID uint) ([]models.DM, error)
	// TouchWatermark moves the viewer's last-read watermark to the database
	// clock. The DB clock is authoritative so watermark comparisons line up
	// with message created_at values written by the same server.
	TouchWatermark(ctx context.Context, dm *models.DM, viewerID uint) error
	// UnreadCount counts messages from the other participant newer than the
	// viewer's watermark. A nil watermark counts everything.
	UnreadCount(ctx context.Context, dm *models.DM, viewerID uint) (int64, error)
}

type dmRepository struct {
	db *gorm.DB
}

// NewDMRepository creates a new DM repository
func NewDMRepository(db *gorm.DB) DMRepository {
	return &dmRepository{db: db}
}

func (r *dmRepository) GetOrCreate(ctx context.Context, userID1, userID2 uint) (*models.DM, error) {
	a, b := models.CanonicalPair(userID1, userID2)

	existing, err := r.GetByPair(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	dm := &models.DM{UserAID: a, UserBID: b}
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		if isUniqueConstraintError(err) {
			// Lost a creation race; the winner's row is what we want
			return r.GetByPair(ctx, a, b)
		}
		return nil, models.NewInternalError(err)
	}
	return dm, nil
}

func (r *dmRepository) GetByID(ctx context.Context, id uint) (*models.DM, error) {
	var dm models.DM
	if err := r.db.WithContext(ctx).Preload("UserA").Preload("UserB").First(&dm, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("DM", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &dm, nil
}

func (r *dmRepository) GetByPair(ctx context.Context, userID1, userID2 uint) (*models.DM, error) {
	a, b := models.CanonicalPair(userID1, userID2)

	var dm models.DM
	if err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		First(&dm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &dm, nil
}

func (r *dmRepository) ListForUser(ctx context.Context, userID uint) ([]models.DM, error) {
	var dms []models.DM
	if err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Preload("UserA").
		Preload("UserB").
		Order("created_at DESC").
		Find(&dms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return dms, nil
}

func (r *dmRepository) TouchWatermark(ctx context.Context, dm *models.DM, viewerID uint) error {
	if !dm.Involves(viewerID) {
		return models.NewForbiddenError("Not a participant of this conversation")
	}
	column := dm.WatermarkColumnFor(viewerID)
	if err := r.db.WithContext(ctx).
		Model(&models.DM{}).
		Where("id = ?", dm.ID).
		Update(column, gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *dmRepository) UnreadCount(ctx context.Context, dm *models.DM, viewerID uint) (int64, error) {
	if !dm.Involves(viewerID) {
		return 0, models.NewForbiddenError("Not a participant of this conversation")
	}

	q := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("room_type = ? AND room_id = ? AND sender_id != ?", models.RoomTypeDM, dm.ID, viewerID)

	if watermark := dm.WatermarkFor(viewerID); watermark != nil {
		q = q.Where("created_at > ?", *watermark)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

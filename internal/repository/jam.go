package repository

import (
	"context"
	"errors"
	"time"

	"jammer/internal/models"

	"gorm.io/gorm"
)

// JamRepository defines the data access interface for jams and their members.
type JamRepository interface {
	Create(ctx context.Context, jam *models.Jam) error
	GetByID(ctx context.Context, id uint) (*models.Jam, error)
	Update(ctx context.Context, jam *models.Jam) error
	Delete(ctx context.Context, id uint) error
	ListByHost(ctx context.Context, hostID uint) ([]models.Jam, error)
	// ListUpcoming returns jams whose time is in the future, soonest first,
	// capped at limit. This feeds the in-memory proximity fallback.
	ListUpcoming(ctx context.Context, limit int) ([]models.Jam, error)
	// SearchByDistance runs the haversine distance filter inside Postgres.
	// Jams without coordinates never match. Results are ordered by distance,
	// then jam time.
	SearchByDistance(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.Jam, error)

	// Membership
	CreateMember(ctx context.Context, member *models.JamMember) error
	GetMember(ctx context.Context, jamID, userID uint) (*models.JamMember, error)
	UpdateMemberStatus(ctx context.Context, jamID, userID uint, status models.JamMemberStatus) error
	DeleteMember(ctx context.Context, jamID, userID uint) error
	ListMembers(ctx context.Context, jamID uint, status models.JamMemberStatus) ([]models.JamMember, error)
	CountMembers(ctx context.Context, jamID uint) (models.MemberCounts, error)
	ListJamsForMember(ctx context.Context, userID uint, status models.JamMemberStatus) ([]models.Jam, error)
}

type jamRepository struct {
	db *gorm.DB
}

// NewJamRepository creates a new jam repository
func NewJamRepository(db *gorm.DB) JamRepository {
	return &jamRepository{db: db}
}

func (r *jamRepository) Create(ctx context.Context, jam *models.Jam) error {
	if err := r.db.WithContext(ctx).Create(jam).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *jamRepository) GetByID(ctx context.Context, id uint) (*models.Jam, error) {
	var jam models.Jam
	if err := r.db.WithContext(ctx).Preload("Host").First(&jam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Jam", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &jam, nil
}

func (r *jamRepository) Update(ctx context.Context, jam *models.Jam) error {
	if err := r.db.WithContext(ctx).Save(jam).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *jamRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Jam{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *jamRepository) ListByHost(ctx context.Context, hostID uint) ([]models.Jam, error) {
	var jams []models.Jam
	if err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("jam_time ASC").
		Find(&jams).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return jams, nil
}

func (r *jamRepository) ListUpcoming(ctx context.Context, limit int) ([]models.Jam, error) {
	if limit <= 0 {
		limit = 200
	}

	var jams []models.Jam
	if err := r.db.WithContext(ctx).
		Where("jam_time > ?", time.Now()).
		Preload("Host").
		Order("jam_time ASC").
		Limit(limit).
		Find(&jams).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return jams, nil
}

func (r *jamRepository) SearchByDistance(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.Jam, error) {
	if limit <= 0 {
		limit = 40
	}

	// 6371 is the Earth radius in kilometers. The trig functions exist on
	// stock Postgres; other engines surface an undefined-function error
	// which the caller treats as a capability signal.
	const haversine = `(6371 * acos(least(1.0, greatest(-1.0,
		cos(radians(?)) * cos(radians(lat)) * cos(radians(lng) - radians(?)) +
		sin(radians(?)) * sin(radians(lat))))))`

	var jams []models.Jam
	err := r.db.WithContext(ctx).
		Model(&models.Jam{}).
		Select("jams.*, "+haversine+" AS distance_km", lat, lng, lat).
		Where("lat IS NOT NULL AND lng IS NOT NULL").
		Where("jam_time > ?", time.Now()).
		Where(haversine+" <= ?", lat, lng, lat, radiusKm).
		Order("distance_km ASC, jam_time ASC").
		Limit(limit).
		Scan(&jams).Error
	if err != nil {
		// Keep the driver error in the chain so callers can inspect
		// SQLSTATE codes.
		return nil, models.NewInternalError(err)
	}
	return jams, nil
}

func (r *jamRepository) CreateMember(ctx context.Context, member *models.JamMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A join request already exists for this jam")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *jamRepository) GetMember(ctx context.Context, jamID, userID uint) (*models.JamMember, error) {
	var member models.JamMember
	if err := r.db.WithContext(ctx).
		Where("jam_id = ? AND user_id = ?", jamID, userID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &member, nil
}

func (r *jamRepository) UpdateMemberStatus(ctx context.Context, jamID, userID uint, status models.JamMemberStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.JamMember{}).
		Where("jam_id = ? AND user_id = ?", jamID, userID).
		Update("status", status)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	// A zero-row update means the row vanished meanwhile; callers treat
	// that as success rather than surfacing a not-found.
	return nil
}

func (r *jamRepository) DeleteMember(ctx context.Context, jamID, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("jam_id = ? AND user_id = ?", jamID, userID).
		Delete(&models.JamMember{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *jamRepository) ListMembers(ctx context.Context, jamID uint, status models.JamMemberStatus) ([]models.JamMember, error) {
	var members []models.JamMember
	q := r.db.WithContext(ctx).
		Where("jam_id = ?", jamID).
		Preload("User").
		Order("joined_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *jamRepository) CountMembers(ctx context.Context, jamID uint) (models.MemberCounts, error) {
	var counts models.MemberCounts

	if err := r.db.WithContext(ctx).
		Model(&models.JamMember{}).
		Where("jam_id = ? AND status = ?", jamID, models.JamMemberStatusApproved).
		Count(&counts.Confirmed).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).
		Model(&models.JamMember{}).
		Where("jam_id = ? AND status = ?", jamID, models.JamMemberStatusPending).
		Count(&counts.Pending).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	return counts, nil
}

func (r *jamRepository) ListJamsForMember(ctx context.Context, userID uint, status models.JamMemberStatus) ([]models.Jam, error) {
	var jams []models.Jam
	q := r.db.WithContext(ctx).
		Table("jams").
		Joins("JOIN jam_members jm ON jm.jam_id = jams.id").
		Where("jm.user_id = ?", userID)
	if status != "" {
		q = q.Where("jm.status = ?", status)
	}
	if err := q.Order("jams.jam_time ASC").Find(&jams).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return jams, nil
}

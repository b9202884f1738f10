package service

import (
	"context"
	"strings"

	"jammer/internal/models"
	"jammer/internal/repository"
)

// UserService provides musician profile business logic.
type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput carries the user-editable profile fields. Nil slices
// leave the stored instrument/genre lists untouched.
type UpdateProfileInput struct {
	UserID      uint
	DisplayName string
	Bio         string
	City        string
	Country     string
	Lat         *float64
	Lng         *float64
	Instruments models.StringList
	Genres      models.StringList
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) SearchUsers(ctx context.Context, term string, limit int) ([]models.User, error) {
	return s.userRepo.Search(ctx, term, limit)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UpdateProfile applies profile edits.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxBioLen = 500
	const maxListLen = 12

	if in.DisplayName != "" {
		if len(in.DisplayName) > 80 {
			return nil, models.NewValidationError("Display name too long (max 80 characters)")
		}
		user.DisplayName = strings.TrimSpace(in.DisplayName)
	}
	if in.Bio != "" {
		if len(in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = in.Bio
	}
	if in.City != "" {
		user.City = in.City
	}
	if in.Country != "" {
		user.Country = in.Country
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		return nil, models.NewValidationError("Latitude and longitude must be provided together")
	}
	if in.Lat != nil && in.Lng != nil {
		if *in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180 {
			return nil, models.NewValidationError("Coordinates are out of range")
		}
		user.Lat = in.Lat
		user.Lng = in.Lng
	}
	if in.Instruments != nil {
		if len(in.Instruments) > maxListLen {
			return nil, models.NewValidationError("Too many instruments (max 12)")
		}
		user.Instruments = in.Instruments
	}
	if in.Genres != nil {
		if len(in.Genres) > maxListLen {
			return nil, models.NewValidationError("Too many genres (max 12)")
		}
		user.Genres = in.Genres
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SetAdmin toggles the admin flag on a user.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

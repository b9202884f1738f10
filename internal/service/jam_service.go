package service

import (
	"context"
	"time"

	"jammer/internal/models"
	"jammer/internal/repository"
	"jammer/internal/validation"
)

// JamInput carries the host-editable jam fields.
type JamInput struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	JamTime            time.Time         `json:"jam_time"`
	City               string            `json:"city"`
	Country            string            `json:"country"`
	Lat                *float64          `json:"lat"`
	Lng                *float64          `json:"lng"`
	DesiredInstruments models.StringList `json:"desired_instruments"`
	MaxAttendees       int               `json:"max_attendees"`
}

// JamService provides jam lifecycle and membership workflow business logic.
type JamService struct {
	jamRepo  repository.JamRepository
	userRepo repository.UserRepository
}

// NewJamService returns a new JamService.
func NewJamService(jamRepo repository.JamRepository, userRepo repository.UserRepository) *JamService {
	return &JamService{
		jamRepo:  jamRepo,
		userRepo: userRepo,
	}
}

func (s *JamService) validateInput(input *JamInput) error {
	if err := validation.ValidateJamTitle(input.Title); err != nil {
		return models.NewValidationError(err.Error())
	}
	if input.JamTime.IsZero() {
		return models.NewValidationError("Jam time is required")
	}
	if input.MaxAttendees < 0 {
		return models.NewValidationError("Max attendees cannot be negative")
	}
	if (input.Lat == nil) != (input.Lng == nil) {
		return models.NewValidationError("Latitude and longitude must be provided together")
	}
	return nil
}

// CreateJam creates a jam hosted by the given user.
func (s *JamService) CreateJam(ctx context.Context, hostID uint, input *JamInput) (*models.Jam, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	if input.JamTime.Before(time.Now()) {
		return nil, models.NewValidationError("Jam time must be in the future")
	}

	jam := &models.Jam{
		HostID:             hostID,
		Title:              input.Title,
		Description:        input.Description,
		JamTime:            input.JamTime,
		City:               input.City,
		Country:            input.Country,
		Lat:                input.Lat,
		Lng:                input.Lng,
		DesiredInstruments: input.DesiredInstruments,
		MaxAttendees:       input.MaxAttendees,
	}
	if err := s.jamRepo.Create(ctx, jam); err != nil {
		return nil, err
	}
	return s.jamRepo.GetByID(ctx, jam.ID)
}

// GetJam returns a jam with its membership counts attached.
func (s *JamService) GetJam(ctx context.Context, jamID uint) (*models.Jam, models.MemberCounts, error) {
	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return nil, models.MemberCounts{}, err
	}
	counts, err := s.jamRepo.CountMembers(ctx, jamID)
	if err != nil {
		return nil, models.MemberCounts{}, err
	}
	return jam, counts, nil
}

// UpdateJam applies host edits to a jam.
func (s *JamService) UpdateJam(ctx context.Context, userID, jamID uint, input *JamInput) (*models.Jam, error) {
	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return nil, err
	}
	if jam.HostID != userID {
		return nil, models.NewForbiddenError("Only the host can edit this jam")
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	jam.Title = input.Title
	jam.Description = input.Description
	jam.JamTime = input.JamTime
	jam.City = input.City
	jam.Country = input.Country
	jam.Lat = input.Lat
	jam.Lng = input.Lng
	jam.DesiredInstruments = input.DesiredInstruments
	jam.MaxAttendees = input.MaxAttendees

	if err := s.jamRepo.Update(ctx, jam); err != nil {
		return nil, err
	}
	return s.jamRepo.GetByID(ctx, jamID)
}

// DeleteJam removes a jam. Host only.
func (s *JamService) DeleteJam(ctx context.Context, userID, jamID uint) error {
	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return err
	}
	if jam.HostID != userID {
		return models.NewForbiddenError("Only the host can delete this jam")
	}
	return s.jamRepo.Delete(ctx, jamID)
}

// ListHosted returns jams the user hosts.
func (s *JamService) ListHosted(ctx context.Context, userID uint) ([]models.Jam, error) {
	return s.jamRepo.ListByHost(ctx, userID)
}

// ListJoined returns jams where the user is an approved member.
func (s *JamService) ListJoined(ctx context.Context, userID uint) ([]models.Jam, error) {
	return s.jamRepo.ListJamsForMember(ctx, userID, models.JamMemberStatusApproved)
}

// RequestJoin files a join request for a jam. Capacity is advertised but not
// enforced; the host decides who gets in regardless of the headcount.
func (s *JamService) RequestJoin(ctx context.Context, userID, jamID uint) (*models.JamMember, error) {
	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return nil, err
	}
	if jam.HostID == userID {
		return nil, models.NewConflictError("You are already hosting this jam")
	}
	if jam.JamTime.Before(time.Now()) {
		return nil, models.NewValidationError("This jam has already happened")
	}

	existing, err := s.jamRepo.GetMember(ctx, jamID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// One membership row per (jam, user), whatever its status. A
		// declined musician withdraws first if they want to ask again.
		return nil, models.NewConflictError("A join request already exists for this jam")
	}

	member := &models.JamMember{
		JamID:  jamID,
		UserID: userID,
		Role:   models.JamMemberRoleAttendee,
		Status: models.JamMemberStatusPending,
	}
	if err := s.jamRepo.CreateMember(ctx, member); err != nil {
		return nil, err
	}
	return s.jamRepo.GetMember(ctx, jamID, userID)
}

// Decide records the host's approve/decline decision on a join request. The
// host can revisit a decision later; repeating an applied one is a no-op, and
// deciding on an absent row succeeds without effect.
func (s *JamService) Decide(ctx context.Context, hostID, jamID, memberUserID uint, decision models.JamMemberStatus) (*models.JamMember, error) {
	if !models.ValidDecision(decision) {
		return nil, models.NewValidationError("Decision must be approved or declined")
	}

	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return nil, err
	}
	if jam.HostID != hostID {
		return nil, models.NewForbiddenError("Only the host can decide join requests")
	}

	member, err := s.jamRepo.GetMember(ctx, jamID, memberUserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		// Deciding on an absent row updates nothing, which callers treat
		// as success. Withdrawal racing a decision lands here.
		return nil, nil
	}
	if member.Status == decision {
		return member, nil
	}

	if err := s.jamRepo.UpdateMemberStatus(ctx, jamID, memberUserID, decision); err != nil {
		return nil, err
	}
	return s.jamRepo.GetMember(ctx, jamID, memberUserID)
}

// Withdraw cancels the user's own pending join request. Approved members
// stay on the roster; only the host's decision moves them off it.
func (s *JamService) Withdraw(ctx context.Context, userID, jamID uint) error {
	member, err := s.jamRepo.GetMember(ctx, jamID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return models.NewNotFoundError("Join request", jamID)
	}
	if member.Status != models.JamMemberStatusPending {
		return models.NewValidationError("Only pending join requests can be withdrawn")
	}
	return s.jamRepo.DeleteMember(ctx, jamID, userID)
}

// ListMembers returns a jam's member rows. The host sees every request;
// everyone else sees the approved roster only.
func (s *JamService) ListMembers(ctx context.Context, viewerID, jamID uint) ([]models.JamMember, error) {
	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return nil, err
	}
	if jam.HostID == viewerID {
		return s.jamRepo.ListMembers(ctx, jamID, "")
	}
	return s.jamRepo.ListMembers(ctx, jamID, models.JamMemberStatusApproved)
}

package service

import (
	"context"
	"strings"

	"jammer/internal/models"
	"jammer/internal/observability"
	"jammer/internal/repository"
)

const maxMessageLength = 2000

// ChatService provides messaging and unread-tracking business logic for DM
// and jam rooms.
type ChatService struct {
	dmRepo   repository.DMRepository
	msgRepo  repository.MessageRepository
	jamRepo  repository.JamRepository
	connRepo repository.ConnectionRepository
	userRepo repository.UserRepository
}

// NewChatService returns a new ChatService.
func NewChatService(dmRepo repository.DMRepository, msgRepo repository.MessageRepository, jamRepo repository.JamRepository, connRepo repository.ConnectionRepository, userRepo repository.UserRepository) *ChatService {
	return &ChatService{
		dmRepo:   dmRepo,
		msgRepo:  msgRepo,
		jamRepo:  jamRepo,
		connRepo: connRepo,
		userRepo: userRepo,
	}
}

// EnsureDM returns the DM channel with the other user, creating it if
// missing. Opening a DM requires an accepted connection; existing channels
// keep working even if the connection is later severed.
func (s *ChatService) EnsureDM(ctx context.Context, userID, otherUserID uint) (*models.DM, error) {
	if userID == otherUserID {
		return nil, models.NewValidationError("Cannot open a conversation with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, otherUserID); err != nil {
		return nil, err
	}

	existing, err := s.dmRepo.GetByPair(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	edge, err := s.connRepo.GetBetweenUsers(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if edge == nil || edge.Status != models.ConnectionStatusConnected {
		return nil, models.NewForbiddenError("You can only message musicians you are connected with")
	}

	return s.dmRepo.GetOrCreate(ctx, userID, otherUserID)
}

// GetDM returns a DM the user participates in.
func (s *ChatService) GetDM(ctx context.Context, userID, dmID uint) (*models.DM, error) {
	dm, err := s.dmRepo.GetByID(ctx, dmID)
	if err != nil {
		return nil, err
	}
	if !dm.Involves(userID) {
		return nil, models.NewForbiddenError("Not a participant of this conversation")
	}
	return dm, nil
}

// ListDMs returns the user's DM channels with per-channel unread counts.
func (s *ChatService) ListDMs(ctx context.Context, userID uint) ([]models.DM, error) {
	dms, err := s.dmRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range dms {
		count, err := s.dmRepo.UnreadCount(ctx, &dms[i], userID)
		if err != nil {
			return nil, err
		}
		dms[i].UnreadCount = count
	}
	return dms, nil
}

// TotalUnread sums unread messages across every DM the user participates in.
func (s *ChatService) TotalUnread(ctx context.Context, userID uint) (int64, error) {
	dms, err := s.ListDMs(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for i := range dms {
		total += dms[i].UnreadCount
	}
	return total, nil
}

// MarkRead moves the user's last-read watermark in a DM to the current
// database time, zeroing its unread count.
func (s *ChatService) MarkRead(ctx context.Context, userID, dmID uint) error {
	dm, err := s.GetDM(ctx, userID, dmID)
	if err != nil {
		return err
	}
	return s.dmRepo.TouchWatermark(ctx, dm, userID)
}

// SendMessage posts a message to a DM or jam room after checking the sender
// may write there.
func (s *ChatService) SendMessage(ctx context.Context, userID uint, roomType models.RoomType, roomID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, models.NewValidationError("Message content is too long")
	}
	if !models.ValidRoomType(roomType) {
		return nil, models.NewValidationError("Unknown room type")
	}

	if err := s.authorizeRoom(ctx, userID, roomType, roomID); err != nil {
		return nil, err
	}

	message := &models.Message{
		RoomType: roomType,
		RoomID:   roomID,
		SenderID: userID,
		Content:  content,
	}
	if err := s.msgRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	observability.MessageThroughput.WithLabelValues(string(roomType)).Inc()

	return s.msgRepo.GetByID(ctx, message.ID)
}

// ListMessages returns a page of room history, newest first.
func (s *ChatService) ListMessages(ctx context.Context, userID uint, roomType models.RoomType, roomID uint, limit, offset int) ([]models.Message, error) {
	if !models.ValidRoomType(roomType) {
		return nil, models.NewValidationError("Unknown room type")
	}
	if err := s.authorizeRoom(ctx, userID, roomType, roomID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListRoom(ctx, roomType, roomID, limit, offset)
}

// CanAccessRoom reports whether the user may read and write the room. The
// websocket layer uses this before subscribing a client to room events.
func (s *ChatService) CanAccessRoom(ctx context.Context, userID uint, roomType models.RoomType, roomID uint) error {
	if !models.ValidRoomType(roomType) {
		return models.NewValidationError("Unknown room type")
	}
	return s.authorizeRoom(ctx, userID, roomType, roomID)
}

// authorizeRoom checks room membership. DM rooms admit the two participants;
// jam rooms admit the host and approved members.
func (s *ChatService) authorizeRoom(ctx context.Context, userID uint, roomType models.RoomType, roomID uint) error {
	switch roomType {
	case models.RoomTypeDM:
		dm, err := s.dmRepo.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !dm.Involves(userID) {
			return models.NewForbiddenError("Not a participant of this conversation")
		}
		return nil
	case models.RoomTypeJam:
		jam, err := s.jamRepo.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if jam.HostID == userID {
			return nil
		}
		member, err := s.jamRepo.GetMember(ctx, roomID, userID)
		if err != nil {
			return err
		}
		if member == nil || member.Status != models.JamMemberStatusApproved {
			return models.NewForbiddenError("Only approved members can use the jam chat")
		}
		return nil
	default:
		return models.NewValidationError("Unknown room type")
	}
}

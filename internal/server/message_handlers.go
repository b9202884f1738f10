package server

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"jammer/internal/models"
	"jammer/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// EnsureDM handles POST /api/messages/dm
// @Summary Open (or find) the DM channel with another musician
// @Description Idempotent; both orderings of the pair resolve to the same channel. Requires an accepted connection unless the channel already exists.
// @Tags messages
// @Accept json
// @Produce json
// @Param request body object{other_user_id=int} true "Counterpart"
// @Success 200 {object} object{dm_id=int,dm=models.DM}
// @Failure 403 {object} models.ErrorResponse
// @Router /messages/dm [post]
func (s *Server) EnsureDM(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		OtherUserID uint `json:"other_user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.OtherUserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("other_user_id is required"))
	}

	dm, err := s.chatService.EnsureDM(c.Context(), userID, req.OtherUserID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"dm_id": dm.ID,
		"dm":    dm,
	})
}

// GetDMs handles GET /api/messages/dms
// @Summary List DM channels with unread counts
// @Tags messages
// @Produce json
// @Success 200 {array} models.DM
// @Router /messages/dms [get]
func (s *Server) GetDMs(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	dms, err := s.chatService.ListDMs(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dms)
}

// GetTotalUnread handles GET /api/messages/unread
// @Summary Total unread messages across all DMs
// @Tags messages
// @Produce json
// @Success 200 {object} object{total=int}
// @Router /messages/unread [get]
func (s *Server) GetTotalUnread(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	total, err := s.chatService.TotalUnread(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"total": total})
}

// MarkDMRead handles POST /api/messages/dms/:id/read
// @Summary Mark a DM as read
// @Description Moves the caller's last-read watermark to the current database time.
// @Tags messages
// @Param id path int true "DM ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /messages/dms/{id}/read [post]
func (s *Server) MarkDMRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	dmID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.chatService.MarkRead(c.Context(), userID, dmID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// parseRoomType validates the :roomType route parameter.
func parseRoomType(c *fiber.Ctx) (models.RoomType, error) {
	roomType := models.RoomType(c.Params("roomType"))
	if !models.ValidRoomType(roomType) {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown room type"))
		return "", errResponseWritten
	}
	return roomType, nil
}

// GetRoomMessages handles GET /api/messages/:roomType/:roomId
// @Summary Page through a room's message history
// @Tags messages
// @Produce json
// @Param roomType path string true "dm or jam"
// @Param roomId path int true "Room ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Router /messages/{roomType}/{roomId} [get]
func (s *Server) GetRoomMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	roomType, err := parseRoomType(c)
	if err != nil {
		return nil
	}
	roomID, err := s.parseID(c, "roomId")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	messages, err := s.chatService.ListMessages(c.Context(), userID, roomType, roomID, p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(messages)
}

// SendRoomMessage handles POST /api/messages/:roomType/:roomId
// @Summary Send a message to a DM or jam room
// @Tags messages
// @Accept json
// @Produce json
// @Param roomType path string true "dm or jam"
// @Param roomId path int true "Room ID"
// @Param request body object{content=string} true "Message body"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /messages/{roomType}/{roomId} [post]
func (s *Server) SendRoomMessage(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomType, err := parseRoomType(c)
	if err != nil {
		return nil
	}
	roomID, err := s.parseID(c, "roomId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.chatService.SendMessage(ctx, userID, roomType, roomID, req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishRoomMessage(ctx, message)

	return c.Status(fiber.StatusCreated).JSON(message)
}

// publishRoomMessage fans a stored message out to room viewers and, for DMs,
// pokes the counterpart's personal channel so unread badges update even when
// the conversation is not open. Delivery is best-effort after the store write.
func (s *Server) publishRoomMessage(ctx context.Context, message *models.Message) {
	username := ""
	if message.Sender != nil {
		username = message.Sender.Username
	}

	if s.notifier != nil {
		event := notifications.RoomEvent{
			Type:     "message",
			RoomType: message.RoomType,
			RoomID:   message.RoomID,
			UserID:   message.SenderID,
			Username: username,
			Payload:  message,
		}
		eventJSON, err := json.Marshal(event)
		if err != nil {
			log.Printf("marshal room message error: %v", err)
		} else if perr := s.notifier.PublishRoom(ctx, message.RoomType, message.RoomID, string(eventJSON)); perr != nil {
			log.Printf("publish room message error: %v", perr)
		}
	}

	if message.RoomType != models.RoomTypeDM {
		return
	}
	dm, err := s.dmRepo.GetByID(ctx, message.RoomID)
	if err != nil {
		return
	}
	s.publishUserEvent(dm.OtherUser(message.SenderID), EventMessageReceived, map[string]interface{}{
		"dm_id":      dm.ID,
		"message_id": message.ID,
		"sender":     userSummaryPtr(message.Sender),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

package server

import (
	"context"
	"time"

	"jammer/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetConnections handles GET /api/connections
// @Summary List connections or query connection status
// @Description With ?targetUserId= returns the viewer-relative status toward one user. With ?status=pending|incoming returns open requests. Otherwise returns connected musicians.
// @Tags connections
// @Produce json
// @Param targetUserId query int false "Target user ID for a status query"
// @Param status query string false "connected, pending or incoming"
// @Success 200 {object} object{status=string,connection=models.Connection}
// @Router /connections [get]
func (s *Server) GetConnections(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	if targetID := c.QueryInt("targetUserId", 0); targetID > 0 {
		view, edge, err := s.connectionService.Status(ctx, userID, uint(targetID))
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"status":     view,
			"connection": edge,
		})
	}

	switch c.Query("status") {
	case "pending":
		requests, err := s.connectionService.GetSentRequests(ctx, userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"connections": requests})
	case "incoming":
		requests, err := s.connectionService.GetIncomingRequests(ctx, userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"connections": requests})
	default:
		users, err := s.connectionService.GetConnections(ctx, userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"connections": users})
	}
}

// SendConnectionRequest handles POST /api/connections
// @Summary Send a connection request
// @Description Sends a request to another musician. Crossing requests auto-accept and return the connected edge plus its DM channel.
// @Tags connections
// @Accept json
// @Produce json
// @Param request body object{target_user_id=int,context_jam_id=int} true "Connection request"
// @Success 201 {object} object{status=string,connection=models.Connection,dm_id=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /connections [post]
func (s *Server) SendConnectionRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		TargetUserID uint  `json:"target_user_id"`
		ContextJamID *uint `json:"context_jam_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TargetUserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("target_user_id is required"))
	}

	edge, err := s.connectionService.SendRequest(ctx, userID, req.TargetUserID, req.ContextJamID)
	if err != nil {
		return respondServiceError(c, err)
	}

	view := models.DeriveConnectionView(edge, userID, req.TargetUserID)
	resp := fiber.Map{
		"status":     view,
		"connection": edge,
	}

	if edge.Status == models.ConnectionStatusConnected {
		// Crossing requests were reinterpreted as an acceptance.
		if dm, dmErr := s.dmRepo.GetByPair(ctx, userID, req.TargetUserID); dmErr == nil && dm != nil {
			resp["dm_id"] = dm.ID
		}
		s.publishConnectionAccepted(ctx, edge)
	} else {
		requester, _ := s.userRepo.GetByID(ctx, userID)
		s.publishUserEvent(req.TargetUserID, EventConnectionRequestReceived, map[string]interface{}{
			"connection_id": edge.ID,
			"requester":     userSummaryPtr(requester),
			"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
		})
		s.publishUserEvent(userID, EventConnectionRequestSent, map[string]interface{}{
			"connection_id":  edge.ID,
			"target_user_id": req.TargetUserID,
			"created_at":     time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// DecideConnectionRequest handles PATCH /api/connections/:id
// @Summary Accept a connection request
// @Description Accepts a pending request addressed to the caller. The only supported status transition is to "connected".
// @Tags connections
// @Accept json
// @Produce json
// @Param id path int true "Connection ID"
// @Param request body object{status=string} true "Must be {\"status\":\"connected\"}"
// @Success 200 {object} object{status=string,connection=models.Connection,dm_id=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /connections/{id} [patch]
func (s *Server) DecideConnectionRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	edgeID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Status models.ConnectionStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Status != models.ConnectionStatusConnected {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Only status \"connected\" is supported; decline by deleting the request"))
	}

	edge, err := s.connectionService.Accept(ctx, userID, edgeID)
	if err != nil {
		return respondServiceError(c, err)
	}

	resp := fiber.Map{
		"status":     models.DeriveConnectionView(edge, userID, edge.OtherUser(userID)),
		"connection": edge,
	}
	if dm, dmErr := s.dmRepo.GetByPair(ctx, edge.RequesterID, edge.ReceiverID); dmErr == nil && dm != nil {
		resp["dm_id"] = dm.ID
	}

	s.publishConnectionAccepted(ctx, edge)

	return c.JSON(resp)
}

// RemoveConnection handles DELETE /api/connections/:id
// @Summary Remove a connection edge
// @Description Declines an incoming request, withdraws a sent one, or severs an accepted connection.
// @Tags connections
// @Produce json
// @Param id path int true "Connection ID"
// @Success 200 {object} object{status=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /connections/{id} [delete]
func (s *Server) RemoveConnection(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	edgeID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	edge, err := s.connRepo.GetByID(ctx, edgeID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !edge.Involves(userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You are not part of this connection"))
	}

	otherID := edge.OtherUser(userID)
	if _, err := s.connectionService.Remove(ctx, userID, otherID); err != nil {
		return respondServiceError(c, err)
	}

	s.publishUserEvent(otherID, EventConnectionRemoved, map[string]interface{}{
		"connection_id": edge.ID,
		"user_id":       userID,
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})

	return c.JSON(fiber.Map{"status": models.ConnectionViewNone})
}

// publishConnectionAccepted notifies both endpoints that the edge is live.
func (s *Server) publishConnectionAccepted(ctx context.Context, edge *models.Connection) {
	requester, _ := s.userRepo.GetByID(ctx, edge.RequesterID)
	receiver, _ := s.userRepo.GetByID(ctx, edge.ReceiverID)

	s.publishUserEvent(edge.RequesterID, EventConnectionAccepted, map[string]interface{}{
		"connection_id": edge.ID,
		"user":          userSummaryPtr(receiver),
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	s.publishUserEvent(edge.ReceiverID, EventConnectionAccepted, map[string]interface{}{
		"connection_id": edge.ID,
		"user":          userSummaryPtr(requester),
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

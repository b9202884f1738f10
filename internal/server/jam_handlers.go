package server

import (
	"time"

	"jammer/internal/models"
	"jammer/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListJams handles GET /api/jams
// @Summary Find upcoming jams
// @Description With coordinates (or a profile location) runs a proximity search ordered by distance. Without an origin returns upcoming jams with no distance filtering.
// @Tags jams
// @Produce json
// @Param lat query number false "Origin latitude"
// @Param lng query number false "Origin longitude"
// @Param radius query number false "Radius in miles (default 25)"
// @Param instrument query string false "Desired instrument filter"
// @Param q query string false "Free-text filter on title, description and city"
// @Param from query string false "Earliest jam time (RFC3339)"
// @Param to query string false "Latest jam time (RFC3339)"
// @Success 200 {array} models.Jam
// @Failure 400 {object} models.ErrorResponse
// @Router /jams [get]
func (s *Server) ListJams(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	params := service.SearchParams{
		RadiusMiles: c.QueryFloat("radius", 0),
		Instrument:  c.Query("instrument"),
		Text:        c.Query("q"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid from timestamp, expected RFC3339"))
		}
		params.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid to timestamp, expected RFC3339"))
		}
		params.To = &t
	}

	// A geo query is one that names an origin or a radius. Everything else
	// is a plain browse of upcoming jams.
	hasLat := c.Query("lat") != ""
	hasLng := c.Query("lng") != ""
	if !hasLat && !hasLng && c.Query("radius") == "" && c.Query("near") != "me" {
		p := parsePagination(c, 50)
		jams, err := s.searchService.Browse(ctx, params, p.Limit)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(jams)
	}
	if hasLat && hasLng {
		lat := c.QueryFloat("lat")
		lng := c.QueryFloat("lng")
		params.Lat, params.Lng = &lat, &lng
	} else if hasLat || hasLng {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Latitude and longitude must be provided together"))
	}

	jams, err := s.searchService.Search(ctx, userID, params)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jams)
}

// CreateJam handles POST /api/jams
// @Summary Host a jam
// @Tags jams
// @Accept json
// @Produce json
// @Param request body service.JamInput true "Jam fields"
// @Success 201 {object} models.Jam
// @Failure 400 {object} models.ErrorResponse
// @Router /jams [post]
func (s *Server) CreateJam(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var input service.JamInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	jam, err := s.jamService.CreateJam(c.Context(), userID, &input)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(jam)
}

// GetJam handles GET /api/jams/:id
// @Summary Get a jam with member counts
// @Tags jams
// @Produce json
// @Param id path int true "Jam ID"
// @Success 200 {object} object{jam=models.Jam,members=models.MemberCounts}
// @Failure 404 {object} models.ErrorResponse
// @Router /jams/{id} [get]
func (s *Server) GetJam(c *fiber.Ctx) error {
	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	jam, counts, err := s.jamService.GetJam(c.Context(), jamID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"jam":     jam,
		"members": counts,
	})
}

// UpdateJam handles PUT /api/jams/:id
func (s *Server) UpdateJam(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var input service.JamInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	jam, err := s.jamService.UpdateJam(c.Context(), userID, jamID, &input)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jam)
}

// DeleteJam handles DELETE /api/jams/:id
func (s *Server) DeleteJam(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.jamService.DeleteJam(c.Context(), userID, jamID); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetHostedJams handles GET /api/jams/hosted
func (s *Server) GetHostedJams(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	jams, err := s.jamService.ListHosted(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jams)
}

// GetJoinedJams handles GET /api/jams/joined
func (s *Server) GetJoinedJams(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	jams, err := s.jamService.ListJoined(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jams)
}

// RequestJoinJam handles POST /api/jams/:id/join
// @Summary Request to join a jam
// @Tags jams
// @Produce json
// @Param id path int true "Jam ID"
// @Success 201 {object} models.JamMember
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /jams/{id}/join [post]
func (s *Server) RequestJoinJam(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	member, err := s.jamService.RequestJoin(ctx, userID, jamID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if jam, jamErr := s.jamRepo.GetByID(ctx, jamID); jamErr == nil {
		requester, _ := s.userRepo.GetByID(ctx, userID)
		s.publishUserEvent(jam.HostID, EventJamJoinRequested, map[string]interface{}{
			"jam_id":     jamID,
			"jam_title":  jam.Title,
			"requester":  userSummaryPtr(requester),
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(member)
}

// GetJamMembers handles GET /api/jams/:id/members
// @Summary List a jam's members
// @Description The host sees every join request; everyone else sees the approved roster.
// @Tags jams
// @Produce json
// @Param id path int true "Jam ID"
// @Success 200 {array} models.JamMember
// @Router /jams/{id}/members [get]
func (s *Server) GetJamMembers(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.jamService.ListMembers(c.Context(), userID, jamID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(members)
}

// DecideJoinRequest handles PATCH /api/jams/:id/members/:userId
// @Summary Approve or decline a join request
// @Tags jams
// @Accept json
// @Produce json
// @Param id path int true "Jam ID"
// @Param userId path int true "Requesting user ID"
// @Param request body object{status=string} true "approved or declined"
// @Success 200 {object} models.JamMember
// @Success 204 "No membership row to update"
// @Failure 403 {object} models.ErrorResponse
// @Router /jams/{id}/members/{userId} [patch]
func (s *Server) DecideJoinRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	hostID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	memberID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Status models.JamMemberStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	member, err := s.jamService.Decide(ctx, hostID, jamID, memberID, req.Status)
	if err != nil {
		return respondServiceError(c, err)
	}
	if member == nil {
		// The request vanished before the decision landed; nothing to
		// update and nobody to notify.
		return c.SendStatus(fiber.StatusNoContent)
	}

	if jam, jamErr := s.jamRepo.GetByID(ctx, jamID); jamErr == nil {
		s.publishUserEvent(memberID, EventJamJoinDecided, map[string]interface{}{
			"jam_id":     jamID,
			"jam_title":  jam.Title,
			"status":     member.Status,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return c.JSON(member)
}

// WithdrawJoinRequest handles DELETE /api/jams/:id/members/:userId
// @Summary Withdraw a pending join request
// @Description Only the requester may withdraw, and only while the request is pending.
// @Tags jams
// @Param id path int true "Jam ID"
// @Param userId path int true "Requesting user ID (must be the caller)"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /jams/{id}/members/{userId} [delete]
func (s *Server) WithdrawJoinRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	memberID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if memberID != userID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You can only withdraw your own join request"))
	}

	if err := s.jamService.Withdraw(ctx, userID, jamID); err != nil {
		return respondServiceError(c, err)
	}

	if jam, jamErr := s.jamRepo.GetByID(ctx, jamID); jamErr == nil {
		s.publishUserEvent(jam.HostID, EventJamJoinWithdrawn, map[string]interface{}{
			"jam_id":     jamID,
			"user_id":    userID,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// UploadJamCover handles POST /api/jams/:id/cover
// @Summary Upload a jam cover image
// @Tags jams
// @Accept mpfd
// @Produce json
// @Param id path int true "Jam ID"
// @Param file formData file true "Cover image"
// @Success 200 {object} models.Jam
// @Failure 400 {object} models.ErrorResponse
// @Router /jams/{id}/cover [post]
func (s *Server) UploadJamCover(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	jamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	content, err := readUploadedFile(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	jam, err := s.mediaService.UploadJamCover(c.Context(), userID, jamID, content)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jam)
}

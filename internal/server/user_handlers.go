package server

import (
	"jammer/internal/models"
	"jammer/internal/service"
	"jammer/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get own profile
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUserByID(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Description Updates display name, bio, location, instruments and genres. Omitted fields keep their stored value.
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		DisplayName string            `json:"display_name"`
		Bio         string            `json:"bio"`
		City        string            `json:"city"`
		Country     string            `json:"country"`
		Lat         *float64          `json:"lat"`
		Lng         *float64          `json:"lng"`
		Instruments models.StringList `json:"instruments"`
		Genres      models.StringList `json:"genres"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.Context(), service.UpdateProfileInput{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		City:        req.City,
		Country:     req.Country,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Instruments: req.Instruments,
		Genres:      req.Genres,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetAllUsers handles GET /api/users
// @Summary Browse musicians
// @Tags users
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.User
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	users, err := s.userService.ListUsers(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// SearchUsers handles GET /api/users/search
// @Summary Search musicians by name
// @Tags users
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {array} models.User
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	term := validation.SanitizeSearchTerm(c.Query("q"))
	if term == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Search term is required"))
	}
	p := parsePagination(c, 20)

	users, err := s.userService.SearchUsers(c.Context(), term, p.Limit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id
// @Summary View a musician's profile
// @Description Returns the profile plus the viewer-relative connection status.
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{user=models.User,connection_status=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	viewerID := c.Locals("userID").(uint)

	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(ctx, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	view, _, err := s.connectionService.Status(ctx, viewerID, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":              user,
		"connection_status": view,
	})
}

// PromoteToAdmin handles POST /api/users/:id/promote-admin
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.SetAdmin(c.Context(), targetID, true)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// DemoteFromAdmin handles POST /api/users/:id/demote-admin
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.SetAdmin(c.Context(), targetID, false)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

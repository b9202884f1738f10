package server

import (
	"io"

	"jammer/internal/models"

	"github.com/gofiber/fiber/v2"
)

// readUploadedFile pulls the "file" part out of a multipart upload.
func readUploadedFile(c *fiber.Ctx) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, models.NewValidationError("No file uploaded")
	}

	f, err := header.Open()
	if err != nil {
		return nil, models.NewValidationError("Unreadable upload")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return content, nil
}

// UploadAvatar handles POST /api/profile/avatar
// @Summary Upload a profile avatar
// @Description Accepts JPEG, PNG, GIF or WebP; the image is downscaled and re-encoded as WebP before storage.
// @Tags profile
// @Accept mpfd
// @Produce json
// @Param file formData file true "Avatar image"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /profile/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	content, err := readUploadedFile(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	user, err := s.mediaService.UploadAvatar(c.Context(), userID, content)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// DeleteAvatar handles DELETE /api/profile/avatar
// @Summary Remove the profile avatar
// @Tags profile
// @Produce json
// @Success 200 {object} models.User
// @Router /profile/avatar [delete]
func (s *Server) DeleteAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.mediaService.DeleteAvatar(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// ServeMedia handles GET /media/* by resolving the stored path inside the
// upload directory. Traversal outside the directory resolves to not-found.
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	relPath := c.Params("*")
	abs, ok := s.mediaService.ServePath(relPath)
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("File", relPath))
	}
	return c.SendFile(abs)
}

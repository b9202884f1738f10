package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"path"
	"strings"

	"jammer/internal/config"
	"jammer/internal/models"
	"jammer/internal/repository"
	"jammer/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	avatarMaxSize = 512
	coverMaxSize  = 1600
	webpQuality   = 70
)

// MediaService processes avatar and jam cover uploads. Images are decoded,
// downscaled and re-encoded as WebP before storage, so whatever arrives, a
// single well-bounded format comes out.
type MediaService struct {
	userRepo           repository.UserRepository
	jamRepo            repository.JamRepository
	store              storage.FileStorage
	maxUploadSizeBytes int64
	publicBaseURL      string
}

// NewMediaService returns a new MediaService.
func NewMediaService(userRepo repository.UserRepository, jamRepo repository.JamRepository, store storage.FileStorage, cfg *config.Config) *MediaService {
	maxMB := 10
	baseURL := ""
	if cfg != nil {
		if cfg.UploadMaxSizeMB > 0 {
			maxMB = cfg.UploadMaxSizeMB
		}
		baseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	return &MediaService{
		userRepo:           userRepo,
		jamRepo:            jamRepo,
		store:              store,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
		publicBaseURL:      baseURL,
	}
}

// UploadAvatar replaces the user's avatar.
func (s *MediaService) UploadAvatar(ctx context.Context, userID uint, content []byte) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	encoded, err := s.processImage(content, avatarMaxSize)
	if err != nil {
		return nil, err
	}

	relPath := path.Join("avatars", fmt.Sprint(userID), "avatar.webp")
	if err := s.store.Save(ctx, relPath, encoded); err != nil {
		return nil, models.NewInternalError(err)
	}

	user.AvatarPath = relPath
	user.AvatarURL = s.publicURL(relPath)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAvatar removes the user's avatar files and clears the profile fields.
func (s *MediaService) DeleteAvatar(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeletePrefix(ctx, path.Join("avatars", fmt.Sprint(userID))); err != nil {
		return nil, models.NewInternalError(err)
	}

	user.AvatarPath = ""
	user.AvatarURL = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadJamCover replaces a jam's cover image. Host only.
func (s *MediaService) UploadJamCover(ctx context.Context, userID, jamID uint, content []byte) (*models.Jam, error) {
	jam, err := s.jamRepo.GetByID(ctx, jamID)
	if err != nil {
		return nil, err
	}
	if jam.HostID != userID {
		return nil, models.NewForbiddenError("Only the host can change the jam cover")
	}

	encoded, err := s.processImage(content, coverMaxSize)
	if err != nil {
		return nil, err
	}

	relPath := path.Join("covers", fmt.Sprint(jamID), "cover.webp")
	if err := s.store.Save(ctx, relPath, encoded); err != nil {
		return nil, models.NewInternalError(err)
	}

	jam.CoverPath = relPath
	jam.CoverURL = s.publicURL(relPath)
	if err := s.jamRepo.Update(ctx, jam); err != nil {
		return nil, err
	}
	return jam, nil
}

// ServePath resolves a stored media path to an absolute filesystem path for
// static serving.
func (s *MediaService) ServePath(relPath string) (string, bool) {
	return s.store.AbsolutePath(relPath)
}

func (s *MediaService) publicURL(relPath string) string {
	return s.publicBaseURL + "/media/" + relPath
}

// processImage validates, decodes, downscales and encodes the upload.
func (s *MediaService) processImage(content []byte, maxSize int) ([]byte, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(content)
	switch detectedType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	resized := downscale(decoded, maxSize)

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resized, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

// downscale shrinks the image so neither side exceeds maxSize, preserving
// aspect ratio. Smaller images pass through untouched.
func downscale(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSize && h <= maxSize {
		return src
	}

	scale := float64(maxSize) / float64(w)
	if h > w {
		scale = float64(maxSize) / float64(h)
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

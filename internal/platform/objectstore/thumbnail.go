package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/fithub/fithub-api/internal/platform/logger"
)

// ThumbnailSuffix is appended to an object key to name its thumbnail.
const ThumbnailSuffix = "_thumb.jpg"

// DefaultThumbnailMaxPixels caps the decoded size of a source image.
const DefaultThumbnailMaxPixels = 40_000_000

// ErrImageTooLarge is returned for images whose declared dimensions exceed
// the pixel cap. Nothing is decoded for them.
var ErrImageTooLarge = errors.New("image dimensions exceed thumbnail limit")

// ThumbnailKey returns the key under which the thumbnail of key is stored.
func ThumbnailKey(key string) string {
	return key + ThumbnailSuffix
}

// Thumbnailer stores a JPEG thumbnail next to every image it puts.
// Thumbnail failures are logged and never fail the upload.
type Thumbnailer struct {
	next      Store
	width     int
	maxPixels int
	logger    *slog.Logger
}

var _ Store = (*Thumbnailer)(nil)

// NewThumbnailer creates a Thumbnailer producing thumbnails width pixels
// wide from sources of at most maxPixels pixels.
func NewThumbnailer(next Store, width, maxPixels int, logger *slog.Logger) *Thumbnailer {
	if logger == nil {
		logger = slog.Default()
	}
	if width <= 0 {
		width = 320
	}
	if maxPixels <= 0 {
		maxPixels = DefaultThumbnailMaxPixels
	}
	return &Thumbnailer{
		next:      next,
		width:     width,
		maxPixels: maxPixels,
		logger:    logger.With(slog.String("component", "thumbnailer")),
	}
}

// Put implements Store.
func (t *Thumbnailer) Put(ctx context.Context, key, contentType string, payload []byte) (string, error) {
	u, _, err := t.PutImage(ctx, key, contentType, payload)
	return u, err
}

// PutImage stores payload and its thumbnail. thumbURL is empty when no
// thumbnail could be made or stored.
func (t *Thumbnailer) PutImage(ctx context.Context, key, contentType string, payload []byte) (u, thumbURL string, err error) {
	u, err = t.next.Put(ctx, key, contentType, payload)
	if err != nil {
		return "", "", err
	}

	log := logger.FromContextOrDefault(ctx, t.logger)
	thumb, err := Thumbnail(payload, t.width, t.maxPixels)
	if err != nil {
		log.Debug("skipping thumbnail", slog.String("key", key), slog.String("error", err.Error()))
		return u, "", nil
	}
	thumbURL, err = t.next.Put(ctx, ThumbnailKey(key), "image/jpeg", thumb)
	if err != nil {
		log.Warn("failed to store thumbnail", slog.String("key", key), slog.String("error", err.Error()))
		return u, "", nil
	}
	return u, thumbURL, nil
}

// Delete implements Store. It removes the object and its thumbnail.
func (t *Thumbnailer) Delete(ctx context.Context, key string) error {
	return errors.Join(
		t.next.Delete(ctx, key),
		t.next.Delete(ctx, ThumbnailKey(key)),
	)
}

// Thumbnail decodes an image and returns a JPEG resized to width, keeping
// the aspect ratio. Images narrower than width keep their size. Images
// declaring more than maxPixels pixels are rejected from their header alone.
func Thumbnail(payload []byte, width, maxPixels int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

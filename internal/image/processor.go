// Package image renders character portraits for API delivery: source .png
// files are re-encoded with metadata stripped and bounded to a maximum
// dimension so the API never serves raw uploads.
package image

import (
	"fmt"
	"os"

	"github.com/h2non/bimg"

	"github.com/onnwee/charrank/internal/validate"
)

// PortraitConfig holds configuration for portrait rendering.
type PortraitConfig struct {
	// Quality for JPEG/WebP encoding (1-100, default: 85)
	Quality int
	// Format of the rendered portrait: jpeg, webp, or png
	Format string
	// MaxDimension bounds both width and height (0 = no bound)
	MaxDimension int
}

// DefaultPortraitConfig returns the defaults used by the character image
// endpoint: JPEG at quality 85, bounded to 512px.
func DefaultPortraitConfig() PortraitConfig {
	return PortraitConfig{
		Quality:      85,
		Format:       "jpeg",
		MaxDimension: 512,
	}
}

// Renderer converts source portrait files into delivery-ready images.
type Renderer struct {
	config PortraitConfig
}

// NewRenderer creates a portrait renderer with the given config.
func NewRenderer(config PortraitConfig) *Renderer {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 85
	}
	return &Renderer{config: config}
}

// Render re-encodes portrait bytes: metadata is stripped, the image is
// resized to fit MaxDimension while keeping its aspect ratio, and the result
// is encoded in the configured format. Returns the bytes and their MIME type.
func (r *Renderer) Render(input []byte) ([]byte, string, error) {
	img := bimg.NewImage(input)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read portrait metadata: %w", err)
	}

	options := bimg.Options{
		Quality:       r.config.Quality,
		StripMetadata: true,
	}

	switch r.config.Format {
	case "jpeg", "jpg":
		options.Type = bimg.JPEG
	case "webp":
		options.Type = bimg.WEBP
	case "png":
		options.Type = bimg.PNG
	default:
		options.Type = bimg.JPEG
	}

	if r.config.MaxDimension > 0 {
		width := metadata.Size.Width
		height := metadata.Size.Height
		// Bound the longer side; bimg preserves aspect ratio when only one
		// dimension is set.
		if width >= height && width > r.config.MaxDimension {
			options.Width = r.config.MaxDimension
		} else if height > width && height > r.config.MaxDimension {
			options.Height = r.config.MaxDimension
		}
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render portrait: %w", err)
	}
	return out, contentType(options.Type), nil
}

// maxPortraitSourceBytes bounds source files before they reach libvips.
const maxPortraitSourceBytes = 10 * 1024 * 1024

// RenderFile renders the portrait at the given path. Oversized source files
// are rejected before being read.
func (r *Renderer) RenderFile(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat portrait file: %w", err)
	}
	if err := validate.FileSize(info.Size(), validate.FileConstraints{
		MaxSizeBytes: maxPortraitSourceBytes,
	}); err != nil {
		return nil, "", fmt.Errorf("portrait source rejected: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read portrait file: %w", err)
	}
	return r.Render(data)
}

// contentType maps a bimg image type to its MIME type.
func contentType(t bimg.ImageType) string {
	switch t {
	case bimg.JPEG:
		return "image/jpeg"
	case bimg.WEBP:
		return "image/webp"
	case bimg.PNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// StrippedOfMetadata reports whether the image carries no EXIF metadata.
// Used by tests to verify rendering sanitizes its output.
func StrippedOfMetadata(imageBytes []byte) (bool, error) {
	img := bimg.NewImage(imageBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}
	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""
	return !hasEXIF, nil
}

package preview

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// ImagingConfig holds configuration for the imaging-based generator.
type ImagingConfig struct {
	// MaxWidth is the bounding-box width in pixels.
	// Default: 512
	MaxWidth int

	// MaxHeight is the bounding-box height in pixels.
	// Default: 512
	MaxHeight int
}

// DefaultImagingConfig returns an ImagingConfig sized for wallet grid tiles.
func DefaultImagingConfig() ImagingConfig {
	return ImagingConfig{
		MaxWidth:  512,
		MaxHeight: 512,
	}
}

// ImagingGenerator implements Generator using the disintegration/imaging library.
type ImagingGenerator struct {
	config ImagingConfig
}

// Compile-time verification that ImagingGenerator implements Generator.
var _ Generator = (*ImagingGenerator)(nil)

// NewImagingGenerator creates a new imaging-based thumbnail generator.
func NewImagingGenerator(cfg ImagingConfig) *ImagingGenerator {
	return &ImagingGenerator{
		config: cfg,
	}
}

// Thumbnail decodes the source image, scales it down to fit the configured
// bounding box while preserving aspect ratio, and re-encodes it as PNG.
// Images already inside the box are never upscaled.
func (g *ImagingGenerator) Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, g.config.MaxWidth, g.config.MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

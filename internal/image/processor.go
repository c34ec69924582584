package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder

	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"

	"github.com/kailas-cloud/phytodex/internal/domain"
)

// Config bounds the output image handed to the vision service.
type Config struct {
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
}

// Prepared is a decoded, downscaled, JPEG-encoded leaf photo.
type Prepared struct {
	Data   []byte
	Width  int
	Height int
}

// Processor normalizes uploaded leaf photos: decode (jpeg/png/bmp),
// aspect-preserving downscale, JPEG re-encode.
type Processor struct {
	cfg Config
}

// NewProcessor creates a Processor, applying defaults for zero config values.
func NewProcessor(cfg Config) *Processor {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1024
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 1024
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 85
	}
	return &Processor{cfg: cfg}
}

// Prepare decodes raw upload bytes and returns a normalized JPEG.
// Undecodable input maps to domain.ErrInvalidImage.
func (p *Processor) Prepare(data []byte) (Prepared, error) {
	if len(data) == 0 {
		return Prepared{}, fmt.Errorf("empty upload: %w", domain.ErrInvalidImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("decode: %w: %w", domain.ErrInvalidImage, err)
	}

	img = p.downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
		return Prepared{}, fmt.Errorf("encode jpeg: %w", err)
	}

	bounds := img.Bounds()
	return Prepared{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// downscale fits the image within MaxWidth x MaxHeight preserving aspect ratio.
// Images already within bounds pass through untouched.
func (p *Processor) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w <= p.cfg.MaxWidth && h <= p.cfg.MaxHeight {
		return img
	}

	ratio := float64(p.cfg.MaxWidth) / float64(w)
	if hr := float64(p.cfg.MaxHeight) / float64(h); hr < ratio {
		ratio = hr
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*ratio), int(float64(h)*ratio)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}

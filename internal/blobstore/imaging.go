package blobstore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // decoder
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/common"
	_ "golang.org/x/image/bmp"  // decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder
)

// Image pipeline defaults.
const (
	DefaultQuality       = 80
	DefaultMaxDimension  = 1920
	DefaultThumbnailSize = 200
	DefaultMaxPixels     = 40_000_000
	thumbnailQuality     = 70
)

// Processor re-encodes and scales images.
type Processor struct {
	// Quality is the JPEG quality of re-encoded images (1..100).
	Quality int
	// MaxDimension bounds the longer side of re-encoded images.
	MaxDimension int
	// ThumbnailSize bounds the longer side of thumbnails.
	ThumbnailSize int
	// MaxPixels bounds width*height of images accepted for decoding.
	MaxPixels int
}

func (p Processor) withDefaults() Processor {
	if p.Quality <= 0 || p.Quality > 100 {
		p.Quality = DefaultQuality
	}
	if p.MaxDimension <= 0 {
		p.MaxDimension = DefaultMaxDimension
	}
	if p.ThumbnailSize <= 0 {
		p.ThumbnailSize = DefaultThumbnailSize
	}
	if p.MaxPixels <= 0 {
		p.MaxPixels = DefaultMaxPixels
	}
	return p
}

// decode reads the header first and refuses images whose pixel count
// exceeds MaxPixels before any pixel buffer is allocated.
func (p Processor) decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(p.MaxPixels) {
		return nil, "", fmt.Errorf("%w: image of %dx%d exceeds the %d pixel limit",
			common.ErrorValidation, cfg.Width, cfg.Height, p.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// IsImage reports whether the MIME type names a raster image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml"
}

// Compress downsizes the image to MaxDimension and re-encodes it: PNG stays
// PNG at best compression, everything else becomes JPEG at Quality. It
// returns the new bytes and their MIME type. Callers compare sizes.
func (p Processor) Compress(data []byte) ([]byte, string, error) {
	p = p.withDefaults()

	img, format, err := p.decode(data)
	if err != nil {
		return nil, "", err
	}
	img = fit(img, p.MaxDimension, draw.CatmullRom)

	var buf bytes.Buffer
	if format == "png" {
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// Thumbnail renders an aspect-preserving JPEG no larger than ThumbnailSize
// on either side.
func (p Processor) Thumbnail(data []byte) ([]byte, error) {
	p = p.withDefaults()

	img, _, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	img = fit(img, p.ThumbnailSize, draw.ApproxBiLinear)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so neither side exceeds limit.
func fit(img image.Image, limit int, scaler draw.Scaler) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}

	nw, nh := limit, limit
	if w >= h {
		nh = max(1, h*limit/w)
	} else {
		nw = max(1, w*limit/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrDecode is returned when the input is not a decodable image.
var ErrDecode = errors.New("cannot decode image")

// Processor rescales encoded images.
type Processor interface {
	// ScaleToWidth decodes data, scales it to width pixels preserving the
	// aspect ratio, and re-encodes it in its original format.
	ScaleToWidth(data []byte, width int) ([]byte, error)
}

// Resizer is the Processor backed by disintegration/imaging.
type Resizer struct {
	jpegQuality int
}

// NewResizer constructs a Resizer encoding JPEGs at the given quality.
func NewResizer(jpegQuality int) *Resizer {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 90
	}
	return &Resizer{jpegQuality: jpegQuality}
}

func (r *Resizer) ScaleToWidth(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid target width %d", width)
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrDecode, name)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	scaled := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, format, imaging.JPEGQuality(r.jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

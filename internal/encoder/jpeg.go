package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/junsooki/ScreenPub/internal/capture"
)

// DefaultQuality matches OpenCV's default JPEG quality.
const DefaultQuality = 95

// JPEGEncoder encodes frames as JPEG.
type JPEGEncoder struct {
	quality int
	scratch *image.RGBA
}

// NewJPEGEncoder creates a JPEG encoder with the given quality (1-100).
func NewJPEGEncoder(quality int) *JPEGEncoder {
	e := &JPEGEncoder{}
	e.SetQuality(quality)
	return e
}

func (e *JPEGEncoder) SetQuality(quality int) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	e.quality = quality
}

func (e *JPEGEncoder) Quality() int {
	return e.quality
}

func (e *JPEGEncoder) Format() string {
	return "jpeg"
}

// Encode compresses f. The scratch image is reused between calls, so an
// encoder must not be shared between goroutines.
func (e *JPEGEncoder) Encode(f *capture.Frame) ([]byte, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	img := e.rgba(f.Width, f.Height)
	r, b := 0, 2
	if f.Order == capture.BGR {
		r, b = 2, 0
	}
	src, dst := f.Pix, img.Pix
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst[j] = src[i+r]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+b]
		dst[j+3] = 0xff
	}

	var buf bytes.Buffer
	buf.Grow(len(f.Pix) / 8)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (e *JPEGEncoder) rgba(w, h int) *image.RGBA {
	if e.scratch == nil || e.scratch.Rect.Dx() != w || e.scratch.Rect.Dy() != h {
		e.scratch = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return e.scratch
}

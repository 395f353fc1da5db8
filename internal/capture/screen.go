package capture

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"
)

// ScreenCapturer captures screen rectangles through kbinani/screenshot,
// which already converts the display surface to RGBA. Frames are delivered
// in RGB order.
type ScreenCapturer struct {
	grab   func(image.Rectangle) (*image.RGBA, error)
	bounds func() []image.Rectangle
	closed atomic.Bool
}

// NewScreenCapturer checks that at least one display is active.
func NewScreenCapturer() (*ScreenCapturer, error) {
	c := &ScreenCapturer{
		grab:   screenshot.CaptureRect,
		bounds: activeDisplays,
	}
	if len(c.bounds()) == 0 {
		return nil, fmt.Errorf("%w: no active displays", ErrCapture)
	}
	return c, nil
}

func activeDisplays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	out := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, screenshot.GetDisplayBounds(i))
	}
	return out
}

// Capture grabs rect. The rectangle must lie within a single display.
func (c *ScreenCapturer) Capture(rect image.Rectangle) (*Frame, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: capturer closed", ErrCapture)
	}
	if err := ValidateRect(rect, c.bounds()); err != nil {
		return nil, err
	}

	img, err := c.grab(rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	ts := time.Now()

	if img.Bounds().Dx() != rect.Dx() || img.Bounds().Dy() != rect.Dy() {
		return nil, fmt.Errorf("%w: backend returned %dx%d for %dx%d region",
			ErrCapture, img.Bounds().Dx(), img.Bounds().Dy(), rect.Dx(), rect.Dy())
	}

	f := PackRGBA(img, RGB)
	f.Timestamp = ts
	return f, nil
}

// Close releases the capturer. Later captures fail with ErrCapture.
func (c *ScreenCapturer) Close() error {
	c.closed.Store(true)
	return nil
}

// ValidateRect reports ErrCapture when rect is empty or not contained in any
// of the display rectangles.
func ValidateRect(rect image.Rectangle, displays []image.Rectangle) error {
	if rect.Empty() {
		return fmt.Errorf("%w: empty region %v", ErrCapture, rect)
	}
	if len(displays) == 0 {
		return fmt.Errorf("%w: no active displays", ErrCapture)
	}
	for _, d := range displays {
		if rect.In(d) {
			return nil
		}
	}
	return fmt.Errorf("%w: region %v lies outside every display", ErrCapture, rect)
}

// PackRGBA drops the alpha channel of img and writes the pixels in the given
// channel order.
func PackRGBA(img *image.RGBA, order ChannelOrder) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)

	r, bl := 0, 2
	if order == BGR {
		r, bl = 2, 0
	}
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			dst[x*3+r] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+bl] = src[x*4+2]
		}
	}
	return &Frame{Pix: pix, Width: w, Height: h, Order: order}
}

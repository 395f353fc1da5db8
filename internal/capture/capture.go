package capture

import (
	"errors"
	"image"
	"time"
)

// ErrCapture reports a failure of the display backend or an invalid capture
// rectangle. It is fatal to a running publisher.
var ErrCapture = errors.New("screen capture failed")

// ChannelOrder is the byte order of a packed 3-channel pixel.
type ChannelOrder int

const (
	BGR ChannelOrder = iota
	RGB
)

func (o ChannelOrder) String() string {
	if o == RGB {
		return "rgb8"
	}
	return "bgr8"
}

// Frame represents a captured screen region as packed 8-bit pixels, three
// channels per pixel, rows without padding.
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Order     ChannelOrder
	Timestamp time.Time
}

// Stride returns the number of bytes per row.
func (f *Frame) Stride() int {
	return f.Width * 3
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Capturer returns the current pixel contents of a screen rectangle.
type Capturer interface {
	Capture(rect image.Rectangle) (*Frame, error)
	Close() error
}

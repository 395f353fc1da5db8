package encoder

import (
	"errors"
	"fmt"

	"github.com/junsooki/ScreenPub/internal/capture"
)

// ErrEncode reports a frame that cannot be encoded. The publisher skips the
// tick and keeps running.
var ErrEncode = errors.New("frame encode failed")

// Encoder encodes a frame into bytes.
type Encoder interface {
	Encode(f *capture.Frame) ([]byte, error)
	Format() string
}

// SwapRB exchanges the first and third channel of every pixel in place and
// flips the frame's channel order. Applying it twice restores the frame.
func SwapRB(f *capture.Frame) {
	pix := f.Pix
	for i := 0; i+2 < len(pix); i += 3 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
	if f.Order == capture.RGB {
		f.Order = capture.BGR
	} else {
		f.Order = capture.RGB
	}
}

// ToRGB converts f to RGB order in place.
func ToRGB(f *capture.Frame) error {
	if err := Validate(f); err != nil {
		return err
	}
	if f.Order != capture.RGB {
		SwapRB(f)
	}
	return nil
}

// Validate checks that f is non-empty and its buffer matches its dimensions.
func Validate(f *capture.Frame) error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrEncode)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: zero-size frame %dx%d", ErrEncode, f.Width, f.Height)
	}
	if want := f.Width * f.Height * 3; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer has %d bytes, want %d for %dx%d",
			ErrEncode, len(f.Pix), want, f.Width, f.Height)
	}
	return nil
}

package encoder

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/junsooki/ScreenPub/internal/capture"
	"github.com/junsooki/ScreenPub/internal/decoder"
)

func gradientFrame(w, h int, order capture.ChannelOrder) *capture.Frame {
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			pix[i] = uint8(x * 255 / w)
			pix[i+1] = uint8(y * 255 / h)
			pix[i+2] = 128
		}
	}
	return &capture.Frame{Pix: pix, Width: w, Height: h, Order: order}
}

func TestSwapRBInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := &capture.Frame{Pix: make([]byte, 37*11*3), Width: 37, Height: 11, Order: capture.BGR}
	rng.Read(f.Pix)
	orig := append([]byte(nil), f.Pix...)

	SwapRB(f)
	if f.Order != capture.RGB {
		t.Fatalf("order after one swap = %v", f.Order)
	}
	for i := 0; i < len(orig); i += 3 {
		if f.Pix[i] != orig[i+2] || f.Pix[i+1] != orig[i+1] || f.Pix[i+2] != orig[i] {
			t.Fatalf("pixel %d not swapped: %v -> %v", i/3, orig[i:i+3], f.Pix[i:i+3])
		}
	}

	SwapRB(f)
	if !bytes.Equal(f.Pix, orig) || f.Order != capture.BGR {
		t.Fatalf("double swap did not restore the frame")
	}
}

func TestToRGB(t *testing.T) {
	f := &capture.Frame{Pix: []byte{3, 2, 1}, Width: 1, Height: 1, Order: capture.BGR}
	if err := ToRGB(f); err != nil {
		t.Fatalf("ToRGB: %v", err)
	}
	if !bytes.Equal(f.Pix, []byte{1, 2, 3}) || f.Order != capture.RGB {
		t.Fatalf("ToRGB = %v %v", f.Pix, f.Order)
	}

	// Already RGB: untouched.
	if err := ToRGB(f); err != nil {
		t.Fatalf("ToRGB: %v", err)
	}
	if !bytes.Equal(f.Pix, []byte{1, 2, 3}) {
		t.Fatalf("ToRGB changed an RGB frame: %v", f.Pix)
	}
}

func TestEncodeDecodeKeepsDimensions(t *testing.T) {
	enc := NewJPEGEncoder(DefaultQuality)
	dec := decoder.NewJPEGDecoder()

	sizes := [][2]int{{1, 1}, {17, 9}, {320, 240}, {641, 479}}
	for _, sz := range sizes {
		for _, order := range []capture.ChannelOrder{capture.RGB, capture.BGR} {
			f := gradientFrame(sz[0], sz[1], order)
			data, err := enc.Encode(f)
			if err != nil {
				t.Fatalf("Encode %v: %v", sz, err)
			}
			img, err := dec.Decode(data)
			if err != nil {
				t.Fatalf("Decode %v: %v", sz, err)
			}
			if img.Bounds().Dx() != sz[0] || img.Bounds().Dy() != sz[1] {
				t.Errorf("decoded %v, want %dx%d", img.Bounds(), sz[0], sz[1])
			}
			w, h, err := decoder.Size(data)
			if err != nil || w != sz[0] || h != sz[1] {
				t.Errorf("Size = %d,%d,%v", w, h, err)
			}
		}
	}
}

func TestEncodeSmallerThanRaw(t *testing.T) {
	enc := NewJPEGEncoder(100)
	f := gradientFrame(320, 240, capture.RGB)
	data, err := enc.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) > len(f.Pix) {
		t.Errorf("compressed %d bytes > raw %d bytes", len(data), len(f.Pix))
	}
}

func TestEncodeHonoursChannelOrder(t *testing.T) {
	enc := NewJPEGEncoder(100)
	dec := decoder.NewJPEGDecoder()

	// A solid red frame stored as BGR must decode red, not blue.
	f := &capture.Frame{Width: 16, Height: 16, Order: capture.BGR}
	f.Pix = bytes.Repeat([]byte{0, 0, 255}, 16*16)
	data, err := enc.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := dec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c := img.RGBAAt(8, 8)
	if c.R < 200 || c.B > 60 {
		t.Errorf("center pixel = %+v, want red", c)
	}
}

func TestEncodeRejectsMalformedFrames(t *testing.T) {
	enc := NewJPEGEncoder(DefaultQuality)
	frames := []*capture.Frame{
		nil,
		{Width: 0, Height: 10},
		{Width: 10, Height: 0},
		{Pix: make([]byte, 10), Width: 4, Height: 4},
	}
	for i, f := range frames {
		if _, err := enc.Encode(f); !errors.Is(err, ErrEncode) {
			t.Errorf("frame %d: expected ErrEncode, got %v", i, err)
		}
	}
}

func TestQualityClamp(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{-4, 1}, {0, 1}, {50, 50}, {100, 100}, {250, 100}} {
		if got := NewJPEGEncoder(tt.in).Quality(); got != tt.want {
			t.Errorf("NewJPEGEncoder(%d).Quality() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

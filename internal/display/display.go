package display

import "image"

// Display renders decoded preview frames.
type Display interface {
	SetFrame(img *image.RGBA)
	Run() error
}

package display

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// EbitenDisplay renders the preview stream using Ebitengine.
type EbitenDisplay struct {
	mu          sync.Mutex
	frame       *image.RGBA
	dirty       bool
	ebitenImage *ebiten.Image
	title       string
	closed      bool
}

// NewEbitenDisplay creates an Ebitengine-based display.
func NewEbitenDisplay(title string) *EbitenDisplay {
	return &EbitenDisplay{title: title}
}

// SetFrame updates the displayed frame (called from network goroutine).
func (d *EbitenDisplay) SetFrame(img *image.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = img
	d.dirty = true
}

// Stop ends Run at the next update.
func (d *EbitenDisplay) Stop() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (d *EbitenDisplay) Run() error {
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle(d.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	err := ebiten.RunGame(d)
	if err == ebiten.Termination {
		return nil
	}
	return err
}

func (d *EbitenDisplay) Update() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ebiten.Termination
	}
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	d.mu.Lock()
	frame, dirty := d.frame, d.dirty
	d.dirty = false
	d.mu.Unlock()

	if frame == nil {
		screen.Fill(color.Black)
		ebitenutil.DebugPrint(screen, "waiting for frames...")
		return
	}

	fw, fh := frame.Bounds().Dx(), frame.Bounds().Dy()
	if d.ebitenImage == nil ||
		d.ebitenImage.Bounds().Dx() != fw ||
		d.ebitenImage.Bounds().Dy() != fh {
		d.ebitenImage = ebiten.NewImage(fw, fh)
		dirty = true
	}
	if dirty {
		d.ebitenImage.WritePixels(frame.Pix)
	}

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scale, offsetX, offsetY := aspectFitTransform(float64(sw), float64(sh), float64(fw), float64(fh))

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(d.ebitenImage, op)
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	if frameW <= 0 || frameH <= 0 {
		return 1, 0, 0
	}
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}

// Package publisher runs the capture-and-publish loop.
package publisher

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync/atomic"
	"time"

	"github.com/junsooki/ScreenPub/internal/camera"
	"github.com/junsooki/ScreenPub/internal/encoder"
	"github.com/junsooki/ScreenPub/internal/logutil"
	"github.com/junsooki/ScreenPub/internal/window"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// WindowLocator resolves the capture target.
type WindowLocator interface {
	Find(ctx context.Context, pattern string) (window.Window, error)
	Raise(w window.Window) error
}

// Target describes what to capture.
type Target struct {
	Title string
	// Region is relative to the window's top-left corner; zero means the
	// whole window.
	Region image.Rectangle
	Raise  bool
}

// Options configures a Loop.
type Options struct {
	Rate              int
	FrameID           string
	Quality           int
	PublishRaw        bool
	PublishCompressed bool
	// Clock defaults to the wall clock.
	Clock Clock
}

// Stats counts ticks by outcome.
type Stats struct {
	Published int64
	// Skipped ticks had a frame that could not be encoded.
	Skipped int64
	// Dropped ticks were rejected by the transport.
	Dropped int64
}

// Loop captures a window at a fixed rate and publishes every frame. It is
// strictly sequential: one frame exists at a time.
type Loop struct {
	locator WindowLocator
	open    OpenFunc
	opts    Options
	clock   Clock
	enc     *encoder.JPEGEncoder

	state     atomic.Int32
	published atomic.Int64
	skipped   atomic.Int64
	dropped   atomic.Int64
	logDrop   func() bool
}

// New creates a Loop in the INIT state.
func New(locator WindowLocator, open OpenFunc, opts Options) (*Loop, error) {
	if opts.Rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", opts.Rate)
	}
	if opts.Quality == 0 {
		opts.Quality = encoder.DefaultQuality
	}
	if opts.FrameID == "" {
		opts.FrameID = camera.DefaultFrameID
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Loop{
		locator: locator,
		open:    open,
		opts:    opts,
		clock:   clock,
		enc:     encoder.NewJPEGEncoder(opts.Quality),
		logDrop: logutil.Every(5 * time.Second),
	}, nil
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) Stats() Stats {
	return Stats{
		Published: l.published.Load(),
		Skipped:   l.skipped.Load(),
		Dropped:   l.dropped.Load(),
	}
}

// Run resolves the target, opens the session and publishes until ctx is done
// or capture fails. Cancellation is a clean stop and returns nil. The session
// is released on every path out of RUNNING.
func (l *Loop) Run(ctx context.Context, target Target) error {
	if l.State() != StateInit {
		return fmt.Errorf("loop already %s", l.State())
	}

	rect, err := l.resolve(ctx, target)
	if err != nil {
		l.state.Store(int32(StateStopped))
		return err
	}

	sess, err := l.open(ctx, rect)
	if err != nil {
		l.state.Store(int32(StateStopped))
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Printf("release session: %v", err)
		}
		l.state.Store(int32(StateStopped))
		s := l.Stats()
		log.Printf("Publisher stopped: %d published, %d skipped, %d dropped", s.Published, s.Skipped, s.Dropped)
	}()

	l.state.Store(int32(StateRunning))
	log.Printf("Publishing %dx%d region at %d Hz", rect.Dx(), rect.Dy(), l.opts.Rate)
	return l.spin(ctx, sess, rect)
}

func (l *Loop) resolve(ctx context.Context, target Target) (image.Rectangle, error) {
	w, err := l.locator.Find(ctx, target.Title)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("find window: %w", err)
	}
	log.Printf("Found window %q at %v (%dx%d)", w.Title, w.Bounds, w.Bounds.Dx(), w.Bounds.Dy())

	rect, err := window.ApplyRegion(w.Bounds, target.Region)
	if err != nil {
		return image.Rectangle{}, err
	}
	if rect != w.Bounds {
		log.Printf("Capture region %v (%dx%d)", rect, rect.Dx(), rect.Dy())
	}

	if target.Raise {
		if err := l.locator.Raise(w); err != nil {
			log.Printf("raise window %q: %v", w.Title, err)
		}
	}
	return rect, nil
}

func (l *Loop) spin(ctx context.Context, sess *Session, rect image.Rectangle) error {
	builder := camera.NewBuilder(l.opts.FrameID, rect.Dx(), rect.Dy())
	r := newRate(l.clock, l.opts.Rate)
	for ctx.Err() == nil {
		if err := l.tick(sess, builder, rect); err != nil {
			return err
		}
		if err := r.sleep(ctx); err != nil {
			return nil
		}
	}
	return nil
}

// tick returns an error only when the loop must stop.
func (l *Loop) tick(sess *Session, b *camera.Builder, rect image.Rectangle) error {
	frame, err := sess.Capturer.Capture(rect)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	if err := encoder.ToRGB(frame); err != nil {
		l.skip(err)
		return nil
	}

	var jpeg []byte
	if l.opts.PublishCompressed {
		if jpeg, err = l.enc.Encode(frame); err != nil {
			l.skip(err)
			return nil
		}
	}

	stamp := frame.Timestamp
	if stamp.IsZero() {
		stamp = l.clock.Now()
	}
	msgs := b.Build(frame, jpeg, l.enc.Format(), stamp, l.opts.PublishRaw)
	if err := sess.Transport.Publish(msgs); err != nil {
		l.dropped.Add(1)
		if l.logDrop() {
			log.Printf("publish: %v", err)
		}
		return nil
	}
	l.published.Add(1)
	return nil
}

func (l *Loop) skip(err error) {
	l.skipped.Add(1)
	log.Printf("skipping frame: %v", err)
}

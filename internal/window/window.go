package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("no window matches title")
	ErrUnsupported = errors.New("window lookup is not supported on this platform")
	ErrEmptyTitle  = errors.New("window title pattern is empty")
	ErrRegion      = errors.New("invalid capture region")
)

// Handle is an opaque OS window handle.
type Handle uintptr

// Window is a visible top-level window.
type Window struct {
	Handle Handle
	Title  string
	Bounds image.Rectangle
	// Own marks a window of this process or of the console it runs in. Its
	// title often contains the pattern given on the command line, so Find
	// never returns it.
	Own bool
}

// Backend enumerates and raises OS windows.
type Backend interface {
	// Enumerate returns the visible top-level windows in enumeration order.
	Enumerate() ([]Window, error)
	Raise(w Window) error
}

// MatchMode selects how a title pattern is compared.
type MatchMode int

const (
	MatchSubstring MatchMode = iota
	MatchExact
)

// Options configures a Locator.
type Options struct {
	Mode       MatchMode
	IgnoreCase bool
	// Timeout bounds the retry window of Find. Zero means a single attempt.
	Timeout  time.Duration
	Interval time.Duration
}

const defaultInterval = 250 * time.Millisecond

// Locator finds windows by title.
type Locator struct {
	backend Backend
	opts    Options
}

// NewLocator creates a Locator on top of backend.
func NewLocator(backend Backend, opts Options) *Locator {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Locator{backend: backend, opts: opts}
}

// Find returns the first enumerated window whose title matches pattern,
// retrying until the configured timeout elapses.
func (l *Locator) Find(ctx context.Context, pattern string) (Window, error) {
	if pattern == "" {
		return Window{}, ErrEmptyTitle
	}

	deadline := time.Now().Add(l.opts.Timeout)
	for {
		windows, err := l.backend.Enumerate()
		if err != nil {
			return Window{}, fmt.Errorf("enumerate windows: %w", err)
		}
		if w, ok := l.match(windows, pattern); ok {
			return w, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return Window{}, fmt.Errorf("%w %q", ErrNotFound, pattern)
		}
		if wait > l.opts.Interval {
			wait = l.opts.Interval
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Window{}, ctx.Err()
		case <-t.C:
		}
	}
}

// Raise asks the window manager to bring w to the foreground. It is best
// effort: the OS may refuse the focus change.
func (l *Locator) Raise(w Window) error {
	return l.backend.Raise(w)
}

func (l *Locator) match(windows []Window, pattern string) (Window, bool) {
	if l.opts.IgnoreCase {
		pattern = strings.ToLower(pattern)
	}
	for _, w := range windows {
		if w.Own {
			continue
		}
		title := w.Title
		if l.opts.IgnoreCase {
			title = strings.ToLower(title)
		}
		switch l.opts.Mode {
		case MatchExact:
			if title == pattern {
				return w, true
			}
		default:
			if strings.Contains(title, pattern) {
				return w, true
			}
		}
	}
	return Window{}, false
}

// ApplyRegion narrows bounds to region, given relative to the top-left corner
// of bounds. A zero region returns bounds unchanged.
func ApplyRegion(bounds, region image.Rectangle) (image.Rectangle, error) {
	if region == (image.Rectangle{}) {
		return bounds, nil
	}
	if region.Dx() <= 0 || region.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrRegion, region.Dx(), region.Dy())
	}
	return region.Add(bounds.Min), nil
}

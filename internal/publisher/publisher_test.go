package publisher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/junsooki/ScreenPub/internal/camera"
	"github.com/junsooki/ScreenPub/internal/capture"
	"github.com/junsooki/ScreenPub/internal/window"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

type fakeLocator struct {
	win    window.Window
	err    error
	raised int
}

func (l *fakeLocator) Find(context.Context, string) (window.Window, error) {
	return l.win, l.err
}

func (l *fakeLocator) Raise(window.Window) error {
	l.raised++
	return errors.New("focus stolen")
}

type fakeCapturer struct {
	clock *fakeClock
	cost  func(call int) time.Duration
	// failAt and badAt are 1-based call numbers; zero disables them.
	failAt int
	badAt  int
	// stop is called once the clock passes until.
	until time.Time
	stop  context.CancelFunc
	// order of the delivered frames; BGR by default.
	order  capture.ChannelOrder
	calls  int
	closed int
	rects  []image.Rectangle
}

func (c *fakeCapturer) Capture(rect image.Rectangle) (*capture.Frame, error) {
	c.calls++
	c.rects = append(c.rects, rect)
	if c.calls == c.failAt {
		return nil, fmt.Errorf("%w: device lost", capture.ErrCapture)
	}
	if c.cost != nil {
		c.clock.now = c.clock.now.Add(c.cost(c.calls))
	}
	if c.stop != nil && !c.clock.now.Before(c.until) {
		c.stop()
	}
	if c.calls == c.badAt {
		return &capture.Frame{Width: rect.Dx(), Height: rect.Dy(), Order: capture.BGR}, nil
	}
	pix := make([]byte, rect.Dx()*rect.Dy()*3)
	for i := range pix {
		pix[i] = byte(i)
	}
	return &capture.Frame{
		Pix:    pix,
		Width:  rect.Dx(),
		Height: rect.Dy(),
		Order:  c.order,
	}, nil
}

func (c *fakeCapturer) Close() error {
	c.closed++
	return nil
}

type fakeTransport struct {
	clock  *fakeClock
	times  []time.Time
	msgs   []*camera.Messages
	closed int
}

func (t *fakeTransport) Publish(m *camera.Messages) error {
	t.times = append(t.times, t.clock.now)
	t.msgs = append(t.msgs, m)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closed++
	return nil
}

type harness struct {
	clock     *fakeClock
	locator   *fakeLocator
	capturer  *fakeCapturer
	transport *fakeTransport
	opened    []image.Rectangle
}

func newHarness() *harness {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return &harness{
		clock: clock,
		locator: &fakeLocator{win: window.Window{
			Handle: 7,
			Title:  "RViz",
			Bounds: image.Rect(100, 100, 108, 106),
		}},
		capturer:  &fakeCapturer{clock: clock},
		transport: &fakeTransport{clock: clock},
	}
}

func (h *harness) open(_ context.Context, rect image.Rectangle) (*Session, error) {
	h.opened = append(h.opened, rect)
	return NewSession(h.capturer, h.transport), nil
}

func (h *harness) loop(t *testing.T, opts Options) *Loop {
	t.Helper()
	if opts.Rate == 0 {
		opts.Rate = 10
	}
	opts.Clock = h.clock
	l, err := New(h.locator, h.open, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestRunPacesToScheduleOverTenSeconds(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := h.clock.now
	h.capturer.cost = func(int) time.Duration { return 20 * time.Millisecond }
	h.capturer.until = start.Add(10 * time.Second)
	h.capturer.stop = cancel

	l := h.loop(t, Options{Rate: 10, PublishRaw: true, PublishCompressed: true})
	if err := l.Run(ctx, Target{Title: "RViz"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	period := 100 * time.Millisecond
	n := len(h.transport.times)
	if n < 100 || n > 101 {
		t.Fatalf("published %d ticks in 10s at 10 Hz", n)
	}
	for i, ts := range h.transport.times {
		expected := start.Add(time.Duration(i) * period)
		if d := ts.Sub(expected); d < -period || d > period {
			t.Fatalf("tick %d published %s off schedule", i, d)
		}
	}
	if got := l.Stats().Published; got != int64(n) {
		t.Errorf("Stats().Published = %d, want %d", got, n)
	}
}

func TestRunOverrunDoesNotCatchUp(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.capturer.cost = func(call int) time.Duration {
		if call == 4 {
			return 350 * time.Millisecond
		}
		return 10 * time.Millisecond
	}
	h.capturer.until = h.clock.now.Add(2 * time.Second)
	h.capturer.stop = cancel

	l := h.loop(t, Options{Rate: 10, PublishRaw: true})
	if err := l.Run(ctx, Target{Title: "RViz"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	short := 0
	for i := 1; i < len(h.transport.times); i++ {
		if h.transport.times[i].Sub(h.transport.times[i-1]) < 100*time.Millisecond {
			short++
		}
	}
	if short != 1 {
		t.Errorf("expected exactly one immediate tick after the overrun, got %d", short)
	}
}

func TestRunCaptureErrorStopsAndReleasesOnce(t *testing.T) {
	h := newHarness()
	h.capturer.failAt = 3

	l := h.loop(t, Options{PublishRaw: true, PublishCompressed: true})
	err := l.Run(context.Background(), Target{Title: "RViz"})
	if !errors.Is(err, capture.ErrCapture) {
		t.Fatalf("expected ErrCapture, got %v", err)
	}
	if l.State() != StateStopped {
		t.Errorf("state = %s", l.State())
	}
	if h.capturer.closed != 1 || h.transport.closed != 1 {
		t.Errorf("released capturer %d times, transport %d times", h.capturer.closed, h.transport.closed)
	}
	if got := len(h.transport.msgs); got != 2 {
		t.Errorf("published %d ticks before the failure", got)
	}
}

func TestRunSkipsUnencodableFrames(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.capturer.badAt = 2
	h.capturer.cost = func(int) time.Duration { return time.Millisecond }
	h.capturer.until = h.clock.now.Add(450 * time.Millisecond)
	h.capturer.stop = cancel

	l := h.loop(t, Options{PublishCompressed: true})
	if err := l.Run(ctx, Target{Title: "RViz"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := l.Stats()
	if s.Skipped != 1 {
		t.Errorf("skipped = %d", s.Skipped)
	}
	if s.Published != int64(h.capturer.calls-1) {
		t.Errorf("published %d of %d captures", s.Published, h.capturer.calls)
	}
	if h.capturer.closed != 1 {
		t.Errorf("capturer closed %d times", h.capturer.closed)
	}
}

func TestRunWindowNotFound(t *testing.T) {
	h := newHarness()
	h.locator.err = fmt.Errorf("%w %q", window.ErrNotFound, "RViz")

	l := h.loop(t, Options{PublishRaw: true})
	err := l.Run(context.Background(), Target{Title: "RViz"})
	if !errors.Is(err, window.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(h.opened) != 0 {
		t.Errorf("session opened for a missing window")
	}
	if l.State() != StateStopped {
		t.Errorf("state = %s", l.State())
	}
}

func TestRunCancelledReleasesSession(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	h.capturer.cost = func(int) time.Duration { return time.Millisecond }
	h.capturer.until = h.clock.now
	h.capturer.stop = cancel

	l := h.loop(t, Options{PublishRaw: true})
	if err := l.Run(ctx, Target{Title: "RViz"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.capturer.calls != 1 {
		t.Errorf("captured %d frames after cancel", h.capturer.calls)
	}
	if h.capturer.closed != 1 || h.transport.closed != 1 {
		t.Errorf("released capturer %d times, transport %d times", h.capturer.closed, h.transport.closed)
	}

	if err := l.Run(ctx, Target{Title: "RViz"}); err == nil {
		t.Errorf("a stopped loop must not run again")
	}
}

func TestRunRegionAndRaise(t *testing.T) {
	h := newHarness()
	h.capturer.failAt = 2

	l := h.loop(t, Options{PublishRaw: true, PublishCompressed: true})
	target := Target{Title: "RViz", Region: image.Rect(2, 1, 6, 4), Raise: true}
	if err := l.Run(context.Background(), target); !errors.Is(err, capture.ErrCapture) {
		t.Fatalf("Run: %v", err)
	}

	want := image.Rect(102, 101, 106, 104)
	if len(h.opened) != 1 || h.opened[0] != want {
		t.Fatalf("opened = %v, want %v", h.opened, want)
	}
	if h.capturer.rects[0] != want {
		t.Errorf("captured %v", h.capturer.rects[0])
	}
	if h.locator.raised != 1 {
		t.Errorf("raised %d times", h.locator.raised)
	}

	m := h.transport.msgs[0]
	if m.Raw.Width != 4 || m.Raw.Height != 3 || m.Info.Width != 4 || m.Info.Height != 3 {
		t.Errorf("message size %dx%d, info %dx%d", m.Raw.Width, m.Raw.Height, m.Info.Width, m.Info.Height)
	}
	if m.Raw.Encoding != "rgb8" {
		t.Errorf("raw encoding = %q", m.Raw.Encoding)
	}
	if m.Compressed == nil || len(m.Compressed.Data) == 0 {
		t.Errorf("missing compressed image")
	}
	if !m.Raw.Header.Stamp.Equal(m.Compressed.Header.Stamp) || !m.Raw.Header.Stamp.Equal(m.Info.Header.Stamp) {
		t.Errorf("stamps differ within a tick")
	}
}

func TestRunChannelOrder(t *testing.T) {
	for _, order := range []capture.ChannelOrder{capture.RGB, capture.BGR} {
		t.Run(order.String(), func(t *testing.T) {
			h := newHarness()
			h.capturer.failAt = 2
			h.capturer.order = order

			l := h.loop(t, Options{PublishRaw: true})
			_ = l.Run(context.Background(), Target{Title: "RViz"})
			data := h.transport.msgs[0].Raw.Data

			// Pixel 1 was captured as bytes 3, 4, 5.
			want := []byte{3, 4, 5}
			if order == capture.BGR {
				want = []byte{5, 4, 3}
			}
			if got := data[3:6]; got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
				t.Errorf("published pixel = %v, want %v", got, want)
			}
		})
	}
}

func TestRunStreamToggles(t *testing.T) {
	h := newHarness()
	h.capturer.failAt = 2

	l := h.loop(t, Options{PublishRaw: false, PublishCompressed: true})
	_ = l.Run(context.Background(), Target{Title: "RViz"})
	m := h.transport.msgs[0]
	if m.Raw != nil || m.Compressed == nil || m.Info == nil {
		t.Errorf("compressed-only tick = %+v", m)
	}
}

func TestNewRejectsBadRate(t *testing.T) {
	if _, err := New(&fakeLocator{}, nil, Options{Rate: 0}); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestSessionCloseOnce(t *testing.T) {
	c := &fakeCapturer{}
	tr := &fakeTransport{}
	s := NewSession(c, tr)
	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if c.closed != 1 || tr.closed != 1 {
		t.Errorf("closed capturer %d, transport %d", c.closed, tr.closed)
	}
}

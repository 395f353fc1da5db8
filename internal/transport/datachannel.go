package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/ScreenPub/internal/camera"
	"github.com/junsooki/ScreenPub/internal/logutil"
)

// ErrNoChannel is returned when no frames DataChannel is attached.
var ErrNoChannel = errors.New("frames data channel not set")

var (
	_ FrameSender   = (*DataChannelTransport)(nil)
	_ FrameReceiver = (*DataChannelTransport)(nil)
	_ Publisher     = (*Preview)(nil)
	_ Publisher     = (*ROS)(nil)
)

// DataChannelTransport carries encoded frames over a WebRTC DataChannel.
type DataChannelTransport struct {
	mu       sync.Mutex
	framesDC *webrtc.DataChannel
	onFrame  func(data []byte)
}

// NewDataChannelTransport wraps a frames DataChannel, which may be nil and
// attached later with SetFramesChannel.
func NewDataChannelTransport(framesDC *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if framesDC != nil {
		t.SetFramesChannel(framesDC)
	}
	return t
}

func (t *DataChannelTransport) SendFrame(data []byte) error {
	t.mu.Lock()
	dc := t.framesDC
	t.mu.Unlock()
	if dc == nil {
		return ErrNoChannel
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return nil
	}
	return dc.Send(data)
}

func (t *DataChannelTransport) OnFrame(cb func(data []byte)) {
	t.mu.Lock()
	t.onFrame = cb
	t.mu.Unlock()
}

// SetFramesChannel sets or replaces the frames DataChannel.
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.framesDC = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.Lock()
		cb := t.onFrame
		t.mu.Unlock()
		if cb != nil {
			cb(msg.Data)
		}
	})
}

// Preview mirrors the compressed stream to at most one WebRTC viewer. With
// no viewer attached Publish does nothing.
type Preview struct {
	mu        sync.Mutex
	sender    FrameSender
	logFailed func() bool
}

func NewPreview() *Preview {
	return &Preview{logFailed: logutil.Every(5 * time.Second)}
}

// Attach replaces the current viewer. A nil sender detaches.
func (p *Preview) Attach(s FrameSender) {
	p.mu.Lock()
	p.sender = s
	p.mu.Unlock()
}

func (p *Preview) Publish(m *camera.Messages) error {
	if m.Compressed == nil {
		return nil
	}
	p.mu.Lock()
	s := p.sender
	p.mu.Unlock()
	if s == nil {
		return nil
	}
	// A lagging viewer never fails the tick.
	if err := s.SendFrame(m.Compressed.Data); err != nil && p.logFailed() {
		logutil.Debugf("preview send: %v", err)
	}
	return nil
}

func (p *Preview) Close() error {
	p.Attach(nil)
	return nil
}

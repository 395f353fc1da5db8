package transport

import (
	"errors"

	"github.com/junsooki/ScreenPub/internal/camera"
)

// Publisher delivers the messages of one tick to subscribers. Publish is
// fire-and-forget: it must not wait for subscribers to consume.
type Publisher interface {
	Publish(m *camera.Messages) error
	Close() error
}

// FrameSender sends encoded frames.
type FrameSender interface {
	SendFrame(data []byte) error
}

// FrameReceiver receives encoded frames.
type FrameReceiver interface {
	OnFrame(callback func(data []byte))
}

// Fanout publishes every tick to each of its transports.
type Fanout []Publisher

func (f Fanout) Publish(m *camera.Messages) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport, in reverse order.
func (f Fanout) Close() error {
	var errs []error
	for i := len(f) - 1; i >= 0; i-- {
		if err := f[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

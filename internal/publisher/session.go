package publisher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/junsooki/ScreenPub/internal/capture"
	"github.com/junsooki/ScreenPub/internal/transport"
)

// Session owns the process-wide handles a Loop runs on: the capture backend
// and the messaging transport. Close releases both exactly once.
type Session struct {
	Capturer  capture.Capturer
	Transport transport.Publisher

	closeOnce sync.Once
	closeErr  error
}

// NewSession bundles an acquired capturer and transport.
func NewSession(c capture.Capturer, t transport.Publisher) *Session {
	return &Session{Capturer: c, Transport: t}
}

// Close releases the capturer first so no frame is grabbed after the
// transport is gone. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.Capturer != nil {
			if err := s.Capturer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close capturer: %w", err))
			}
		}
		if s.Transport != nil {
			if err := s.Transport.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close transport: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// OpenFunc acquires a Session for the resolved capture rectangle. It must
// release anything it acquired before returning an error.
type OpenFunc func(ctx context.Context, rect image.Rectangle) (*Session, error)

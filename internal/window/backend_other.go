//go:build !windows

package window

// NewSystemBackend returns the platform window backend.
func NewSystemBackend() Backend {
	return unsupportedBackend{}
}

type unsupportedBackend struct{}

func (unsupportedBackend) Enumerate() ([]Window, error) {
	return nil, ErrUnsupported
}

func (unsupportedBackend) Raise(Window) error {
	return ErrUnsupported
}

//go:build windows

package window

import (
	"context"
	"testing"
)

func TestSystemBackendEnumerate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping window enumeration test in short mode")
	}

	b := NewSystemBackend()
	windows, err := b.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	t.Logf("found %d windows", len(windows))
	for _, w := range windows {
		if w.Title == "" {
			t.Errorf("window %#x has an empty title", w.Handle)
		}
		if w.Bounds.Empty() {
			t.Errorf("window %q has empty bounds %v", w.Title, w.Bounds)
		}
	}

	// The test binary's own console must never be returned.
	for _, w := range windows {
		if !w.Own {
			continue
		}
		l := NewLocator(b, Options{Mode: MatchExact})
		if got, err := l.Find(context.Background(), w.Title); err == nil && got.Handle == w.Handle {
			t.Errorf("Find returned own window %q", w.Title)
		}
	}
}

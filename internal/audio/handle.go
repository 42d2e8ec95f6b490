// Package audio holds the generated audio payload behind an exclusively
// owned handle. The generation controller replaces a clip by releasing the
// previous handle before a new one is created, so resources cannot
// accumulate across sessions.
package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrReleased is returned when reading a handle after Release.
var ErrReleased = errors.New("audio handle released")

// Handle is the exclusively-owned reference to a generated audio payload.
// Safe for concurrent use; Release is idempotent.
type Handle struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

// NewHandle wraps payload in an owned handle.
func NewHandle(payload []byte) *Handle {
	return &Handle{data: payload}
}

// Bytes returns the payload, or ErrReleased once the handle was released.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return h.data, nil
}

// Len returns the payload size in bytes; zero after release.
func (h *Handle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0
	}
	return len(h.data)
}

// Duration decodes the clip length from the payload's WAV header.
func (h *Handle) Duration() (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0, ErrReleased
	}
	return Duration(h.data)
}

// Release drops the payload. It reports whether this call performed the
// release; later calls are no-ops.
func (h *Handle) Release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	h.data = nil
	return true
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

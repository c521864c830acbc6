package config

import "sync"

const (
	minViewportSize = 1
	maxViewportSize = 16384
)

// Viewport holds the current output size. The window layer writes it on resize,
// the renderer reads it every tick to build the camera projection.
type Viewport struct {
	mu     sync.RWMutex
	width  int
	height int
}

// NewViewport creates a viewport with the given initial size
func NewViewport(width, height int) *Viewport {
	v := &Viewport{}
	v.SetSize(width, height)
	return v
}

// Size returns the current output width and height in pixels
func (v *Viewport) Size() (int, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

// SetSize sets the output size in pixels
func (v *Viewport) SetSize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Clamp to reasonable values; a minimized window reports 0x0
	v.width = clamp(width, minViewportSize, maxViewportSize)
	v.height = clamp(height, minViewportSize, maxViewportSize)
}

// Aspect returns width / height
func (v *Viewport) Aspect() float32 {
	w, h := v.Size()
	return float32(w) / float32(h)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

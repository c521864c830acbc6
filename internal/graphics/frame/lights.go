package frame

import "mini-gfx/internal/graphics/transform"

// LightInfo is a fixed capacity list of the frame's active lights. Entries past
// Count are stale and never read.
type LightInfo struct {
	lights []transform.Light
	count  int
}

func NewLightInfo(capacity int) LightInfo {
	return LightInfo{lights: make([]transform.Light, capacity)}
}

// Add appends l, reporting false when the list is full
func (li *LightInfo) Add(l transform.Light) bool {
	if li.count >= len(li.lights) {
		return false
	}
	li.lights[li.count] = l
	li.count++
	return true
}

func (li *LightInfo) Reset() { li.count = 0 }

func (li *LightInfo) Count() int { return li.count }

func (li *LightInfo) Cap() int { return len(li.lights) }

// Active returns the live entries. Passes may update fields in place.
func (li *LightInfo) Active() []transform.Light {
	return li.lights[:li.count]
}

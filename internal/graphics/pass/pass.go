// Package pass contains the units of render work the renderer runs: init passes
// once per scene build, draw passes every frame.
package pass

import (
	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
	"mini-gfx/internal/scene"
)

// InitContext is handed to init passes while a scene is being built. Resources
// created by a pass must be tracked in Resources so the scene's teardown frees
// them.
type InitContext struct {
	Backend   backend.Backend
	Scene     *scene.Snapshot
	Resources *frame.SceneResources
}

// InitPass runs once per scene build, bracketed by BeginCompute/EndCompute
type InitPass interface {
	Name() string
	Dispatch(ctx *InitContext) error
}

// DrawPass runs every frame against the current slot, bracketed by
// BeginPass/EndPass
type DrawPass interface {
	Name() string
	Draw(f *frame.Frame) error
}

// Unscoped is implemented by passes that do their own backend scoping; the
// renderer then skips the Begin/End bracket.
type Unscoped interface {
	Unscoped()
}

// IsScoped reports whether the renderer should bracket p
func IsScoped(p any) bool {
	_, ok := p.(Unscoped)
	return !ok
}

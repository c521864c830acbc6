package frame

import (
	"errors"
	"fmt"

	"mini-gfx/internal/graphics/backend"
)

// SceneResources is the ledger of every backend object created for one scene.
// Releasing it fully reverses the build.
type SceneResources struct {
	// Batches holds one batch list per frame slot; lists share handles
	Batches  [][]*DrawBatch
	Uniforms []Uniforms

	SkyBox           backend.Handle
	SkyBoxMesh       backend.Handle
	TerrainHeightMap backend.Handle
	TerrainMesh      backend.Handle
	BRDFLUT          backend.Handle

	textures map[string]backend.Handle
	handles  []backend.Handle
	released bool
}

func newSceneResources(slots int) *SceneResources {
	return &SceneResources{
		Batches:  make([][]*DrawBatch, slots),
		Uniforms: make([]Uniforms, slots),
		textures: make(map[string]backend.Handle),
	}
}

// Track adds h to the ledger
func (r *SceneResources) Track(h backend.Handle) {
	if h != backend.NoHandle {
		r.handles = append(r.handles, h)
	}
}

// ReleaseOne releases h now and removes it from the ledger
func (r *SceneResources) ReleaseOne(b backend.Backend, h backend.Handle) error {
	for i, v := range r.handles {
		if v == h {
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			return b.Release(h)
		}
	}
	return fmt.Errorf("release %d: %w", h, backend.ErrUnknownHandle)
}

// Live returns the number of handles still owned by the ledger
func (r *SceneResources) Live() int { return len(r.handles) }

// BatchCount returns the number of batches of one slot
func (r *SceneResources) BatchCount() int {
	if len(r.Batches) == 0 {
		return 0
	}
	return len(r.Batches[0])
}

// Release frees every tracked handle in reverse creation order. Calling it
// again is a no-op.
func (r *SceneResources) Release(b backend.Backend) error {
	if r == nil || r.released {
		return nil
	}
	r.released = true

	var errs []error
	for i := len(r.handles) - 1; i >= 0; i-- {
		if err := b.Release(r.handles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	r.handles = nil
	r.textures = nil
	r.Batches = nil
	r.Uniforms = nil
	r.SkyBox, r.SkyBoxMesh = backend.NoHandle, backend.NoHandle
	r.TerrainHeightMap, r.TerrainMesh = backend.NoHandle, backend.NoHandle
	r.BRDFLUT = backend.NoHandle
	return errors.Join(errs...)
}

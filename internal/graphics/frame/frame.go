// Package frame holds the in-flight frame ring and the GPU resources built for a
// scene.
package frame

import (
	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/physics"
	"mini-gfx/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

// Context is the per-frame constant state of one slot. Handles are owned by the
// installed SceneResources; the slot only references them.
type Context struct {
	CamPos     mgl32.Vec4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	NumLights  int

	// shadow map arrays and their layer counts (cubes for the cube array)
	ShadowMap            backend.Handle
	ShadowMapCount       int
	GlobalShadowMap      backend.Handle
	GlobalShadowMapCount int
	CubeShadowMap        backend.Handle
	CubeShadowMapCount   int

	SkyBox           backend.Handle
	SkyBoxMesh       backend.Handle
	TerrainHeightMap backend.Handle
	TerrainMesh      backend.Handle
	BRDFLUT          backend.Handle
}

// clearResources drops every handle reference but keeps the per-tick constants
func (c *Context) clearResources() {
	*c = Context{CamPos: c.CamPos, View: c.View, Projection: c.Projection}
}

// DrawBatch is one drawable index group with its material. Node is a non-owning
// index into the snapshot the batch was built from.
type DrawBatch struct {
	Model      mgl32.Mat4
	Node       scene.NodeID
	RigidBody  physics.RigidBody
	Material   backend.MaterialBindings
	Geometry   backend.Handle
	BatchIndex int
}

// Uniforms are the constant buffers of one slot
type Uniforms struct {
	Frame  backend.Handle
	Batch  backend.Handle
	Lights backend.Handle
	Shadow backend.Handle
}

// Frame is one slot of the in-flight ring
type Frame struct {
	Index    int
	Context  Context
	Lights   LightInfo
	Batches  []*DrawBatch
	Uniforms Uniforms

	// Resources is the ledger the slot's handles belong to, nil with no scene
	Resources *SceneResources
}

// Bindings returns the resources a pass binds before submitting batches
func (f *Frame) Bindings() backend.FrameBindings {
	return backend.FrameBindings{
		Frame:           f.Uniforms.Frame,
		Lights:          f.Uniforms.Lights,
		ShadowMap:       f.Context.ShadowMap,
		GlobalShadowMap: f.Context.GlobalShadowMap,
		CubeShadowMap:   f.Context.CubeShadowMap,
		SkyBox:          f.Context.SkyBox,
		TerrainHeight:   f.Context.TerrainHeightMap,
		BRDFLUT:         f.Context.BRDFLUT,
	}
}

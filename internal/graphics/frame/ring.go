package frame

// Ring is the fixed set of in-flight frame slots. Slots are allocated once and
// reused; only the current slot is written during a tick.
type Ring struct {
	frames []Frame
	index  int
}

// NewRing allocates n slots, each able to hold maxLights lights
func NewRing(n, maxLights int) *Ring {
	if n < 1 {
		n = 1
	}
	r := &Ring{frames: make([]Frame, n)}
	for i := range r.frames {
		r.frames[i].Index = i
		r.frames[i].Lights = NewLightInfo(maxLights)
	}
	return r
}

func (r *Ring) Current() *Frame { return &r.frames[r.index] }

// Advance moves to the next slot, wrapping after Len slots
func (r *Ring) Advance() { r.index = (r.index + 1) % len(r.frames) }

func (r *Ring) Index() int { return r.index }

func (r *Ring) Len() int { return len(r.frames) }

func (r *Ring) At(i int) *Frame { return &r.frames[i] }

// Each calls fn for every slot in index order
func (r *Ring) Each(fn func(f *Frame)) {
	for i := range r.frames {
		fn(&r.frames[i])
	}
}

// Install points every slot at res: its own batch list, its uniform buffers and
// the shared skybox, terrain and BRDF resources.
func (r *Ring) Install(res *SceneResources) {
	r.Each(func(f *Frame) {
		f.Context.clearResources()
		f.Resources = res
		f.Batches = res.Batches[f.Index]
		f.Uniforms = res.Uniforms[f.Index]
		f.Context.SkyBox = res.SkyBox
		f.Context.SkyBoxMesh = res.SkyBoxMesh
		f.Context.TerrainHeightMap = res.TerrainHeightMap
		f.Context.TerrainMesh = res.TerrainMesh
		f.Context.BRDFLUT = res.BRDFLUT
	})
}

// Clear drops every slot's batches and resource references
func (r *Ring) Clear() {
	r.Each(func(f *Frame) {
		f.Context.clearResources()
		f.Resources = nil
		f.Batches = nil
		f.Uniforms = Uniforms{}
		f.Lights.Reset()
	})
}

package pass

import (
	"fmt"

	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
	"mini-gfx/internal/graphics/transform"
	"mini-gfx/internal/scene"
)

// cube shadow depth range
const (
	OmniShadowNear = 0.1
	OmniShadowFar  = 10
)

// ShadowSizes are the edge lengths of the shadow map arrays
type ShadowSizes struct {
	Local  int // spot and area lights
	Global int // infinity lights
	Cube   int // omni lights
}

// ShadowMapPass renders depth for every shadow casting light into per-slot
// shadow map arrays. Arrays grow when a frame needs more layers than the slot
// has; they are never shrunk while the scene lives.
type ShadowMapPass struct {
	backend backend.Backend
	sizes   ShadowSizes
}

func NewShadowMapPass(b backend.Backend, sizes ShadowSizes) *ShadowMapPass {
	return &ShadowMapPass{backend: b, sizes: sizes}
}

func (p *ShadowMapPass) Name() string { return "shadow_map" }

type shadowArray struct {
	handle *backend.Handle
	count  *int
	kind   backend.TextureKind
	size   int
	name   string
	lights []int
}

func (p *ShadowMapPass) Draw(f *frame.Frame) error {
	if f.Resources == nil {
		return nil
	}
	ctx := &f.Context
	local := shadowArray{handle: &ctx.ShadowMap, count: &ctx.ShadowMapCount, kind: backend.Texture2DArray, size: p.sizes.Local, name: "shadow_map"}
	global := shadowArray{handle: &ctx.GlobalShadowMap, count: &ctx.GlobalShadowMapCount, kind: backend.Texture2DArray, size: p.sizes.Global, name: "global_shadow_map"}
	cube := shadowArray{handle: &ctx.CubeShadowMap, count: &ctx.CubeShadowMapCount, kind: backend.TextureCubeArray, size: p.sizes.Cube, name: "cube_shadow_map"}

	lights := f.Lights.Active()
	for i := range lights {
		l := &lights[i]
		l.ShadowMapIndex = transform.NoShadowMap
		if !l.CastShadow {
			continue
		}
		var arr *shadowArray
		switch l.Type {
		case scene.LightInfinity:
			arr = &global
		case scene.LightOmni:
			arr = &cube
		case scene.LightArea:
			// area lights have no shadow projection
			continue
		default:
			arr = &local
		}
		l.ShadowMapIndex = int32(len(arr.lights))
		arr.lights = append(arr.lights, i)
	}

	for _, arr := range []*shadowArray{&local, &global, &cube} {
		if err := p.ensure(f, arr); err != nil {
			return err
		}
	}

	// lights now carry their layer indices
	if len(lights) > 0 {
		if err := p.backend.WriteBuffer(f.Uniforms.Lights, 0, frame.LightConstants(lights)); err != nil {
			return err
		}
	}

	if len(local.lights)+len(global.lights) > 0 {
		if err := p.backend.UsePipeline(backend.PipelineShadow); err != nil {
			return err
		}
		for _, arr := range []*shadowArray{&local, &global} {
			for layer, li := range arr.lights {
				l := &lights[li]
				t := backend.ShadowTarget{Map: *arr.handle, Layer: layer, Size: arr.size, Constants: f.Uniforms.Shadow, Clear: layer == 0}
				if err := p.render(f, t, frame.ShadowConstants(l.VP, l.Position, 0, 0, layer)); err != nil {
					return err
				}
			}
		}
	}

	if len(cube.lights) > 0 {
		if err := p.backend.UsePipeline(backend.PipelineShadowCube); err != nil {
			return err
		}
		for idx, li := range cube.lights {
			l := &lights[li]
			faces := transform.OmniShadowMatrices(l.Position.Vec3(), cube.size, cube.size, OmniShadowNear, OmniShadowFar)
			for face, vp := range faces {
				layer := idx*6 + face
				t := backend.ShadowTarget{Map: *cube.handle, Layer: layer, Size: cube.size, Constants: f.Uniforms.Shadow, Clear: layer == 0}
				if err := p.render(f, t, frame.ShadowConstants(vp, l.Position, OmniShadowNear, OmniShadowFar, layer)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ensure grows arr's texture to hold every assigned layer
func (p *ShadowMapPass) ensure(f *frame.Frame, arr *shadowArray) error {
	need := len(arr.lights)
	if need <= *arr.count {
		return nil
	}
	if *arr.handle != backend.NoHandle {
		if err := f.Resources.ReleaseOne(p.backend, *arr.handle); err != nil {
			return err
		}
		*arr.handle, *arr.count = backend.NoHandle, 0
	}
	h, err := p.backend.CreateTexture(backend.TextureDesc{
		Name:    fmt.Sprintf("%s[%d]", arr.name, f.Index),
		Kind:    arr.kind,
		Format:  backend.FormatDepth32F,
		Width:   arr.size,
		Height:  arr.size,
		Layers:  need,
		Storage: true,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", arr.name, err)
	}
	f.Resources.Track(h)
	*arr.handle, *arr.count = h, need
	return nil
}

func (p *ShadowMapPass) render(f *frame.Frame, t backend.ShadowTarget, constants []byte) error {
	if err := p.backend.WriteBuffer(t.Constants, 0, constants); err != nil {
		return err
	}
	if err := p.backend.BeginShadowMap(t); err != nil {
		return err
	}
	for _, b := range f.Batches {
		if err := p.backend.SubmitDrawBatch(backend.Draw{
			Geometry:   b.Geometry,
			Constants:  f.Uniforms.Batch,
			BatchIndex: b.BatchIndex,
		}); err != nil {
			return err
		}
	}
	return p.backend.EndShadowMap(t)
}

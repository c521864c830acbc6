package pass

import (
	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
)

// ForwardGeometryPass shades every batch, then the terrain and skybox
type ForwardGeometryPass struct {
	backend backend.Backend
}

func NewForwardGeometryPass(b backend.Backend) *ForwardGeometryPass {
	return &ForwardGeometryPass{backend: b}
}

func (p *ForwardGeometryPass) Name() string { return "forward_geometry" }

func (p *ForwardGeometryPass) Draw(f *frame.Frame) error {
	b := p.backend
	if err := b.UsePipeline(backend.PipelineForward); err != nil {
		return err
	}
	if err := b.BindFrame(f.Bindings()); err != nil {
		return err
	}
	for _, batch := range f.Batches {
		if err := b.SubmitDrawBatch(backend.Draw{
			Geometry:   batch.Geometry,
			Constants:  f.Uniforms.Batch,
			BatchIndex: batch.BatchIndex,
			Material:   batch.Material,
		}); err != nil {
			return err
		}
	}

	if f.Context.TerrainMesh != backend.NoHandle {
		if err := b.UsePipeline(backend.PipelineTerrain); err != nil {
			return err
		}
		base := len(f.Batches)
		for i := 0; i < frame.TerrainPatchCount; i++ {
			if err := b.SubmitDrawBatch(backend.Draw{
				Geometry:   f.Context.TerrainMesh,
				Constants:  f.Uniforms.Batch,
				BatchIndex: base + i,
				Material:   backend.MaterialBindings{Height: f.Context.TerrainHeightMap},
			}); err != nil {
				return err
			}
		}
	}

	if f.Context.SkyBoxMesh != backend.NoHandle {
		if err := b.UsePipeline(backend.PipelineSkyBox); err != nil {
			return err
		}
		return b.SubmitDrawBatch(backend.Draw{Geometry: f.Context.SkyBoxMesh})
	}
	return nil
}

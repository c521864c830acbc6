package pass

import (
	"fmt"

	"mini-gfx/internal/graphics/backend"
)

const (
	BRDFLUTName = "BRDF_LUT"
	BRDFLUTSize = 512
)

// BRDFIntegrator precomputes the split-sum BRDF lookup table used by image
// based lighting
type BRDFIntegrator struct{}

func (BRDFIntegrator) Name() string { return "brdf_integrator" }

func (BRDFIntegrator) Dispatch(ctx *InitContext) error {
	b := ctx.Backend
	lut, err := b.CreateTexture(backend.TextureDesc{
		Name:    BRDFLUTName,
		Kind:    backend.Texture2D,
		Format:  backend.FormatRG32F,
		Width:   BRDFLUTSize,
		Height:  BRDFLUTSize,
		Layers:  1,
		Storage: true,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", BRDFLUTName, err)
	}
	ctx.Resources.Track(lut)
	ctx.Resources.BRDFLUT = lut

	if err := b.UsePipeline(backend.PipelineBRDF); err != nil {
		return err
	}
	if err := b.DispatchCompute(lut, BRDFLUTSize, BRDFLUTSize, 1); err != nil {
		return fmt.Errorf("integrate %s: %w", BRDFLUTName, err)
	}
	return nil
}

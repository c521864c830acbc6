package pass_test

import (
	"encoding/binary"
	"math"
	"testing"

	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
	"mini-gfx/internal/graphics/pass"
	"mini-gfx/internal/graphics/transform"
	"mini-gfx/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sizes = pass.ShadowSizes{Local: 256, Global: 1024, Cube: 128}

// installed returns slot 0 of a ring holding a scene with two cubes
func installed(t *testing.T, rec *backend.Recorder) *frame.Frame {
	t.Helper()
	s := scene.New()
	s.Geometries["cube"] = &scene.Geometry{Mesh: scene.Cube(1)}
	s.AddNode(scene.Node{Name: "a", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "cube"})
	s.AddNode(scene.Node{Name: "b", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "cube"})

	res, err := frame.NewBuilder(rec, 1, 8).Build(s)
	require.NoError(t, err)
	ring := frame.NewRing(1, 8)
	ring.Install(res)
	return ring.Current()
}

func mat4At(buf []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return m
}

func TestBRDFIntegrator(t *testing.T) {
	rec := backend.NewRecorder()
	var p pass.InitPass = pass.BRDFIntegrator{}

	res, err := frame.NewBuilder(rec, 2, 1).Build(nil, func(res *frame.SceneResources) error {
		return p.Dispatch(&pass.InitContext{Backend: rec, Resources: res})
	})
	require.NoError(t, err)
	require.NotEqual(t, backend.NoHandle, res.BRDFLUT)
	assert.Contains(t, rec.LiveNames(), pass.BRDFLUTName)
	assert.Equal(t, 1, rec.Count("DispatchCompute"))

	ring := frame.NewRing(2, 1)
	ring.Install(res)
	ring.Each(func(f *frame.Frame) {
		assert.Equal(t, res.BRDFLUT, f.Context.BRDFLUT)
	})

	require.NoError(t, res.Release(rec))
	assert.Equal(t, 0, rec.Live())
}

func TestShadowPassOmniRendersSixFaces(t *testing.T) {
	rec := backend.NewRecorder()
	f := installed(t, rec)
	cam := transform.CameraMatrices(nil, 1)
	l, err := transform.LightMatrices(mgl32.Translate3D(1, 2, 3), &scene.Light{Type: scene.LightOmni, CastShadow: true}, cam)
	require.NoError(t, err)
	require.True(t, f.Lights.Add(l))
	rec.Reset()

	require.NoError(t, pass.NewShadowMapPass(rec, sizes).Draw(f))

	assert.Equal(t, 6, rec.Count("BeginShadowMap"))
	assert.Equal(t, 6, rec.Count("EndShadowMap"))
	assert.Equal(t, 12, rec.Count("SubmitDrawBatch"))
	assert.NotEqual(t, backend.NoHandle, f.Context.CubeShadowMap)
	assert.Equal(t, 1, f.Context.CubeShadowMapCount)
	assert.Equal(t, backend.NoHandle, f.Context.ShadowMap)
	assert.Equal(t, int32(0), f.Lights.Active()[0].ShadowMapIndex)

	writes := rec.Writes(f.Uniforms.Shadow)
	require.Len(t, writes, 6)
	want := transform.OmniShadowMatrices(mgl32.Vec3{1, 2, 3}, sizes.Cube, sizes.Cube, pass.OmniShadowNear, pass.OmniShadowFar)
	seen := map[mgl32.Mat4]bool{}
	for i, w := range writes {
		vp := mat4At(w)
		assert.Equal(t, want[i], vp)
		seen[vp] = true
	}
	assert.Len(t, seen, 6)

	// only the first layer of the array clears it
	var clears int
	for _, c := range rec.Calls() {
		if c.Op == "BeginShadowMap" && c.Args[0].(backend.ShadowTarget).Clear {
			clears++
		}
	}
	assert.Equal(t, 1, clears)
}

func TestShadowPassAssignsLayersAndGrows(t *testing.T) {
	rec := backend.NewRecorder()
	f := installed(t, rec)
	cam := transform.CameraMatrices(nil, 1)
	spot := &scene.Light{Type: scene.LightSpot, CastShadow: true, AngleAttenuation: scene.AttenCurve{Params: [5]float32{0.4}}}
	sun := &scene.Light{Type: scene.LightInfinity, CastShadow: true}
	dim := &scene.Light{Type: scene.LightSpot, AngleAttenuation: scene.AttenCurve{Params: [5]float32{0.4}}}

	add := func(obj *scene.Light) {
		l, err := transform.LightMatrices(mgl32.Ident4(), obj, cam)
		require.NoError(t, err)
		require.True(t, f.Lights.Add(l))
	}
	add(spot)
	add(dim)
	add(sun)

	p := pass.NewShadowMapPass(rec, sizes)
	require.NoError(t, p.Draw(f))
	lights := f.Lights.Active()
	assert.Equal(t, int32(0), lights[0].ShadowMapIndex)
	assert.Equal(t, transform.NoShadowMap, lights[1].ShadowMapIndex)
	assert.Equal(t, int32(0), lights[2].ShadowMapIndex)
	assert.Equal(t, 1, f.Context.ShadowMapCount)
	assert.Equal(t, 1, f.Context.GlobalShadowMapCount)
	first := f.Context.ShadowMap

	// light constants are re-uploaded with the assigned layers
	lw := rec.Writes(f.Uniforms.Lights)
	require.NotEmpty(t, lw)
	assert.Len(t, lw[len(lw)-1], 3*frame.LightSize)

	// same light count: the array is reused
	f.Lights.Reset()
	add(spot)
	add(sun)
	require.NoError(t, p.Draw(f))
	assert.Equal(t, first, f.Context.ShadowMap)

	// one more spot: the local array grows and the old one is released
	before := rec.Live()
	f.Lights.Reset()
	add(spot)
	add(spot)
	add(sun)
	require.NoError(t, p.Draw(f))
	assert.NotEqual(t, first, f.Context.ShadowMap)
	assert.Equal(t, 2, f.Context.ShadowMapCount)
	assert.Equal(t, int32(1), f.Lights.Active()[1].ShadowMapIndex)
	assert.Equal(t, before, rec.Live())

	// the scene ledger owns the shadow maps
	require.NoError(t, f.Resources.Release(rec))
	assert.Equal(t, 0, rec.Live())
}

func TestShadowPassSkipsAreaLights(t *testing.T) {
	rec := backend.NewRecorder()
	f := installed(t, rec)
	cam := transform.CameraMatrices(nil, 1)
	l, err := transform.LightMatrices(mgl32.Ident4(), &scene.Light{Type: scene.LightArea, CastShadow: true, Dimension: mgl32.Vec2{2, 1}}, cam)
	require.NoError(t, err)
	require.True(t, f.Lights.Add(l))
	rec.Reset()

	require.NoError(t, pass.NewShadowMapPass(rec, sizes).Draw(f))
	assert.Equal(t, transform.NoShadowMap, f.Lights.Active()[0].ShadowMapIndex)
	assert.Equal(t, 0, rec.Count("BeginShadowMap"))
	assert.Equal(t, backend.NoHandle, f.Context.ShadowMap)
	assert.Equal(t, 0, f.Context.ShadowMapCount)
}

func TestShadowPassWithoutScene(t *testing.T) {
	rec := backend.NewRecorder()
	ring := frame.NewRing(1, 1)
	require.NoError(t, pass.NewShadowMapPass(rec, sizes).Draw(ring.Current()))
	assert.Empty(t, rec.Calls())
}

func TestForwardPassSubmitsBatchesThenSkyBox(t *testing.T) {
	rec := backend.NewRecorder()
	f := installed(t, rec)
	f.Context.SkyBoxMesh = f.Batches[0].Geometry
	rec.Reset()

	require.NoError(t, pass.NewForwardGeometryPass(rec).Draw(f))
	assert.Equal(t, []string{"UsePipeline", "BindFrame", "SubmitDrawBatch", "SubmitDrawBatch", "UsePipeline", "SubmitDrawBatch"}, rec.Ops())

	calls := rec.Calls()
	assert.Equal(t, backend.PipelineForward, calls[0].Args[0])
	assert.Equal(t, f.Bindings(), calls[1].Args[0])
	d := calls[3].Args[0].(backend.Draw)
	assert.Equal(t, 1, d.BatchIndex)
	assert.Equal(t, f.Uniforms.Batch, d.Constants)
	assert.Equal(t, backend.PipelineSkyBox, calls[4].Args[0])
}

func TestForwardPassDrawsTerrainPatches(t *testing.T) {
	rec := backend.NewRecorder()
	f := installed(t, rec)
	f.Context.TerrainMesh = f.Batches[0].Geometry
	f.Context.TerrainHeightMap = 77
	rec.Reset()

	require.NoError(t, pass.NewForwardGeometryPass(rec).Draw(f))
	assert.Equal(t, 2+frame.TerrainPatchCount, rec.Count("SubmitDrawBatch"))

	calls := rec.Calls()
	last := calls[len(calls)-1].Args[0].(backend.Draw)
	assert.Equal(t, 2+frame.TerrainPatchCount-1, last.BatchIndex)
	assert.Equal(t, backend.Handle(77), last.Material.Height)
}

type selfScoped struct{ pass.ForwardGeometryPass }

func (selfScoped) Unscoped() {}

func TestIsScoped(t *testing.T) {
	assert.True(t, pass.IsScoped(pass.NewForwardGeometryPass(nil)))
	assert.True(t, pass.IsScoped(pass.BRDFIntegrator{}))
	assert.False(t, pass.IsScoped(selfScoped{}))
}

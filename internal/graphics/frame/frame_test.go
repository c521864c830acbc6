package frame_test

import (
	"encoding/binary"
	"errors"
	"image/color"
	"math"
	"testing"

	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
	"mini-gfx/internal/graphics/transform"
	"mini-gfx/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScene(t *testing.T) *scene.Snapshot {
	t.Helper()
	s := scene.New()
	red := scene.SolidTexture("red", color.RGBA{255, 0, 0, 255}, 4)
	s.Materials["red"] = &scene.Material{Name: "red", BaseColor: red, Roughness: scene.SolidTexture("rough", color.RGBA{128, 128, 128, 255}, 1)}
	// shares the base color texture by name
	s.Materials["red2"] = &scene.Material{Name: "red2", BaseColor: red}

	s.Geometries["cube"] = &scene.Geometry{Mesh: scene.Cube(1)}
	two := scene.Cube(1)
	two.Indices = append(two.Indices, scene.IndexArray{MaterialIndex: 1, Type: scene.IndexInt32, Data: make([]byte, 12), Count: 3})
	s.Geometries["two"] = &scene.Geometry{Mesh: two}
	s.Geometries["empty"] = &scene.Geometry{}

	s.AddNode(scene.Node{Name: "a", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "cube", Materials: []string{"red"}, Transform: mgl32.Translate3D(1, 2, 3)})
	s.AddNode(scene.Node{Name: "b", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "two", Materials: []string{"red2", "missing"}, RigidBody: 9})
	s.AddNode(scene.Node{Name: "hidden", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: false, Object: "nothing"})
	s.AddNode(scene.Node{Name: "c", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "empty"})

	s.Lights["sun"] = &scene.Light{Type: scene.LightInfinity}
	s.AddNode(scene.Node{Name: "sun", Kind: scene.NodeLight, Parent: scene.NoNode, Object: "sun"})

	box := &scene.SkyBox{}
	for i := range box.Faces {
		box.Faces[i] = scene.SolidTexture("sky", color.RGBA{0, 0, 255, 255}, 8)
	}
	s.SkyBox = box
	s.Terrain = &scene.Terrain{HeightMap: scene.SolidTexture("height", color.RGBA{10, 10, 10, 255}, 8)}
	require.NoError(t, s.UpdateTransforms())
	return s
}

func TestBuildCreatesBatchesPerSlot(t *testing.T) {
	rec := backend.NewRecorder()
	b := frame.NewBuilder(rec, 3, 8)

	res, err := b.Build(testScene(t))
	require.NoError(t, err)

	require.Len(t, res.Batches, 3)
	assert.Equal(t, 3, res.BatchCount())
	for slot, batches := range res.Batches {
		require.Len(t, batches, 3, "slot %d", slot)
		for i, batch := range batches {
			assert.Equal(t, i, batch.BatchIndex)
		}
		// slots own distinct batch objects sharing the same handles
		if slot > 0 {
			assert.NotSame(t, res.Batches[0][0], batches[0])
			assert.Equal(t, res.Batches[0][0].Geometry, batches[0].Geometry)
		}
	}

	first := res.Batches[0][0]
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), first.Model)
	assert.NotEqual(t, backend.NoHandle, first.Material.Diffuse)
	assert.NotEqual(t, backend.NoHandle, first.Material.Roughness)
	assert.Equal(t, backend.NoHandle, first.Material.Normal)

	// deduplicated by texture name
	second := res.Batches[0][1]
	assert.Equal(t, first.Material.Diffuse, second.Material.Diffuse)
	assert.Equal(t, backend.NoHandle, res.Batches[0][2].Material.Diffuse)
	assert.EqualValues(t, 9, second.RigidBody)

	assert.NotEqual(t, backend.NoHandle, res.SkyBox)
	assert.NotEqual(t, backend.NoHandle, res.SkyBoxMesh)
	assert.NotEqual(t, backend.NoHandle, res.TerrainHeightMap)
	assert.NotEqual(t, backend.NoHandle, res.TerrainMesh)
	for _, u := range res.Uniforms {
		assert.NotEqual(t, backend.NoHandle, u.Frame)
		assert.NotEqual(t, backend.NoHandle, u.Batch)
		assert.NotEqual(t, backend.NoHandle, u.Lights)
		assert.NotEqual(t, backend.NoHandle, u.Shadow)
		assert.Len(t, rec.Buffers[u.Batch], (3+frame.TerrainPatchCount)*backend.PerBatchStride)
	}
	assert.Equal(t, rec.Live(), res.Live())
}

func TestBuildReleaseRoundTrip(t *testing.T) {
	rec := backend.NewRecorder()
	b := frame.NewBuilder(rec, 2, 4)
	s := testScene(t)

	res, err := b.Build(s)
	require.NoError(t, err)
	count := res.BatchCount()
	require.Positive(t, rec.Live())

	require.NoError(t, res.Release(rec))
	assert.Equal(t, 0, rec.Live(), "leaked: %v", rec.LiveNames())
	assert.Nil(t, res.Batches)

	// idempotent
	require.NoError(t, res.Release(rec))

	again, err := b.Build(s)
	require.NoError(t, err)
	assert.Equal(t, count, again.BatchCount())
	require.NoError(t, again.Release(rec))
	assert.Equal(t, 0, rec.Live())
}

func TestBuildFaults(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *scene.Snapshot)
		kind   frame.FaultKind
	}{
		{"missing geometry", func(s *scene.Snapshot) {
			delete(s.Geometries, "two")
		}, frame.FaultMissingObject},
		{"missing light", func(s *scene.Snapshot) {
			delete(s.Lights, "sun")
		}, frame.FaultMissingObject},
		{"int64 indices", func(s *scene.Snapshot) {
			s.Geometries["two"].Mesh.Indices[1].Type = scene.IndexInt64
		}, frame.FaultUnsupportedIndex},
		{"quads", func(s *scene.Snapshot) {
			s.Geometries["two"].Mesh.Primitive = scene.PrimitiveQuads
		}, frame.FaultUnsupportedPrimitive},
		{"skybox face", func(s *scene.Snapshot) {
			s.SkyBox.Faces[13] = nil
		}, frame.FaultMissingSkyBox},
		{"spot cone", func(s *scene.Snapshot) {
			s.Lights["sun"].Type = scene.LightSpot
		}, frame.FaultInvalidLight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := backend.NewRecorder()
			s := testScene(t)
			tc.mutate(s)

			res, err := frame.NewBuilder(rec, 2, 4).Build(s)
			require.Error(t, err)
			assert.Nil(t, res)

			var fault *frame.DataFaultError
			require.True(t, errors.As(err, &fault), "got %v", err)
			assert.Equal(t, tc.kind, fault.Kind)
			assert.Equal(t, 0, rec.Live(), "partial build leaked: %v", rec.LiveNames())
		})
	}
}

func TestBuildBackendFailureReleasesPartial(t *testing.T) {
	rec := backend.NewRecorder()
	boom := errors.New("out of memory")
	rec.Fail = func(op string) error {
		if op == "CreateBuffer" {
			return boom
		}
		return nil
	}
	_, err := frame.NewBuilder(rec, 2, 4).Build(testScene(t))
	require.ErrorIs(t, err, boom)

	var fault *frame.DataFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, frame.FaultBackend, fault.Kind)
	assert.Equal(t, 0, rec.Live())
}

func TestBuildRunsInitHooksFirst(t *testing.T) {
	rec := backend.NewRecorder()
	var seen int
	hook := func(res *frame.SceneResources) error {
		seen = rec.Count("CreateGeometry")
		h, err := rec.CreateTexture(backend.TextureDesc{Name: "lut", Width: 4, Height: 4})
		res.Track(h)
		res.BRDFLUT = h
		return err
	}
	res, err := frame.NewBuilder(rec, 1, 1).Build(testScene(t), hook)
	require.NoError(t, err)
	assert.Equal(t, 0, seen)
	assert.NotEqual(t, backend.NoHandle, res.BRDFLUT)

	failing := func(*frame.SceneResources) error { return errors.New("init failed") }
	before := rec.Live()
	_, err = frame.NewBuilder(rec, 1, 1).Build(testScene(t), hook, failing)
	require.Error(t, err)
	assert.Equal(t, before, rec.Live())
}

func TestBuildEmptyScene(t *testing.T) {
	rec := backend.NewRecorder()
	res, err := frame.NewBuilder(rec, 2, 4).Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.BatchCount())
	// uniform buffers only
	assert.Equal(t, 8, rec.Live())
	require.NoError(t, res.Release(rec))
	assert.Equal(t, 0, rec.Live())
}

func TestRingWrapsAfterLenTicks(t *testing.T) {
	for n := 1; n <= 4; n++ {
		r := frame.NewRing(n, 2)
		start := r.Index()
		for i := 0; i < n; i++ {
			r.Advance()
		}
		assert.Equal(t, start, r.Index(), "ring of %d", n)
		assert.Equal(t, n, r.Len())
	}
}

func TestRingInstallAndClear(t *testing.T) {
	rec := backend.NewRecorder()
	res, err := frame.NewBuilder(rec, 2, 4).Build(testScene(t))
	require.NoError(t, err)

	r := frame.NewRing(2, 4)
	r.Install(res)
	r.Each(func(f *frame.Frame) {
		assert.Same(t, res, f.Resources)
		assert.Equal(t, res.Uniforms[f.Index], f.Uniforms)
		assert.Len(t, f.Batches, res.BatchCount())
		assert.Equal(t, res.SkyBox, f.Context.SkyBox)
		assert.Equal(t, res.TerrainHeightMap, f.Context.TerrainHeightMap)
		assert.Equal(t, res.SkyBox, f.Bindings().SkyBox)
	})

	r.At(1).Context.ShadowMap = 42
	r.Clear()
	r.Each(func(f *frame.Frame) {
		assert.Nil(t, f.Resources)
		assert.Empty(t, f.Batches)
		assert.Equal(t, frame.Context{}, f.Context)
	})
}

func TestLightInfoCapacity(t *testing.T) {
	li := frame.NewLightInfo(2)
	assert.True(t, li.Add(transform.Light{ID: 1}))
	assert.True(t, li.Add(transform.Light{ID: 2}))
	assert.False(t, li.Add(transform.Light{ID: 3}))
	assert.Equal(t, 2, li.Count())
	assert.Equal(t, uint64(2), li.Active()[1].ID)

	li.Reset()
	assert.Equal(t, 0, li.Count())
	assert.Empty(t, li.Active())
	assert.Equal(t, 2, li.Cap())
}

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestConstantLayouts(t *testing.T) {
	ctx := &frame.Context{
		View:       mgl32.Translate3D(1, 2, 3),
		Projection: mgl32.Ident4(),
		CamPos:     mgl32.Vec4{4, 5, 6, 1},
		NumLights:  3,
	}
	buf := frame.PerFrameConstants(ctx)
	require.Len(t, buf, frame.PerFrameSize)
	assert.Equal(t, float32(1), f32At(buf, 48))
	assert.Equal(t, float32(3), f32At(buf, 56))
	assert.Equal(t, float32(5), f32At(buf, 132))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[144:]))

	batch := frame.PerBatchConstants(&frame.DrawBatch{Model: mgl32.Scale3D(2, 2, 2)})
	require.Len(t, batch, frame.PerBatchSize)
	assert.Equal(t, float32(2), f32At(batch, 0))

	lights := []transform.Light{
		{Type: scene.LightSpot, Intensity: 7, CastShadow: true, ShadowMapIndex: 4,
			AngleAttenuation: scene.AttenCurve{Type: scene.AttenSmooth, Params: [5]float32{0.5, 0.4, 0, 0, 9}}},
		{Type: scene.LightArea, ShadowMapIndex: transform.NoShadowMap, Size: mgl32.Vec2{2, 3}},
	}
	lb := frame.LightConstants(lights)
	require.Len(t, lb, 2*frame.LightSize)
	assert.Equal(t, float32(7), f32At(lb, 112))
	assert.Equal(t, uint32(scene.LightSpot), binary.LittleEndian.Uint32(lb[116:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(lb[120:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(lb[124:]))
	assert.Equal(t, uint32(scene.AttenSmooth), binary.LittleEndian.Uint32(lb[132:]))
	assert.Equal(t, float32(0.5), f32At(lb, 160))
	assert.Equal(t, float32(9), f32At(lb, 180))

	second := lb[frame.LightSize:]
	assert.Equal(t, int32(-1), int32(binary.LittleEndian.Uint32(second[124:])))
	assert.Equal(t, float32(3), f32At(second, 140))

	sb := frame.ShadowConstants(mgl32.Ident4(), mgl32.Vec4{1, 2, 3, 1}, 0.1, 10, 5)
	require.Len(t, sb, frame.ShadowSize)
	assert.Equal(t, float32(2), f32At(sb, 68))
	assert.Equal(t, float32(10), f32At(sb, 84))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(sb[88:]))
}

package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"slices"
	"testing"

	"mini-gfx/internal/config"
	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
	"mini-gfx/internal/physics"
	"mini-gfx/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rec      *backend.Recorder
	source   *scene.Manager
	bodies   *physics.Table
	viewport *config.Viewport
	logs     *bytes.Buffer
	r        *Renderer
}

func newFixture(t *testing.T, mutate func(*config.Gfx), opts ...Option) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.MaxInFlightFrames = 3
	cfg.ShadowMapSize, cfg.GlobalShadowSize, cfg.CubeShadowMapSize = 16, 16, 16
	if mutate != nil {
		mutate(&cfg)
	}
	fx := &fixture{
		rec:      backend.NewRecorder(),
		source:   scene.NewManager(),
		bodies:   physics.NewTable(),
		viewport: config.NewViewport(800, 400),
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(fx.logs, nil))
	opts = append([]Option{WithLogger(logger)}, opts...)
	fx.r = New(cfg, fx.viewport, fx.rec, fx.source, fx.bodies, opts...)
	return fx
}

func cubes(names ...string) *scene.Snapshot {
	s := scene.New()
	s.Geometries["cube"] = &scene.Geometry{Mesh: scene.Cube(1)}
	for _, name := range names {
		s.AddNode(scene.Node{Name: name, Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "cube"})
	}
	return s
}

func addSun(s *scene.Snapshot, name string) {
	s.Lights[name] = &scene.Light{Type: scene.LightInfinity, Color: mgl32.Vec4{1, 1, 1, 1}, Intensity: 1}
	s.AddNode(scene.Node{Name: name, Kind: scene.NodeLight, Parent: scene.NoNode, Object: name})
}

func without(ops []string, drop string) []string {
	return slices.DeleteFunc(ops, func(op string) bool { return op == drop })
}

func TestTickBeforeInitialize(t *testing.T) {
	fx := newFixture(t, nil)
	assert.ErrorIs(t, fx.r.Tick(), ErrNotInitialized)
	assert.Equal(t, Uninitialized, fx.r.State())
	assert.Empty(t, fx.rec.Calls())
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	fx := newFixture(t, func(c *config.Gfx) { c.MaxLights = 0 })
	require.Error(t, fx.r.Initialize())
	assert.Equal(t, Uninitialized, fx.r.State())
	assert.ErrorIs(t, fx.r.Tick(), ErrNotInitialized)
}

func TestLifecycle(t *testing.T) {
	fx := newFixture(t, nil)
	fx.source.SetScene(cubes("a", "b"))

	require.NoError(t, fx.r.Initialize())
	assert.Equal(t, SceneLoaded, fx.r.State())
	assert.False(t, fx.source.HasChanged())

	require.NoError(t, fx.r.Tick())
	assert.Equal(t, FrameLoop, fx.r.State())
	assert.Equal(t, 2, fx.r.Stats().Batches)
	assert.False(t, fx.r.Stats().Rebuilt)

	fx.source.SetScene(cubes("a", "b", "c"))
	require.NoError(t, fx.r.Tick())
	assert.True(t, fx.r.Stats().Rebuilt)
	assert.Equal(t, 3, fx.r.Stats().Batches)
	assert.Equal(t, FrameLoop, fx.r.State())
	assert.Contains(t, fx.logs.String(), "scene rebuilt")

	require.NoError(t, fx.r.Finalize())
	assert.Equal(t, Uninitialized, fx.r.State())
	assert.Equal(t, 0, fx.rec.Live(), "leaked: %v", fx.rec.LiveNames())

	// idempotent
	calls := len(fx.rec.Calls())
	require.NoError(t, fx.r.Finalize())
	assert.Len(t, fx.rec.Calls(), calls)

	// a finalized renderer can start over
	require.NoError(t, fx.r.Initialize())
	require.NoError(t, fx.r.Tick())
	require.NoError(t, fx.r.Finalize())
	assert.Equal(t, 0, fx.rec.Live())
}

func TestRingIndexWraps(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.r.Initialize())

	var slots []int
	for i := 0; i < 4; i++ {
		require.NoError(t, fx.r.Tick())
		slots = append(slots, fx.r.Stats().Slot)
	}
	assert.Equal(t, []int{0, 1, 2, 0}, slots)
	assert.Equal(t, uint64(3), fx.r.Stats().Frame)

	var begun []int
	for _, c := range fx.rec.Calls() {
		if c.Op == "BeginFrame" {
			begun = append(begun, c.Args[0].(int))
		}
	}
	assert.Equal(t, []int{0, 1, 2, 0}, begun)
}

func TestFailedSceneChangeKeepsPreviousScene(t *testing.T) {
	fx := newFixture(t, nil)
	fx.source.SetScene(cubes("a", "b"))
	require.NoError(t, fx.r.Initialize())
	require.NoError(t, fx.r.Tick())
	live := fx.rec.Live()

	bad := cubes("ok")
	bad.AddNode(scene.Node{Name: "ghost", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "missing"})
	fx.source.SetScene(bad)
	fx.rec.Reset()

	err := fx.r.Tick()
	var fault *frame.DataFaultError
	require.True(t, errors.As(err, &fault), "got %v", err)
	assert.Equal(t, frame.FaultMissingObject, fault.Kind)
	assert.Equal(t, "ghost", fault.Subject)

	// acknowledged, not retried every tick
	assert.False(t, fx.source.HasChanged())
	// the old scene is still drawn and nothing leaked from the partial build
	assert.False(t, fx.r.Stats().Rebuilt)
	assert.Equal(t, 2, fx.r.Stats().Batches)
	assert.Equal(t, live, fx.rec.Live())
	assert.Equal(t, 1, fx.rec.Count("Present"))
	assert.Contains(t, fx.logs.String(), "scene rebuild failed")

	require.NoError(t, fx.r.Tick())
}

func TestDroppedLightsReported(t *testing.T) {
	fx := newFixture(t, func(c *config.Gfx) { c.MaxLights = 2 })
	s := cubes("a")
	addSun(s, "sun1")
	addSun(s, "sun2")
	addSun(s, "sun3")
	fx.source.SetScene(s)
	require.NoError(t, fx.r.Initialize())

	require.NoError(t, fx.r.Tick())
	assert.Equal(t, 2, fx.r.Stats().Lights)
	assert.Equal(t, 1, fx.r.Stats().DroppedLights)
	assert.Contains(t, fx.logs.String(), "light capacity exceeded")

	// logged once while the count is unchanged
	fx.logs.Reset()
	require.NoError(t, fx.r.Tick())
	assert.NotContains(t, fx.logs.String(), "light capacity exceeded")

	// back under capacity
	fewer := cubes("a")
	addSun(fewer, "sun1")
	fx.source.SetScene(fewer)
	fx.logs.Reset()
	require.NoError(t, fx.r.Tick())
	assert.Equal(t, 0, fx.r.Stats().DroppedLights)
	assert.NotContains(t, fx.logs.String(), "light capacity exceeded")
	assert.Contains(t, fx.logs.String(), "all lights fit again")
}

type recordingPass struct {
	name string
	log  *[]string
}

func (p recordingPass) Name() string { return p.name }

func (p recordingPass) Draw(f *frame.Frame) error {
	*p.log = append(*p.log, p.name)
	return nil
}

type unscopedPass struct{ recordingPass }

func (unscopedPass) Unscoped() {}

func TestDrawPassesRunInOrderAndBracketed(t *testing.T) {
	var ran []string
	fx := newFixture(t, nil,
		WithInitPasses(),
		WithDrawPasses(recordingPass{"first", &ran}, unscopedPass{recordingPass{"second", &ran}}, recordingPass{"third", &ran}),
	)
	require.NoError(t, fx.r.Initialize())
	fx.rec.Reset()

	require.NoError(t, fx.r.Tick())
	assert.Equal(t, []string{"first", "second", "third"}, ran)
	assert.Equal(t, []string{"BeginFrame", "BeginPass", "EndPass", "BeginPass", "EndPass", "EndFrame", "Present"},
		without(fx.rec.Ops(), "WriteBuffer"))

	var passes []string
	for _, c := range fx.rec.Calls() {
		if c.Op == "BeginPass" {
			passes = append(passes, c.Args[0].(string))
		}
	}
	assert.Equal(t, []string{"first", "third"}, passes)
}

func TestInitPassesRunBeforeSceneUpload(t *testing.T) {
	fx := newFixture(t, nil)
	fx.source.SetScene(cubes("a"))
	require.NoError(t, fx.r.Initialize())

	ops := fx.rec.Ops()
	begin := slices.Index(ops, "BeginCompute")
	dispatch := slices.Index(ops, "DispatchCompute")
	end := slices.Index(ops, "EndCompute")
	geometry := slices.Index(ops, "CreateGeometry")
	require.True(t, begin >= 0 && geometry >= 0)
	assert.Less(t, begin, dispatch)
	assert.Less(t, dispatch, end)
	assert.Less(t, end, geometry)

	lut := fx.r.ring.Current().Context.BRDFLUT
	assert.NotEqual(t, backend.NoHandle, lut)
}

func TestResizeChangesProjection(t *testing.T) {
	fx := newFixture(t, func(c *config.Gfx) { c.MaxInFlightFrames = 1 })
	require.NoError(t, fx.r.Initialize())
	require.NoError(t, fx.r.Tick())
	before := fx.r.ring.Current().Context.Projection
	assert.InDelta(t, 2.0, before[5]/before[0], 1e-5)

	fx.r.Resize(1000, 250)
	require.NoError(t, fx.r.Tick())
	after := fx.r.ring.Current().Context.Projection
	assert.InDelta(t, 4.0, after[5]/after[0], 1e-5)

	last := fx.rec.Calls()
	var vp []any
	for _, c := range last {
		if c.Op == "SetViewport" {
			vp = c.Args
		}
	}
	assert.Equal(t, []any{1000, 250}, vp)
}

func TestRigidBodyDrivesBatchModel(t *testing.T) {
	fx := newFixture(t, func(c *config.Gfx) { c.MaxInFlightFrames = 1 })
	body := fx.bodies.Create(mgl32.Ident4())
	s := scene.New()
	s.Geometries["cube"] = &scene.Geometry{Mesh: scene.Cube(1)}
	s.AddNode(scene.Node{Name: "box", Kind: scene.NodeGeometry, Parent: scene.NoNode, Visible: true, Object: "cube", RigidBody: body})
	fx.source.SetScene(s)
	require.NoError(t, fx.r.Initialize())

	fx.bodies.Set(body, mgl32.Translate3D(5, 6, 7))
	require.NoError(t, fx.r.Tick())

	f := fx.r.ring.Current()
	writes := fx.rec.Writes(f.Uniforms.Batch)
	require.NotEmpty(t, writes)
	data := writes[len(writes)-1]
	col3 := make([]float32, 4)
	for i := range col3 {
		col3[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[48+4*i:]))
	}
	assert.Equal(t, []float32{5, 6, 7, 1}, col3)
}

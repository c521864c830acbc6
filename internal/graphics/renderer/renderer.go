// Package renderer drives one frame per Tick: it rebuilds GPU resources when the
// scene source reports a change, refreshes the current slot's constants and runs
// the registered passes against it.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"

	"mini-gfx/internal/config"
	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/frame"
	"mini-gfx/internal/graphics/pass"
	"mini-gfx/internal/graphics/transform"
	"mini-gfx/internal/physics"
	"mini-gfx/internal/profiling"
	"mini-gfx/internal/scene"
)

// ErrNotInitialized is returned by Tick before Initialize succeeded
var ErrNotInitialized = errors.New("renderer: not initialized")

// State is the lifecycle phase of a Renderer
type State int

const (
	Uninitialized State = iota
	SceneLoaded
	FrameLoop
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SceneLoaded:
		return "scene_loaded"
	case FrameLoop:
		return "frame_loop"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TickStats describes the last completed tick
type TickStats struct {
	Frame         uint64
	Slot          int
	Batches       int
	Lights        int
	DroppedLights int
	Rebuilt       bool
}

// Renderer owns the frame ring and the installed scene resources
type Renderer struct {
	cfg      config.Gfx
	viewport *config.Viewport
	backend  backend.Backend
	source   scene.Source
	physics  physics.Physics
	logger   *slog.Logger

	initPasses []pass.InitPass
	drawPasses []pass.DrawPass
	customInit bool
	customDraw bool

	state     State
	ring      *frame.Ring
	builder   *frame.Builder
	resources *frame.SceneResources
	snapshot  *scene.Snapshot

	frames  uint64
	stats   TickStats
	dropped int
}

// Option configures a Renderer
type Option func(*Renderer)

// WithLogger sets the logger; slog.Default() is used otherwise
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithInitPasses replaces the default init passes
func WithInitPasses(ps ...pass.InitPass) Option {
	return func(r *Renderer) {
		r.initPasses = ps
		r.customInit = true
	}
}

// WithDrawPasses replaces the default draw passes
func WithDrawPasses(ps ...pass.DrawPass) Option {
	return func(r *Renderer) {
		r.drawPasses = ps
		r.customDraw = true
	}
}

func New(cfg config.Gfx, viewport *config.Viewport, b backend.Backend, source scene.Source, p physics.Physics, opts ...Option) *Renderer {
	r := &Renderer{
		cfg:      cfg,
		viewport: viewport,
		backend:  b,
		source:   source,
		physics:  p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) State() State { return r.state }

// Stats returns the figures of the last tick
func (r *Renderer) Stats() TickStats { return r.stats }

// Initialize allocates the frame ring, registers the default passes and builds
// the source's current scene. On error the renderer stays Uninitialized.
func (r *Renderer) Initialize() error {
	if r.state != Uninitialized {
		return nil
	}
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	r.ring = frame.NewRing(r.cfg.MaxInFlightFrames, r.cfg.MaxLights)
	r.builder = frame.NewBuilder(r.backend, r.cfg.MaxInFlightFrames, r.cfg.MaxLights)
	if !r.customInit {
		r.initPasses = []pass.InitPass{pass.BRDFIntegrator{}}
	}
	if !r.customDraw {
		r.drawPasses = []pass.DrawPass{
			pass.NewShadowMapPass(r.backend, pass.ShadowSizes{
				Local:  r.cfg.ShadowMapSize,
				Global: r.cfg.GlobalShadowSize,
				Cube:   r.cfg.CubeShadowMapSize,
			}),
			pass.NewForwardGeometryPass(r.backend),
		}
	}
	r.backend.SetViewport(r.viewport.Size())

	s := r.source.Current()
	res, err := r.build(s)
	if err != nil {
		r.ring, r.builder = nil, nil
		return fmt.Errorf("initialize: %w", err)
	}
	r.source.AcknowledgeRenderingQueued()
	r.install(res, s)
	r.state = SceneLoaded
	r.logger.Info("renderer initialized", "slots", r.ring.Len(), "batches", res.BatchCount())
	return nil
}

// Tick renders one frame into the current slot and advances the ring. A failed
// scene change is returned but the frame is still drawn with the old scene.
func (r *Renderer) Tick() error {
	if r.state == Uninitialized {
		return ErrNotInitialized
	}
	profiling.ResetFrame()
	defer profiling.Track("renderer.Tick")()

	stats := TickStats{Frame: r.frames, Slot: r.ring.Index()}
	var sceneErr error
	if r.source.HasChanged() {
		stats.Rebuilt, sceneErr = r.changeScene()
	}

	f := r.ring.Current()
	lightErr := r.updateConstants(f)
	stats.Batches = len(f.Batches)
	stats.Lights = f.Lights.Count()
	stats.DroppedLights = r.dropped

	if err := r.drawFrame(f); err != nil {
		return errors.Join(sceneErr, lightErr, err)
	}

	r.ring.Advance()
	r.frames++
	r.stats = stats
	r.state = FrameLoop
	return errors.Join(sceneErr, lightErr)
}

// Resize records the new output size; the projection follows on the next tick
func (r *Renderer) Resize(width, height int) {
	r.viewport.SetSize(width, height)
	if r.state != Uninitialized {
		r.backend.SetViewport(r.viewport.Size())
	}
}

// Finalize releases the installed scene and returns to Uninitialized. Calling it
// again is a no-op.
func (r *Renderer) Finalize() error {
	if r.state == Uninitialized {
		return nil
	}
	var err error
	if r.resources != nil {
		err = r.resources.Release(r.backend)
	}
	r.ring.Clear()
	r.resources, r.snapshot = nil, nil
	r.ring, r.builder = nil, nil
	r.state = Uninitialized
	r.dropped = 0
	return err
}

// changeScene builds the pending scene and swaps it in. The old resources stay
// installed when the build fails.
func (r *Renderer) changeScene() (bool, error) {
	defer profiling.Track("renderer.scene")()

	s := r.source.Current()
	res, err := r.build(s)
	r.source.AcknowledgeRenderingQueued()
	if err != nil {
		r.logger.Error("scene rebuild failed, keeping previous scene", "err", err)
		return false, err
	}
	if r.resources != nil {
		if rerr := r.resources.Release(r.backend); rerr != nil {
			r.logger.Warn("release previous scene", "err", rerr)
		}
	}
	r.ring.Clear()
	r.install(res, s)
	r.state = SceneLoaded
	r.logger.Info("scene rebuilt", "batches", res.BatchCount(), "resources", res.Live())
	return true, nil
}

func (r *Renderer) build(s *scene.Snapshot) (*frame.SceneResources, error) {
	hook := func(res *frame.SceneResources) error {
		for _, p := range r.initPasses {
			if err := r.dispatch(p, s, res); err != nil {
				return fmt.Errorf("init pass %s: %w", p.Name(), err)
			}
		}
		return nil
	}
	return r.builder.Build(s, hook)
}

func (r *Renderer) dispatch(p pass.InitPass, s *scene.Snapshot, res *frame.SceneResources) error {
	ctx := &pass.InitContext{Backend: r.backend, Scene: s, Resources: res}
	if !pass.IsScoped(p) {
		return p.Dispatch(ctx)
	}
	if err := r.backend.BeginCompute(p.Name()); err != nil {
		return err
	}
	if err := p.Dispatch(ctx); err != nil {
		return err
	}
	return r.backend.EndCompute(p.Name())
}

func (r *Renderer) install(res *frame.SceneResources, s *scene.Snapshot) {
	r.ring.Install(res)
	r.resources = res
	r.snapshot = s
}

// updateConstants refreshes models, camera and lights of f and uploads them.
// A light that cannot be placed is skipped and reported.
func (r *Renderer) updateConstants(f *frame.Frame) error {
	defer profiling.Track("renderer.constants")()

	s := r.snapshot
	if s == nil {
		s = scene.New()
	}

	for _, b := range f.Batches {
		n, ok := s.Node(b.Node)
		if !ok {
			continue
		}
		b.Model = transform.BlendModelMatrix(n.CalculatedTransform(), b.RigidBody, r.physics)
	}

	cam := transform.CameraMatrices(s, r.viewport.Aspect())
	f.Context.CamPos = cam.Position
	f.Context.View = cam.View
	f.Context.Projection = cam.Projection

	var errs []error
	f.Lights.Reset()
	dropped := 0
	for _, id := range s.LightNodes {
		n, _ := s.Node(id)
		obj, ok := s.Light(n.Object)
		if !ok {
			errs = append(errs, frame.Fault(frame.FaultMissingObject, n.Name, fmt.Sprintf("light object %q not found", n.Object), nil))
			continue
		}
		l, err := transform.LightMatrices(n.CalculatedTransform(), obj, cam)
		if err != nil {
			errs = append(errs, frame.Fault(frame.FaultInvalidLight, n.Name, "light matrices", err))
			continue
		}
		if !f.Lights.Add(l) {
			dropped++
		}
	}
	if dropped != r.dropped {
		if dropped > 0 {
			r.logger.Warn("light capacity exceeded", "max", f.Lights.Cap(), "dropped", dropped)
		} else {
			r.logger.Info("all lights fit again", "max", f.Lights.Cap())
		}
		r.dropped = dropped
	}
	f.Context.NumLights = f.Lights.Count()

	if f.Resources == nil {
		return errors.Join(errs...)
	}
	if err := r.upload(f); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Renderer) upload(f *frame.Frame) error {
	if err := r.backend.WriteBuffer(f.Uniforms.Frame, 0, frame.PerFrameConstants(&f.Context)); err != nil {
		return frame.Fault(frame.FaultBackend, "frame", "write frame constants", err)
	}
	if len(f.Batches) > 0 {
		// batch indices are dense from zero, so one write covers them all
		data := make([]byte, len(f.Batches)*backend.PerBatchStride)
		for _, b := range f.Batches {
			copy(data[b.BatchIndex*backend.PerBatchStride:], frame.PerBatchConstants(b))
		}
		if err := r.backend.WriteBuffer(f.Uniforms.Batch, 0, data); err != nil {
			return frame.Fault(frame.FaultBackend, "batches", "write batch constants", err)
		}
	}
	if f.Lights.Count() > 0 {
		if err := r.backend.WriteBuffer(f.Uniforms.Lights, 0, frame.LightConstants(f.Lights.Active())); err != nil {
			return frame.Fault(frame.FaultBackend, "lights", "write light constants", err)
		}
	}
	return nil
}

func (r *Renderer) drawFrame(f *frame.Frame) error {
	b := r.backend
	if err := b.BeginFrame(f.Index); err != nil {
		return fmt.Errorf("begin frame %d: %w", f.Index, err)
	}
	for _, p := range r.drawPasses {
		if err := r.draw(p, f); err != nil {
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
	}
	if err := b.EndFrame(f.Index); err != nil {
		return fmt.Errorf("end frame %d: %w", f.Index, err)
	}
	return b.Present()
}

func (r *Renderer) draw(p pass.DrawPass, f *frame.Frame) error {
	defer profiling.Track("renderer.pass." + p.Name())()
	if !pass.IsScoped(p) {
		return p.Draw(f)
	}
	if err := r.backend.BeginPass(p.Name()); err != nil {
		return err
	}
	if err := p.Draw(f); err != nil {
		return err
	}
	return r.backend.EndPass(p.Name())
}

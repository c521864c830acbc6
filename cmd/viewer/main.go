package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"runtime"
	"time"

	"mini-gfx/internal/config"
	"mini-gfx/internal/graphics/opengl"
	"mini-gfx/internal/graphics/renderer"
	"mini-gfx/internal/input"
	"mini-gfx/internal/profiling"
	"mini-gfx/internal/scene"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/xlab/closer"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "cmd/viewer/gfx.toml", "graphics config file")
	scenePath := flag.String("scene", "cmd/viewer/scene.yaml", "scene description, reloaded on change")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("config: %v", err)
		}
		logger.Warn("no config file, using defaults", "path", *configPath)
		cfg = config.Default()
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("glfw: %v", err)
	}

	window, err := setupWindow(cfg)
	if err != nil {
		log.Fatalf("window: %v", err)
	}

	gfx := opengl.New(window.SwapBuffers, cfg.MaxLights, cfg.ClearColor)
	if err := gfx.Init(); err != nil {
		log.Fatalf("opengl backend: %v", err)
	}

	bodies := newSpinner()
	source := scene.NewManager()
	watcher, err := scene.Watch(*scenePath, source, bodies, logger)
	if err != nil {
		log.Fatalf("scene: %v", err)
	}
	// bound cleanups run on closer's goroutine, so only the watcher goes there;
	// GL and glfw teardown stay on the main thread below
	closer.Bind(func() {
		if err := watcher.Close(); err != nil {
			logger.Warn("close scene watcher", "err", err)
		}
	})

	fbw, fbh := window.GetFramebufferSize()
	viewport := config.NewViewport(fbw, fbh)
	r := renderer.New(cfg, viewport, gfx, source, bodies.Table, renderer.WithLogger(logger))
	if err := r.Initialize(); err != nil {
		log.Fatalf("renderer: %v", err)
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		r.Resize(width, height)
	})
	keys := input.NewManager()
	keys.SetKeyCallback(window)

	v := &viewer{
		window:  window,
		r:       r,
		bodies:  bodies,
		watcher: watcher,
		keys:    keys,
		limiter: &fpsLimiter{limit: cfg.FPSLimit},
		logger:  logger,
		stats:   true,
	}
	v.run()

	shutdown(r, gfx, logger)
	closer.Close()
}

// shutdown releases GPU state and terminates glfw. closer.Close exits the
// process without returning, so none of this can be deferred.
func shutdown(r *renderer.Renderer, gfx *opengl.Backend, logger *slog.Logger) {
	if err := r.Finalize(); err != nil {
		logger.Error("finalize renderer", "err", err)
	}
	if n := gfx.Live(); n != 0 {
		logger.Warn("gpu objects still alive at exit", "count", n)
	}
	gfx.Dispose()
	glfw.Terminate()
}

func setupWindow(cfg config.Gfx) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(cfg.ScreenWidth, cfg.ScreenHeight, cfg.Title, nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()

	// Initialize OpenGL bindings
	if err := gl.Init(); err != nil {
		return nil, err
	}
	// the fps limiter takes over pacing when configured
	if cfg.FPSLimit > 0 {
		glfw.SwapInterval(0)
	} else {
		glfw.SwapInterval(1)
	}
	return window, nil
}

type viewer struct {
	window  *glfw.Window
	r       *renderer.Renderer
	bodies  *spinner
	watcher *scene.Watcher
	keys    *input.Manager
	limiter *fpsLimiter
	logger  *slog.Logger
	stats   bool
}

func (v *viewer) run() {
	start := time.Now()
	lastReport := time.Now()
	frames := 0

	for !v.window.ShouldClose() {
		v.bodies.step(time.Since(start).Seconds())

		if err := v.r.Tick(); err != nil {
			v.logger.Error("tick", "err", err)
		}
		frames++

		func() { defer profiling.Track("glfw.PollEvents")(); glfw.PollEvents() }()
		v.handleKeys()

		if v.stats && time.Since(lastReport) >= time.Second {
			st := v.r.Stats()
			v.logger.Info("frame stats",
				"fps", frames,
				"batches", st.Batches,
				"lights", st.Lights,
				"dropped_lights", st.DroppedLights,
				"passes", profiling.SumWithPrefix("renderer.pass."),
				"top", profiling.TopN(3))
			frames = 0
			lastReport = time.Now()
		}
		v.limiter.Wait()
	}
}

func (v *viewer) handleKeys() {
	defer v.keys.PostUpdate()
	if v.keys.JustPressed(input.ActionQuit) {
		v.window.SetShouldClose(true)
	}
	if v.keys.JustPressed(input.ActionToggleStats) {
		v.stats = !v.stats
	}
	if v.keys.JustPressed(input.ActionReloadScene) {
		if err := v.watcher.Reload(); err != nil {
			v.logger.Warn("scene reload failed", "err", err)
		}
	}
}

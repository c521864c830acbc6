package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportClampsAndAspect(t *testing.T) {
	v := NewViewport(960, 540)
	assert.InDelta(t, 960.0/540.0, v.Aspect(), 1e-6)

	// minimized windows report zero
	v.SetSize(0, 0)
	w, h := v.Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, float32(1), v.Aspect())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfx.toml")
	content := "screen_width = 1280\nscreen_height = 720\nmax_lights = 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.ScreenWidth)
	assert.Equal(t, 720, cfg.ScreenHeight)
	assert.Equal(t, 4, cfg.MaxLights)
	// untouched keys keep their defaults
	assert.Equal(t, Default().MaxInFlightFrames, cfg.MaxInFlightFrames)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfx.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_in_flight_frames = 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateFPSLimit(t *testing.T) {
	cfg := Default()
	cfg.FPSLimit = 144
	assert.NoError(t, cfg.Validate())

	cfg.FPSLimit = -1
	assert.ErrorContains(t, cfg.Validate(), "fps_limit")
}

package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Gfx is the read-only graphics configuration handed to the renderer at construction.
type Gfx struct {
	ScreenWidth  int    `toml:"screen_width"`
	ScreenHeight int    `toml:"screen_height"`
	Title        string `toml:"title"`

	// MaxInFlightFrames is the size of the frame ring.
	MaxInFlightFrames int `toml:"max_in_flight_frames"`
	// MaxLights caps the active lights per frame; extra lights are dropped.
	MaxLights int `toml:"max_lights"`

	ShadowMapSize     int `toml:"shadow_map_size"`
	GlobalShadowSize  int `toml:"global_shadow_map_size"`
	CubeShadowMapSize int `toml:"cube_shadow_map_size"`

	ClearColor [4]float32 `toml:"clear_color"`

	// FPSLimit caps the viewer's frame rate; 0 leaves pacing to vsync.
	FPSLimit int `toml:"fps_limit"`
}

// Default returns the configuration the viewer ships with
func Default() Gfx {
	return Gfx{
		ScreenWidth:       960,
		ScreenHeight:      540,
		Title:             "mini-gfx",
		MaxInFlightFrames: 2,
		MaxLights:         100,
		ShadowMapSize:     512,
		GlobalShadowSize:  2048,
		CubeShadowMapSize: 512,
		ClearColor:        [4]float32{0.2, 0.3, 0.4, 1.0},
	}
}

// Validate reports the first invalid field
func (g Gfx) Validate() error {
	switch {
	case g.ScreenWidth <= 0 || g.ScreenHeight <= 0:
		return fmt.Errorf("invalid screen size %dx%d", g.ScreenWidth, g.ScreenHeight)
	case g.MaxInFlightFrames <= 0:
		return fmt.Errorf("max_in_flight_frames must be positive, got %d", g.MaxInFlightFrames)
	case g.MaxLights <= 0:
		return fmt.Errorf("max_lights must be positive, got %d", g.MaxLights)
	case g.ShadowMapSize <= 0 || g.GlobalShadowSize <= 0 || g.CubeShadowMapSize <= 0:
		return fmt.Errorf("shadow map sizes must be positive")
	case g.FPSLimit < 0:
		return fmt.Errorf("fps_limit must not be negative, got %d", g.FPSLimit)
	}
	return nil
}

// Load reads a TOML file on top of Default. Keys missing from the file keep
// their default value.
func Load(path string) (Gfx, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

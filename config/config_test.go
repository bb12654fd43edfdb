package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/echoflaresat/skyscatter/scatter"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Atmosphere != scatter.DefaultParameters() {
		t.Error("expected default atmosphere parameters")
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 360 {
		t.Errorf("expected 640x360, got %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Sun.Elevation != nil {
		t.Error("expected the ephemeris sun by default")
	}
	if cfg.Output.Frames != 1 {
		t.Errorf("expected 1 frame, got %d", cfg.Output.Frames)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
atmosphere:
  g: 0.8
  sunshine: 2
  incoming_light: {r: 3, g: 3, b: 3, a: 3}

sun:
  time: "2025-06-21T12:00:00Z"
  elevation: 15
  azimuth: 90

camera:
  width: 320
  height: 200

output:
  frames: 4
  frame_step: 30m

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Atmosphere.G != 0.8 || cfg.Atmosphere.Sunshine != 2 {
		t.Errorf("atmosphere not loaded: %+v", cfg.Atmosphere)
	}
	if cfg.Atmosphere.IncomingLightColor.R != 3 {
		t.Errorf("incoming light not loaded: %v", cfg.Atmosphere.IncomingLightColor)
	}
	if cfg.Sun.Elevation == nil || *cfg.Sun.Elevation != 15 || cfg.Sun.Azimuth != 90 {
		t.Errorf("sun not loaded: %+v", cfg.Sun)
	}
	if cfg.Camera.Width != 320 || cfg.Camera.Height != 200 {
		t.Errorf("camera not loaded: %+v", cfg.Camera)
	}
	if cfg.Output.Frames != 4 || cfg.Output.FrameStep != 30*time.Minute {
		t.Errorf("output not loaded: %+v", cfg.Output)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Logging.Level)
	}

	// Unset keys keep their defaults
	if cfg.Atmosphere.PlanetRadius != 6378100 {
		t.Errorf("planet radius changed to %v", cfg.Atmosphere.PlanetRadius)
	}
	if cfg.Camera.FOV != 60 {
		t.Errorf("fov changed to %v", cfg.Camera.FOV)
	}

	start, err := cfg.Sun.StartTime()
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("start time %v", start)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Camera.Yaw = 135
	cfg.Atmosphere.ReflectionProbe = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if loaded.Camera.Yaw != 135 || !loaded.Atmosphere.ReflectionProbe {
		t.Errorf("saved values lost: %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"atmosphere", func(c *Config) { c.Atmosphere.G = 2 }},
		{"time", func(c *Config) { c.Sun.Time = "yesterday" }},
		{"latitude", func(c *Config) { c.Sun.Latitude = 91 }},
		{"size", func(c *Config) { c.Camera.Width = 0 }},
		{"fov", func(c *Config) { c.Camera.FOV = 180 }},
		{"far", func(c *Config) { c.Camera.Far = 0 }},
		{"altitude", func(c *Config) { c.Camera.Altitude = scatter.KarmanLine }},
		{"quality", func(c *Config) { c.Quality.SkyboxSteps = -1 }},
		{"depth without color", func(c *Config) { c.Scene.Depth = "depth.png" }},
		{"output", func(c *Config) { c.Output.Path = "" }},
		{"frames", func(c *Config) { c.Output.Frames = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestValidateWrapsParameterError(t *testing.T) {
	cfg := Default()
	cfg.Atmosphere.PlanetRadius = -1
	if err := cfg.Validate(); !errors.Is(err, scatter.ErrInvalidParameters) {
		t.Errorf("err = %v, want ErrInvalidParameters", err)
	}
}

func TestApplyFlags(t *testing.T) {
	set := func(name, value string) {
		t.Helper()
		old := flag.Lookup(name).Value.String()
		if err := flag.Set(name, value); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = flag.Set(name, old) })
	}
	set("width", "1024")
	set("elevation", "-3")
	set("debug", "true")
	set("pitch", "0")
	set("depth-out", "depth.png")

	cfg := Default()
	applyFlags(cfg)

	if cfg.Camera.Width != 1024 {
		t.Errorf("width flag ignored: %d", cfg.Camera.Width)
	}
	if cfg.Camera.Height != 360 {
		t.Errorf("unset height flag changed the value: %d", cfg.Camera.Height)
	}
	if cfg.Sun.Elevation == nil || *cfg.Sun.Elevation != -3 {
		t.Errorf("elevation flag ignored: %v", cfg.Sun.Elevation)
	}
	if cfg.Camera.Pitch != 0 {
		t.Errorf("zero pitch flag ignored: %v", cfg.Camera.Pitch)
	}
	if cfg.Camera.Yaw != 0 || cfg.Sun.Latitude != 48.1 {
		t.Error("unset float flags changed the config")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("debug flag ignored: %s", cfg.Logging.Level)
	}
	if cfg.Output.Depth != "depth.png" {
		t.Errorf("depth-out flag ignored: %q", cfg.Output.Depth)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if got := findConfigFile(); got != "" && got != filepath.Join(ConfigDir(), "config.yaml") {
		t.Fatalf("unexpected config %q", got)
	}

	if err := os.WriteFile("skyscatter.yaml", []byte("camera: {width: 10}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFile(); got != "./skyscatter.yaml" {
		t.Errorf("expected the working directory config, got %q", got)
	}
}

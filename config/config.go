// Package config handles renderer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/kernel"
	"github.com/echoflaresat/skyscatter/logger"
	"github.com/echoflaresat/skyscatter/scatter"
)

// Config holds all renderer settings.
type Config struct {
	Atmosphere scatter.Parameters `yaml:"atmosphere"`
	Sun        SunConfig          `yaml:"sun"`
	Camera     CameraConfig       `yaml:"camera"`
	Quality    QualityConfig      `yaml:"quality"`
	Scene      SceneConfig        `yaml:"scene"`
	Output     OutputConfig       `yaml:"output"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// SunConfig places the sun. With Elevation set the direction is fixed;
// otherwise it follows the ephemeris for the observer and time.
type SunConfig struct {
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Time      string   `yaml:"time"` // RFC3339, empty for now
	Elevation *float64 `yaml:"elevation,omitempty"`
	Azimuth   float64  `yaml:"azimuth"` // degrees from north toward east
}

// CameraConfig holds the view and output size.
type CameraConfig struct {
	Altitude float64 `yaml:"altitude"` // meters above ground
	FOV      float64 `yaml:"fov"`      // vertical, degrees
	Pitch    float64 `yaml:"pitch"`
	Yaw      float64 `yaml:"yaw"`
	Far      float64 `yaml:"far"` // meters
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
}

// QualityConfig holds integration sample counts.
type QualityConfig struct {
	DensitySteps      int `yaml:"density_steps"`
	SkyboxSteps       int `yaml:"skybox_steps"`
	InscatteringSteps int `yaml:"inscattering_steps"`
	AmbientSamples    int `yaml:"ambient_samples"`
	AmbientSteps      int `yaml:"ambient_steps"`
	Workers           int `yaml:"workers"` // 0 uses every CPU
}

// SceneConfig points at the geometry to fog. Without a color image a flat
// ground plane is rendered.
type SceneConfig struct {
	Color        string        `yaml:"color"`
	Depth        string        `yaml:"depth"`
	GroundAlbedo colors.Color4 `yaml:"ground_albedo"`
}

// OutputConfig controls what is written.
type OutputConfig struct {
	Path      string        `yaml:"path"` // frame N goes to path with _N before the extension when Frames > 1
	Frames    int           `yaml:"frames"`
	FrameStep time.Duration `yaml:"frame_step"`
	Panorama  string        `yaml:"panorama"` // optional equirectangular sky dump
	Depth     string        `yaml:"depth"`    // optional 16-bit depth of each source frame, numbered like Path
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	opts := kernel.DefaultOptions()
	return &Config{
		Atmosphere: scatter.DefaultParameters(),
		Sun: SunConfig{
			Latitude:  48.1,
			Longitude: 11.6,
		},
		Camera: CameraConfig{
			Altitude: 2,
			FOV:      60,
			Pitch:    5,
			Yaw:      0,
			Far:      20000,
			Width:    640,
			Height:   360,
		},
		Quality: QualityConfig{
			DensitySteps:      opts.DensitySteps,
			SkyboxSteps:       opts.SkyboxSteps,
			InscatteringSteps: opts.InscatteringSteps,
			AmbientSamples:    opts.LightSamples,
			AmbientSteps:      opts.LightSteps,
			Workers:           0,
		},
		Scene: SceneConfig{
			GroundAlbedo: colors.New(0.18, 0.2, 0.12, 1),
		},
		Output: OutputConfig{
			Path:      "sky.png",
			Frames:    1,
			FrameStep: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// KernelOptions converts the quality section for the CPU backend.
func (q QualityConfig) KernelOptions() kernel.Options {
	return kernel.Options{
		DensitySteps:      q.DensitySteps,
		SkyboxSteps:       q.SkyboxSteps,
		InscatteringSteps: q.InscatteringSteps,
		LightSamples:      q.AmbientSamples,
		LightSteps:        q.AmbientSteps,
		Workers:           q.Workers,
	}
}

// StartTime parses the configured time, defaulting to now.
func (s SunConfig) StartTime() (time.Time, error) {
	if s.Time == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("sun time: %w", err)
	}
	return t, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Atmosphere.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Sun.StartTime(); err != nil {
		errs = append(errs, err)
	}
	if c.Sun.Latitude < -90 || c.Sun.Latitude > 90 {
		errs = append(errs, fmt.Errorf("sun latitude %v outside [-90,90]", c.Sun.Latitude))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera size %dx%d must be positive", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera fov %v outside (0,180)", c.Camera.FOV))
	}
	if c.Camera.Far <= 0 {
		errs = append(errs, fmt.Errorf("camera far %v must be positive", c.Camera.Far))
	}
	if c.Camera.Altitude < 0 || c.Camera.Altitude >= scatter.KarmanLine {
		errs = append(errs, fmt.Errorf("camera altitude %v outside [0,%v)", c.Camera.Altitude, scatter.KarmanLine))
	}
	if c.Quality.DensitySteps < 0 || c.Quality.SkyboxSteps < 0 || c.Quality.InscatteringSteps < 0 ||
		c.Quality.AmbientSamples < 0 || c.Quality.AmbientSteps < 0 || c.Quality.Workers < 0 {
		errs = append(errs, errors.New("quality settings must not be negative"))
	}
	if c.Scene.Depth != "" && c.Scene.Color == "" {
		errs = append(errs, errors.New("scene depth needs a scene color image"))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if c.Output.Frames < 1 {
		errs = append(errs, fmt.Errorf("output frames %d must be at least 1", c.Output.Frames))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

package config

import (
	"flag"
	"math"
)

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagOut       = flag.String("out", "", "Output PNG path")
	flagFrames    = flag.Int("frames", 0, "Number of frames to render")
	flagTime      = flag.String("time", "", "Start time in RFC3339 format (e.g., 2025-08-02T15:04:05Z)")
	flagLat       = flag.Float64("lat", math.NaN(), "Observer latitude in degrees")
	flagLon       = flag.Float64("lon", math.NaN(), "Observer longitude in degrees")
	flagElevation = flag.Float64("elevation", math.NaN(), "Fixed sun elevation in degrees (overrides the ephemeris)")
	flagAzimuth   = flag.Float64("azimuth", math.NaN(), "Fixed sun azimuth in degrees")
	flagWidth     = flag.Int("width", 0, "Output width")
	flagHeight    = flag.Int("height", 0, "Output height")
	flagPitch     = flag.Float64("pitch", math.NaN(), "Camera pitch in degrees")
	flagYaw       = flag.Float64("yaw", math.NaN(), "Camera yaw in degrees")
	flagWorkers   = flag.Int("workers", 0, "Worker goroutines")
	flagScene     = flag.String("scene", "", "Scene color image")
	flagDepth     = flag.String("depth", "", "Scene depth image")
	flagPanorama  = flag.String("panorama", "", "Write an equirectangular sky panorama to this path")
	flagDepthOut  = flag.String("depth-out", "", "Write the depth of each source frame to this PNG path")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

func setFloat(dst *float64, v float64) {
	if !math.IsNaN(v) {
		*dst = v
	}
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagOut != "" {
		cfg.Output.Path = *flagOut
	}
	if *flagFrames > 0 {
		cfg.Output.Frames = *flagFrames
	}
	if *flagTime != "" {
		cfg.Sun.Time = *flagTime
	}
	setFloat(&cfg.Sun.Latitude, *flagLat)
	setFloat(&cfg.Sun.Longitude, *flagLon)
	if !math.IsNaN(*flagElevation) {
		e := *flagElevation
		cfg.Sun.Elevation = &e
	}
	setFloat(&cfg.Sun.Azimuth, *flagAzimuth)
	if *flagWidth > 0 {
		cfg.Camera.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Camera.Height = *flagHeight
	}
	setFloat(&cfg.Camera.Pitch, *flagPitch)
	setFloat(&cfg.Camera.Yaw, *flagYaw)
	if *flagWorkers > 0 {
		cfg.Quality.Workers = *flagWorkers
	}
	if *flagScene != "" {
		cfg.Scene.Color = *flagScene
	}
	if *flagDepth != "" {
		cfg.Scene.Depth = *flagDepth
	}
	if *flagPanorama != "" {
		cfg.Output.Panorama = *flagPanorama
	}
	if *flagDepthOut != "" {
		cfg.Output.Depth = *flagDepthOut
	}
}

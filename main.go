package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/echoflaresat/skyscatter/config"
	"github.com/echoflaresat/skyscatter/earth"
	"github.com/echoflaresat/skyscatter/kernel"
	"github.com/echoflaresat/skyscatter/logger"
	"github.com/echoflaresat/skyscatter/render"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/texture"
	"github.com/echoflaresat/skyscatter/vectors"
)

// skyboxRefreshAngle is how far the sun may move before the skybox is
// regenerated.
var skyboxRefreshAngle = 0.5 * math.Pi / 180

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Error("render failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// sunProvider returns a fixed sun when an elevation is configured, otherwise
// the ephemeris with a clock stepped once per frame.
func sunProvider(s config.SunConfig, step time.Duration) (render.SunProvider, *earth.FrameClock, error) {
	if s.Elevation != nil {
		return render.SunAt(*s.Elevation, s.Azimuth), nil, nil
	}
	start, err := s.StartTime()
	if err != nil {
		return nil, nil, err
	}
	clock := &earth.FrameClock{Start: start, Step: step}
	return earth.Ephemeris{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Clock:     clock.Now,
	}, clock, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("skyscatter")

	sun, clock, err := sunProvider(cfg.Sun, cfg.Output.FrameStep)
	if err != nil {
		return err
	}

	cpu := kernel.NewCPU(cfg.Quality.KernelOptions())
	defer cpu.Close()

	comp := render.New(cfg.Atmosphere, cpu, sun, logger.Named("compositor"))
	if err := comp.Activate(ctx); err != nil {
		return err
	}
	defer comp.Deactivate()

	width, height := cfg.Camera.Width, cfg.Camera.Height
	scene, err := loadScene(cfg.Scene)
	if err != nil {
		return err
	}
	if scene != nil {
		width, height = scene.Width, scene.Height
	}

	cam := render.NewCamera(cfg.Camera.Altitude, cfg.Camera.FOV,
		float64(width)/float64(height), cfg.Camera.Far, cfg.Camera.Pitch, cfg.Camera.Yaw)
	ground := render.Ground{Radius: cfg.Atmosphere.PlanetRadius, Albedo: cfg.Scene.GroundAlbedo}

	var skyboxSun vectors.Vec3
	for i := range cfg.Output.Frames {
		start := time.Now()
		light, err := comp.FrameBegin(ctx, cam)
		if err != nil {
			return err
		}

		if i == 0 {
			skyboxSun = light.Sun.Direction
		} else if math.Acos(min(skyboxSun.Dot(light.Sun.Direction), 1)) > skyboxRefreshAngle {
			if err := comp.RefreshSkybox(ctx); err != nil {
				return err
			}
			skyboxSun = light.Sun.Direction
		}

		src := scene
		if src == nil {
			src = ground.Render(cam, light, width, height)
		}
		dst := scatter.NewSurface(width, height)
		if err := comp.FrameUpdate(ctx, src, dst); err != nil {
			return err
		}

		path := framePath(cfg.Output.Path, i, cfg.Output.Frames)
		if err := writePNG(path, render.ImageFromSurface(dst)); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if cfg.Output.Depth != "" {
			depthPath := framePath(cfg.Output.Depth, i, cfg.Output.Frames)
			if err := writePNG(depthPath, render.DepthImage(src)); err != nil {
				return fmt.Errorf("writing %s: %w", depthPath, err)
			}
		}
		log.Info("frame written",
			zap.String("path", path),
			zap.Float64("sun_elevation", light.Sun.Elevation()),
			zap.Bool("stale", comp.Stale()),
			zap.Duration("took", time.Since(start)))

		if clock != nil {
			clock.Advance()
		}
	}

	if cfg.Output.Panorama != "" {
		pano, err := comp.Panorama(2*height, height)
		if err != nil {
			return err
		}
		if err := writePNG(cfg.Output.Panorama, render.ImageFromSurface(pano)); err != nil {
			return fmt.Errorf("writing %s: %w", cfg.Output.Panorama, err)
		}
		log.Info("panorama written", zap.String("path", cfg.Output.Panorama))
	}
	return nil
}

// loadScene reads the configured color and depth images, or returns nil when
// the ground plane should be rendered instead.
func loadScene(s config.SceneConfig) (*scatter.Surface, error) {
	if s.Color == "" {
		return nil, nil
	}
	color, err := texture.Load(s.Color)
	if err != nil {
		return nil, fmt.Errorf("scene color: %w", err)
	}
	defer color.Close()

	var depth image.Image
	if s.Depth != "" {
		d, err := texture.Load(s.Depth)
		if err != nil {
			return nil, fmt.Errorf("scene depth: %w", err)
		}
		defer d.Close()
		depth = d
	}

	return render.SurfaceFromImage(color, depth)
}

// framePath numbers the output when more than one frame is rendered.
func framePath(path string, frame, frames int) string {
	if frames <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(path, ext), frame, ext)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return (&png.Encoder{CompressionLevel: png.BestSpeed}).Encode(f, img)
}

// Command lutsheet renders every atmosphere lookup table into one image:
// optical depth, three skybox height slices, the far fog slices and both
// light curves, each scaled into a tile of a 4x2 sheet.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/kernel"
	"github.com/echoflaresat/skyscatter/logger"
	"github.com/echoflaresat/skyscatter/render"
	"github.com/echoflaresat/skyscatter/scatter"
)

const (
	tileSize = 256
	cols     = 4
	rows     = 2
)

var (
	flagElevation = flag.Float64("elevation", 30, "Sun elevation in degrees")
	flagAzimuth   = flag.Float64("azimuth", 180, "Sun azimuth in degrees")
	flagExposure  = flag.Float64("exposure", 4, "Radiance scale applied before gamma")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <output.png|jpg>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := logger.Init("info", ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar

	tables, err := buildTables(context.Background(), *flagElevation, *flagAzimuth)
	if err != nil {
		log.Fatalf("Could not build tables: %v", err)
	}

	canvas := sheet(tables, *flagExposure)
	if err := save(flag.Arg(0), canvas); err != nil {
		log.Fatalf("Could not write %s: %v", flag.Arg(0), err)
	}
	log.Infof("-> created %s", flag.Arg(0))
}

// buildTables activates a compositor and runs one frame so the fog volumes
// are filled.
func buildTables(ctx context.Context, elevation, azimuth float64) (render.Tables, error) {
	cpu := kernel.NewCPU(kernel.DefaultOptions())
	defer cpu.Close()

	comp := render.New(scatter.DefaultParameters(), cpu, render.SunAt(elevation, azimuth), logger.Named("compositor"))
	if err := comp.Activate(ctx); err != nil {
		return render.Tables{}, err
	}
	defer comp.Deactivate()

	cam := render.NewCamera(2, 60, 16.0/9, 20000, 5, azimuth)
	if _, err := comp.FrameBegin(ctx, cam); err != nil {
		return render.Tables{}, err
	}
	return comp.Tables()
}

// sheet lays the tables out left to right, top to bottom.
func sheet(t render.Tables, exposure float64) *image.NRGBA {
	tiles := []image.Image{
		densityImage(t.Density),
		volumeSlice(t.Skybox, 0, exposure),
		volumeSlice(t.Skybox, t.Skybox.Depth/2, exposure),
		volumeSlice(t.Skybox, t.Skybox.Depth-1, exposure),
		volumeSlice(t.Inscattering, t.Inscattering.Depth-1, exposure),
		volumeSlice(t.Extinction, t.Extinction.Depth-1, 1),
		curveImage(&t.Ambient),
		curveImage(&t.Directional),
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, cols*tileSize, rows*tileSize))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	for idx, tile := range tiles {
		x := (idx % cols) * tileSize
		y := (idx / cols) * tileSize
		xdraw.NearestNeighbor.Scale(canvas, image.Rect(x, y, x+tileSize, y+tileSize), tile, tile.Bounds(), draw.Over, nil)
	}
	return canvas
}

func toImage(w, h int, at func(x, y int) colors.Color4) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, at(x, y).WithAlpha(1).Gamma().ToNRGBA())
		}
	}
	return img
}

// densityImage shows the sea-level transmittance of each texel, altitude
// growing upward.
func densityImage(d *scatter.DensityTable) *image.NRGBA {
	w, h := d.Size()
	return toImage(w, h, func(x, y int) colors.Color4 {
		r, m := d.At(x, h-1-y)
		return colors.New(
			math.Exp(-r*scatter.RayleighBase.X-m*scatter.MieBase.X),
			math.Exp(-r*scatter.RayleighBase.Y-m*scatter.MieBase.Y),
			math.Exp(-r*scatter.RayleighBase.Z-m*scatter.MieBase.Z),
			1)
	})
}

// volumeSlice shows one z layer, y growing upward.
func volumeSlice(v *scatter.Volume, z int, exposure float64) *image.NRGBA {
	return toImage(v.Width, v.Height, func(x, y int) colors.Color4 {
		return v.At(x, v.Height-1-y, z).ScaleRGB(exposure)
	})
}

// curveImage plots the three channels of a curve as bars over its buckets.
func curveImage(c *scatter.Curve) *image.NRGBA {
	peak := 0.0
	for _, s := range c {
		peak = max(peak, s.R, s.G, s.B)
	}
	if peak == 0 {
		peak = 1
	}
	const h = scatter.CurveSize
	return toImage(scatter.CurveSize, h, func(x, y int) colors.Color4 {
		level := float64(h-y) / h * peak
		s := c[x]
		on := func(v float64) float64 {
			if v >= level {
				return 1
			}
			return 0
		}
		return colors.New(on(s.R), on(s.G), on(s.B), 1)
	})
}

func save(output string, canvas *image.NRGBA) error {
	outFile, err := os.Create(output)
	if err != nil {
		return err
	}
	defer outFile.Close()

	switch ext := strings.ToLower(filepath.Ext(output)); ext {
	case ".png":
		return png.Encode(outFile, canvas)
	case ".jpg", ".jpeg":
		return jpeg.Encode(outFile, canvas, &jpeg.Options{Quality: 95})
	default:
		return fmt.Errorf("unsupported output format: %s", ext)
	}
}

package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
)

// SurfaceFromImage converts an sRGB image into a linear surface. depth may be
// nil; otherwise it must match the color image size and its luminance is the
// depth as a fraction of the far plane (white is sky).
func SurfaceFromImage(img, depth image.Image) (*scatter.Surface, error) {
	b := img.Bounds()
	s := scatter.NewSurface(b.Dx(), b.Dy())
	for y := range s.Height {
		for x := range s.Width {
			s.Set(x, y, colors.FromStandardColor(img.At(b.Min.X+x, b.Min.Y+y)).Linear())
		}
	}

	if depth == nil {
		return s, nil
	}

	db := depth.Bounds()
	if db.Dx() != s.Width || db.Dy() != s.Height {
		return nil, fmt.Errorf("%w: depth %dx%d, color %dx%d", scatter.ErrSize, db.Dx(), db.Dy(), s.Width, s.Height)
	}
	s.WithDepth()
	for y := range s.Height {
		for x := range s.Width {
			g := color.Gray16Model.Convert(depth.At(db.Min.X+x, db.Min.Y+y)).(color.Gray16)
			s.SetDepth(x, y, float64(g.Y)/0xffff)
		}
	}
	return s, nil
}

// ImageFromSurface converts a linear surface to an 8-bit sRGB image.
func ImageFromSurface(s *scatter.Surface) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := range s.Height {
		for x := range s.Width {
			img.SetNRGBA(x, y, s.At(x, y).Gamma().ToNRGBA())
		}
	}
	return img
}

// DepthImage renders the depth channel as 16-bit gray.
func DepthImage(s *scatter.Surface) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	for y := range s.Height {
		for x := range s.Width {
			d := min(max(s.DepthAt(x, y), 0), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(d * 0xffff)})
		}
	}
	return img
}

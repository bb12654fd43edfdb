package render

import (
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// Ground is a diffuse planet surface used when no scene image is supplied.
type Ground struct {
	Radius float64
	Albedo colors.Color4
}

// Render ray casts the planet for cam and shades it with the frame lighting.
// Pixels that miss the planet, or hit it beyond the far plane, are sky with
// depth 1 and transparent black color.
func (g Ground) Render(cam Camera, light Lighting, width, height int) *scatter.Surface {
	s := scatter.NewSurface(width, height).WithDepth()
	center := vectors.Vec3{X: 0, Y: -g.Radius, Z: 0}
	toSun := light.Sun.Direction.Neg()
	sunlight := light.Sun.Sunlight()

	for y := range height {
		for x := range width {
			dir, far := cam.ComputeRay(float64(x), float64(y), width, height)
			t := intersectSphere(cam.Position.Sub(center), dir, g.Radius)
			if t < 0 || t >= far {
				continue
			}

			normal := cam.Position.Add(dir.Scale(t)).Sub(center).Normalize()
			diffuse := math.Max(normal.Dot(toSun), 0)
			c := g.Albedo.MulRGB(sunlight.ScaleRGB(diffuse).AddRGB(light.Ambient))

			s.Set(x, y, c.WithAlpha(1))
			s.SetDepth(x, y, t/far)
		}
	}
	return s
}

// intersectSphere returns the closest positive t where O + t*D meets a sphere
// of radius r centered at the origin, or -1.
func intersectSphere(O, D vectors.Vec3, r float64) float64 {
	b := O.Dot(D)
	c := O.Dot(O) - r*r

	disc := b*b - c
	if disc < 0 {
		return -1.0
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t > 0 {
		return t
	}
	if t := -b + sq; t > 0 {
		return t
	}
	return -1.0
}

package kernel

import (
	"context"
	"fmt"
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// hemisphereSamples returns n directions spread evenly over the upper
// hemisphere on a Fibonacci lattice. The set is fixed for a given n so the
// ambient curve is reproducible.
func hemisphereSamples(n int) []vectors.Vec3 {
	golden := math.Pi * (3 - math.Sqrt(5))
	out := make([]vectors.Vec3, n)
	for i := range out {
		y := 1 - (float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		sin, cos := math.Sincos(golden * float64(i))
		out[i] = vectors.Vec3{X: r * cos, Y: y, Z: r * sin}
	}
	return out
}

// bucketToSun is the sun direction bucket i of a light curve stands for.
func bucketToSun(i int) vectors.Vec3 {
	mu := scatter.CurveElevation(i)
	return vectors.Vec3{X: math.Sqrt(math.Max(0, 1-mu*mu)), Y: mu, Z: 0}
}

// lightPass renders the ambient or directional light curve. Each column is a
// curve bucket; every row receives the same value.
func (k *CPU) lightPass(ctx context.Context, pass scatter.Pass, u *scatter.Uniforms, density *scatter.DensityTable, dst scatter.Target) error {
	width, height := dst.Size()
	if width != scatter.CurveSize || height < 1 {
		return fmt.Errorf("%s: %w: %dx%d target, want %d wide", pass, scatter.ErrSize, width, height, scatter.CurveSize)
	}

	bucket := k.directional
	if pass == scatter.PassAmbientLight {
		bucket = k.ambient
	}

	return k.each(ctx, scatter.CurveSize, func(i int) {
		c := bucket(u, density, bucketToSun(i))
		for y := range height {
			dst.Set(i, y, c)
		}
	})
}

// ambient averages the sky radiance seen from the ground over the hemisphere,
// weighted by the cosine to the up axis.
func (k *CPU) ambient(u *scatter.Uniforms, density *scatter.DensityTable, toSun vectors.Vec3) colors.Color4 {
	origin := above(u, 0)
	var sum colors.Color4
	for _, dir := range k.hemisphere {
		s := newScattering(u, density, toSun)
		s.march(origin, dir, 0, atmosphereExit(u, origin, dir), k.opts.LightSteps)
		sum = sum.AddRGB(s.inscattering(dir.Dot(toSun)).ScaleRGB(dir.Y))
	}
	return sum.ScaleRGB(2 / float64(len(k.hemisphere))).WithAlpha(1)
}

// directional is the sunlight reaching the ground: the incoming light
// attenuated along the path toward the sun.
func (k *CPU) directional(u *scatter.Uniforms, density *scatter.DensityTable, toSun vectors.Vec3) colors.Color4 {
	rayleigh, mie := density.Lookup(u, above(u, 0), toSun)
	if rayleigh > sunShadowDepth {
		return colors.Black()
	}
	t := transmittance(u, rayleigh, mie)
	light := incomingLight(u)
	return colors.Color4{R: light.X * t.X, G: light.Y * t.Y, B: light.Z * t.Z, A: 1}
}

package kernel

import (
	"context"
	"fmt"
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// ComputeParticleDensity fills the optical depth table, one group per row.
func (k *CPU) ComputeParticleDensity(ctx context.Context, u *scatter.Uniforms, dst *scatter.DensityTable) error {
	width, height := dst.Size()
	return k.dispatch(ctx, height, func(y int) {
		for x := range width {
			rayleigh, mie := k.opticalDepth(u, texelCoord(x, width)*2-1, texelCoord(y, height)*u.KarmanLine)
			dst.Set(x, y, colors.Color4{R: rayleigh, G: mie, A: 1})
		}
	})
}

// densityPass renders the same table through the shading path into any
// target; the axes stretch over the target size.
func (k *CPU) densityPass(ctx context.Context, u *scatter.Uniforms, dst scatter.Target) error {
	width, height := dst.Size()
	if width < 1 || height < 1 {
		return fmt.Errorf("%s: %w: %dx%d target", scatter.PassParticleDensity, scatter.ErrSize, width, height)
	}
	return k.each(ctx, height, func(y int) {
		for x := range width {
			rayleigh, mie := k.opticalDepth(u, texelCoord(x, width)*2-1, texelCoord(y, height)*u.KarmanLine)
			dst.Set(x, y, colors.Color4{R: rayleigh, G: mie, A: 1})
		}
	})
}

// opticalDepth integrates the Rayleigh and Mie densities from altitude h
// toward the top of the atmosphere along a ray whose zenith cosine is
// cosAngle. Rays that reach the ground are Shadowed.
func (k *CPU) opticalDepth(u *scatter.Uniforms, cosAngle, h float64) (rayleigh, mie float64) {
	sinAngle := math.Sqrt(math.Max(0, 1-cosAngle*cosAngle))
	origin := above(u, h)
	dir := vectors.Vec3{X: sinAngle, Y: cosAngle, Z: 0}

	if _, ok := hitsGround(u, origin, dir); ok {
		return scatter.Shadowed, scatter.Shadowed
	}

	length := atmosphereExit(u, origin, dir)
	if length <= 0 {
		return 0, 0
	}

	// Height is close to linear over one step; each step integrates the
	// exponential exactly between its endpoint heights.
	n := k.opts.DensitySteps
	dt := length / float64(n)
	h0 := math.Max(h, 0)
	for i := range n {
		h1 := math.Max(u.Height(origin.Add(dir.Scale(float64(i+1)*dt))), 0)
		rayleigh += segmentDensity(h0, h1, u.Scale[0]) * dt
		mie += segmentDensity(h0, h1, u.Scale[1]) * dt
		h0 = h1
	}
	return rayleigh, mie
}

// segmentDensity is the mean of exp(-h*inv) while h runs linearly from h0
// to h1.
func segmentDensity(h0, h1, inv float64) float64 {
	d := (h1 - h0) * inv
	if math.Abs(d) < 1e-6 {
		return math.Exp(-0.5 * (h0 + h1) * inv)
	}
	return (math.Exp(-h0*inv) - math.Exp(-h1*inv)) / d
}

// above returns the point at altitude h straight above the planet center.
func above(u *scatter.Uniforms, h float64) vectors.Vec3 {
	return u.PlanetCenter.Add(vectors.Vec3{Y: u.PlanetRadius + h})
}

// texelCoord maps texel i of n onto [0,1] with both endpoints included.
func texelCoord(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

package kernel

import (
	"context"

	"github.com/echoflaresat/skyscatter/scatter"
)

// fogGroup is the number of distance bands one inscattering group writes.
const fogGroup = 8

// GenerateInscattering fills the frustum aligned inscattering and extinction
// volumes. Each of the FogDepth/8 groups covers 8 distance bands for every
// screen column and marches each ray from the camera up to its last band.
func (k *CPU) GenerateInscattering(ctx context.Context, u *scatter.Uniforms, density *scatter.DensityTable, inscattering, extinction *scatter.Volume) error {
	toSun := u.ToSun()
	origin := u.Frustum.Origin
	steps := k.opts.InscatteringSteps

	return k.dispatch(ctx, scatter.FogDepth/fogGroup, func(g int) {
		first := g * fogGroup
		last := first + fogGroup - 1

		for y := range scatter.FogHeight {
			for x := range scatter.FogWidth {
				dir, length := u.Frustum.Ray(texelCoord(x, scatter.FogWidth), texelCoord(y, scatter.FogHeight))
				cosTheta := dir.Dot(toSun)

				s := newScattering(u, density, toSun)
				from := 0.0
				for z := 0; z <= last; z++ {
					to := scatter.FogDistance(z) * length
					s.march(origin, dir, from, to, steps)
					from = to

					if z >= first {
						inscattering.Set(x, y, z, s.inscattering(cosTheta))
						extinction.Set(x, y, z, s.extinction())
					}
				}
			}
		}
	})
}

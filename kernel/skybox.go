package kernel

import (
	"context"
	"fmt"

	"github.com/echoflaresat/skyscatter/scatter"
)

// skyboxGroup is the edge length of a skybox dispatch group.
const skyboxGroup = 8

// GenerateSkybox integrates the sky radiance for every (azimuth, elevation,
// height band) cell, dispatched as 4x16x4 groups of 8x8x8 cells.
func (k *CPU) GenerateSkybox(ctx context.Context, u *scatter.Uniforms, density *scatter.DensityTable, dst *scatter.Volume) error {
	if dst.Width != scatter.SkyboxWidth || dst.Height != scatter.SkyboxHeight || dst.Depth != scatter.SkyboxDepth {
		return fmt.Errorf("%w: skybox %dx%dx%d", scatter.ErrSize, dst.Width, dst.Height, dst.Depth)
	}

	gx := scatter.SkyboxWidth / skyboxGroup
	gy := scatter.SkyboxHeight / skyboxGroup
	gz := scatter.SkyboxDepth / skyboxGroup
	toSun := u.ToSun()

	return k.dispatch(ctx, gx*gy*gz, func(g int) {
		x0 := (g % gx) * skyboxGroup
		y0 := (g / gx % gy) * skyboxGroup
		z0 := g / (gx * gy) * skyboxGroup

		for z := z0; z < z0+skyboxGroup; z++ {
			origin := above(u, scatter.SkyboxAltitude(z, u.KarmanLine))
			for y := y0; y < y0+skyboxGroup; y++ {
				for x := x0; x < x0+skyboxGroup; x++ {
					dir := scatter.SkyboxDirection(x, y)

					length, ground := hitsGround(u, origin, dir)
					if !ground {
						length = atmosphereExit(u, origin, dir)
					}

					s := newScattering(u, density, toSun)
					s.march(origin, dir, 0, length, k.opts.SkyboxSteps)
					dst.Set(x, y, z, s.inscattering(dir.Dot(toSun)))
				}
			}
		}
	})
}

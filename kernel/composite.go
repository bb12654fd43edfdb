package kernel

import (
	"context"
	"fmt"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
)

// Angular extent of the sun disk, as cosines of the angle to its center.
const (
	sunDiskOuter = 0.99985
	sunDiskInner = 0.99995
)

// compositePass applies the atmosphere to src and writes the result to dst.
// Pixels at depth 1 show the sky; everything closer is fogged with the
// inscattering and extinction volumes.
func (k *CPU) compositePass(ctx context.Context, u *scatter.Uniforms, b *scatter.Bindings, src *scatter.Surface, dst scatter.Target) error {
	width, height := dst.Size()
	if width != src.Width || height != src.Height {
		return fmt.Errorf("%s: %w: source %dx%d, target %dx%d",
			scatter.PassComposite, scatter.ErrSize, src.Width, src.Height, width, height)
	}

	toSun := u.ToSun()
	altitude := u.Height(u.Frustum.Origin)

	return k.each(ctx, height, func(y int) {
		v := 1 - (float64(y)+0.5)/float64(height)
		for x := range width {
			uu := (float64(x) + 0.5) / float64(width)
			scene := src.At(x, y)
			depth := src.DepthAt(x, y)

			if depth >= 1 {
				dir, _ := u.Frustum.Ray(uu, v)
				sky := scatter.SampleSky(b.Skybox, dir, altitude, u.KarmanLine)
				disk := u.Sunlight.ScaleRGB(Smoothstep(sunDiskOuter, sunDiskInner, dir.Dot(toSun)))
				_, far := scatter.SampleFog(b.Inscattering, b.Extinction, uu, v, 1)

				dst.Set(x, y, scene.MulRGB(far).AddRGB(sky).AddRGB(disk).WithAlpha(1))
				continue
			}

			ins, ext := scatter.SampleFog(b.Inscattering, b.Extinction, uu, v, depth)
			dst.Set(x, y, fog(scene, ins, ext))
		}
	})
}

// fog attenuates c by the extinction and adds the inscattered light. Alpha is
// kept.
func fog(c, inscattering, extinction colors.Color4) colors.Color4 {
	return c.MulRGB(extinction).AddRGB(inscattering)
}

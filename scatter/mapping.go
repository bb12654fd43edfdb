package scatter

import (
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/vectors"
)

// SkyboxDirection returns the view direction stored at skybox texel (x, y):
// x is the azimuth around the up axis, y the cosine of the view elevation
// from -1 (nadir) to 1 (zenith).
func SkyboxDirection(x, y int) vectors.Vec3 {
	azimuth := 2 * math.Pi * float64(x) / SkyboxWidth
	mu := float64(y)/(SkyboxHeight-1)*2 - 1
	s := math.Sqrt(math.Max(0, 1-mu*mu))
	sinAz, cosAz := math.Sincos(azimuth)
	return vectors.Vec3{X: s * cosAz, Y: mu, Z: s * sinAz}
}

// SkyboxAltitude returns the altitude of skybox height band z.
func SkyboxAltitude(z int, karmanLine float64) float64 {
	return float64(z) / (SkyboxDepth - 1) * karmanLine
}

// SampleSky filters the skybox for a view direction seen from altitude.
func SampleSky(skybox *Volume, dir vectors.Vec3, altitude, karmanLine float64) colors.Color4 {
	azimuth := math.Atan2(dir.Z, dir.X)
	if azimuth < 0 {
		azimuth += 2 * math.Pi
	}
	x := azimuth / (2 * math.Pi) * SkyboxWidth
	y := (clamp(dir.Y, -1, 1) + 1) * 0.5 * (SkyboxHeight - 1)
	z := altitude / karmanLine * (SkyboxDepth - 1)
	return skybox.Sample(x, y, z, true)
}

// FogDistance returns the fraction of the far-plane distance covered by
// distance band z.
func FogDistance(z int) float64 {
	return float64(z+1) / FogDepth
}

// SampleFog filters the inscattering and extinction volumes at viewport
// position (u, v) and depth, the fraction of the far-plane distance. Depths in
// front of the first band fade from no fog.
func SampleFog(inscattering, extinction *Volume, u, v, depth float64) (colors.Color4, colors.Color4) {
	x := clamp(u, 0, 1) * (FogWidth - 1)
	y := clamp(v, 0, 1) * (FogHeight - 1)
	z := clamp(depth, 0, 1)*FogDepth - 1

	if z >= 0 {
		return inscattering.Sample(x, y, z, false), extinction.Sample(x, y, z, false)
	}

	w := z + 1
	ins := inscattering.Sample(x, y, 0, false)
	ext := extinction.Sample(x, y, 0, false)
	return colors.Color4{A: ins.A}.Mix(ins, w), colors.White().Mix(ext, w)
}

package kernel

import (
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// groundEpsilon is how far behind the ray origin (in meters) a planet hit may
// start and still count, so rays leaving the surface downward are shadowed.
const groundEpsilon = 1.0

// raySphere intersects the ray o + t*d (d unit length) with a sphere and
// returns both hit distances, nearest first.
func raySphere(o, d, center vectors.Vec3, radius float64) (t0, t1 float64, ok bool) {
	oc := o.Sub(center)
	b := oc.Dot(d)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, 0, false
	}
	s := math.Sqrt(disc)
	return -b - s, -b + s, true
}

// hitsGround reports whether the ray hits the planet in front of its origin
// and returns the distance to the surface.
func hitsGround(u *scatter.Uniforms, o, d vectors.Vec3) (float64, bool) {
	t0, t1, ok := raySphere(o, d, u.PlanetCenter, u.PlanetRadius)
	if !ok || t1 <= 0 || t0 <= -groundEpsilon {
		return 0, false
	}
	return math.Max(t0, 0), true
}

// atmosphereExit returns the distance from o to where the ray leaves the
// atmosphere, or 0 when it never enters it.
func atmosphereExit(u *scatter.Uniforms, o, d vectors.Vec3) float64 {
	_, t1, ok := raySphere(o, d, u.PlanetCenter, u.AtmosphereRadius())
	if !ok || t1 <= 0 {
		return 0
	}
	return t1
}

// rayleighPhase is the Rayleigh phase function for the cosine of the
// scattering angle.
func rayleighPhase(cosTheta float64) float64 {
	return 3.0 / (16.0 * math.Pi) * (1 + cosTheta*cosTheta)
}

// miePhase is the Cornette-Shanks approximation with asymmetry g.
func miePhase(cosTheta, g float64) float64 {
	g2 := g * g
	k := 3.0 / (8.0 * math.Pi) * (1 - g2) / (2 + g2)
	denom := math.Max(1+g2-2*g*cosTheta, 1e-6)
	return k * (1 + cosTheta*cosTheta) / math.Pow(denom, 1.5)
}

// transmittance returns exp(-(βR*rayleigh + βM*mie)) per channel.
func transmittance(u *scatter.Uniforms, rayleigh, mie float64) vectors.Vec3 {
	br, bm := u.RayleighExtinction, u.MieExtinction
	return vectors.Vec3{
		X: math.Exp(-(br.X*rayleigh + bm.X*mie)),
		Y: math.Exp(-(br.Y*rayleigh + bm.Y*mie)),
		Z: math.Exp(-(br.Z*rayleigh + bm.Z*mie)),
	}
}

// incomingLight is the RGB light entering the top of the atmosphere.
func incomingLight(u *scatter.Uniforms) vectors.Vec3 {
	c := u.IncomingLightColor
	return vectors.Vec3{X: c.R, Y: c.G, Z: c.B}.Scale(u.Sunshine)
}

// sunShadowDepth is the optical depth above which a sample counts as being in
// the planet's shadow.
const sunShadowDepth = 1e10

// scattering accumulates single scattering along a view ray, one sample at a
// time. The view optical depth grows with each step, so the transmittance of
// a sample covers camera → sample → sun.
type scattering struct {
	u       *scatter.Uniforms
	density *scatter.DensityTable
	toSun   vectors.Vec3

	viewRayleigh, viewMie float64
	sumRayleigh, sumMie   vectors.Vec3
}

func newScattering(u *scatter.Uniforms, density *scatter.DensityTable, toSun vectors.Vec3) scattering {
	return scattering{u: u, density: density, toSun: toSun}
}

// step adds the sample at p covering a segment of length dt.
func (s *scattering) step(p vectors.Vec3, dt float64) {
	h := s.u.Height(p)
	if h > s.u.KarmanLine {
		return
	}
	h = math.Max(h, 0)

	localRayleigh := math.Exp(-h*s.u.Scale[0]) * dt
	localMie := math.Exp(-h*s.u.Scale[1]) * dt
	s.viewRayleigh += localRayleigh
	s.viewMie += localMie

	sunRayleigh, sunMie := s.density.Lookup(s.u, p, s.toSun)
	if sunRayleigh > sunShadowDepth {
		return
	}

	t := transmittance(s.u, s.viewRayleigh+sunRayleigh, s.viewMie+sunMie)
	s.sumRayleigh = s.sumRayleigh.Add(t.Scale(localRayleigh))
	s.sumMie = s.sumMie.Add(t.Scale(localMie))
}

// march samples n segments of the ray o + t*d over [from, to].
func (s *scattering) march(o, d vectors.Vec3, from, to float64, n int) {
	if to <= from || n <= 0 {
		return
	}
	dt := (to - from) / float64(n)
	for i := range n {
		s.step(o.Add(d.Scale(from+(float64(i)+0.5)*dt)), dt)
	}
}

// inscattering returns the light scattered toward the viewer for a view
// direction whose cosine with the sun direction is cosTheta.
func (s *scattering) inscattering(cosTheta float64) colors.Color4 {
	pr := rayleighPhase(cosTheta)
	pm := miePhase(cosTheta, s.u.G)
	light := incomingLight(s.u)
	rs, ms := s.u.RayleighScattering, s.u.MieScattering

	return colors.Color4{
		R: (s.sumRayleigh.X*rs.X*pr + s.sumMie.X*ms.X*pm) * light.X,
		G: (s.sumRayleigh.Y*rs.Y*pr + s.sumMie.Y*ms.Y*pm) * light.Y,
		B: (s.sumRayleigh.Z*rs.Z*pr + s.sumMie.Z*ms.Z*pm) * light.Z,
		A: 1,
	}
}

// extinction returns the transmittance of the view path walked so far.
func (s *scattering) extinction() colors.Color4 {
	t := transmittance(s.u, s.viewRayleigh, s.viewMie)
	return colors.Color4{R: t.X, G: t.Y, B: t.Z, A: 1}
}

// Smoothstep performs a Hermite interpolation between 0 and 1 across
// [edge0, edge1]. Returns 0 if x < edge0, 1 if x > edge1.
func Smoothstep(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0.0
		}
		return 1.0
	}

	t := (x - edge0) / (edge1 - edge0)
	if t < 0.0 {
		t = 0.0
	} else if t > 1.0 {
		t = 1.0
	}
	return t * t * (3.0 - 2.0*t)
}

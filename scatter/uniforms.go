package scatter

import (
	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/vectors"
	"go.uber.org/zap"
)

// Frustum holds the camera position and its four far-plane corners in world
// space, ordered bottom-left, top-left, top-right, bottom-right.
type Frustum struct {
	Origin  vectors.Vec3
	Corners [4]vectors.Vec3
}

// Ray returns the direction and length of the ray through viewport position
// (u, v) ending on the far plane.
func (f Frustum) Ray(u, v float64) (vectors.Vec3, float64) {
	d := vectors.Bilerp(f.Corners, u, v).Sub(f.Origin)
	length := d.Norm()
	return d.Normalize(), length
}

// Uniforms is the named parameter set handed to every kernel and pass.
type Uniforms struct {
	// _Planet: center (xyz) and radius (w).
	PlanetCenter vectors.Vec3
	PlanetRadius float64

	Sunlight           colors.Color4 // _Sunlight
	IncomingLightColor colors.Color4 // _IncomingLightColor
	Frustum            Frustum       // _Frustum
	SunlightDirection  vectors.Vec3  // _SunlightDirection

	RayleighScattering vectors.Vec3 // _RayleighScattering
	MieScattering      vectors.Vec3 // _MieScattering
	RayleighExtinction vectors.Vec3 // _RayleighExtinction
	MieExtinction      vectors.Vec3 // _MieExtinction

	// _Scale: inverse Rayleigh and Mie scale heights.
	Scale [2]float64

	KarmanLine float64 // _KarmanLine
	G          float64 // _G
	Sunshine   float64 // _Sunshine
}

// NewUniforms marshals the parameter set for the backend.
func NewUniforms(p Parameters, sun SunState, frustum Frustum) Uniforms {
	return Uniforms{
		PlanetCenter:       vectors.Vec3{X: 0, Y: -p.PlanetRadius, Z: 0},
		PlanetRadius:       p.PlanetRadius,
		Sunlight:           sun.Sunlight(),
		IncomingLightColor: p.IncomingLightColor,
		Frustum:            frustum,
		SunlightDirection:  sun.Direction,
		RayleighScattering: RayleighBase.Scale(p.RayleighScattering),
		MieScattering:      MieBase.Scale(p.MieScattering),
		RayleighExtinction: RayleighBase.Scale(p.RayleighExtinction),
		MieExtinction:      MieBase.Scale(p.MieExtinction),
		Scale:              [2]float64{1 / p.ScaleHeightRayleigh, 1 / p.ScaleHeightMie},
		KarmanLine:         KarmanLine,
		G:                  p.G,
		Sunshine:           p.Sunshine,
	}
}

// Height returns the altitude of p above the planet surface.
func (u *Uniforms) Height(p vectors.Vec3) float64 {
	return p.Sub(u.PlanetCenter).Norm() - u.PlanetRadius
}

// ToSun returns the unit vector pointing at the sun.
func (u *Uniforms) ToSun() vectors.Vec3 {
	return u.SunlightDirection.Normalize().Neg()
}

// AtmosphereRadius is the radius of the outer atmosphere shell.
func (u *Uniforms) AtmosphereRadius() float64 {
	return u.PlanetRadius + u.KarmanLine
}

// LogFields renders the parameter set for debug logging.
func (u *Uniforms) LogFields() []zap.Field {
	vec := func(v vectors.Vec3) []float64 { return []float64{v.X, v.Y, v.Z} }
	rgba := func(c colors.Color4) []float64 { return []float64{c.R, c.G, c.B, c.A} }
	return []zap.Field{
		zap.Float64s("_Planet", []float64{u.PlanetCenter.X, u.PlanetCenter.Y, u.PlanetCenter.Z, u.PlanetRadius}),
		zap.Float64s("_Sunlight", rgba(u.Sunlight)),
		zap.Float64s("_IncomingLightColor", rgba(u.IncomingLightColor)),
		zap.Float64s("_SunlightDirection", vec(u.SunlightDirection)),
		zap.Float64s("_RayleighScattering", vec(u.RayleighScattering)),
		zap.Float64s("_MieScattering", vec(u.MieScattering)),
		zap.Float64s("_RayleighExtinction", vec(u.RayleighExtinction)),
		zap.Float64s("_MieExtinction", vec(u.MieExtinction)),
		zap.Float64s("_Scale", u.Scale[:]),
		zap.Float64("_KarmanLine", u.KarmanLine),
		zap.Float64("_G", u.G),
		zap.Float64("_Sunshine", u.Sunshine),
	}
}

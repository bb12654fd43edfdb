package scatter

import (
	"fmt"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/vectors"
)

// KarmanLine is the altitude of the top of the atmosphere in meters.
const KarmanLine = 80000.0

// Sea-level scattering coefficients in m⁻¹ for the red, green and blue
// channels. The Parameters multipliers scale them.
var (
	RayleighBase = vectors.Vec3{X: 5.8e-6, Y: 13.5e-6, Z: 33.1e-6}
	MieBase      = vectors.Vec3{X: 2e-5, Y: 2e-5, Z: 2e-5}
)

// Parameters are the physical constants of the atmosphere. They are fixed for
// the duration of a frame.
type Parameters struct {
	ScaleHeightRayleigh float64       `yaml:"scale_height_rayleigh"`
	ScaleHeightMie      float64       `yaml:"scale_height_mie"`
	RayleighScattering  float64       `yaml:"rayleigh_scattering"`
	RayleighExtinction  float64       `yaml:"rayleigh_extinction"`
	MieScattering       float64       `yaml:"mie_scattering"`
	MieExtinction       float64       `yaml:"mie_extinction"`
	G                   float64       `yaml:"g"`
	PlanetRadius        float64       `yaml:"planet_radius"`
	IncomingLightColor  colors.Color4 `yaml:"incoming_light"`
	Sunshine            float64       `yaml:"sunshine"`
	ReflectionProbe     bool          `yaml:"reflection_probe"`
}

// DefaultParameters returns an Earth-like clear sky.
func DefaultParameters() Parameters {
	return Parameters{
		ScaleHeightRayleigh: 7994,
		ScaleHeightMie:      1200,
		RayleighScattering:  1,
		RayleighExtinction:  1,
		MieScattering:       1,
		MieExtinction:       1,
		G:                   0.76,
		PlanetRadius:        6378100,
		IncomingLightColor:  colors.New(4, 4, 4, 4),
		Sunshine:            1,
	}
}

// Validate checks every field against its allowed range.
func (p Parameters) Validate() error {
	coefficients := []struct {
		name  string
		value float64
	}{
		{"rayleigh_scattering", p.RayleighScattering},
		{"rayleigh_extinction", p.RayleighExtinction},
		{"mie_scattering", p.MieScattering},
		{"mie_extinction", p.MieExtinction},
	}
	for _, c := range coefficients {
		if c.value < 0 || c.value > 10 {
			return fmt.Errorf("%w: %s %v outside [0,10]", ErrInvalidParameters, c.name, c.value)
		}
	}
	if p.G < -1 || p.G > 1 {
		return fmt.Errorf("%w: g %v outside [-1,1]", ErrInvalidParameters, p.G)
	}
	if p.PlanetRadius <= 0 {
		return fmt.Errorf("%w: planet radius %v must be positive", ErrInvalidParameters, p.PlanetRadius)
	}
	if p.ScaleHeightRayleigh <= 0 || p.ScaleHeightMie <= 0 {
		return fmt.Errorf("%w: scale heights (%v, %v) must be positive",
			ErrInvalidParameters, p.ScaleHeightRayleigh, p.ScaleHeightMie)
	}
	if p.Sunshine < 0 || p.Sunshine > 16 {
		return fmt.Errorf("%w: sunshine %v outside [0,16]", ErrInvalidParameters, p.Sunshine)
	}
	return nil
}

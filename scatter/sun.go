package scatter

import (
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/vectors"
)

// MinSunlight is the floor applied to each sun color channel and to the sun
// intensity, so the light never goes fully black.
const MinSunlight = 0.01

// SunState is the directional light as seen by the atmosphere.
type SunState struct {
	// Direction is the unit vector sunlight travels along.
	Direction vectors.Vec3
	Color     colors.Color4
	Intensity float64
}

// NewSunState returns a white sun of intensity 1 travelling along forward.
func NewSunState(forward vectors.Vec3) SunState {
	return SunState{
		Direction: forward.Normalize(),
		Color:     colors.White(),
		Intensity: 1,
	}
}

// Sunlight is Color * Intensity, the _Sunlight uniform.
func (s SunState) Sunlight() colors.Color4 {
	return s.Color.Scale(s.Intensity)
}

// Elevation is dot(up, -Direction): 1 with the sun at the zenith, -1 at the
// nadir.
func (s SunState) Elevation() float64 {
	return vectors.Up.Dot(s.Direction.Neg())
}

// WithLight splits c into a normalized RGB color and a magnitude. Channels
// and magnitude are floored at MinSunlight; a zero color yields the floor.
func (s SunState) WithLight(c colors.Color4) SunState {
	rgb := vectors.Vec3{X: c.R, Y: c.G, Z: c.B}
	length := rgb.Norm()
	rgb = rgb.Normalize()

	s.Color = colors.New(
		math.Max(rgb.X, MinSunlight),
		math.Max(rgb.Y, MinSunlight),
		math.Max(rgb.Z, MinSunlight),
		1,
	)
	s.Intensity = math.Max(length, MinSunlight)
	return s
}

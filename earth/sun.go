package earth

import (
	"math"
	"time"

	"github.com/echoflaresat/skyscatter/vectors"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
)

// SunDirectionECEF returns the unit vector from the Earth's center toward
// the Sun in Earth-centered, Earth-fixed coordinates.
func SunDirectionECEF(t time.Time) vectors.Vec3 {
	t = t.UTC()
	jd := julian.TimeToJD(t)

	// Apparent RA/Dec of the Sun
	ra, dec := solar.ApparentEquatorial(jd)

	// Unit vector in ECI (Earth-centered inertial)
	x := dec.Cos() * ra.Cos()
	y := dec.Cos() * ra.Sin()
	z := dec.Sin()

	// Rotate ECI → ECEF using apparent sidereal time at the instant
	gst := sidereal.Apparent(jd)
	cosGST := gst.Angle().Cos()
	sinGST := gst.Angle().Sin()

	xe := x*cosGST + y*sinGST
	ye := -x*sinGST + y*cosGST
	ze := z

	return vectors.Vec3{X: xe, Y: ye, Z: ze}
}

// ToLocal expresses an ECEF direction in the local horizon frame at the
// given geodetic position: X east, Y up, Z north.
func ToLocal(dir vectors.Vec3, latDeg, lonDeg float64) vectors.Vec3 {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	east := vectors.Vec3{X: -sinLon, Y: cosLon, Z: 0}
	north := vectors.Vec3{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
	up := vectors.Vec3{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}

	return vectors.Vec3{X: dir.Dot(east), Y: dir.Dot(up), Z: dir.Dot(north)}
}

// Ephemeris provides the sun direction for an observer on Earth. Clock
// defaults to time.Now.
type Ephemeris struct {
	Latitude  float64
	Longitude float64
	Clock     func() time.Time
}

// SunForward returns the direction sunlight travels in the observer's local
// frame, i.e. the negated direction toward the sun.
func (e Ephemeris) SunForward() vectors.Vec3 {
	now := time.Now
	if e.Clock != nil {
		now = e.Clock
	}
	toSun := ToLocal(SunDirectionECEF(now()), e.Latitude, e.Longitude)
	return toSun.Normalize().Neg()
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// FrameClock reports Start plus Step for every frame advanced so far. Its
// Now method is an Ephemeris clock.
type FrameClock struct {
	Start time.Time
	Step  time.Duration
	frame int
}

func (c *FrameClock) Now() time.Time {
	return c.Start.Add(time.Duration(c.frame) * c.Step)
}

// Advance moves the clock to the next frame.
func (c *FrameClock) Advance() {
	c.frame++
}

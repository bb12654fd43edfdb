package render

import (
	"math"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// SunProvider supplies the direction sunlight travels, read once per frame.
type SunProvider interface {
	SunForward() vectors.Vec3
}

// FixedSun is a sun that never moves. The vector is the direction the light
// travels; it is normalized on use.
type FixedSun vectors.Vec3

func (s FixedSun) SunForward() vectors.Vec3 {
	return vectors.Vec3(s).Normalize()
}

// SunAt returns a FixedSun at the given elevation and azimuth in degrees.
// Azimuth is measured from north toward east.
func SunAt(elevationDeg, azimuthDeg float64) FixedSun {
	toSun := vectors.Vec3{X: 0, Y: 0, Z: 1}.
		Rotate(vectors.Vec3{X: -1, Y: 0, Z: 0}, cosDeg(elevationDeg), sinDeg(elevationDeg)).
		Rotate(vectors.Up, cosDeg(azimuthDeg), sinDeg(azimuthDeg))
	return FixedSun(toSun.Neg())
}

// Lighting is what a frame hands back to the host scene: the directional
// light to apply, the ambient color and, when enabled, the reflection probe
// settings.
type Lighting struct {
	Sun     scatter.SunState
	Ambient colors.Color4
	Probe   *ProbeSettings
}

// ProbeRefresh says when the reflection probe re-renders.
type ProbeRefresh int

const (
	RefreshOnAwake ProbeRefresh = iota
	RefreshEveryFrame
	RefreshViaScripting
)

// ProbeMode selects baked or realtime reflection capture.
type ProbeMode int

const (
	ProbeBaked ProbeMode = iota
	ProbeRealtime
	ProbeCustom
)

// ProbeTimeSlicing spreads a realtime probe update over several frames.
type ProbeTimeSlicing int

const (
	AllFacesAtOnce ProbeTimeSlicing = iota
	IndividualFaces
	NoTimeSlicing
)

// ProbeSettings configure the host's sky reflection probe.
type ProbeSettings struct {
	Resolution  int
	Refresh     ProbeRefresh
	Mode        ProbeMode
	TimeSlicing ProbeTimeSlicing
	Size        vectors.Vec3
	HDR         bool
	ClearSkybox bool
	CullingMask uint32
}

// DefaultProbeSettings is a realtime, sky-only probe large enough to enclose
// a scene.
func DefaultProbeSettings() ProbeSettings {
	return ProbeSettings{
		Resolution:  128,
		Refresh:     RefreshEveryFrame,
		Mode:        ProbeRealtime,
		TimeSlicing: IndividualFaces,
		Size:        vectors.Vec3{X: 50000, Y: 50000, Z: 50000},
		HDR:         true,
		ClearSkybox: true,
		CullingMask: 0,
	}
}

func sinDeg(d float64) float64 { return math.Sin(d * math.Pi / 180) }
func cosDeg(d float64) float64 { return math.Cos(d * math.Pi / 180) }

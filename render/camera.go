package render

import (
	"math"

	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// Camera models a pinhole camera in the atmosphere frame: Y up, X east,
// Z north, with the planet surface at Y = 0 below the origin.
type Camera struct {
	FOVDeg     float64 // vertical field of view
	TanHalfFOV float64
	Aspect     float64 // width / height
	Far        float64 // far plane distance in meters
	Position   vectors.Vec3
	Forward    vectors.Vec3
	Right      vectors.Vec3
	Up         vectors.Vec3
}

// NewCamera places a camera at altitude (meters) above the origin looking
// north, then turns it by yaw (degrees, positive toward east) and raises it by
// pitch (degrees, positive up).
func NewCamera(altitude, fovDeg, aspect, far, pitchDeg, yawDeg float64) Camera {
	if aspect <= 0 {
		aspect = 1
	}

	fwd := vectors.Vec3{X: 0, Y: 0, Z: 1}
	up := vectors.Up
	right := up.Cross(fwd)

	if yawDeg != 0 {
		fwd, right, up = yawCamera(fwd, right, up, yawDeg)
	}
	if pitchDeg != 0 {
		fwd, right, up = tiltCamera(fwd, right, up, -pitchDeg)
	}

	return Camera{
		FOVDeg:     fovDeg,
		TanHalfFOV: math.Tan(fovDeg * math.Pi / 360.0),
		Aspect:     aspect,
		Far:        far,
		Position:   vectors.Vec3{X: 0, Y: altitude, Z: 0},
		Forward:    fwd,
		Right:      right,
		Up:         up,
	}
}

// tiltCamera rotates forward/up around the Right axis by tiltDeg.
func tiltCamera(fwd, right, up vectors.Vec3, tiltDeg float64) (vectors.Vec3, vectors.Vec3, vectors.Vec3) {
	sin, cos := math.Sincos(tiltDeg * math.Pi / 180.0)
	return fwd.Rotate(right, cos, sin).Normalize(), right, up.Rotate(right, cos, sin).Normalize()
}

// yawCamera rotates forward/right around the Up axis by yawDeg.
func yawCamera(fwd, right, up vectors.Vec3, yawDeg float64) (vectors.Vec3, vectors.Vec3, vectors.Vec3) {
	sin, cos := math.Sincos(yawDeg * math.Pi / 180.0)
	return fwd.Rotate(up, cos, sin).Normalize(), right.Rotate(up, cos, sin).Normalize(), up
}

// FarCorner returns the world position of viewport point (u, v) on the far
// plane. u runs left to right and v bottom to top, both in [0,1].
func (c Camera) FarCorner(u, v float64) vectors.Vec3 {
	halfH := c.Far * c.TanHalfFOV
	halfW := halfH * c.Aspect
	return c.Position.
		Add(c.Forward.Scale(c.Far)).
		Add(c.Right.Scale((2*u - 1) * halfW)).
		Add(c.Up.Scale((2*v - 1) * halfH))
}

// Frustum returns the camera position and the four far-plane corners in the
// order bottom-left, top-left, top-right, bottom-right.
func (c Camera) Frustum() scatter.Frustum {
	return scatter.Frustum{
		Origin: c.Position,
		Corners: [4]vectors.Vec3{
			c.FarCorner(0, 0),
			c.FarCorner(0, 1),
			c.FarCorner(1, 1),
			c.FarCorner(1, 0),
		},
	}
}

// ComputeRay returns the normalized viewing direction through pixel (i, j) of
// a width x height image, along with the distance to the far plane on that
// ray. Pixel centers sit at half-integer coordinates.
func (c Camera) ComputeRay(i, j float64, width, height int) (vectors.Vec3, float64) {
	u := (i + 0.5) / float64(width)
	v := 1 - (j+0.5)/float64(height)
	return c.Frustum().Ray(u, v)
}

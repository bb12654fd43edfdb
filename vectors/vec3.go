package vectors

import "math"

// Vec3 is a simple 3D vector with float64 components.
type Vec3 struct {
	X, Y, Z float64
}

// Up is the world up axis. The atmosphere frame is Y-up with the planet
// center straight below the origin.
var Up = Vec3{X: 0, Y: 1, Z: 0}

func Zero() Vec3 {
	return Vec3{X: 0.0, Y: 0.0, Z: 0.0}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product v · o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Norm returns the Euclidean length ||v||.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector v / ||v||.
// If ||v|| == 0, it returns the zero vector (0,0,0).
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	inv := 1.0 / n
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Lerp returns v*(1-t) + o*t.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
		Z: v.Z + (o.Z-v.Z)*t,
	}
}

// Bilerp interpolates the four far-plane corners of a frustum. Corners are
// ordered bottom-left, top-left, top-right, bottom-right; u runs left to
// right and v bottom to top.
func Bilerp(corners [4]Vec3, u, v float64) Vec3 {
	bottom := corners[0].Lerp(corners[3], u)
	top := corners[1].Lerp(corners[2], u)
	return bottom.Lerp(top, v)
}

// Rotate applies Rodrigues' rotation formula: rotate v around a unit axis by
// the angle whose cosine and sine are given.
func (v Vec3) Rotate(axis Vec3, cosT, sinT float64) Vec3 {
	// v*cos + (axis x v)*sin + axis*(axis·v)*(1-cos)
	return v.Scale(cosT).
		Add(axis.Cross(v).Scale(sinT)).
		Add(axis.Scale(axis.Dot(v) * (1.0 - cosT)))
}

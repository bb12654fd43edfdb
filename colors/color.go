package colors

import (
	"image/color"
	"math"
)

// Color4 is a linear RGBA color with float64 components. Values above 1 are
// allowed (HDR); they are clamped only on conversion to 8-bit.
type Color4 struct {
	R, G, B, A float64
}

func New(r, g, b, a float64) Color4 {
	return Color4{R: r, G: g, B: b, A: a}
}

// Gray returns an opaque color with all channels set to v.
func Gray(v float64) Color4 {
	return Color4{R: v, G: v, B: v, A: 1}
}

func (c Color4) RGBA() (r, g, b, a uint32) {
	rf := clamp01(c.R)
	gf := clamp01(c.G)
	bf := clamp01(c.B)
	af := clamp01(c.A)

	// Convert to pre-multiplied 16-bit values
	return uint32(rf * af * 65535),
		uint32(gf * af * 65535),
		uint32(bf * af * 65535),
		uint32(af * 65535)
}

func FromStandardColor(c color.Color) Color4 {
	// Fast path: already a Color4
	if c4, ok := c.(Color4); ok {
		return c4
	}

	r16, g16, b16, a16 := c.RGBA()
	if a16 == 0 {
		return Color4{R: 0, G: 0, B: 0, A: 0}
	}

	// De-premultiply and normalize to [0,1]
	invA := float64(0xFFFF) / float64(a16)
	return Color4{
		R: float64(r16) * invA / 65535.0,
		G: float64(g16) * invA / 65535.0,
		B: float64(b16) * invA / 65535.0,
		A: float64(a16) / 65535.0,
	}
}

func White() Color4 {
	return Color4{R: 1, G: 1, B: 1, A: 1}
}

func Black() Color4 {
	return Color4{R: 0, G: 0, B: 0, A: 1}
}

// Add returns c + o (component-wise).
func (c Color4) Add(o Color4) Color4 {
	return Color4{c.R + o.R, c.G + o.G, c.B + o.B, c.A + o.A}
}

// AddRGB returns c with o's RGB added; alpha is kept.
func (c Color4) AddRGB(o Color4) Color4 {
	return Color4{c.R + o.R, c.G + o.G, c.B + o.B, c.A}
}

// MulRGB returns c with RGB multiplied by o's RGB; alpha is kept.
func (c Color4) MulRGB(o Color4) Color4 {
	return Color4{c.R * o.R, c.G * o.G, c.B * o.B, c.A}
}

// Scale returns c * s (scalar).
func (c Color4) Scale(s float64) Color4 {
	return Color4{c.R * s, c.G * s, c.B * s, c.A * s}
}

// ScaleRGB returns c with RGB scaled by s; alpha is kept.
func (c Color4) ScaleRGB(s float64) Color4 {
	return Color4{c.R * s, c.G * s, c.B * s, c.A}
}

// Mix returns lerp(c, o, t) = c*(1-t) + o*t.
func (c Color4) Mix(o Color4, t float64) Color4 {
	return Color4{
		R: c.R*(1-t) + o.R*t,
		G: c.G*(1-t) + o.G*t,
		B: c.B*(1-t) + o.B*t,
		A: c.A*(1-t) + o.A*t,
	}
}

func (c Color4) WithAlpha(a float64) Color4 {
	return Color4{
		R: c.R,
		G: c.G,
		B: c.B,
		A: a,
	}
}

// Magnitude returns the Euclidean length of the RGB part.
func (c Color4) Magnitude() float64 {
	return math.Sqrt(c.R*c.R + c.G*c.G + c.B*c.B)
}

// Gamma converts linear RGB to gamma (sRGB) space. Alpha is left untouched.
func (c Color4) Gamma() Color4 {
	return Color4{
		R: linearToSrgb(c.R),
		G: linearToSrgb(c.G),
		B: linearToSrgb(c.B),
		A: c.A,
	}
}

// Linear converts gamma (sRGB) RGB to linear space. Alpha is left untouched.
func (c Color4) Linear() Color4 {
	return Color4{
		R: srgbToLinear(c.R),
		G: srgbToLinear(c.G),
		B: srgbToLinear(c.B),
		A: c.A,
	}
}

// ToNRGBA rounds each clamped component to 8 bits.
func (c Color4) ToNRGBA() color.NRGBA {
	return color.NRGBA{
		to8bit(c.R),
		to8bit(c.G),
		to8bit(c.B),
		to8bit(c.A),
	}
}

// --- helpers ---

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func to8bit(x float64) uint8 {
	return uint8(255.0*clamp01(x) + 0.5)
}

// IEC 61966-2-1 sRGB <-> linear
func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSrgb(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}

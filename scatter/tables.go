package scatter

import (
	"math"
	"slices"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/vectors"
)

// Table dimensions. They set the precision/performance balance of the model.
const (
	DensitySize = 1024

	SkyboxWidth  = 32  // azimuth
	SkyboxHeight = 128 // view elevation
	SkyboxDepth  = 32  // height band

	FogWidth  = 8  // screen x band
	FogHeight = 8  // screen y band
	FogDepth  = 64 // distance band

	CurveSize = 128
)

// Shadowed is the optical depth stored for rays that hit the planet.
const Shadowed = 1e20

// Target is anything a pass can render into.
type Target interface {
	Size() (width, height int)
	Set(x, y int, c colors.Color4)
}

// DensityTable maps (zenith cosine, altitude) to the Rayleigh and Mie optical
// depth toward the top of the atmosphere. X spans cosines [-1,1] and Y spans
// altitudes [0, KarmanLine], both endpoint inclusive.
type DensityTable struct {
	pix []float32 // rayleigh, mie interleaved
}

func NewDensityTable() *DensityTable {
	return &DensityTable{pix: make([]float32, 2*DensitySize*DensitySize)}
}

func (t *DensityTable) Size() (int, int) {
	return DensitySize, DensitySize
}

// Set stores R as the Rayleigh depth and G as the Mie depth.
func (t *DensityTable) Set(x, y int, c colors.Color4) {
	i := 2 * (y*DensitySize + x)
	t.pix[i] = float32(c.R)
	t.pix[i+1] = float32(c.G)
}

// At returns the optical depth pair at a texel.
func (t *DensityTable) At(x, y int) (rayleigh, mie float64) {
	i := 2 * (y*DensitySize + x)
	return float64(t.pix[i]), float64(t.pix[i+1])
}

// Sample bilinearly filters the table at a zenith cosine and a normalized
// altitude in [0,1].
func (t *DensityTable) Sample(cosAngle, altitude float64) (rayleigh, mie float64) {
	const last = DensitySize - 1
	fx := clamp((cosAngle+1)*0.5, 0, 1) * last
	fy := clamp(altitude, 0, 1) * last

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, last), min(y0+1, last)
	tx, ty := fx-float64(x0), fy-float64(y0)

	r00, m00 := t.At(x0, y0)
	r10, m10 := t.At(x1, y0)
	r01, m01 := t.At(x0, y1)
	r11, m11 := t.At(x1, y1)

	rayleigh = lerp(lerp(r00, r10, tx), lerp(r01, r11, tx), ty)
	mie = lerp(lerp(m00, m10, tx), lerp(m01, m11, tx), ty)
	return rayleigh, mie
}

// Lookup returns the optical depth from p toward the top of the atmosphere
// along dir.
func (t *DensityTable) Lookup(u *Uniforms, p, dir vectors.Vec3) (rayleigh, mie float64) {
	rel := p.Sub(u.PlanetCenter)
	r := rel.Norm()
	cosAngle := 1.0
	if r > 0 {
		cosAngle = rel.Scale(1 / r).Dot(dir)
	}
	return t.Sample(cosAngle, (r-u.PlanetRadius)/u.KarmanLine)
}

// Equal reports whether both tables hold identical bits.
func (t *DensityTable) Equal(o *DensityTable) bool {
	return slices.Equal(t.pix, o.pix)
}

// Volume is a 3D grid of RGBA values.
type Volume struct {
	Width, Height, Depth int
	Pix                  []colors.Color4
}

func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Width:  width,
		Height: height,
		Depth:  depth,
		Pix:    make([]colors.Color4, width*height*depth),
	}
}

// NewSkybox allocates a skybox sized volume.
func NewSkybox() *Volume {
	return NewVolume(SkyboxWidth, SkyboxHeight, SkyboxDepth)
}

// NewFogVolume allocates an inscattering or extinction sized volume.
func NewFogVolume() *Volume {
	return NewVolume(FogWidth, FogHeight, FogDepth)
}

func (v *Volume) index(x, y, z int) int {
	return (z*v.Height+y)*v.Width + x
}

func (v *Volume) At(x, y, z int) colors.Color4 {
	return v.Pix[v.index(x, y, z)]
}

func (v *Volume) Set(x, y, z int, c colors.Color4) {
	v.Pix[v.index(x, y, z)] = c
}

// Sample trilinearly filters the volume at texel coordinates. Coordinates are
// clamped to the edge texels; with wrapX the X axis repeats instead.
func (v *Volume) Sample(x, y, z float64, wrapX bool) colors.Color4 {
	var x0, x1 int
	var tx float64
	if wrapX {
		x = math.Mod(x, float64(v.Width))
		if x < 0 {
			x += float64(v.Width)
		}
		x0 = int(x) % v.Width
		x1 = (x0 + 1) % v.Width
		tx = x - math.Floor(x)
	} else {
		x0, x1, tx = axis(x, v.Width)
	}
	y0, y1, ty := axis(y, v.Height)
	z0, z1, tz := axis(z, v.Depth)

	c00 := v.At(x0, y0, z0).Mix(v.At(x1, y0, z0), tx)
	c10 := v.At(x0, y1, z0).Mix(v.At(x1, y1, z0), tx)
	c01 := v.At(x0, y0, z1).Mix(v.At(x1, y0, z1), tx)
	c11 := v.At(x0, y1, z1).Mix(v.At(x1, y1, z1), tx)

	return c00.Mix(c10, ty).Mix(c01.Mix(c11, ty), tz)
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	c := *v
	c.Pix = slices.Clone(v.Pix)
	return &c
}

// Equal reports whether both volumes have the same shape and identical bits.
func (v *Volume) Equal(o *Volume) bool {
	return v.Width == o.Width && v.Height == o.Height && v.Depth == o.Depth &&
		slices.Equal(v.Pix, o.Pix)
}

// Curve is a light response curve over sun elevation.
type Curve [CurveSize]colors.Color4

// CurveSelector maps dot(up, toSun) to the two buckets to blend and the
// weight of the upper one. The selector is clamped to [0, CurveSize-1].
func CurveSelector(dot float64) (i, k int, r float64) {
	selector := CurveSize * ((dot + 0.5) * 0.5)
	if math.IsNaN(selector) {
		selector = 0
	}
	selector = clamp(selector, 0, CurveSize-1)

	floor := math.Floor(selector)
	i = int(floor)
	k = min(i+1, CurveSize-1)
	return i, k, selector - floor
}

// CurveElevation is the inverse of CurveSelector: the sun elevation dot that
// bucket i represents, clamped to [-1,1].
func CurveElevation(i int) float64 {
	return clamp(float64(i)/(CurveSize/2)-0.5, -1, 1)
}

// Sample interpolates the curve at a sun elevation dot and converts the result
// to gamma space.
func (c *Curve) Sample(dot float64) colors.Color4 {
	i, k, r := CurveSelector(dot)
	return c[i].Scale(1 - r).Add(c[k].Scale(r)).Gamma()
}

// Surface is a 2D float color buffer with an optional linear depth channel.
// Depth is the fraction of the far plane distance; 1 (or no depth) is sky.
type Surface struct {
	Width, Height int
	Pix           []colors.Color4
	Depth         []float32
}

func NewSurface(width, height int) *Surface {
	return &Surface{
		Width:  width,
		Height: height,
		Pix:    make([]colors.Color4, width*height),
	}
}

// WithDepth attaches a depth buffer filled with 1.
func (s *Surface) WithDepth() *Surface {
	s.Depth = make([]float32, s.Width*s.Height)
	for i := range s.Depth {
		s.Depth[i] = 1
	}
	return s
}

func (s *Surface) Size() (int, int) {
	return s.Width, s.Height
}

func (s *Surface) At(x, y int) colors.Color4 {
	return s.Pix[y*s.Width+x]
}

func (s *Surface) Set(x, y int, c colors.Color4) {
	s.Pix[y*s.Width+x] = c
}

func (s *Surface) DepthAt(x, y int) float64 {
	if s.Depth == nil {
		return 1
	}
	return float64(s.Depth[y*s.Width+x])
}

func (s *Surface) SetDepth(x, y int, d float64) {
	s.Depth[y*s.Width+x] = float32(d)
}

// Clone returns a deep copy.
func (s *Surface) Clone() *Surface {
	c := *s
	c.Pix = slices.Clone(s.Pix)
	c.Depth = slices.Clone(s.Depth)
	return &c
}

// CopyFrom copies src into s; both must have the same size.
func (s *Surface) CopyFrom(src *Surface) {
	copy(s.Pix, src.Pix)
	if s.Depth != nil && src.Depth != nil {
		copy(s.Depth, src.Depth)
	}
}

func axis(f float64, n int) (int, int, float64) {
	f = clamp(f, 0, float64(n-1))
	i0 := int(f)
	i1 := min(i0+1, n-1)
	return i0, i1, f - float64(i0)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// lerp keeps the a*(1-t) + b*t form so a Shadowed endpoint does not cancel
// the finite one.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

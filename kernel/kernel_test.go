package kernel

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

var fastOptions = Options{
	DensitySteps:      8,
	SkyboxSteps:       4,
	InscatteringSteps: 1,
	LightSamples:      16,
	LightSteps:        4,
	Workers:           4,
}

func testFrustum() scatter.Frustum {
	o := vectors.Vec3{X: 0, Y: 2, Z: 0}
	return scatter.Frustum{
		Origin: o,
		Corners: [4]vectors.Vec3{
			{X: -10000, Y: -5000, Z: 20000},
			{X: -10000, Y: 5000, Z: 20000},
			{X: 10000, Y: 5000, Z: 20000},
			{X: 10000, Y: -5000, Z: 20000},
		},
	}
}

func testUniforms(p scatter.Parameters) *scatter.Uniforms {
	sun := scatter.NewSunState(vectors.Vec3{X: 0, Y: -1, Z: 0})
	u := scatter.NewUniforms(p, sun, testFrustum())
	return &u
}

var (
	fixtureOnce    sync.Once
	fixtureKernel  *CPU
	fixtureDensity *scatter.DensityTable
)

// fixture shares one backend and density table between tests; building the
// full table is the slowest kernel.
func fixture(t *testing.T) (*CPU, *scatter.DensityTable) {
	t.Helper()
	fixtureOnce.Do(func() {
		fixtureKernel = NewCPU(fastOptions)
		u := testUniforms(scatter.DefaultParameters())
		var err error
		fixtureDensity, err = scatter.ComputeParticleDensity(context.Background(), fixtureKernel, u)
		if err != nil {
			panic(err)
		}
	})
	return fixtureKernel, fixtureDensity
}

func TestOpticalDepth(t *testing.T) {
	k := NewCPU(Options{Workers: 1})
	defer k.Close()
	p := scatter.DefaultParameters()
	u := testUniforms(p)

	r, m := k.opticalDepth(u, -0.5, 0)
	if r != scatter.Shadowed || m != scatter.Shadowed {
		t.Fatalf("downward ray from the ground = (%v, %v), want shadowed", r, m)
	}

	r, m = k.opticalDepth(u, 1, 0)
	wantR := p.ScaleHeightRayleigh * (1 - math.Exp(-scatter.KarmanLine/p.ScaleHeightRayleigh))
	wantM := p.ScaleHeightMie * (1 - math.Exp(-scatter.KarmanLine/p.ScaleHeightMie))
	if math.Abs(r-wantR)/wantR > 0.02 || math.Abs(m-wantM)/wantM > 0.02 {
		t.Fatalf("zenith depth = (%v, %v), want about (%v, %v)", r, m, wantR, wantM)
	}

	r, _ = k.opticalDepth(u, 1, scatter.KarmanLine)
	if r > 1 {
		t.Fatalf("zenith depth at the top of the atmosphere = %v", r)
	}

	horizontal, _ := k.opticalDepth(u, 0, 1000)
	if horizontal <= wantR {
		t.Fatalf("horizontal depth %v not above zenith depth %v", horizontal, wantR)
	}
}

// fineDepth is a dense midpoint sum along the same ray as opticalDepth.
func fineDepth(u *scatter.Uniforms, cosAngle, h float64, n int) (rayleigh, mie float64) {
	sinAngle := math.Sqrt(1 - cosAngle*cosAngle)
	origin := above(u, h)
	dir := vectors.Vec3{X: sinAngle, Y: cosAngle}
	dt := atmosphereExit(u, origin, dir) / float64(n)
	for i := range n {
		height := u.Height(origin.Add(dir.Scale((float64(i) + 0.5) * dt)))
		rayleigh += math.Exp(-height*u.Scale[0]) * dt
		mie += math.Exp(-height*u.Scale[1]) * dt
	}
	return rayleigh, mie
}

func TestOpticalDepthMatchesFineSum(t *testing.T) {
	u := testUniforms(scatter.DefaultParameters())
	cases := []struct {
		steps  int
		cos, h float64
	}{
		// Height is linear along the zenith, so few steps are enough.
		{8, 1, 0},
		{8, 1, 3000},
		{64, 1, 0},
		{64, 0.2, 0},
		{64, 0.5, 2000},
		{64, 0.05, 500},
	}
	for _, tc := range cases {
		k := NewCPU(Options{DensitySteps: tc.steps, Workers: 1})
		r, m := k.opticalDepth(u, tc.cos, tc.h)
		k.Close()
		wantR, wantM := fineDepth(u, tc.cos, tc.h, 200000)
		if math.Abs(r-wantR)/wantR > 0.005 || math.Abs(m-wantM)/wantM > 0.005 {
			t.Errorf("%d steps, cos %v, h %v: depth = (%v, %v), want about (%v, %v)",
				tc.steps, tc.cos, tc.h, r, m, wantR, wantM)
		}
	}
}

func TestDensityPassMatchesKernel(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())

	viaPass := scatter.NewDensityTable()
	if err := k.Blit(context.Background(), scatter.PassParticleDensity, u, nil, nil, viaPass); err != nil {
		t.Fatal(err)
	}
	if !viaPass.Equal(density) {
		t.Fatal("density pass and density kernel disagree")
	}
}

func TestSkyboxDeterministic(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())
	ctx := context.Background()

	a, err := scatter.GenerateSkybox(ctx, k, u, density)
	if err != nil {
		t.Fatal(err)
	}
	b, err := scatter.GenerateSkybox(ctx, k, u, density)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatal("identical parameters produced different skyboxes")
	}

	zenith := a.At(0, scatter.SkyboxHeight-1, 0)
	if !(zenith.B > zenith.R && zenith.R > 0) {
		t.Fatalf("zenith radiance %+v is not blue", zenith)
	}
}

func TestSkyboxRejectsWrongSize(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())
	err := k.GenerateSkybox(context.Background(), u, density, scatter.NewVolume(8, 8, 8))
	if !errors.Is(err, scatter.ErrSize) {
		t.Fatalf("err = %v, want ErrSize", err)
	}
}

func TestInscatteringIdempotent(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())
	ctx := context.Background()

	ins1, ext1 := scatter.NewFogVolume(), scatter.NewFogVolume()
	ins2, ext2 := scatter.NewFogVolume(), scatter.NewFogVolume()
	if err := scatter.GenerateInscattering(ctx, k, u, density, ins1, ext1); err != nil {
		t.Fatal(err)
	}
	if err := scatter.GenerateInscattering(ctx, k, u, density, ins2, ext2); err != nil {
		t.Fatal(err)
	}
	if !ins1.Equal(ins2) || !ext1.Equal(ext2) {
		t.Fatal("unchanged frustum produced different volumes")
	}

	for y := range scatter.FogHeight {
		for x := range scatter.FogWidth {
			prev := 1.0
			for z := range scatter.FogDepth {
				e := ext1.At(x, y, z)
				if e.G > prev || e.G <= 0 {
					t.Fatalf("extinction at (%d,%d,%d) = %v after %v", x, y, z, e.G, prev)
				}
				prev = e.G
			}
		}
	}
}

func TestLightCurves(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())

	ambient, directional, err := scatter.GenerateLightLUTs(context.Background(), k, u, density)
	if err != nil {
		t.Fatal(err)
	}

	top := directional[scatter.CurveSize-1]
	for i, c := range directional {
		if c.R > top.R || c.G > top.G || c.B > top.B {
			t.Fatalf("directional bucket %d %+v exceeds bucket 127 %+v", i, c, top)
		}
	}
	for i := 96; i < scatter.CurveSize; i++ {
		if directional[i] != top || ambient[i] != ambient[scatter.CurveSize-1] {
			t.Fatalf("bucket %d differs from the zenith bucket", i)
		}
	}

	if d := directional[0]; d.R != 0 || d.G != 0 || d.B != 0 {
		t.Fatalf("directional light with the sun below the horizon = %+v", d)
	}
	if a := ambient[0]; a.R != 0 || a.G != 0 || a.B != 0 {
		t.Fatalf("ambient light with the sun below the horizon = %+v", a)
	}
	if a := ambient[scatter.CurveSize-1]; a.B <= 0 {
		t.Fatalf("ambient light with the sun overhead = %+v", a)
	}
}

func TestLightPassRejectsWrongWidth(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())
	b := &scatter.Bindings{ParticleDensity: density}
	err := k.Blit(context.Background(), scatter.PassAmbientLight, u, b, nil, scatter.NewSurface(64, 1))
	if !errors.Is(err, scatter.ErrSize) {
		t.Fatalf("err = %v, want ErrSize", err)
	}
}

func TestCompositeWithoutAtmosphereIsIdentity(t *testing.T) {
	k, density := fixture(t)
	p := scatter.DefaultParameters()
	p.RayleighExtinction = 0
	p.MieExtinction = 0
	p.Sunshine = 0
	u := testUniforms(p)
	ctx := context.Background()

	b := &scatter.Bindings{
		Skybox:       scatter.NewSkybox(),
		Inscattering: scatter.NewFogVolume(),
		Extinction:   scatter.NewFogVolume(),
	}
	if err := k.GenerateInscattering(ctx, u, density, b.Inscattering, b.Extinction); err != nil {
		t.Fatal(err)
	}

	src := scatter.NewSurface(16, 8).WithDepth()
	for y := range src.Height {
		for x := range src.Width {
			src.Set(x, y, colors.New(float64(x)/16, float64(y)/8, 0.25, 0.5))
			src.SetDepth(x, y, 0.5)
		}
	}
	dst := scatter.NewSurface(16, 8)
	if err := k.Blit(ctx, scatter.PassComposite, u, b, src, dst); err != nil {
		t.Fatal(err)
	}

	for i, want := range src.Pix {
		got := dst.Pix[i]
		if math.Abs(got.R-want.R) > 1e-9 || math.Abs(got.G-want.G) > 1e-9 ||
			math.Abs(got.B-want.B) > 1e-9 || got.A != want.A {
			t.Fatalf("pixel %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestCompositeErrors(t *testing.T) {
	k, _ := fixture(t)
	u := testUniforms(scatter.DefaultParameters())
	ctx := context.Background()
	src := scatter.NewSurface(4, 4)

	if err := k.Blit(ctx, scatter.PassComposite, u, &scatter.Bindings{}, src, scatter.NewSurface(4, 4)); !errors.Is(err, errMissingBinding) {
		t.Fatalf("missing bindings: err = %v", err)
	}

	b := &scatter.Bindings{
		Skybox:       scatter.NewSkybox(),
		Inscattering: scatter.NewFogVolume(),
		Extinction:   scatter.NewFogVolume(),
	}
	if err := k.Blit(ctx, scatter.PassComposite, u, b, src, scatter.NewSurface(2, 2)); !errors.Is(err, scatter.ErrSize) {
		t.Fatalf("size mismatch: err = %v", err)
	}
	if err := k.Blit(ctx, scatter.Pass(9), u, b, src, src); !errors.Is(err, scatter.ErrUnsupportedBackend) {
		t.Fatalf("unknown pass: err = %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	k, density := fixture(t)
	u := testUniforms(scatter.DefaultParameters())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := k.ComputeParticleDensity(ctx, u, scatter.NewDensityTable()); !errors.Is(err, context.Canceled) {
		t.Fatalf("density: err = %v", err)
	}
	if table, err := scatter.ComputeParticleDensity(ctx, k, u); table != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("density stage: table = %v, err = %v", table != nil, err)
	}
	b := &scatter.Bindings{ParticleDensity: density}
	if err := k.Blit(ctx, scatter.PassDirectionalLight, u, b, nil, scatter.NewSurface(scatter.CurveSize, 1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("light pass: err = %v", err)
	}
}

func TestHemisphereSamples(t *testing.T) {
	dirs := hemisphereSamples(256)
	var cosSum float64
	for i, d := range dirs {
		if math.Abs(d.Norm()-1) > 1e-12 || d.Y <= 0 {
			t.Fatalf("sample %d = %v", i, d)
		}
		cosSum += d.Y
	}
	if mean := cosSum / 256; math.Abs(mean-0.5) > 1e-3 {
		t.Fatalf("mean cosine = %v, want 0.5", mean)
	}
}

func TestPhaseFunctionsNormalized(t *testing.T) {
	const n = 200000
	integrate := func(f func(float64) float64) float64 {
		sum := 0.0
		for i := range n {
			c := -1 + (float64(i)+0.5)*2/n
			sum += f(c)
		}
		return sum * 2 / n * 2 * math.Pi
	}

	if got := integrate(rayleighPhase); math.Abs(got-1) > 1e-6 {
		t.Errorf("rayleigh phase integrates to %v", got)
	}
	for _, g := range []float64{0, 0.5, 0.76} {
		got := integrate(func(c float64) float64 { return miePhase(c, g) })
		if math.Abs(got-1) > 1e-3 {
			t.Errorf("mie phase (g=%v) integrates to %v", g, got)
		}
	}
}

func TestSmoothstep(t *testing.T) {
	cases := []struct{ e0, e1, x, want float64 }{
		{0, 1, -1, 0},
		{0, 1, 2, 1},
		{0, 1, 0.5, 0.5},
		{1, 1, 0.5, 0},
		{1, 1, 1, 1},
	}
	for _, tc := range cases {
		if got := Smoothstep(tc.e0, tc.e1, tc.x); got != tc.want {
			t.Errorf("Smoothstep(%v,%v,%v) = %v, want %v", tc.e0, tc.e1, tc.x, got, tc.want)
		}
	}
}

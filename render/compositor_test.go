package render

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/kernel"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
	"go.uber.org/zap"
)

var fastOptions = kernel.Options{
	DensitySteps:      8,
	SkyboxSteps:       4,
	InscatteringSteps: 1,
	LightSamples:      16,
	LightSteps:        4,
	Workers:           4,
}

// unsupported is a backend that refuses to run on this host.
type unsupported struct{ *kernel.CPU }

func (unsupported) Supported() error {
	return errors.Join(scatter.ErrUnsupportedBackend, errors.New("no compute shaders"))
}

// flaky fails inscattering rebuilds while fail is set.
type flaky struct {
	*kernel.CPU
	fail atomic.Bool
}

func (f *flaky) GenerateInscattering(ctx context.Context, u *scatter.Uniforms, density *scatter.DensityTable, ins, ext *scatter.Volume) error {
	if f.fail.Load() {
		return errors.New("device lost")
	}
	return f.CPU.GenerateInscattering(ctx, u, density, ins, ext)
}

func testCamera() Camera {
	return NewCamera(2, 60, 2, 20000, 5, 0)
}

func newActive(t *testing.T, backend scatter.Backend, sun SunProvider) *Compositor {
	t.Helper()
	c := New(scatter.DefaultParameters(), backend, sun, zap.NewNop())
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	t.Cleanup(func() { _ = c.Deactivate() })
	return c
}

func newCPU(t *testing.T) *kernel.CPU {
	t.Helper()
	k := kernel.NewCPU(fastOptions)
	t.Cleanup(k.Close)
	return k
}

type pointerSun struct{ dir vectors.Vec3 }

func (p *pointerSun) SunForward() vectors.Vec3 { return p.dir }

func TestActivateWithoutSun(t *testing.T) {
	for name, sun := range map[string]SunProvider{
		"nil":       nil,
		"typed nil": (*pointerSun)(nil),
	} {
		c := New(scatter.DefaultParameters(), newCPU(t), sun, zap.NewNop())
		if err := c.Activate(context.Background()); !errors.Is(err, scatter.ErrMissingSun) {
			t.Fatalf("%s: err = %v, want ErrMissingSun", name, err)
		}
		if c.State() != Disabled {
			t.Fatalf("%s: state = %s, want disabled", name, c.State())
		}
	}
}

func TestActivateInvalidParameters(t *testing.T) {
	p := scatter.DefaultParameters()
	p.G = 2
	c := New(p, newCPU(t), SunAt(45, 0), zap.NewNop())
	if err := c.Activate(context.Background()); !errors.Is(err, scatter.ErrInvalidParameters) {
		t.Fatalf("err = %v, want ErrInvalidParameters", err)
	}
	if c.State() != Disabled {
		t.Fatalf("state = %s, want disabled", c.State())
	}
}

func TestPassthrough(t *testing.T) {
	c := newActive(t, unsupported{newCPU(t)}, SunAt(45, 0))
	if c.State() != Active || !c.Passthrough() {
		t.Fatalf("state = %s, passthrough = %v", c.State(), c.Passthrough())
	}
	if !errors.Is(c.Diagnostic(), scatter.ErrUnsupportedBackend) {
		t.Fatalf("diagnostic = %v", c.Diagnostic())
	}

	ctx := context.Background()
	if _, err := c.FrameBegin(ctx, testCamera()); err != nil {
		t.Fatal(err)
	}
	src := scatter.NewSurface(8, 4)
	for i := range src.Pix {
		src.Pix[i] = colors.New(float64(i)/32, 0.5, 0.25, 1)
	}
	dst := scatter.NewSurface(8, 4)
	if err := c.FrameUpdate(ctx, src, dst); err != nil {
		t.Fatal(err)
	}
	for i := range src.Pix {
		if dst.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel %d changed: %v -> %v", i, src.Pix[i], dst.Pix[i])
		}
	}
}

func TestFrameOrder(t *testing.T) {
	ctx := context.Background()
	src := scatter.NewSurface(4, 4)
	dst := scatter.NewSurface(4, 4)

	idle := New(scatter.DefaultParameters(), newCPU(t), SunAt(45, 0), zap.NewNop())
	if err := idle.FrameUpdate(ctx, src, dst); !errors.Is(err, scatter.ErrNotActive) {
		t.Fatalf("inactive: err = %v", err)
	}
	if _, err := idle.FrameBegin(ctx, testCamera()); !errors.Is(err, scatter.ErrNotActive) {
		t.Fatalf("inactive begin: err = %v", err)
	}

	c := newActive(t, newCPU(t), SunAt(45, 0))
	if err := c.FrameUpdate(ctx, src, dst); !errors.Is(err, scatter.ErrFrameOrder) {
		t.Fatalf("update before begin: err = %v", err)
	}
	if _, err := c.FrameBegin(ctx, testCamera()); err != nil {
		t.Fatal(err)
	}
	if err := c.FrameUpdate(ctx, src, dst); err != nil {
		t.Fatal(err)
	}
	if err := c.FrameUpdate(ctx, src, dst); !errors.Is(err, scatter.ErrFrameOrder) {
		t.Fatalf("second update: err = %v", err)
	}
}

func TestSunOverheadIsBrightest(t *testing.T) {
	c := newActive(t, newCPU(t), FixedSun{X: 0, Y: -1, Z: 0})
	light, err := c.FrameBegin(context.Background(), testCamera())
	if err != nil {
		t.Fatal(err)
	}
	tables, err := c.Tables()
	if err != nil {
		t.Fatal(err)
	}

	top := tables.Directional[scatter.CurveSize-1].Gamma()
	if got := tables.Directional.Sample(1); got != top {
		t.Fatalf("Sample(1) = %v, want bucket 127 %v", got, top)
	}
	want := math.Max(top.Magnitude(), scatter.MinSunlight)
	if math.Abs(light.Sun.Intensity-want) > 1e-12 {
		t.Fatalf("sun intensity = %v, want %v", light.Sun.Intensity, want)
	}
	for dot := -1.0; dot <= 1; dot += 0.01 {
		if m := tables.Directional.Sample(dot).Magnitude(); m > top.Magnitude()+1e-12 {
			t.Fatalf("Sample(%v) magnitude %v exceeds the overhead sun %v", dot, m, top.Magnitude())
		}
	}
}

func TestSunBelowHorizon(t *testing.T) {
	c := newActive(t, newCPU(t), FixedSun{X: 0, Y: 1, Z: 0})
	light, err := c.FrameBegin(context.Background(), testCamera())
	if err != nil {
		t.Fatal(err)
	}
	sun := light.Sun
	if sun.Color.R != scatter.MinSunlight || sun.Color.G != scatter.MinSunlight || sun.Color.B != scatter.MinSunlight {
		t.Fatalf("sun color = %+v, want every channel at the floor", sun.Color)
	}
	if sun.Intensity != scatter.MinSunlight {
		t.Fatalf("sun intensity = %v", sun.Intensity)
	}
	if a := light.Ambient; a.R != 0 || a.G != 0 || a.B != 0 {
		t.Fatalf("ambient = %+v, want black", a)
	}
}

func TestInscatteringUnchangedFrustum(t *testing.T) {
	c := newActive(t, newCPU(t), SunAt(30, 90))
	ctx := context.Background()

	if _, err := c.FrameBegin(ctx, testCamera()); err != nil {
		t.Fatal(err)
	}
	first, _ := c.Tables()
	if _, err := c.FrameBegin(ctx, testCamera()); err != nil {
		t.Fatal(err)
	}
	second, _ := c.Tables()

	if !first.Inscattering.Equal(second.Inscattering) || !first.Extinction.Equal(second.Extinction) {
		t.Fatal("unchanged camera and sun produced different fog volumes")
	}
}

func TestFailedRebuildKeepsPreviousVolumes(t *testing.T) {
	backend := &flaky{CPU: newCPU(t)}
	c := newActive(t, backend, SunAt(30, 90))
	ctx := context.Background()

	if _, err := c.FrameBegin(ctx, testCamera()); err != nil {
		t.Fatal(err)
	}
	before, _ := c.Tables()

	backend.fail.Store(true)
	if _, err := c.FrameBegin(ctx, NewCamera(500, 45, 1, 30000, -10, 120)); err != nil {
		t.Fatalf("frame begin should survive a failed rebuild: %v", err)
	}
	if !c.Stale() {
		t.Fatal("expected the frame to be marked stale")
	}
	after, _ := c.Tables()
	if !before.Inscattering.Equal(after.Inscattering) || !before.Extinction.Equal(after.Extinction) {
		t.Fatal("failed rebuild changed the fog volumes")
	}

	backend.fail.Store(false)
	if _, err := c.FrameBegin(ctx, testCamera()); err != nil {
		t.Fatal(err)
	}
	if c.Stale() {
		t.Fatal("stale flag not cleared after a good frame")
	}
}

func TestReactivationRebuildsTables(t *testing.T) {
	c := newActive(t, newCPU(t), SunAt(20, 180))
	first, err := c.Tables()
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Deactivate(); err != nil {
		t.Fatal(err)
	}
	if c.State() != Disabled {
		t.Fatalf("state = %s after deactivate", c.State())
	}
	if _, err := c.Tables(); !errors.Is(err, scatter.ErrNotActive) {
		t.Fatalf("tables after deactivate: err = %v", err)
	}
	if _, err := c.SampleSky(vectors.Up); !errors.Is(err, scatter.ErrNotActive) {
		t.Fatalf("sample sky after deactivate: err = %v", err)
	}

	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := c.Tables()
	if err != nil {
		t.Fatal(err)
	}
	if first.Density == second.Density || first.Skybox == second.Skybox {
		t.Fatal("reactivation reused the released tables")
	}
	if !first.Density.Equal(second.Density) || !first.Skybox.Equal(second.Skybox) {
		t.Fatal("identical parameters produced different tables")
	}
	if first.Ambient != second.Ambient || first.Directional != second.Directional {
		t.Fatal("identical parameters produced different light curves")
	}
}

func TestSampleSky(t *testing.T) {
	c := newActive(t, newCPU(t), FixedSun{X: 0, Y: -1, Z: 0})
	zenith, err := c.SampleSky(vectors.Up)
	if err != nil {
		t.Fatal(err)
	}
	if !(zenith.B > zenith.R && zenith.R > 0) {
		t.Fatalf("zenith = %+v, want a blue sky", zenith)
	}
}

func TestReflectionProbe(t *testing.T) {
	p := scatter.DefaultParameters()
	p.ReflectionProbe = true
	c := New(p, newCPU(t), SunAt(45, 0), zap.NewNop())
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Deactivate()

	light, err := c.FrameBegin(context.Background(), testCamera())
	if err != nil {
		t.Fatal(err)
	}
	if light.Probe == nil || *light.Probe != DefaultProbeSettings() {
		t.Fatalf("probe = %+v", light.Probe)
	}
	if light.Probe.Resolution != 128 || light.Probe.Size.X != 50000 {
		t.Fatalf("unexpected probe defaults %+v", light.Probe)
	}
}

func TestFrameUpdateFogsGeometry(t *testing.T) {
	c := newActive(t, newCPU(t), SunAt(35, 0))
	ctx := context.Background()
	cam := testCamera()

	light, err := c.FrameBegin(ctx, cam)
	if err != nil {
		t.Fatal(err)
	}
	src := Ground{Radius: scatter.DefaultParameters().PlanetRadius, Albedo: colors.Gray(0.2)}.Render(cam, light, 32, 16)
	dst := scatter.NewSurface(32, 16)
	if err := c.FrameUpdate(ctx, src, dst); err != nil {
		t.Fatal(err)
	}

	var sky, ground int
	for y := range src.Height {
		for x := range src.Width {
			out := dst.At(x, y)
			if src.DepthAt(x, y) >= 1 {
				sky++
				if out.A != 1 || out.B <= 0 {
					t.Fatalf("sky pixel (%d,%d) = %+v", x, y, out)
				}
				continue
			}
			ground++
			if out.A != src.At(x, y).A {
				t.Fatalf("ground pixel (%d,%d) alpha changed", x, y)
			}
		}
	}
	if sky == 0 || ground == 0 {
		t.Fatalf("expected both sky and ground, got %d sky and %d ground pixels", sky, ground)
	}
}

func TestUniformsFollowFrame(t *testing.T) {
	c := newActive(t, newCPU(t), SunAt(10, 270))
	cam := testCamera()
	if _, err := c.FrameBegin(context.Background(), cam); err != nil {
		t.Fatal(err)
	}
	u := c.Uniforms()
	if u.Frustum != cam.Frustum() {
		t.Fatal("uniforms do not carry the frame frustum")
	}
	if u.Sunlight != c.Sun().Sunlight() {
		t.Fatal("uniforms do not carry the frame sunlight")
	}
}

func TestPanorama(t *testing.T) {
	c := newActive(t, newCPU(t), FixedSun{X: 0, Y: -1, Z: 0})
	pano, err := c.Panorama(16, 8)
	if err != nil {
		t.Fatal(err)
	}
	for x := range 16 {
		top := pano.At(x, 0)
		if !(top.B > top.R && top.R > 0) || top.A != 1 {
			t.Fatalf("column %d near zenith = %+v", x, top)
		}
	}

	if err := c.Deactivate(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Panorama(16, 8); !errors.Is(err, scatter.ErrNotActive) {
		t.Fatalf("err = %v, want ErrNotActive", err)
	}
}

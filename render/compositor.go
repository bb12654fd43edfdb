package render

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/echoflaresat/skyscatter/colors"
	"github.com/echoflaresat/skyscatter/logger"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
	"go.uber.org/zap"
)

// State is the compositor lifecycle state.
type State int

const (
	Disabled State = iota
	Activating
	Active
	Deactivating
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Activating:
		return "activating"
	case Active:
		return "active"
	case Deactivating:
		return "deactivating"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Tables is a read-only view of the lookup tables. Density and Skybox are
// shared and never written after publication; the fog volumes are copies.
type Tables struct {
	Density      *scatter.DensityTable
	Skybox       *scatter.Volume
	Inscattering *scatter.Volume
	Extinction   *scatter.Volume
	Ambient      scatter.Curve
	Directional  scatter.Curve
}

// Compositor owns the lookup tables and drives the per-frame loop:
// FrameBegin updates lighting and the fog volumes, FrameUpdate composites a
// rendered frame. Activate, Deactivate, FrameBegin, FrameUpdate and
// RefreshSkybox must be called from a single goroutine; SampleSky, Tables,
// Uniforms and the state accessors are safe from any goroutine.
type Compositor struct {
	params  scatter.Parameters
	backend scatter.Backend
	sun     SunProvider
	log     *zap.Logger

	// mu guards everything below against concurrent readers. The control
	// goroutine reads without it and writes under the write lock.
	mu          sync.RWMutex
	state       State
	passthrough bool
	diagnostic  error
	stale       bool

	density      *scatter.DensityTable
	skybox       *scatter.Volume
	inscattering *scatter.Volume
	extinction   *scatter.Volume
	ambient      *scatter.Curve
	directional  *scatter.Curve

	sunState scatter.SunState
	uniforms scatter.Uniforms

	// Back buffers for the fog volumes; only the control goroutine sees them.
	nextInscattering *scatter.Volume
	nextExtinction   *scatter.Volume

	frameBegun bool
	frames     uint64
}

// New creates a disabled compositor. A nil log uses the global logger.
func New(params scatter.Parameters, backend scatter.Backend, sun SunProvider, log *zap.Logger) *Compositor {
	if log == nil {
		log = logger.Named("compositor")
	}
	return &Compositor{
		params:  params,
		backend: backend,
		sun:     sun,
		log:     log,
	}
}

// Activate validates the configuration and builds the particle density
// table, the light curves and the skybox. An unsupported backend leaves the
// compositor active as a pass-through; see Diagnostic.
func (c *Compositor) Activate(ctx context.Context) error {
	switch c.state {
	case Active:
		return nil
	case Disabled:
	default:
		return fmt.Errorf("activate: compositor is %s", c.state)
	}

	if noSun(c.sun) {
		c.log.Error("no sun configured, staying disabled")
		return scatter.ErrMissingSun
	}
	if err := c.params.Validate(); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	c.setState(Activating)

	if err := c.supported(); err != nil {
		c.log.Warn("backend unsupported, compositing passes frames through", zap.Error(err))
		c.mu.Lock()
		c.passthrough = true
		c.diagnostic = err
		c.sunState = scatter.NewSunState(c.sun.SunForward())
		c.state = Active
		c.mu.Unlock()
		return nil
	}

	if err := c.build(ctx); err != nil {
		c.setState(Disabled)
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// noSun reports a nil provider, including a typed nil such as a nil
// *earth.Ephemeris.
func noSun(sun SunProvider) bool {
	if sun == nil {
		return true
	}
	v := reflect.ValueOf(sun)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (c *Compositor) supported() error {
	if c.backend == nil {
		return fmt.Errorf("%w: no backend", scatter.ErrUnsupportedBackend)
	}
	return c.backend.Supported()
}

func (c *Compositor) build(ctx context.Context) error {
	start := time.Now()
	sun := scatter.NewSunState(c.sun.SunForward())
	u := scatter.NewUniforms(c.params, sun, scatter.Frustum{})
	c.log.Debug("activating", append(u.LogFields(), zap.String("backend", c.backend.Name()))...)

	density, err := scatter.ComputeParticleDensity(ctx, c.backend, &u)
	if err != nil {
		return err
	}
	c.log.Info("particle density ready", zap.Duration("took", time.Since(start)))

	step := time.Now()
	ambient, directional, err := scatter.GenerateLightLUTs(ctx, c.backend, &u, density)
	if err != nil {
		return err
	}
	c.log.Info("light curves ready", zap.Duration("took", time.Since(step)))

	step = time.Now()
	skybox, err := scatter.GenerateSkybox(ctx, c.backend, &u, density)
	if err != nil {
		return err
	}
	c.log.Info("skybox ready", zap.Duration("took", time.Since(step)))

	c.mu.Lock()
	c.density = density
	c.skybox = skybox
	c.ambient = &ambient
	c.directional = &directional
	c.inscattering, c.extinction = clearFog()
	c.nextInscattering, c.nextExtinction = clearFog()
	c.sunState = sun
	c.uniforms = u
	c.stale = false
	c.state = Active
	c.mu.Unlock()

	c.log.Info("atmosphere active",
		zap.String("backend", c.backend.Name()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// clearFog returns fog volumes that leave a frame unchanged.
func clearFog() (inscattering, extinction *scatter.Volume) {
	inscattering = scatter.NewFogVolume()
	extinction = scatter.NewFogVolume()
	for i := range extinction.Pix {
		extinction.Pix[i] = colors.White()
	}
	return inscattering, extinction
}

// Deactivate waits for in-flight readers and releases every table.
func (c *Compositor) Deactivate() error {
	if c.state == Disabled {
		return nil
	}
	c.setState(Deactivating)

	c.mu.Lock()
	c.density = nil
	c.skybox = nil
	c.inscattering, c.extinction = nil, nil
	c.nextInscattering, c.nextExtinction = nil, nil
	c.ambient, c.directional = nil, nil
	c.passthrough = false
	c.diagnostic = nil
	c.stale = false
	c.frameBegun = false
	c.state = Disabled
	c.mu.Unlock()

	c.log.Info("atmosphere released")
	return nil
}

// FrameBegin updates the sun color and ambient light from the light curves
// and rebuilds the fog volumes for cam. A failed rebuild keeps the previous
// volumes; the frame goes on with them.
func (c *Compositor) FrameBegin(ctx context.Context, cam Camera) (Lighting, error) {
	if c.state != Active {
		return Lighting{}, fmt.Errorf("frame begin: %w", scatter.ErrNotActive)
	}
	c.frameBegun = true
	c.frames++

	forward := c.sun.SunForward()

	if c.passthrough {
		c.mu.Lock()
		c.sunState = scatter.NewSunState(forward)
		c.mu.Unlock()
		return Lighting{Sun: c.sunState, Ambient: colors.Black(), Probe: c.probe()}, nil
	}

	sun := scatter.NewSunState(forward)
	mu := sun.Elevation()
	sun = sun.WithLight(c.directional.Sample(mu))
	ambient := c.ambient.Sample(mu)

	u := scatter.NewUniforms(c.params, sun, cam.Frustum())

	start := time.Now()
	err := scatter.GenerateInscattering(ctx, c.backend, &u, c.density, c.nextInscattering, c.nextExtinction)

	c.mu.Lock()
	c.sunState = sun
	c.uniforms = u
	c.stale = err != nil
	if err == nil {
		c.inscattering, c.nextInscattering = c.nextInscattering, c.inscattering
		c.extinction, c.nextExtinction = c.nextExtinction, c.extinction
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("keeping previous fog volumes", zap.Uint64("frame", c.frames), zap.Error(err))
	} else {
		c.log.Debug("frame begun",
			zap.Uint64("frame", c.frames),
			zap.Float64("sun_elevation", mu),
			zap.Float64("sun_intensity", sun.Intensity),
			zap.Duration("inscattering", time.Since(start)))
	}

	return Lighting{Sun: sun, Ambient: ambient, Probe: c.probe()}, nil
}

func (c *Compositor) probe() *ProbeSettings {
	if !c.params.ReflectionProbe {
		return nil
	}
	p := DefaultProbeSettings()
	return &p
}

// FrameUpdate composites src into dst. It must follow FrameBegin; each
// FrameBegin allows one FrameUpdate.
func (c *Compositor) FrameUpdate(ctx context.Context, src *scatter.Surface, dst scatter.Target) error {
	if c.state != Active {
		return fmt.Errorf("frame update: %w", scatter.ErrNotActive)
	}
	if !c.frameBegun {
		return fmt.Errorf("frame update: %w", scatter.ErrFrameOrder)
	}
	c.frameBegun = false

	if c.passthrough {
		return passThrough(src, dst)
	}

	b := &scatter.Bindings{
		ParticleDensity: c.density,
		Skybox:          c.skybox,
		Inscattering:    c.inscattering,
		Extinction:      c.extinction,
	}
	if err := c.backend.Blit(ctx, scatter.PassComposite, &c.uniforms, b, src, dst); err != nil {
		return fmt.Errorf("frame update: %w", err)
	}
	return nil
}

func passThrough(src *scatter.Surface, dst scatter.Target) error {
	width, height := dst.Size()
	if width != src.Width || height != src.Height {
		return fmt.Errorf("frame update: %w: source %dx%d, target %dx%d",
			scatter.ErrSize, src.Width, src.Height, width, height)
	}
	if s, ok := dst.(*scatter.Surface); ok {
		s.CopyFrom(src)
		return nil
	}
	for y := range height {
		for x := range width {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return nil
}

// RefreshSkybox regenerates the skybox for the sun direction of the last
// frame. Hosts call it when the sun has moved far enough to matter.
func (c *Compositor) RefreshSkybox(ctx context.Context) error {
	if c.state != Active {
		return fmt.Errorf("refresh skybox: %w", scatter.ErrNotActive)
	}
	if c.passthrough {
		return nil
	}

	start := time.Now()
	skybox, err := scatter.GenerateSkybox(ctx, c.backend, &c.uniforms, c.density)
	if err != nil {
		return fmt.Errorf("refresh skybox: %w", err)
	}

	c.mu.Lock()
	c.skybox = skybox
	c.mu.Unlock()

	c.log.Debug("skybox refreshed", zap.Duration("took", time.Since(start)))
	return nil
}

// SampleSky returns the sky radiance in direction dir as seen from the last
// frame's camera.
func (c *Compositor) SampleSky(dir vectors.Vec3) (colors.Color4, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Active || c.skybox == nil {
		return colors.Color4{}, fmt.Errorf("sample sky: %w", scatter.ErrNotActive)
	}
	altitude := c.uniforms.Height(c.uniforms.Frustum.Origin)
	return scatter.SampleSky(c.skybox, dir.Normalize(), altitude, c.uniforms.KarmanLine), nil
}

// Tables returns the current lookup tables.
func (c *Compositor) Tables() (Tables, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Active || c.density == nil {
		return Tables{}, fmt.Errorf("tables: %w", scatter.ErrNotActive)
	}
	return Tables{
		Density:      c.density,
		Skybox:       c.skybox,
		Inscattering: c.inscattering.Clone(),
		Extinction:   c.extinction.Clone(),
		Ambient:      *c.ambient,
		Directional:  *c.directional,
	}, nil
}

// Uniforms returns the parameter set of the last frame, for binding a host
// skybox material with the same values.
func (c *Compositor) Uniforms() scatter.Uniforms {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uniforms
}

// Sun returns the sun state of the last frame.
func (c *Compositor) Sun() scatter.SunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sunState
}

func (c *Compositor) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Passthrough reports whether frames are copied unchanged because the
// backend is unsupported.
func (c *Compositor) Passthrough() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.passthrough
}

// Diagnostic returns why the compositor runs as a pass-through, or nil.
func (c *Compositor) Diagnostic() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diagnostic
}

// Stale reports whether the last frame kept the previous fog volumes.
func (c *Compositor) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

func (c *Compositor) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

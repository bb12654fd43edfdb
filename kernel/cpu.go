// Package kernel is the CPU implementation of the atmosphere backend. Each
// kernel and pass mirrors a GPU entry point: the grid is split into groups
// that run in parallel and the call returns once every cell is written.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
	"golang.org/x/sync/errgroup"
)

// Options tune the sample counts of the numerical integrations. Zero fields
// take the defaults.
type Options struct {
	DensitySteps      int // samples per particle density texel
	SkyboxSteps       int // samples per skybox ray
	InscatteringSteps int // samples per inscattering distance band
	LightSamples      int // hemisphere directions for the ambient curve
	LightSteps        int // samples per ambient direction
	Workers           int
}

func DefaultOptions() Options {
	return Options{
		DensitySteps:      64,
		SkyboxSteps:       32,
		InscatteringSteps: 4,
		LightSamples:      64,
		LightSteps:        16,
		Workers:           runtime.GOMAXPROCS(0),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DensitySteps <= 0 {
		o.DensitySteps = d.DensitySteps
	}
	if o.SkyboxSteps <= 0 {
		o.SkyboxSteps = d.SkyboxSteps
	}
	if o.InscatteringSteps <= 0 {
		o.InscatteringSteps = d.InscatteringSteps
	}
	if o.LightSamples <= 0 {
		o.LightSamples = d.LightSamples
	}
	if o.LightSteps <= 0 {
		o.LightSteps = d.LightSteps
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}

// CPU evaluates the kernels on the host. Compute kernels fan out with an
// errgroup; shading passes run every frame and reuse a persistent worker pool.
type CPU struct {
	opts       Options
	pool       worker.DynamicWorkerPool
	hemisphere []vectors.Vec3
	closeOnce  sync.Once
}

var _ scatter.Backend = (*CPU)(nil)

// NewCPU creates a backend. Call Close to stop its workers.
func NewCPU(opts Options) *CPU {
	opts = opts.withDefaults()
	return &CPU{
		opts:       opts,
		pool:       worker.NewDynamicWorkerPool(opts.Workers, 4*opts.Workers, time.Second),
		hemisphere: hemisphereSamples(opts.LightSamples),
	}
}

func (k *CPU) Name() string {
	return fmt.Sprintf("cpu(%d workers)", k.opts.Workers)
}

// Supported always succeeds: the CPU backend has no hardware requirements.
func (k *CPU) Supported() error {
	return nil
}

// Options returns the effective options.
func (k *CPU) Options() Options {
	return k.opts
}

// Close stops the shading workers.
func (k *CPU) Close() {
	k.closeOnce.Do(k.pool.Stop)
}

// dispatch runs fn for every group index on its own goroutine, at most
// Workers at a time.
func (k *CPU) dispatch(ctx context.Context, groups int, fn func(group int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.opts.Workers)
	for i := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}

// each runs fn for every index in [0, n) on the worker pool and waits for
// all of them.
func (k *CPU) each(ctx context.Context, n int, fn func(i int)) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := range n {
		wg.Add(1)
		k.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return nil, err
				}
				fn(i)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return firstErr
}

// Blit runs a shading pass into dst.
func (k *CPU) Blit(ctx context.Context, pass scatter.Pass, u *scatter.Uniforms, b *scatter.Bindings, src *scatter.Surface, dst scatter.Target) error {
	switch pass {
	case scatter.PassParticleDensity:
		return k.densityPass(ctx, u, dst)
	case scatter.PassAmbientLight, scatter.PassDirectionalLight:
		if b == nil || b.ParticleDensity == nil {
			return fmt.Errorf("%s: %w", pass, errMissingBinding)
		}
		return k.lightPass(ctx, pass, u, b.ParticleDensity, dst)
	case scatter.PassComposite:
		if b == nil || b.Skybox == nil || b.Inscattering == nil || b.Extinction == nil {
			return fmt.Errorf("%s: %w", pass, errMissingBinding)
		}
		if src == nil {
			return fmt.Errorf("%s: no source surface", pass)
		}
		return k.compositePass(ctx, u, b, src, dst)
	}
	return fmt.Errorf("%w: unknown %s", scatter.ErrUnsupportedBackend, pass)
}

var errMissingBinding = errors.New("missing texture binding")

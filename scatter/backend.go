package scatter

import (
	"context"
	"fmt"
)

// Pass selects one of the full-screen shading passes.
type Pass int

const (
	PassParticleDensity Pass = iota
	PassAmbientLight
	PassDirectionalLight
	PassComposite
)

func (p Pass) String() string {
	switch p {
	case PassParticleDensity:
		return "particle-density"
	case PassAmbientLight:
		return "ambient-light"
	case PassDirectionalLight:
		return "directional-light"
	case PassComposite:
		return "composite"
	}
	return fmt.Sprintf("pass(%d)", int(p))
}

// Bindings are the textures bound to a pass or kernel: _ParticleDensity,
// _Skybox, _Inscattering and _Extinction.
type Bindings struct {
	ParticleDensity *DensityTable
	Skybox          *Volume
	Inscattering    *Volume
	Extinction      *Volume
}

// Compute runs the volumetric kernels. Each call blocks until the whole grid
// has been written.
type Compute interface {
	ComputeParticleDensity(ctx context.Context, u *Uniforms, dst *DensityTable) error
	GenerateSkybox(ctx context.Context, u *Uniforms, density *DensityTable, dst *Volume) error
	GenerateInscattering(ctx context.Context, u *Uniforms, density *DensityTable, inscattering, extinction *Volume) error
}

// Shading runs the full-screen passes. src is only read by PassComposite.
type Shading interface {
	Blit(ctx context.Context, pass Pass, u *Uniforms, b *Bindings, src *Surface, dst Target) error
}

// Backend is a complete numerical backend.
type Backend interface {
	Compute
	Shading

	Name() string

	// Supported returns an error wrapping ErrUnsupportedBackend when the
	// backend cannot run on this host.
	Supported() error
}

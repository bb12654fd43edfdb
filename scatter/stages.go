package scatter

import (
	"context"
	"fmt"
)

// ComputeParticleDensity builds the optical depth table.
func ComputeParticleDensity(ctx context.Context, c Compute, u *Uniforms) (*DensityTable, error) {
	table := NewDensityTable()
	if err := c.ComputeParticleDensity(ctx, u, table); err != nil {
		return nil, fmt.Errorf("particle density: %w", err)
	}
	return table, nil
}

// GenerateSkybox builds the sky radiance volume from a density table.
func GenerateSkybox(ctx context.Context, c Compute, u *Uniforms, density *DensityTable) (*Volume, error) {
	skybox := NewSkybox()
	if err := c.GenerateSkybox(ctx, u, density, skybox); err != nil {
		return nil, fmt.Errorf("skybox: %w", err)
	}
	return skybox, nil
}

// GenerateInscattering rebuilds the inscattering and extinction volumes for
// the frustum in u.
func GenerateInscattering(ctx context.Context, c Compute, u *Uniforms, density *DensityTable, inscattering, extinction *Volume) error {
	for _, v := range []*Volume{inscattering, extinction} {
		if v.Width != FogWidth || v.Height != FogHeight || v.Depth != FogDepth {
			return fmt.Errorf("inscattering: %w: volume %dx%dx%d", ErrSize, v.Width, v.Height, v.Depth)
		}
	}
	if err := c.GenerateInscattering(ctx, u, density, inscattering, extinction); err != nil {
		return fmt.Errorf("inscattering: %w", err)
	}
	return nil
}

// GenerateLightLUTs renders the ambient and directional curves into a
// temporary 128x1 target and reads both back to host memory.
func GenerateLightLUTs(ctx context.Context, s Shading, u *Uniforms, density *DensityTable) (ambient, directional Curve, err error) {
	temporary := NewSurface(CurveSize, 1)
	b := &Bindings{ParticleDensity: density}

	if err := s.Blit(ctx, PassAmbientLight, u, b, nil, temporary); err != nil {
		return ambient, directional, fmt.Errorf("ambient light: %w", err)
	}
	Readback(temporary, &ambient)

	if err := s.Blit(ctx, PassDirectionalLight, u, b, nil, temporary); err != nil {
		return ambient, directional, fmt.Errorf("directional light: %w", err)
	}
	Readback(temporary, &directional)

	return ambient, directional, nil
}

// Readback copies the first row of src into a curve.
func Readback(src *Surface, dst *Curve) {
	for i := range dst {
		dst[i] = src.At(min(i, src.Width-1), 0)
	}
}

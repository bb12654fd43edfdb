package render

import (
	"math"

	"github.com/echoflaresat/skyscatter/scatter"
	"github.com/echoflaresat/skyscatter/vectors"
)

// Panorama samples the skybox into an equirectangular surface. Columns run
// from north through east, rows from the zenith down to the nadir.
func (c *Compositor) Panorama(width, height int) (*scatter.Surface, error) {
	s := scatter.NewSurface(width, height)
	for y := range height {
		el := math.Pi/2 - (float64(y)+0.5)/float64(height)*math.Pi
		for x := range width {
			az := (float64(x) + 0.5) / float64(width) * 2 * math.Pi
			dir := vectors.Vec3{
				X: math.Sin(az) * math.Cos(el),
				Y: math.Sin(el),
				Z: math.Cos(az) * math.Cos(el),
			}
			col, err := c.SampleSky(dir)
			if err != nil {
				return nil, err
			}
			s.Set(x, y, col.WithAlpha(1))
		}
	}
	return s, nil
}

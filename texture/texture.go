// Package texture loads scene images. Baseline TIFFs are memory mapped;
// anything else goes through the streaming TIFF decoder and then the
// registered image codecs.
package texture

import (
	"errors"
	"image"
	_ "image/jpeg" // register JPEG format with image.Decode
	_ "image/png"  // register PNG format with image.Decode
	"io"
	"os"

	streamtiff "github.com/echoflaresat/tiff"
	"go.uber.org/zap"
	_ "golang.org/x/image/tiff" // LZW and packbits TIFFs via image.Decode

	"github.com/echoflaresat/skyscatter/logger"
	"github.com/echoflaresat/skyscatter/texture/tiff"
)

// Texture is a loaded image and whatever keeps it backed.
type Texture struct {
	image.Image
	closer io.Closer
}

// Close releases the mapping or file behind the image.
func (t *Texture) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Load opens the image at path.
func Load(path string) (*Texture, error) {
	log := logger.Named("texture")

	img, err := tiff.Open(path)
	if err == nil {
		log.Debug("mapped tiff", zap.String("path", path), zap.Stringer("bounds", img.Bounds()))
		return &Texture{Image: img, closer: img}, nil
	}
	if !errors.Is(err, tiff.ErrNotTiff) {
		log.Debug("tiff not mappable, decoding", zap.String("path", path), zap.Error(err))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	decoded, err := streamtiff.Decode(f)
	if err == nil {
		return &Texture{Image: decoded, closer: f}, nil
	}

	// fallback to image codecs
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		f.Close()
		return nil, serr
	}
	decoded, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	log.Debug("decoded image", zap.String("path", path), zap.String("format", format))
	return &Texture{Image: decoded}, nil
}

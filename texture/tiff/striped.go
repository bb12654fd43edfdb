package tiff

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// OpenStriped maps a strip-organized TIFF.
func OpenStriped(path string) (*Image, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	h, err := ReadHeader(reader)
	if err == nil && len(h.StripOffsets) == 0 {
		err = fmt.Errorf("%w: no strips", ErrUnsupported)
	}
	var img *Image
	if err == nil {
		img, err = newImage(reader, h, h.Width, h.RowsPerStrip, h.StripOffsets, h.StripByteCounts)
	}
	if err != nil {
		reader.Close()
		return nil, err
	}
	return img, nil
}

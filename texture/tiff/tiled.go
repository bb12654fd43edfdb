package tiff

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// OpenTiled maps a tile-organized TIFF.
func OpenTiled(path string) (*Image, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	h, err := ReadHeader(reader)
	if err == nil && len(h.TileOffsets) == 0 {
		err = fmt.Errorf("%w: no tiles", ErrUnsupported)
	}
	var img *Image
	if err == nil {
		img, err = newImage(reader, h, h.TileWidth, h.TileHeight, h.TileOffsets, h.TileByteCounts)
	}
	if err != nil {
		reader.Close()
		return nil, err
	}
	return img, nil
}

// Open maps a TIFF in either layout.
func Open(path string) (*Image, error) {
	img, err := OpenStriped(path)
	if err == nil {
		return img, nil
	}
	if tiled, terr := OpenTiled(path); terr == nil {
		return tiled, nil
	}
	return nil, err
}

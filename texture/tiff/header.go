// Package tiff reads uncompressed and deflate-compressed baseline TIFF files
// through a memory map, decoding only the strips or tiles that are touched.
package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Header holds the first image file directory.
type Header struct {
	ByteOrder       binary.ByteOrder
	Width, Height   int
	SamplesPerPixel int
	BitsPerSample   []int
	ExtraSamples    []int
	Photometric     int
	Compression     int
	PlanarConfig    int

	// Strip layout
	RowsPerStrip    int
	StripOffsets    []int
	StripByteCounts []int

	// Tile layout
	TileWidth      int
	TileHeight     int
	TileOffsets    []int
	TileByteCounts []int
}

// https://www.loc.gov/preservation/digital/formats/content/tiff_tags.shtml
const (
	TagImageWidth                = 256
	TagImageLength               = 257
	TagBitsPerSample             = 258
	TagCompression               = 259
	TagPhotometricInterpretation = 262
	TagStripOffsets              = 273
	TagSamplesPerPixel           = 277
	TagRowsPerStrip              = 278
	TagStripByteCounts           = 279
	TagPlanarConfiguration       = 284
	TagTileWidth                 = 322
	TagTileLength                = 323
	TagTileOffsets               = 324
	TagTileByteCounts            = 325
	TagExtraSamples              = 338
)

// Compression schemes.
const (
	CompressionNone         = 1
	CompressionDeflate      = 8
	CompressionAdobeDeflate = 32946
)

// Photometric interpretations.
const (
	PhotometricBlackIsZero = 1
	PhotometricRGB         = 2
)

// Field types of directory entries.
const (
	typeByte  = 1
	typeShort = 3
	typeLong  = 4
)

var (
	// ErrNotTiff reports a file without a TIFF signature.
	ErrNotTiff = errors.New("not a TIFF file")

	// ErrUnsupported reports a TIFF layout this package cannot decode.
	ErrUnsupported = errors.New("unsupported TIFF layout")
)

// ReadHeader parses the signature and the first directory of r.
func ReadHeader(r io.ReaderAt) (Header, error) {
	read := func(offset int64, size int) ([]byte, error) {
		buf := make([]byte, size)
		_, err := r.ReadAt(buf, offset)
		return buf, err
	}

	sig, err := read(0, 8)
	if err != nil {
		return Header{}, ErrNotTiff
	}

	var bo binary.ByteOrder
	switch string(sig[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return Header{}, ErrNotTiff
	}
	if bo.Uint16(sig[2:4]) != 42 {
		return Header{}, ErrNotTiff
	}
	ifdOffset := int64(bo.Uint32(sig[4:8]))

	countRaw, err := read(ifdOffset, 2)
	if err != nil {
		return Header{}, fmt.Errorf("tiff directory: %w", err)
	}
	n := int(bo.Uint16(countRaw))
	entries, err := read(ifdOffset+2, n*12)
	if err != nil {
		return Header{}, fmt.Errorf("tiff directory entries: %w", err)
	}

	hdr := Header{
		ByteOrder:       bo,
		SamplesPerPixel: 1,
		Compression:     CompressionNone,
		Photometric:     -1,
		PlanarConfig:    1,
	}

	for i := range n {
		entry := entries[i*12 : (i+1)*12]
		vals, err := fieldValues(bo, entry, read)
		if err != nil {
			return Header{}, fmt.Errorf("tiff tag %d: %w", bo.Uint16(entry[0:2]), err)
		}
		if len(vals) == 0 {
			continue
		}

		switch bo.Uint16(entry[0:2]) {
		case TagImageWidth:
			hdr.Width = vals[0]
		case TagImageLength:
			hdr.Height = vals[0]
		case TagBitsPerSample:
			hdr.BitsPerSample = vals
		case TagCompression:
			hdr.Compression = vals[0]
		case TagPhotometricInterpretation:
			hdr.Photometric = vals[0]
		case TagStripOffsets:
			hdr.StripOffsets = vals
		case TagSamplesPerPixel:
			hdr.SamplesPerPixel = vals[0]
		case TagRowsPerStrip:
			hdr.RowsPerStrip = vals[0]
		case TagStripByteCounts:
			hdr.StripByteCounts = vals
		case TagPlanarConfiguration:
			hdr.PlanarConfig = vals[0]
		case TagTileWidth:
			hdr.TileWidth = vals[0]
		case TagTileLength:
			hdr.TileHeight = vals[0]
		case TagTileOffsets:
			hdr.TileOffsets = vals
		case TagTileByteCounts:
			hdr.TileByteCounts = vals
		case TagExtraSamples:
			hdr.ExtraSamples = vals
		}
	}

	if hdr.RowsPerStrip == 0 {
		hdr.RowsPerStrip = hdr.Height
	}
	return hdr, nil
}

// fieldValues decodes the values of one directory entry. Values that fit in
// four bytes are stored inline.
func fieldValues(bo binary.ByteOrder, entry []byte, read func(int64, int) ([]byte, error)) ([]int, error) {
	typ := bo.Uint16(entry[2:4])
	count := int(bo.Uint32(entry[4:8]))

	var size int
	switch typ {
	case typeByte:
		size = 1
	case typeShort:
		size = 2
	case typeLong:
		size = 4
	default:
		return nil, nil
	}

	raw := entry[8:12]
	if count*size > 4 {
		buf, err := read(int64(bo.Uint32(entry[8:12])), count*size)
		if err != nil {
			return nil, err
		}
		raw = buf
	}

	out := make([]int, count)
	for i := range out {
		switch size {
		case 1:
			out[i] = int(raw[i])
		case 2:
			out[i] = int(bo.Uint16(raw[i*2:]))
		case 4:
			out[i] = int(bo.Uint32(raw[i*4:]))
		}
	}
	return out, nil
}

// pixelFormat checks that the samples are ones Image can decode and returns
// the bytes per sample.
func (h Header) pixelFormat() (int, error) {
	if h.Width <= 0 || h.Height <= 0 {
		return 0, fmt.Errorf("%w: dimensions %dx%d", ErrUnsupported, h.Width, h.Height)
	}
	switch h.Compression {
	case CompressionNone, CompressionDeflate, CompressionAdobeDeflate:
	default:
		return 0, fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	if h.PlanarConfig != 1 {
		return 0, fmt.Errorf("%w: planar configuration %d", ErrUnsupported, h.PlanarConfig)
	}
	if len(h.BitsPerSample) == 0 {
		return 0, fmt.Errorf("%w: no bits per sample", ErrUnsupported)
	}
	bits := h.BitsPerSample[0]
	for _, b := range h.BitsPerSample {
		if b != bits {
			return 0, fmt.Errorf("%w: mixed sample depths %v", ErrUnsupported, h.BitsPerSample)
		}
	}
	if bits != 8 && bits != 16 {
		return 0, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}

	switch h.Photometric {
	case PhotometricBlackIsZero:
		if h.SamplesPerPixel != 1 {
			return 0, fmt.Errorf("%w: grayscale with %d samples", ErrUnsupported, h.SamplesPerPixel)
		}
	case PhotometricRGB:
		if h.SamplesPerPixel != 3 && h.SamplesPerPixel != 4 {
			return 0, fmt.Errorf("%w: RGB with %d samples", ErrUnsupported, h.SamplesPerPixel)
		}
	default:
		return 0, fmt.Errorf("%w: photometric %d", ErrUnsupported, h.Photometric)
	}
	return bits / 8, nil
}

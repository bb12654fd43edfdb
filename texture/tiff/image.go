package tiff

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/exp/mmap"
)

// cachedBlocks is how many decompressed strips or tiles stay in memory.
const cachedBlocks = 64

// Image is a memory-mapped TIFF. Pixels are read on demand; compressed strips
// and tiles are inflated once and kept in an LRU cache. Close releases the
// mapping.
type Image struct {
	header         Header
	reader         *mmap.ReaderAt
	bytesPerSample int

	// A block is a strip or a tile.
	blockW, blockH int
	across         int
	offsets        []int
	counts         []int
	cache          *lru.Cache // block index -> []byte

	errOnce sync.Once
	err     error
}

func newImage(reader *mmap.ReaderAt, h Header, blockW, blockH int, offsets, counts []int) (*Image, error) {
	bps, err := h.pixelFormat()
	if err != nil {
		return nil, err
	}
	if blockW <= 0 || blockH <= 0 {
		return nil, fmt.Errorf("%w: block size %dx%d", ErrUnsupported, blockW, blockH)
	}

	across := (h.Width + blockW - 1) / blockW
	down := (h.Height + blockH - 1) / blockH
	if len(offsets) < across*down || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: %d offsets and %d byte counts for %d blocks",
			ErrUnsupported, len(offsets), len(counts), across*down)
	}
	for i := range offsets {
		if offsets[i] < 0 || counts[i] < 0 || offsets[i]+counts[i] > reader.Len() {
			return nil, fmt.Errorf("%w: block %d lies outside the file", ErrUnsupported, i)
		}
	}

	cache, err := lru.New(cachedBlocks)
	if err != nil {
		return nil, err
	}

	return &Image{
		header:         h,
		reader:         reader,
		bytesPerSample: bps,
		blockW:         blockW,
		blockH:         blockH,
		across:         across,
		offsets:        offsets,
		counts:         counts,
		cache:          cache,
	}, nil
}

// Header returns the parsed directory.
func (m *Image) Header() Header {
	return m.header
}

// Close unmaps the file.
func (m *Image) Close() error {
	return m.reader.Close()
}

// Err returns the first read or decompression error met by At.
func (m *Image) Err() error {
	return m.err
}

func (m *Image) fail(err error) {
	m.errOnce.Do(func() { m.err = err })
}

func (m *Image) ColorModel() color.Model {
	h := m.header
	switch {
	case h.Photometric == PhotometricBlackIsZero && m.bytesPerSample == 1:
		return color.GrayModel
	case h.Photometric == PhotometricBlackIsZero:
		return color.Gray16Model
	case m.bytesPerSample == 1:
		return color.NRGBAModel
	}
	return color.NRGBA64Model
}

func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.header.Width, m.header.Height)
}

func (m *Image) At(x, y int) color.Color {
	h := m.header
	if x < 0 || y < 0 || x >= h.Width || y >= h.Height {
		return color.Transparent
	}

	index := (y/m.blockH)*m.across + x/m.blockW
	pixelSize := h.SamplesPerPixel * m.bytesPerSample
	start := ((y%m.blockH)*m.blockW + x%m.blockW) * pixelSize

	var px []byte
	if h.Compression == CompressionNone {
		px = make([]byte, pixelSize)
		if _, err := m.reader.ReadAt(px, int64(m.offsets[index]+start)); err != nil {
			m.fail(fmt.Errorf("pixel (%d,%d): %w", x, y, err))
			return color.Transparent
		}
	} else {
		blk, err := m.block(index)
		if err != nil || start+pixelSize > len(blk) {
			if err == nil {
				err = fmt.Errorf("block %d is %d bytes, pixel (%d,%d) needs %d", index, len(blk), x, y, start+pixelSize)
			}
			m.fail(err)
			return color.Transparent
		}
		px = blk[start : start+pixelSize]
	}

	return m.decode(px)
}

// sample returns sample i of a pixel scaled to 16 bits.
func (m *Image) sample(px []byte, i int) uint16 {
	if m.bytesPerSample == 1 {
		v := uint16(px[i])
		return v<<8 | v
	}
	return m.header.ByteOrder.Uint16(px[i*2:])
}

func (m *Image) decode(px []byte) color.Color {
	h := m.header
	if h.Photometric == PhotometricBlackIsZero {
		if m.bytesPerSample == 1 {
			return color.Gray{Y: px[0]}
		}
		return color.Gray16{Y: m.sample(px, 0)}
	}

	r, g, b := m.sample(px, 0), m.sample(px, 1), m.sample(px, 2)
	a := uint16(0xffff)
	if h.SamplesPerPixel == 4 {
		a = m.sample(px, 3)
		if len(h.ExtraSamples) > 0 && h.ExtraSamples[0] == 1 {
			// Associated alpha is already premultiplied.
			return color.RGBA64{R: r, G: g, B: b, A: a}
		}
	}
	if m.bytesPerSample == 1 {
		return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
	}
	return color.NRGBA64{R: r, G: g, B: b, A: a}
}

// block returns the inflated contents of a strip or tile.
func (m *Image) block(index int) ([]byte, error) {
	if v, ok := m.cache.Get(index); ok {
		return v.([]byte), nil
	}

	raw := make([]byte, m.counts[index])
	if _, err := m.reader.ReadAt(raw, int64(m.offsets[index])); err != nil {
		return nil, fmt.Errorf("block %d: %w", index, err)
	}

	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", index, err)
	}
	defer r.Close()
	blk, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", index, err)
	}

	m.cache.Add(index, blk)
	return blk, nil
}

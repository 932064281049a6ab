package message

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType is the chunk index of a version 4 layout. Older layouts
// always index chunks with a version 1 B-tree, reported as ChunkIndexBTreeV1.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// Chunked layout flags.
const (
	ChunkFlagDontFilterPartial   uint8 = 0x01
	ChunkFlagSingleIndexFiltered uint8 = 0x02
)

// DataLayout says where the raw data of a dataset lives.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	Address uint64
	Size    uint64

	// ChunkDims has one entry per dataset dimension plus a trailing entry
	// holding the element size.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// IndexParams holds the index-specific parameters of a version 4
	// layout, such as the page bits of a fixed array.
	IndexParams []byte

	// Set for a filtered single-chunk index.
	FilteredChunkSize uint64
	FilterMask        uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func parseDataLayout(d *dec) (*DataLayout, error) {
	m := &DataLayout{Version: d.u8()}
	switch m.Version {
	case 1, 2:
		parseLayoutV1(d, m)
	case 3, 4:
		m.Class = LayoutClass(d.u8())
		switch m.Class {
		case LayoutCompact:
			m.CompactData = append([]byte(nil), d.take(int(d.u16()))...)
		case LayoutContiguous:
			m.Address = d.address()
			m.Size = d.length()
		case LayoutChunked:
			if m.Version == 3 {
				parseChunkedV3(d, m)
			} else {
				parseChunkedV4(d, m)
			}
		case LayoutVirtual:
			return nil, fmt.Errorf("virtual dataset layouts are not supported")
		default:
			return nil, fmt.Errorf("unknown layout class %d", m.Class)
		}
	default:
		return nil, fmt.Errorf("unsupported data layout version %d", m.Version)
	}
	if err := d.check("data layout"); err != nil {
		return nil, err
	}
	return m, nil
}

func parseLayoutV1(d *dec, m *DataLayout) {
	ndims := int(d.u8())
	m.Class = LayoutClass(d.u8())
	d.skip(5)
	if m.Class != LayoutCompact {
		m.Address = d.address()
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = d.u32()
	}
	switch m.Class {
	case LayoutCompact:
		m.CompactData = append([]byte(nil), d.take(int(d.u32()))...)
	case LayoutContiguous:
		m.Size = 1
		for _, n := range dims {
			m.Size *= uint64(n)
		}
	case LayoutChunked:
		m.ChunkDims = dims
		m.ChunkIndexAddr = m.Address
		m.Address = 0
	}
}

func parseChunkedV3(d *dec, m *DataLayout) {
	ndims := int(d.u8())
	m.ChunkIndexAddr = d.address()
	m.ChunkDims = make([]uint32, ndims)
	for i := range m.ChunkDims {
		m.ChunkDims[i] = d.u32()
	}
	m.DimensionSizeBytes = 4
}

func parseChunkedV4(d *dec, m *DataLayout) {
	m.ChunkFlags = d.u8()
	ndims := int(d.u8())
	m.DimensionSizeBytes = d.u8()
	m.ChunkDims = make([]uint32, ndims)
	for i := range m.ChunkDims {
		m.ChunkDims[i] = uint32(d.uintN(int(m.DimensionSizeBytes)))
	}
	m.ChunkIndexType = ChunkIndexType(d.u8())
	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&ChunkFlagSingleIndexFiltered != 0 {
			m.FilteredChunkSize = d.length()
			m.FilterMask = d.u32()
		}
	case ChunkIndexFixedArray:
		m.IndexParams = append([]byte(nil), d.take(1)...)
	case ChunkIndexExtensibleArray:
		m.IndexParams = append([]byte(nil), d.take(5)...)
	case ChunkIndexBTreeV2:
		m.IndexParams = append([]byte(nil), d.take(6)...)
	}
	m.ChunkIndexAddr = d.address()
}

// Serialize writes version 3 for compact and contiguous layouts and
// version 4 for chunked ones.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	e := &enc{w: w}
	switch m.Class {
	case LayoutCompact:
		if len(m.CompactData) > 0xFFFF {
			return fmt.Errorf("compact data of %d bytes does not fit a layout message", len(m.CompactData))
		}
		e.u8(3, uint8(m.Class))
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)
	case LayoutContiguous:
		e.u8(3, uint8(m.Class))
		e.address(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		width := m.DimensionSizeBytes
		if width == 0 {
			width = 4
		}
		e.u8(4, uint8(m.Class), m.ChunkFlags, uint8(len(m.ChunkDims)), width)
		for _, n := range m.ChunkDims {
			e.uintN(uint64(n), int(width))
		}
		e.u8(uint8(m.ChunkIndexType))
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk:
			if m.ChunkFlags&ChunkFlagSingleIndexFiltered != 0 {
				e.length(m.FilteredChunkSize)
				e.u32(m.FilterMask)
			}
		case ChunkIndexFixedArray, ChunkIndexExtensibleArray, ChunkIndexBTreeV2:
			params := m.IndexParams
			if len(params) == 0 {
				params = defaultIndexParams(m.ChunkIndexType)
			}
			e.bytes(params)
		}
		e.address(m.ChunkIndexAddr)
	default:
		return fmt.Errorf("cannot write layout class %d", m.Class)
	}
	return e.err
}

func (m *DataLayout) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

// defaultIndexParams matches the parameters HDF5 itself picks for small
// datasets.
func defaultIndexParams(t ChunkIndexType) []byte {
	switch t {
	case ChunkIndexFixedArray:
		return []byte{10}
	case ChunkIndexExtensibleArray:
		return []byte{32, 4, 4, 16, 10}
	case ChunkIndexBTreeV2:
		return []byte{0, 2, 0, 0, 100, 40}
	}
	return nil
}

func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout. chunkDims are the
// dataset-facing chunk sizes; the element size is appended.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, indexType ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	var largest uint32
	for _, n := range dims {
		largest = max(largest, n)
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          dims,
		ChunkIndexType:     indexType,
		DimensionSizeBytes: uint8(widthOf(uint64(largest))),
	}
}

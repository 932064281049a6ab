package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/btree"
	"github.com/robert-malhotra/go-nexus/internal/filter"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// unlimited is the maximum extent of a dimension without an upper bound.
const unlimited = ^uint64(0)

// Chunked locates and decodes the chunks of a chunked dataset.
type Chunked struct {
	layout    *message.DataLayout
	dataspace *message.Dataspace
	datatype  *message.Datatype
	pipeline  *filter.Pipeline
	reader    *binary.Reader
}

// NewChunked creates a chunk source. fp may be nil for unfiltered data.
func NewChunked(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	fp *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	if layout == nil || layout.Class != message.LayoutChunked {
		return nil, fmt.Errorf("not a chunked layout")
	}
	var pipeline *filter.Pipeline
	if fp != nil {
		var err error
		if pipeline, err = filter.NewPipeline(fp); err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
	}
	return &Chunked{
		layout:    layout,
		dataspace: dataspace,
		datatype:  datatype,
		pipeline:  pipeline,
		reader:    reader,
	}, nil
}

// IndexType returns the chunk index type. Layout messages older than
// version 4 always use a version 1 B-tree.
func (c *Chunked) IndexType() message.ChunkIndexType {
	if c.layout.Version < 4 {
		return message.ChunkIndexBTreeV1
	}
	return c.layout.ChunkIndexType
}

// dims returns the dataset extent, treating a scalar as one element.
func (c *Chunked) dims() []uint64 {
	if len(c.dataspace.Dimensions) == 0 {
		return []uint64{1}
	}
	return c.dataspace.Dimensions
}

// chunkDims returns the chunk extents without the trailing element size.
func (c *Chunked) chunkDims(rank int) ([]uint32, error) {
	cd := c.layout.ChunkDims
	if len(cd) < rank {
		return nil, fmt.Errorf("chunked layout has %d chunk dimensions for rank %d", len(cd), rank)
	}
	cd = cd[:rank]
	for d, n := range cd {
		if n == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	return cd, nil
}

func chunkBytes(chunkDims []uint32, elemSize uint64) uint64 {
	n := elemSize
	for _, d := range chunkDims {
		n *= uint64(d)
	}
	return n
}

// indexGrid returns the number of chunks per dimension addressed by array
// based indexes. Bounded maximum extents size the grid; unlimited ones
// fall back to the current extent.
func (c *Chunked) indexGrid(dims []uint64, chunkDims []uint32) []uint64 {
	grid := make([]uint64, len(dims))
	for d, n := range dims {
		if m := c.dataspace.MaxDims; len(m) == len(dims) && m[d] != unlimited && m[d] > n {
			n = m[d]
		}
		grid[d] = ceilDiv(n, uint64(chunkDims[d]))
	}
	return grid
}

func ceilDiv(a, b uint64) uint64 { return (a + b - 1) / b }

// rowMajorOffset returns the offset of chunk idx in a row-major chunk grid.
func rowMajorOffset(idx uint64, grid []uint64, chunkDims []uint32) []uint64 {
	offset := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		offset[d] = (idx % grid[d]) * uint64(chunkDims[d])
		idx /= grid[d]
	}
	return offset
}

// swizzledOffset maps extensible array element indexes to chunk offsets.
// The unlimited dimension varies slowest and the others follow in
// row-major order.
func (c *Chunked) swizzledOffset(dims []uint64, chunkDims []uint32) func(uint64) []uint64 {
	grid := c.indexGrid(dims, chunkDims)
	unlim := 0
	for d, m := range c.dataspace.MaxDims {
		if m == unlimited {
			unlim = d
			break
		}
	}
	return func(idx uint64) []uint64 {
		offset := make([]uint64, len(grid))
		for d := len(grid) - 1; d >= 0; d-- {
			if d == unlim {
				continue
			}
			offset[d] = (idx % grid[d]) * uint64(chunkDims[d])
			idx /= grid[d]
		}
		offset[unlim] = idx * uint64(chunkDims[unlim])
		return offset
	}
}

// chunkEntries lists every allocated chunk of the dataset.
func (c *Chunked) chunkEntries(dims []uint64, chunkDims []uint32) ([]btree.ChunkEntry, error) {
	addr := c.layout.ChunkIndexAddr
	if addr == 0 || c.reader.IsUndefinedOffset(addr) {
		return nil, nil
	}
	size := chunkBytes(chunkDims, uint64(c.datatype.Size))

	var (
		entries []btree.ChunkEntry
		err     error
	)
	switch c.IndexType() {
	case message.ChunkIndexSingleChunk:
		e := btree.ChunkEntry{Offset: make([]uint64, len(dims)), Address: addr, Size: uint32(size)}
		if c.layout.ChunkFlags&message.ChunkFlagSingleIndexFiltered != 0 {
			e.Size = uint32(c.layout.FilteredChunkSize)
			e.FilterMask = c.layout.FilterMask
		}
		return []btree.ChunkEntry{e}, nil
	case message.ChunkIndexImplicit:
		grid := c.indexGrid(dims, chunkDims)
		n := uint64(1)
		for _, g := range grid {
			n *= g
		}
		entries = make([]btree.ChunkEntry, n)
		for i := range entries {
			entries[i] = btree.ChunkEntry{
				Offset:  rowMajorOffset(uint64(i), grid, chunkDims),
				Address: addr + uint64(i)*size,
				Size:    uint32(size),
			}
		}
		return entries, nil
	case message.ChunkIndexFixedArray:
		grid := c.indexGrid(dims, chunkDims)
		entries, err = readFixedArray(c.reader, addr, func(i uint64) []uint64 {
			return rowMajorOffset(i, grid, chunkDims)
		})
	case message.ChunkIndexExtensibleArray:
		entries, err = readExtensibleArray(c.reader, addr, c.swizzledOffset(dims, chunkDims))
	case message.ChunkIndexBTreeV2:
		entries, err = btree.ReadChunkIndexV2(c.reader, addr, chunkDims)
	case message.ChunkIndexBTreeV1:
		entries, err = btree.ReadChunkIndex(c.reader, addr, len(dims))
	default:
		return nil, fmt.Errorf("unsupported chunk index type %d", c.IndexType())
	}
	if err != nil {
		return nil, fmt.Errorf("reading chunk index at %#x: %w", addr, err)
	}
	return entries, nil
}

// loadChunk reads one chunk and runs it through the filter pipeline.
func (c *Chunked) loadChunk(e btree.ChunkEntry, size uint64) ([]byte, error) {
	n := uint64(e.Size)
	if n == 0 {
		n = size
	}
	data, err := c.reader.At(int64(e.Address)).ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("reading chunk at offset %v: %w", e.Offset, err)
	}
	if c.pipeline != nil && !c.pipeline.Empty() {
		if data, err = c.pipeline.Decode(data, e.FilterMask); err != nil {
			return nil, fmt.Errorf("decoding chunk at offset %v: %w", e.Offset, err)
		}
	}
	return data, nil
}

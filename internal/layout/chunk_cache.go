package layout

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-nexus/internal/btree"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// maxCleanChunks bounds the number of unmodified chunks kept in memory.
const maxCleanChunks = 64

// ChunkCache serves element reads and writes for a chunked dataset. Chunks
// are loaded on first access; written chunks stay in memory until Flush
// stores them together with a new fixed array index.
type ChunkCache struct {
	src       *Chunked
	dims      []uint64
	chunkDims []uint32
	elemSize  uint64
	chunkSize uint64
	grid      []uint64 // chunks per dimension of the index

	entries map[uint64]btree.ChunkEntry
	chunks  map[uint64][]byte
	dirty   map[uint64]bool
	resized bool
}

// NewChunkCache creates a cache over the chunks of src.
func NewChunkCache(src *Chunked) (*ChunkCache, error) {
	dims := src.dims()
	chunkDims, err := src.chunkDims(len(dims))
	if err != nil {
		return nil, err
	}
	elemSize := uint64(src.datatype.Size)
	cc := &ChunkCache{
		src:       src,
		dims:      dims,
		chunkDims: chunkDims,
		elemSize:  elemSize,
		chunkSize: chunkBytes(chunkDims, elemSize),
		grid:      src.indexGrid(dims, chunkDims),
		chunks:    make(map[uint64][]byte),
		dirty:     make(map[uint64]bool),
	}

	entries, err := src.chunkEntries(dims, chunkDims)
	if err != nil {
		return nil, err
	}
	cc.entries = make(map[uint64]btree.ChunkEntry, len(entries))
	for _, e := range entries {
		if len(e.Offset) < len(dims) || !cc.inside(e.Offset) {
			continue
		}
		cc.entries[cc.indexOf(e.Offset)] = e
	}
	return cc, nil
}

// NumChunks returns the number of chunks addressed by the index.
func (cc *ChunkCache) NumChunks() uint64 {
	n := uint64(1)
	for _, g := range cc.grid {
		n *= g
	}
	return n
}

// Dirty reports whether any chunk has unflushed changes.
func (cc *ChunkCache) Dirty() bool {
	return len(cc.dirty) > 0 || cc.resized
}

func (cc *ChunkCache) inside(offset []uint64) bool {
	for d, o := range cc.dims {
		if offset[d] >= o {
			return false
		}
	}
	return true
}

// indexOf returns the row-major chunk index of the chunk starting at offset.
func (cc *ChunkCache) indexOf(offset []uint64) uint64 {
	var idx uint64
	for d := range cc.grid {
		idx = idx*cc.grid[d] + offset[d]/uint64(cc.chunkDims[d])
	}
	return idx
}

// chunk returns the decoded chunk idx, loading it if needed.
func (cc *ChunkCache) chunk(idx uint64) ([]byte, error) {
	if data, ok := cc.chunks[idx]; ok {
		return data, nil
	}
	if len(cc.chunks)-len(cc.dirty) >= maxCleanChunks {
		for k := range cc.chunks {
			if !cc.dirty[k] {
				delete(cc.chunks, k)
			}
		}
	}

	data := make([]byte, cc.chunkSize)
	if e, ok := cc.entries[idx]; ok {
		decoded, err := cc.src.loadChunk(e, cc.chunkSize)
		if err != nil {
			return nil, err
		}
		copy(data, decoded)
	}
	cc.chunks[idx] = data
	return data, nil
}

// each calls fn for every stretch of selected elements that is contiguous
// both in the selection and within one chunk. at is the byte position of
// the stretch in the packed selection buffer.
func (cc *ChunkCache) each(sel Hyperslab, fn func(chunk []byte, idx, within, n, at uint64) error) error {
	dims := cc.src.dataspace.Dimensions
	if err := sel.Validate(dims); err != nil {
		return err
	}
	var at uint64
	return sel.Runs(dims, func(off, n uint64) error {
		for n > 0 {
			idx, within, span := cc.position(off, n)
			chunk, err := cc.chunk(idx)
			if err != nil {
				return err
			}
			if err := fn(chunk, idx, within, span, at); err != nil {
				return err
			}
			off, n, at = off+span, n-span, at+span*cc.elemSize
		}
		return nil
	})
}

// ReadSelection returns the selected elements in row-major selection order.
func (cc *ChunkCache) ReadSelection(sel Hyperslab) ([]byte, error) {
	out := make([]byte, sel.NumElements()*cc.elemSize)
	err := cc.each(sel, func(chunk []byte, _, within, n, at uint64) error {
		copy(out[at:], chunk[within*cc.elemSize:(within+n)*cc.elemSize])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteSelection stores data, packed in selection order, into the cached
// chunks and marks them dirty.
func (cc *ChunkCache) WriteSelection(sel Hyperslab, data []byte) error {
	if want := sel.NumElements() * cc.elemSize; uint64(len(data)) != want {
		return fmt.Errorf("data has %d bytes, selection needs %d", len(data), want)
	}
	return cc.each(sel, func(chunk []byte, idx, within, n, at uint64) error {
		copy(chunk[within*cc.elemSize:], data[at:at+n*cc.elemSize])
		cc.dirty[idx] = true
		return nil
	})
}

// position maps the linear dataset element lin to its chunk index and the
// element index within the chunk. span is how many of the n elements from
// lin on are stored consecutively in that chunk.
func (cc *ChunkCache) position(lin, n uint64) (chunk, within, span uint64) {
	rank := len(cc.dims)
	coords := make([]uint64, rank)
	for d := rank - 1; d >= 0; d-- {
		coords[d] = lin % cc.dims[d]
		lin /= cc.dims[d]
	}
	for d := range rank {
		cd := uint64(cc.chunkDims[d])
		chunk = chunk*cc.grid[d] + coords[d]/cd
		within = within*cd + coords[d]%cd
	}
	last := rank - 1
	cd := uint64(cc.chunkDims[last])
	span = min(n, cd-coords[last]%cd, cc.dims[last]-coords[last])
	return chunk, within, span
}

// Flush writes every dirty chunk and a fixed array index covering all
// chunks, and returns the layout message that points at the new index.
// The previous index and replaced chunks are left in place unreferenced.
func (cc *ChunkCache) Flush(cw *ChunkWriter) (*message.DataLayout, error) {
	if !cc.Dirty() {
		return nil, nil
	}

	dirty := make([]uint64, 0, len(cc.dirty))
	for idx := range cc.dirty {
		dirty = append(dirty, idx)
	}
	slices.Sort(dirty)
	for _, idx := range dirty {
		e, err := cw.WriteChunk(rowMajorOffset(idx, cc.grid, cc.chunkDims), cc.chunks[idx])
		if err != nil {
			return nil, err
		}
		cc.entries[idx] = e
	}

	all := make([]btree.ChunkEntry, cc.NumChunks())
	for idx, e := range cc.entries {
		all[idx] = e
	}
	addr, pageBits, err := cw.WriteFixedArrayIndex(all, cc.chunkSize)
	if err != nil {
		return nil, err
	}

	updated := message.NewChunkedLayout(cc.chunkDims, uint32(cc.elemSize), message.ChunkIndexFixedArray)
	updated.ChunkFlags = cc.src.layout.ChunkFlags &^ message.ChunkFlagSingleIndexFiltered
	updated.IndexParams = []byte{pageBits}
	updated.ChunkIndexAddr = addr

	cc.src.layout = updated
	cc.dirty = make(map[uint64]bool)
	cc.resized = false
	return updated, nil
}

// Resize changes the dataset extent to dims, which must have the same rank.
// Cached chunks and index entries are re-keyed for the new chunk grid, and
// chunks entirely outside the new extent are dropped. The next Flush writes
// an index covering the new extent.
func (cc *ChunkCache) Resize(dims []uint64) error {
	if len(dims) != len(cc.src.dataspace.Dimensions) {
		return fmt.Errorf("resize to rank %d, dataset has rank %d", len(dims), len(cc.src.dataspace.Dimensions))
	}

	offsets := make(map[uint64][]uint64, len(cc.chunks))
	for idx := range cc.chunks {
		offsets[idx] = rowMajorOffset(idx, cc.grid, cc.chunkDims)
	}

	cc.src.dataspace.Dimensions = slices.Clone(dims)
	cc.dims = cc.src.dataspace.Dimensions
	cc.grid = cc.src.indexGrid(cc.dims, cc.chunkDims)

	entries := make(map[uint64]btree.ChunkEntry, len(cc.entries))
	for _, e := range cc.entries {
		if cc.inside(e.Offset) {
			entries[cc.indexOf(e.Offset)] = e
		}
	}
	chunks := make(map[uint64][]byte, len(cc.chunks))
	dirty := make(map[uint64]bool, len(cc.dirty))
	for idx, data := range cc.chunks {
		off := offsets[idx]
		if !cc.inside(off) {
			continue
		}
		chunks[cc.indexOf(off)] = data
		if cc.dirty[idx] {
			dirty[cc.indexOf(off)] = true
		}
	}
	cc.entries, cc.chunks, cc.dirty = entries, chunks, dirty
	cc.resized = true
	return nil
}

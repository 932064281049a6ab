package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/btree"
	"github.com/robert-malhotra/go-nexus/internal/filter"
)

// ChunkWriter encodes chunks through a filter pipeline and stores them,
// along with their fixed array index, in newly allocated file space.
type ChunkWriter struct {
	w        *binary.Writer
	pipeline *filter.Pipeline
	alloc    func(size uint64) (uint64, error)
}

// NewChunkWriter creates a chunk writer. pipeline may be nil; alloc
// reserves size bytes of file space and returns their address.
func NewChunkWriter(w *binary.Writer, pipeline *filter.Pipeline, alloc func(size uint64) (uint64, error)) *ChunkWriter {
	return &ChunkWriter{w: w, pipeline: pipeline, alloc: alloc}
}

// Filtered reports whether chunks pass through at least one filter.
func (cw *ChunkWriter) Filtered() bool {
	return cw.pipeline != nil && !cw.pipeline.Empty()
}

// WriteChunk encodes data and writes it at a new address.
func (cw *ChunkWriter) WriteChunk(offset []uint64, data []byte) (btree.ChunkEntry, error) {
	var mask uint32
	if cw.Filtered() {
		var err error
		data, mask, err = cw.pipeline.Encode(data)
		if err != nil {
			return btree.ChunkEntry{}, fmt.Errorf("encoding chunk at offset %v: %w", offset, err)
		}
	}

	addr, err := cw.alloc(uint64(len(data)))
	if err != nil {
		return btree.ChunkEntry{}, err
	}
	if err := cw.w.At(int64(addr)).WriteBytes(data); err != nil {
		return btree.ChunkEntry{}, fmt.Errorf("writing chunk at offset %v: %w", offset, err)
	}
	return btree.ChunkEntry{
		Offset:     offset,
		FilterMask: mask,
		Size:       uint32(len(data)),
		Address:    addr,
	}, nil
}

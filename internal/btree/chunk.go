package btree

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// maxDepth bounds recursion through corrupt or cyclic trees.
const maxDepth = 32

var errTooDeep = errors.New("B-tree deeper than 32 levels")

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the element coordinate of the first element in the chunk.
	Offset []uint64

	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32

	// Size is the stored size in bytes. Zero means unfiltered, so the
	// size follows from the chunk dimensions.
	Size uint32

	Address uint64
}

// chunkKeySize is the size of a version 1 chunk key: size, filter mask and
// one 8-byte offset per dimension plus the element-size dimension.
func chunkKeySize(ndims int) int { return 8 + 8*(ndims+1) }

// ReadChunkIndex lists the chunks of a version 1 chunk B-tree. ndims is the
// rank of the dataset.
func ReadChunkIndex(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	var entries []ChunkEntry
	order := r.ByteOrder()
	err := walkV1(r, addr, nodeChunk, chunkKeySize(ndims), 0, func(key []byte, child uint64) error {
		if r.IsUndefinedOffset(child) {
			return nil
		}
		e := ChunkEntry{
			Size:       order.Uint32(key),
			FilterMask: order.Uint32(key[4:]),
			Offset:     make([]uint64, ndims),
			Address:    child,
		}
		for i := range e.Offset {
			e.Offset[i] = order.Uint64(key[8+8*i:])
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chunk B-tree at %#x: %w", addr, err)
	}
	return entries, nil
}

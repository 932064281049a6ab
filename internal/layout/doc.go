// Package layout reads and writes dataset raw data for the three HDF5
// storage layouts.
//
// A dataset's layout message says where its elements live. All access goes
// through a [Hyperslab] selection (start, stride, count and block per
// dimension) and moves element bytes; conversion to Go values is the dtype
// package's job.
//
// # Compact
//
// [Compact] data is stored inside the layout message itself. Writes modify
// the in-memory copy returned by [Compact.Data], which the caller stores
// back into the object header.
//
// # Contiguous
//
// [Contiguous] data occupies one block of the file in row-major order.
// Each run of a selection becomes one read or write. Storage that was never
// allocated reads as zeros.
//
// # Chunked
//
// [Chunked] data is split into equally sized chunks, each stored on its own
// and optionally passed through a filter pipeline. A chunk index maps chunk
// offsets to file addresses. Every index type is read:
//
//   - version 1 B-tree (layouts before version 4)
//   - single chunk, filtered or not
//   - implicit: chunks stored back to back in grid order
//   - fixed array, including paged data blocks
//   - extensible array: index, super and data blocks, paged or not
//   - version 2 B-tree, filtered and unfiltered records
//
// Checksums of the array index blocks are verified. Array indexes number
// chunks in a grid sized by the maximum dimensions where those are
// bounded. The extensible array grows along the unlimited dimension, which
// therefore varies slowest in its numbering.
//
// Chunks missing from the index read as zeros.
//
// # Chunk Cache
//
// A [ChunkCache] serves selections of a chunked dataset. It loads chunks
// on first access, keeps modified chunks in memory and writes them out on
// [ChunkCache.Flush]:
//
//	src, err := layout.NewChunked(dl, space, dtype, pipeline, reader)
//	cache, err := layout.NewChunkCache(src)
//	err = cache.WriteSelection(sel, data)
//	cw := layout.NewChunkWriter(writer, pipeline, alloc)
//	newLayout, err := cache.Flush(cw)
//
// Flush writes the modified chunks through a [ChunkWriter], which filters
// them and allocates their space, then writes a fixed array index over all
// chunks. The returned layout message replaces the dataset's old one.
// [ChunkCache.Resize] changes the extent within the maximum dimensions.
//
// # Key Types
//
//   - [Hyperslab]: a regular selection of elements
//   - [Compact], [Contiguous], [Chunked]: the storage of one dataset
//   - [ChunkCache]: buffered chunk access for reads and writes
//   - [ChunkWriter]: writes chunks and fixed array indexes
package layout

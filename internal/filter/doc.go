// Package filter encodes and decodes chunk data through an HDF5 filter
// pipeline.
//
// Supported filters are deflate (1), shuffle (2), Fletcher-32 (3), the LZ4
// plugin (32004) and the Zstandard plugin (32015). SZIP, N-bit and
// scale-offset are recognized by name only. A [Pipeline] decodes in reverse
// declaration order and skips every filter whose bit is set in the chunk's
// filter mask; optional filters that are unavailable keep their mask
// position.
package filter

package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// defaultLZ4BlockSize is the block size used when client data gives none.
const defaultLZ4BlockSize = 1 << 30

// LZ4 implements the registered LZ4 filter.
//
// Encoded layout (big-endian):
//
//	8 bytes   original size
//	4 bytes   block size
//	per block: 4 byte compressed size, then the block. A block whose
//	compressed size equals its raw size is stored uncompressed.
type LZ4 struct {
	blockSize int
}

// NewLZ4 creates an LZ4 filter.
// Client data: [0] = block size in bytes (default 1 GiB)
func NewLZ4(clientData []uint32) *LZ4 {
	bs := defaultLZ4BlockSize
	if len(clientData) > 0 && clientData[0] > 0 {
		bs = int(clientData[0])
	}
	return &LZ4{blockSize: bs}
}

func (f *LZ4) ID() uint16 {
	return message.FilterLZ4
}

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: input too short for header")
	}
	total := binary.BigEndian.Uint64(input[0:8])
	blockSize := uint64(binary.BigEndian.Uint32(input[8:12]))
	if blockSize == 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}

	out := make([]byte, total)
	pos := 12
	for off := uint64(0); off < total; off += blockSize {
		raw := min(blockSize, total-off)
		if pos+4 > len(input) {
			return nil, fmt.Errorf("lz4: block header truncated")
		}
		csize := int(binary.BigEndian.Uint32(input[pos:]))
		pos += 4
		if pos+csize > len(input) {
			return nil, fmt.Errorf("lz4: block truncated")
		}
		dst := out[off : off+raw]
		if uint64(csize) == raw {
			copy(dst, input[pos:pos+csize])
		} else {
			n, err := lz4.UncompressBlock(input[pos:pos+csize], dst)
			if err != nil {
				return nil, fmt.Errorf("lz4 decompress: %w", err)
			}
			if uint64(n) != raw {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", n, raw)
			}
		}
		pos += csize
	}
	return out, nil
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	blockSize := f.blockSize
	if blockSize > len(input) && len(input) > 0 {
		blockSize = len(input)
	}
	if blockSize == 0 {
		blockSize = 1
	}

	out := make([]byte, 12, 12+len(input)/2)
	binary.BigEndian.PutUint64(out[0:8], uint64(len(input)))
	binary.BigEndian.PutUint32(out[8:12], uint32(blockSize))

	var c lz4.Compressor
	buf := make([]byte, lz4.CompressBlockBound(blockSize))
	for off := 0; off < len(input); off += blockSize {
		block := input[off:min(off+blockSize, len(input))]
		n, err := c.CompressBlock(block, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		var size [4]byte
		if n == 0 || n >= len(block) {
			// Incompressible: store raw.
			binary.BigEndian.PutUint32(size[:], uint32(len(block)))
			out = append(out, size[:]...)
			out = append(out, block...)
			continue
		}
		binary.BigEndian.PutUint32(size[:], uint32(n))
		out = append(out, size[:]...)
		out = append(out, buf[:n]...)
	}
	return out, nil
}

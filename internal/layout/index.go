package layout

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/btree"
)

// block decodes a checksummed index structure held in memory. Field reads
// past the end yield zero and record the first error.
type block struct {
	rd  *binary.Reader
	err error
}

// readBlock reads size bytes at addr and verifies the trailing checksum.
func readBlock(r *binary.Reader, addr uint64, size int) (*block, error) {
	data, err := r.At(int64(addr)).ReadBytes(size)
	if err != nil {
		return nil, err
	}
	b := &block{rd: binary.NewReader(bytes.NewReader(data), r.Config())}
	stored, err := b.rd.At(int64(size - 4)).ReadUint32()
	if err != nil {
		return nil, err
	}
	if sum := binary.Lookup3Checksum(data[:size-4]); sum != stored {
		return nil, fmt.Errorf("checksum mismatch at %#x: stored %#x, computed %#x", addr, stored, sum)
	}
	b.rd = b.rd.At(0)
	return b, nil
}

// header checks the signature and version that open every index block.
func (b *block) header(sig string) error {
	got, err := b.rd.ReadBytes(4)
	if err != nil {
		return err
	}
	if string(got) != sig {
		return fmt.Errorf("bad signature %q, want %q", got, sig)
	}
	if v := b.u8(); v != 0 {
		return fmt.Errorf("%s version %d not supported", sig, v)
	}
	return b.err
}

func (b *block) uintN(n int) uint64 {
	if b.err != nil {
		return 0
	}
	v, err := b.rd.ReadUintN(n)
	b.err = err
	return v
}

func (b *block) u8() uint8         { return uint8(b.uintN(1)) }
func (b *block) u32() uint32       { return uint32(b.uintN(4)) }
func (b *block) offset() uint64    { return b.uintN(b.rd.OffsetSize()) }
func (b *block) length() uint64    { return b.uintN(b.rd.LengthSize()) }
func (b *block) skip(n int)        { b.rd.Skip(int64(n)) }
func (b *block) undefined() uint64 { return b.rd.Config().Undefined() }

func (b *block) bytes(n int) []byte {
	if b.err != nil {
		return make([]byte, n)
	}
	p, err := b.rd.ReadBytes(n)
	if err != nil {
		b.err = err
		return make([]byte, n)
	}
	return p
}

// entries decodes n chunk index elements. sizeWidth is the width of the
// chunk size field of filtered elements, or zero for unfiltered ones.
// Elements without an address are skipped.
func (b *block) entries(first, n uint64, sizeWidth int, offsetOf func(uint64) []uint64, out []btree.ChunkEntry) []btree.ChunkEntry {
	for i := first; i < first+n && b.err == nil; i++ {
		e := btree.ChunkEntry{Address: b.offset()}
		if sizeWidth > 0 {
			e.Size = uint32(b.uintN(sizeWidth))
			e.FilterMask = b.u32()
		}
		if e.Address == 0 || e.Address == b.undefined() {
			continue
		}
		e.Offset = offsetOf(i)
		out = append(out, e)
	}
	return out
}

// elementSizeWidth validates an index element size and returns the width
// of its chunk size field. Client 0 stores plain chunk addresses; client 1
// adds a size and a filter mask.
func elementSizeWidth(client uint8, elemSize, offsetSize int) (int, error) {
	switch client {
	case 0:
		if elemSize != offsetSize {
			return 0, fmt.Errorf("element size %d for unfiltered chunks", elemSize)
		}
		return 0, nil
	case 1:
		w := elemSize - offsetSize - 4
		if w < 1 || w > 8 {
			return 0, fmt.Errorf("element size %d for filtered chunks", elemSize)
		}
		return w, nil
	default:
		return 0, fmt.Errorf("client id %d not supported", client)
	}
}

// pageInit reports whether page i is marked initialized in bitmap.
func pageInit(bitmap []byte, i uint64) bool {
	return bitmap[i/8]&(1<<(i%8)) != 0
}

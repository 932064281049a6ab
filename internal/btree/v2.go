package btree

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// Version 2 B-tree record types for chunk indexes.
const (
	TypeChunk         uint8 = 10
	TypeChunkFiltered uint8 = 11
)

// v2Header is a BTHD block.
type v2Header struct {
	Type        uint8
	NodeSize    uint32
	RecordSize  uint16
	Depth       uint16
	Root        uint64
	RootRecords uint16
	Records     uint64
}

func (h *v2Header) filtered() bool { return h.Type == TypeChunkFiltered }

func readV2Header(r *binary.Reader, addr uint64) (*v2Header, error) {
	size := 4 + 1 + 1 + 4 + 2 + 2 + 1 + 1 + r.OffsetSize() + 2 + r.LengthSize()
	buf, err := r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return nil, err
	}
	if string(buf[:4]) != "BTHD" {
		return nil, fmt.Errorf("bad signature %q", buf[:4])
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported version %d", buf[4])
	}
	order := r.ByteOrder()
	if want, got := binary.Lookup3Checksum(buf[:size]), order.Uint32(buf[size:]); want != got {
		return nil, fmt.Errorf("header checksum %#x, want %#x", got, want)
	}

	br := binary.NewReader(bytes.NewReader(buf[5:size]), r.Config())
	h := &v2Header{}
	h.Type, _ = br.ReadUint8()
	h.NodeSize, _ = br.ReadUint32()
	h.RecordSize, _ = br.ReadUint16()
	h.Depth, _ = br.ReadUint16()
	br.Skip(2) // split and merge percentages
	h.Root, _ = br.ReadOffset()
	h.RootRecords, _ = br.ReadUint16()
	h.Records, _ = br.ReadLength()
	return h, nil
}

// encSize is the number of bytes used to store counts up to n.
func encSize(n uint64) int { return (max(bits.Len64(n), 1)-1)/8 + 1 }

// level describes the child pointers of internal nodes at one depth.
type level struct {
	maxRecords uint64 // records per node at this depth
	cumRecords uint64 // records in a full subtree rooted here
}

// levels computes node capacities from the leaves up, the same way the
// writing library sizes the child pointer fields.
func (h *v2Header) levels(offsetSize int) []level {
	const overhead = 4 + 1 + 1 + 4 // signature, version, type, checksum
	lv := make([]level, h.Depth+1)
	leaf := uint64(int(h.NodeSize)-overhead) / uint64(h.RecordSize)
	lv[0] = level{maxRecords: leaf, cumRecords: leaf}
	for d := 1; d <= int(h.Depth); d++ {
		ptr := uint64(h.pointerSize(lv, d, offsetSize))
		n := (uint64(int(h.NodeSize)-overhead) - ptr) / (uint64(h.RecordSize) + ptr)
		lv[d] = level{maxRecords: n, cumRecords: (n+1)*lv[d-1].cumRecords + n}
	}
	return lv
}

// pointerSize is the size of one child pointer in a node at depth d: the
// child address, its record count and, when the child is internal, the
// record count of its subtree.
func (h *v2Header) pointerSize(lv []level, d, offsetSize int) int {
	n := offsetSize + encSize(lv[d-1].maxRecords)
	if d > 1 {
		n += encSize(lv[d-1].cumRecords)
	}
	return n
}

// ReadChunkIndexV2 lists the chunks of a version 2 B-tree chunk index.
// Records store chunk coordinates in units of chunks; chunkDims scales them
// back to element offsets.
func ReadChunkIndexV2(r *binary.Reader, addr uint64, chunkDims []uint32) ([]ChunkEntry, error) {
	h, err := readV2Header(r, addr)
	if err != nil {
		return nil, fmt.Errorf("B-tree v2 at %#x: %w", addr, err)
	}
	if h.Type != TypeChunk && h.Type != TypeChunkFiltered {
		return nil, fmt.Errorf("B-tree v2 at %#x: record type %d is not a chunk index", addr, h.Type)
	}
	if h.Records == 0 {
		return nil, nil
	}

	t := &v2Tree{r: r, h: h, lv: h.levels(r.OffsetSize()), chunkDims: chunkDims}
	if h.filtered() {
		t.sizeLen = int(h.RecordSize) - r.OffsetSize() - 4 - 8*len(chunkDims)
		if t.sizeLen < 1 || t.sizeLen > 8 {
			return nil, fmt.Errorf("B-tree v2 at %#x: record size %d does not fit rank %d", addr, h.RecordSize, len(chunkDims))
		}
	}
	if err := t.node(h.Root, int(h.RootRecords), int(h.Depth)); err != nil {
		return nil, fmt.Errorf("B-tree v2 at %#x: %w", addr, err)
	}
	return t.entries, nil
}

type v2Tree struct {
	r         *binary.Reader
	h         *v2Header
	lv        []level
	chunkDims []uint32
	sizeLen   int
	entries   []ChunkEntry
}

// node reads a leaf (depth 0) or an internal node. Internal nodes hold
// records too, between the subtrees of their children.
func (t *v2Tree) node(addr uint64, n, depth int) error {
	if depth > maxDepth {
		return errTooDeep
	}
	sig := "BTLF"
	if depth > 0 {
		sig = "BTIN"
	}
	nr := t.r.At(int64(addr))
	head, err := nr.ReadBytes(6)
	if err != nil {
		return err
	}
	if string(head[:4]) != sig {
		return fmt.Errorf("node at %#x: signature %q, want %q", addr, head[:4], sig)
	}
	if head[4] != 0 {
		return fmt.Errorf("node at %#x: version %d", addr, head[4])
	}

	records := make([]ChunkEntry, n)
	for i := range records {
		if records[i], err = t.record(nr); err != nil {
			return fmt.Errorf("node at %#x: record %d: %w", addr, i, err)
		}
	}
	if depth == 0 {
		t.keep(records...)
		return nil
	}

	child := t.lv[depth-1]
	for i := 0; i <= n; i++ {
		caddr, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		cn, err := nr.ReadUintN(encSize(child.maxRecords))
		if err != nil {
			return err
		}
		if depth > 1 {
			nr.Skip(int64(encSize(child.cumRecords)))
		}
		if err := t.node(caddr, int(cn), depth-1); err != nil {
			return err
		}
		if i < n {
			t.keep(records[i])
		}
	}
	return nil
}

func (t *v2Tree) keep(records ...ChunkEntry) {
	for _, e := range records {
		if e.Address != 0 && !t.r.IsUndefinedOffset(e.Address) {
			t.entries = append(t.entries, e)
		}
	}
}

// record reads one chunk record. Type 10 holds the address and scaled
// offsets; type 11 adds the stored size and filter mask after the address.
func (t *v2Tree) record(nr *binary.Reader) (ChunkEntry, error) {
	var e ChunkEntry
	var err error
	if e.Address, err = nr.ReadOffset(); err != nil {
		return e, err
	}
	if t.h.filtered() {
		size, err := nr.ReadUintN(t.sizeLen)
		if err != nil {
			return e, err
		}
		e.Size = uint32(size)
		if e.FilterMask, err = nr.ReadUint32(); err != nil {
			return e, err
		}
	}
	e.Offset = make([]uint64, len(t.chunkDims))
	for i, n := range t.chunkDims {
		scaled, err := nr.ReadUint64()
		if err != nil {
			return e, err
		}
		e.Offset[i] = scaled * uint64(n)
	}
	return e, nil
}

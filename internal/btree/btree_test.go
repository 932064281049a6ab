package btree

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/heap"
)

const undef = ^uint64(0)

// image assembles a little-endian file with 8-byte offsets and lengths.
type image struct{ b []byte }

func (m *image) at(off int) *image {
	if len(m.b) < off {
		m.b = append(m.b, make([]byte, off-len(m.b))...)
	}
	return m
}

func (m *image) raw(p ...byte) *image { m.b = append(m.b, p...); return m }
func (m *image) str(s string) *image  { return m.raw([]byte(s)...) }
func (m *image) u16(v uint16) *image  { m.b = binary.LittleEndian.AppendUint16(m.b, v); return m }
func (m *image) u32(v uint32) *image  { m.b = binary.LittleEndian.AppendUint32(m.b, v); return m }
func (m *image) u64(vs ...uint64) *image {
	for _, v := range vs {
		m.b = binary.LittleEndian.AppendUint64(m.b, v)
	}
	return m
}

// sum appends the lookup3 checksum of the bytes from start.
func (m *image) sum(start int) *image { return m.u32(binpkg.Lookup3Checksum(m.b[start:])) }

func (m *image) reader() *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(m.b), binpkg.DefaultConfig())
}

// v1Node writes a version 1 node header.
func (m *image) v1Node(nodeType, level uint8, used uint16) *image {
	return m.str("TREE").raw(nodeType, level).u16(used).u64(undef, undef)
}

func TestReadChunkIndexLeaf(t *testing.T) {
	m := &image{}
	m.v1Node(nodeChunk, 0, 3)
	m.u32(400).u32(0).u64(0, 0, 0).u64(1000)
	m.u32(300).u32(1).u64(0, 10, 0).u64(2000)
	m.u32(300).u32(0).u64(10, 0, 0).u64(undef)
	m.u32(0).u32(0).u64(20, 20, 0)

	entries, err := ReadChunkIndex(m.reader(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []ChunkEntry{
		{Offset: []uint64{0, 0}, Size: 400, Address: 1000},
		{Offset: []uint64{0, 10}, Size: 300, FilterMask: 1, Address: 2000},
	}, entries)
}

func TestReadChunkIndexTwoLevels(t *testing.T) {
	m := &image{}
	m.v1Node(nodeChunk, 1, 2)
	m.u32(0).u32(0).u64(0, 0).u64(256)
	m.u32(0).u32(0).u64(4, 0).u64(512)
	m.u32(0).u32(0).u64(8, 0)

	m.at(256).v1Node(nodeChunk, 0, 1)
	m.u32(16).u32(0).u64(0, 0).u64(0x1000)
	m.u32(0).u32(0).u64(4, 0)

	m.at(512).v1Node(nodeChunk, 0, 1)
	m.u32(16).u32(0).u64(4, 0).u64(0x2000)
	m.u32(0).u32(0).u64(8, 0)

	entries, err := ReadChunkIndex(m.reader(), 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(0x1000), entries[0].Address)
	assert.Equal(t, []uint64{4}, entries[1].Offset)
}

func TestReadChunkIndexErrors(t *testing.T) {
	t.Run("signature", func(t *testing.T) {
		m := (&image{}).str("XXXX").at(64)
		_, err := ReadChunkIndex(m.reader(), 0, 2)
		assert.ErrorContains(t, err, "bad signature")
	})

	t.Run("group node", func(t *testing.T) {
		m := (&image{}).v1Node(nodeGroup, 0, 0)
		_, err := ReadChunkIndex(m.reader(), 0, 2)
		assert.ErrorContains(t, err, "type 0")
	})

	t.Run("cycle", func(t *testing.T) {
		m := (&image{}).v1Node(nodeChunk, 1, 1)
		m.u32(0).u32(0).u64(0, 0).u64(0)
		m.u32(0).u32(0).u64(0, 0)
		_, err := ReadChunkIndex(m.reader(), 0, 1)
		assert.ErrorIs(t, err, errTooDeep)
	})

	t.Run("truncated", func(t *testing.T) {
		m := (&image{}).v1Node(nodeChunk, 0, 1)
		_, err := ReadChunkIndex(m.reader(), 0, 2)
		assert.Error(t, err)
	})
}

func TestReadGroupEntries(t *testing.T) {
	m := &image{}
	m.str("HEAP").raw(0, 0, 0, 0).u64(32, undef, 64)
	m.at(64).str("\x00entry\x00alias\x00/entry\x00").at(96)

	m.at(128).v1Node(nodeGroup, 0, 1).u64(0, 256).u64(6)

	m.at(256).str("SNOD").raw(1, 0).u16(3)
	m.u64(1, 0x800).u32(1).u32(0).u64(0x40, 0x60)
	m.u64(7, 0).u32(cacheSoft).u32(0).u32(13).u32(0).u64(0)
	m.u64(0, 0).u32(0).u32(0).u64(0, 0) // unused slot

	r := m.reader()
	names, err := heap.ReadLocalHeap(r, 0)
	require.NoError(t, err)

	entries, err := ReadGroupEntries(r, 128, names)
	require.NoError(t, err)
	assert.Equal(t, []GroupEntry{
		{Name: "entry", ObjectAddress: 0x800},
		{Name: "alias", Soft: true, SoftLinkValue: "/entry"},
	}, entries)
}

func TestReadGroupEntriesBadNode(t *testing.T) {
	m := &image{}
	m.str("HEAP").raw(0, 0, 0, 0).u64(8, undef, 64)
	m.at(64).u64(0)
	m.at(128).v1Node(nodeGroup, 0, 1).u64(0, 256).u64(0)
	m.at(256).str("NOPE").at(300)

	r := m.reader()
	names, err := heap.ReadLocalHeap(r, 0)
	require.NoError(t, err)
	_, err = ReadGroupEntries(r, 128, names)
	assert.ErrorContains(t, err, "symbol node")
}

// v2Header writes a BTHD block at offset 0.
func (m *image) v2Header(typ uint8, recordSize, depth uint16, root uint64, rootRecords uint16, total uint64) *image {
	m.str("BTHD").raw(0, typ).u32(512).u16(recordSize).u16(depth).raw(100, 40)
	m.u64(root).u16(rootRecords).u64(total)
	return m.sum(0)
}

func TestReadChunkIndexV2Leaf(t *testing.T) {
	m := (&image{}).v2Header(TypeChunk, 24, 0, 128, 2, 2)
	m.at(128).str("BTLF").raw(0, TypeChunk)
	m.u64(0x1000, 0, 0)
	m.u64(0x2000, 1, 2)

	entries, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10, 10})
	require.NoError(t, err)
	assert.Equal(t, []ChunkEntry{
		{Offset: []uint64{0, 0}, Address: 0x1000},
		{Offset: []uint64{10, 20}, Address: 0x2000},
	}, entries)
}

func TestReadChunkIndexV2Filtered(t *testing.T) {
	m := (&image{}).v2Header(TypeChunkFiltered, 8+2+4+16, 0, 128, 1, 1)
	m.at(128).str("BTLF").raw(0, TypeChunkFiltered)
	m.u64(0x1000).u16(777).u32(2).u64(3, 1)

	entries, err := ReadChunkIndexV2(m.reader(), 0, []uint32{4, 8})
	require.NoError(t, err)
	assert.Equal(t, []ChunkEntry{{Offset: []uint64{12, 8}, Size: 777, FilterMask: 2, Address: 0x1000}}, entries)
}

func TestReadChunkIndexV2Internal(t *testing.T) {
	m := (&image{}).v2Header(TypeChunk, 16, 1, 128, 1, 3)
	m.at(128).str("BTIN").raw(0, TypeChunk)
	m.u64(0x3000, 1)
	m.u64(256).raw(1)
	m.u64(384).raw(1)

	m.at(256).str("BTLF").raw(0, TypeChunk).u64(0x1000, 0)
	m.at(384).str("BTLF").raw(0, TypeChunk).u64(0x5000, 2)

	entries, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, want := range []uint64{0x1000, 0x3000, 0x5000} {
		assert.Equal(t, want, entries[i].Address)
		assert.Equal(t, []uint64{uint64(10 * i)}, entries[i].Offset)
	}
}

func TestReadChunkIndexV2Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		m := (&image{}).v2Header(TypeChunk, 16, 0, undef, 0, 0)
		entries, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("checksum", func(t *testing.T) {
		m := (&image{}).v2Header(TypeChunk, 16, 0, 128, 1, 1)
		m.b[8] ^= 0xFF
		_, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10})
		assert.ErrorContains(t, err, "checksum")
	})

	t.Run("record type", func(t *testing.T) {
		m := (&image{}).v2Header(5, 16, 0, 128, 1, 1)
		_, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10})
		assert.ErrorContains(t, err, "not a chunk index")
	})

	t.Run("leaf signature", func(t *testing.T) {
		m := (&image{}).v2Header(TypeChunk, 16, 0, 128, 1, 1)
		m.at(128).str("BTIN").raw(0, TypeChunk).u64(0x1000, 0)
		_, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10})
		assert.ErrorContains(t, err, "signature")
	})

	t.Run("filtered record size", func(t *testing.T) {
		m := (&image{}).v2Header(TypeChunkFiltered, 16, 0, 128, 1, 1)
		_, err := ReadChunkIndexV2(m.reader(), 0, []uint32{10})
		assert.ErrorContains(t, err, "does not fit")
	})
}

func TestEncSize(t *testing.T) {
	for n, want := range map[uint64]int{0: 1, 1: 1, 255: 1, 256: 2, 65535: 2, 65536: 3} {
		assert.Equal(t, want, encSize(n), "n=%d", n)
	}
}

package superblock

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
)

func written(t *testing.T, sb *Superblock, at int64) []byte {
	t.Helper()
	buf := binpkg.NewBuffer(0)
	n, err := sb.Write(binpkg.NewWriter(buf, sb.Config()).At(at))
	require.NoError(t, err)
	assert.Equal(t, sb.Size(), n)
	return buf.Bytes()
}

func TestWriteReadRoundTrip(t *testing.T) {
	sb := New(binpkg.DefaultConfig())
	sb.RootGroupAddress = 48
	sb.EOFAddress = 4096

	got, err := Read(bytes.NewReader(written(t, sb, 0)))
	require.NoError(t, err)
	assert.Equal(t, uint8(3), got.Version)
	assert.Equal(t, uint64(48), got.RootGroupAddress)
	assert.Equal(t, uint64(4096), got.EOFAddress)
	assert.Equal(t, ^uint64(0), got.ExtensionAddress)
	assert.Equal(t, binpkg.DefaultConfig(), got.Config())
}

func TestReadAfterUserBlock(t *testing.T) {
	sb := New(binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 4})
	sb.RootGroupAddress = 600
	data := written(t, sb, 512)

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(512), got.FileOffset)
	assert.Equal(t, uint8(4), got.OffsetSize)
	assert.Equal(t, uint64(600), got.RootGroupAddress)
	assert.Equal(t, 12+16+4, got.Size())
}

func TestReadErrors(t *testing.T) {
	_, err := Read(bytes.NewReader(make([]byte, 4096)))
	assert.ErrorIs(t, err, ErrNotHDF5)

	_, err = Read(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrNotHDF5)

	bad := make([]byte, 64)
	copy(bad, Signature)
	bad[8] = 9
	_, err = Read(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	bad[8], bad[9], bad[10] = 2, 3, 8
	_, err = Read(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidSuperblock)

	sb := New(binpkg.DefaultConfig())
	data := written(t, sb, 0)
	data[20] ^= 0xff
	_, err = Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidSuperblock)

	sb.Version = 1
	_, err = sb.Write(binpkg.NewWriter(binpkg.NewBuffer(0), sb.Config()))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestUpdateRewritesChecksum(t *testing.T) {
	sb := New(binpkg.DefaultConfig())
	sb.RootGroupAddress = 48
	buf := binpkg.NewBuffer(0)
	w := binpkg.NewWriter(buf, sb.Config())
	_, err := sb.Write(w)
	require.NoError(t, err)

	sb.EOFAddress = 9000
	require.NoError(t, sb.Update(w))
	got, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), got.EOFAddress)
}

// v0Superblock lays out a version 0 superblock with a cached root symbol
// table: root header at 96, B-tree at 136, local heap at 680.
func v0Superblock(version uint8) []byte {
	buf := make([]byte, 256)
	copy(buf, Signature)
	buf[8] = version
	buf[13], buf[14] = 8, 8
	base := int(addressBase(version))
	le := binary.LittleEndian
	le.PutUint64(buf[base+16:], 1024)
	le.PutUint64(buf[base+40:], 96)
	le.PutUint32(buf[base+48:], 1)
	le.PutUint64(buf[base+56:], 136)
	le.PutUint64(buf[base+64:], 680)
	return buf
}

func TestVersion0And1(t *testing.T) {
	for _, version := range []uint8{0, 1} {
		buf := v0Superblock(version)
		sb, err := Read(bytes.NewReader(buf))
		require.NoError(t, err)
		assert.Equal(t, version, sb.Version)
		assert.Equal(t, uint64(1024), sb.EOFAddress)
		assert.Equal(t, uint64(96), sb.RootGroupAddress)
		assert.Equal(t, uint64(136), sb.RootGroupBTreeAddress)
		assert.Equal(t, uint64(680), sb.RootGroupLocalHeapAddress)

		out := binpkg.NewBuffer(0)
		_, err = out.WriteAt(buf, 0)
		require.NoError(t, err)
		w := binpkg.NewWriter(out, sb.Config())

		sb.EOFAddress = 4096
		require.NoError(t, sb.Update(w))
		require.NoError(t, sb.ClearRootCache(w))
		assert.Zero(t, sb.RootGroupBTreeAddress)

		got, err := Read(bytes.NewReader(out.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, uint64(4096), got.EOFAddress)
		assert.Equal(t, uint64(96), got.RootGroupAddress)
		assert.Zero(t, got.RootGroupBTreeAddress, "cache type cleared")
		assert.Len(t, out.Bytes(), len(buf), "patched in place")
	}
}

package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/btree"
	"github.com/robert-malhotra/go-nexus/internal/filter"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// memFile is a growable in-memory file.
type memFile struct {
	buf []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("read of %d bytes past end at %d", len(p), off)
	}
	return copy(p, m.buf[off:]), nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}

func (m *memFile) alloc(size uint64) (uint64, error) {
	addr := uint64(len(m.buf))
	m.buf = append(m.buf, make([]byte, size)...)
	return addr, nil
}

func (m *memFile) reader() *binary.Reader { return binary.NewReader(m, binary.DefaultConfig()) }

// block writes the fields produced by fill at addr, followed by their
// checksum.
func (m *memFile) block(addr uint64, fill func(w *binary.Writer)) {
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, binary.DefaultConfig())
	fill(w)
	w.WriteUint32(binary.Lookup3Checksum(buf.Bytes()))
	m.WriteAt(buf.Bytes(), int64(addr))
}

func int32Bytes(vals ...int32) []byte {
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, binary.DefaultConfig())
	for _, v := range vals {
		w.WriteUint32(uint32(v))
	}
	return buf.Bytes()
}

var int32Type = message.NewFixedPointDatatype(4, true, message.OrderLE)

func newChunkedDataset(t *testing.T, f *memFile, space *message.Dataspace, chunk []uint32, fp *message.FilterPipeline) (*Chunked, *ChunkWriter) {
	t.Helper()
	f.buf = make([]byte, 64)
	lay := message.NewChunkedLayout(chunk, 4, message.ChunkIndexFixedArray)
	lay.ChunkIndexAddr = message.UndefinedAddress

	c, err := NewChunked(lay, space, int32Type, fp, f.reader())
	require.NoError(t, err)
	pipeline, err := filter.NewPipeline(fp)
	require.NoError(t, err)
	return c, NewChunkWriter(binary.NewWriter(f, binary.DefaultConfig()), pipeline, f.alloc)
}

func TestChunkCacheWriteFlushRead(t *testing.T) {
	pipelines := map[string]*message.FilterPipeline{
		"plain": nil,
		"deflate": message.NewFilterPipeline(
			message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{4}},
			message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{6}},
		),
		"zstd": message.NewFilterPipeline(message.FilterInfo{ID: message.FilterZstd}),
		"lz4":  message.NewFilterPipeline(message.FilterInfo{ID: message.FilterLZ4}),
	}

	for name, fp := range pipelines {
		t.Run(name, func(t *testing.T) {
			f := &memFile{}
			space := message.NewDataspace([]uint64{5, 3}, nil)
			c, cw := newChunkedDataset(t, f, space, []uint32{2, 2}, fp)

			cc, err := NewChunkCache(c)
			require.NoError(t, err)
			assert.Equal(t, uint64(6), cc.NumChunks())

			var all []int32
			for i := int32(0); i < 15; i++ {
				all = append(all, i*10)
			}
			require.NoError(t, cc.WriteSelection(All([]uint64{5, 3}), int32Bytes(all...)))
			assert.True(t, cc.Dirty())

			updated, err := cc.Flush(cw)
			require.NoError(t, err)
			require.NotNil(t, updated)
			assert.False(t, cc.Dirty())
			assert.Equal(t, message.ChunkIndexFixedArray, updated.ChunkIndexType)

			fresh, err := NewChunked(updated, space, int32Type, fp, f.reader())
			require.NoError(t, err)
			rc, err := NewChunkCache(fresh)
			require.NoError(t, err)
			got, err := rc.ReadSelection(All([]uint64{5, 3}))
			require.NoError(t, err)
			assert.Equal(t, int32Bytes(all...), got)

			part, err := rc.ReadSelection(Hyperslab{Start: []uint64{3, 1}, Count: []uint64{2, 2}})
			require.NoError(t, err)
			assert.Equal(t, int32Bytes(100, 110, 130, 140), part)
		})
	}
}

func TestChunkCachePartialUpdateKeepsOtherChunks(t *testing.T) {
	f := &memFile{}
	c, cw := newChunkedDataset(t, f, message.NewDataspace([]uint64{6}, nil), []uint32{2}, nil)

	cc, err := NewChunkCache(c)
	require.NoError(t, err)
	require.NoError(t, cc.WriteSelection(All([]uint64{6}), int32Bytes(1, 2, 3, 4, 5, 6)))
	_, err = cc.Flush(cw)
	require.NoError(t, err)

	cc, err = NewChunkCache(c)
	require.NoError(t, err)
	sel := Hyperslab{Start: []uint64{1}, Count: []uint64{3}, Stride: []uint64{2}}
	require.NoError(t, cc.WriteSelection(sel, int32Bytes(-2, -4, -6)))
	_, err = cc.Flush(cw)
	require.NoError(t, err)

	cc, err = NewChunkCache(c)
	require.NoError(t, err)
	got, err := cc.ReadSelection(All([]uint64{6}))
	require.NoError(t, err)
	assert.Equal(t, int32Bytes(1, -2, 3, -4, 5, -6), got)
}

func TestChunkCacheUnwrittenReadsZero(t *testing.T) {
	f := &memFile{}
	c, _ := newChunkedDataset(t, f, message.NewDataspace([]uint64{4}, nil), []uint32{2}, nil)
	cc, err := NewChunkCache(c)
	require.NoError(t, err)

	got, err := cc.ReadSelection(All([]uint64{4}))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), got)
	assert.False(t, cc.Dirty())

	_, err = cc.ReadSelection(Hyperslab{Start: []uint64{3}, Count: []uint64{2}})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Error(t, cc.WriteSelection(All([]uint64{4}), int32Bytes(1)))
}

func TestChunkCacheResize(t *testing.T) {
	f := &memFile{}
	c, cw := newChunkedDataset(t, f, message.NewDataspace([]uint64{3}, nil), []uint32{2}, nil)

	cc, err := NewChunkCache(c)
	require.NoError(t, err)
	require.NoError(t, cc.WriteSelection(All([]uint64{3}), int32Bytes(1, 2, 3)))
	_, err = cc.Flush(cw)
	require.NoError(t, err)

	require.NoError(t, cc.Resize([]uint64{5}))
	assert.True(t, cc.Dirty())
	assert.Equal(t, uint64(3), cc.NumChunks())
	require.NoError(t, cc.WriteSelection(Hyperslab{Start: []uint64{3}, Count: []uint64{2}}, int32Bytes(4, 5)))
	_, err = cc.Flush(cw)
	require.NoError(t, err)

	cc, err = NewChunkCache(c)
	require.NoError(t, err)
	got, err := cc.ReadSelection(All([]uint64{5}))
	require.NoError(t, err)
	assert.Equal(t, int32Bytes(1, 2, 3, 4, 5), got)

	require.NoError(t, cc.Resize([]uint64{1}))
	assert.Equal(t, uint64(1), cc.NumChunks())
	assert.Error(t, cc.Resize([]uint64{5, 1}))
}

func TestChunkCacheBoundedMaxDims(t *testing.T) {
	// Bounded maximum extents size the fixed array grid.
	f := &memFile{}
	space := message.NewDataspace([]uint64{3}, []uint64{7})
	c, cw := newChunkedDataset(t, f, space, []uint32{2}, nil)

	cc, err := NewChunkCache(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), cc.NumChunks())
	require.NoError(t, cc.WriteSelection(All([]uint64{3}), int32Bytes(7, 8, 9)))
	_, err = cc.Flush(cw)
	require.NoError(t, err)

	require.NoError(t, cc.Resize([]uint64{7}))
	assert.Equal(t, uint64(4), cc.NumChunks())
	got, err := cc.ReadSelection(All([]uint64{7}))
	require.NoError(t, err)
	assert.Equal(t, int32Bytes(7, 8, 9, 0, 0, 0, 0), got)
}

func TestImplicitAndSingleChunkIndexes(t *testing.T) {
	f := &memFile{buf: make([]byte, 64)}
	f.WriteAt(int32Bytes(1, 2, 3, 4), 64)
	space := message.NewDataspace([]uint64{2, 2}, nil)

	implicit := message.NewChunkedLayout([]uint32{1, 2}, 4, message.ChunkIndexImplicit)
	implicit.ChunkIndexAddr = 64
	single := message.NewChunkedLayout([]uint32{2, 2}, 4, message.ChunkIndexSingleChunk)
	single.ChunkIndexAddr = 64

	for _, lay := range []*message.DataLayout{implicit, single} {
		c, err := NewChunked(lay, space, int32Type, nil, f.reader())
		require.NoError(t, err)
		cc, err := NewChunkCache(c)
		require.NoError(t, err)
		got, err := cc.ReadSelection(All([]uint64{2, 2}))
		require.NoError(t, err)
		assert.Equal(t, int32Bytes(1, 2, 3, 4), got)
	}

	_, err := NewChunked(message.NewContiguousLayout(0, 0), space, int32Type, nil, f.reader())
	assert.Error(t, err)
}

func TestIndexBeforeVersion4IsBTree(t *testing.T) {
	lay := message.NewChunkedLayout([]uint32{2}, 4, message.ChunkIndexFixedArray)
	c, err := NewChunked(lay, message.NewDataspace([]uint64{4}, nil), int32Type, nil, (&memFile{}).reader())
	require.NoError(t, err)
	assert.Equal(t, message.ChunkIndexFixedArray, c.IndexType())
	lay.Version = 3
	assert.Equal(t, message.ChunkIndexBTreeV1, c.IndexType())
}

func TestFixedArrayPaged(t *testing.T) {
	f := &memFile{}
	undef := binary.DefaultConfig().Undefined()
	f.block(100, func(w *binary.Writer) {
		w.WriteBytes([]byte("FAHD"))
		w.WriteUint8(0)
		w.WriteUint8(0)
		w.WriteUint8(8)
		w.WriteUint8(1) // two entries per page
		w.WriteLength(5)
		w.WriteOffset(200)
	})
	f.block(200, func(w *binary.Writer) {
		w.WriteBytes([]byte("FADB"))
		w.WriteUint8(0)
		w.WriteUint8(0)
		w.WriteOffset(100)
		w.WriteUint8(0b101)
	})
	f.block(219, func(w *binary.Writer) {
		w.WriteOffset(1000)
		w.WriteOffset(undef)
	})
	f.block(259, func(w *binary.Writer) { w.WriteOffset(3000) })

	entries, err := readFixedArray(f.reader(), 100, func(i uint64) []uint64 { return []uint64{i} })
	require.NoError(t, err)
	assert.Equal(t, []btree.ChunkEntry{
		{Offset: []uint64{0}, Address: 1000},
		{Offset: []uint64{4}, Address: 3000},
	}, entries)

	f.buf[105] = 2
	_, err = readFixedArray(f.reader(), 100, nil)
	assert.ErrorContains(t, err, "checksum")
}

func TestFixedArrayFilteredRoundTrip(t *testing.T) {
	f := &memFile{buf: make([]byte, 64)}
	pipeline, err := filter.NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{1}}))
	require.NoError(t, err)
	cw := NewChunkWriter(binary.NewWriter(f, binary.DefaultConfig()), pipeline, f.alloc)

	in := []btree.ChunkEntry{
		{Address: 4096, Size: 300, FilterMask: 0b10},
		{},
		{Address: 8192, Size: 17},
	}
	addr, pageBits, err := cw.WriteFixedArrayIndex(in, 400)
	require.NoError(t, err)
	assert.Equal(t, uint8(minPageBits), pageBits)

	entries, err := readFixedArray(f.reader(), addr, func(i uint64) []uint64 { return []uint64{2 * i} })
	require.NoError(t, err)
	assert.Equal(t, []btree.ChunkEntry{
		{Offset: []uint64{0}, Address: 4096, Size: 300, FilterMask: 0b10},
		{Offset: []uint64{4}, Address: 8192, Size: 17},
	}, entries)

	_, _, err = cw.WriteFixedArrayIndex(nil, 400)
	assert.Error(t, err)
}

func TestFixedArraySizes(t *testing.T) {
	assert.Equal(t, uint8(10), fixedArrayPageBits(1))
	assert.Equal(t, uint8(10), fixedArrayPageBits(1024))
	assert.Equal(t, uint8(11), fixedArrayPageBits(1025))
	assert.Equal(t, 2, chunkSizeWidth(200))
	assert.Equal(t, 4, chunkSizeWidth(1<<16))
	assert.Equal(t, 8, chunkSizeWidth(1<<62))
}

func TestExtensibleArray(t *testing.T) {
	f := &memFile{}
	undef := binary.DefaultConfig().Undefined()
	header := func(w *binary.Writer, sig string) {
		w.WriteBytes([]byte(sig))
		w.WriteUint8(0)
		w.WriteUint8(0)
		w.WriteOffset(100)
	}

	f.block(100, func(w *binary.Writer) {
		w.WriteBytes([]byte("EAHD"))
		w.WriteUint8(0)
		w.WriteUint8(0)
		for _, v := range []uint8{8, 10, 2, 2, 2, 10} {
			w.WriteUint8(v)
		}
		for _, v := range []uint64{0, 0, 0, 0, 9, 9} {
			w.WriteLength(v)
		}
		w.WriteOffset(200)
	})
	f.block(200, func(w *binary.Writer) {
		w.WriteBytes([]byte("EAIB"))
		w.WriteUint8(0)
		w.WriteUint8(0)
		w.WriteOffset(100)
		for _, a := range []uint64{1000, undef, 300, undef, 400} {
			w.WriteOffset(a)
		}
		for range 7 {
			w.WriteOffset(undef)
		}
	})
	f.block(300, func(w *binary.Writer) {
		header(w, "EADB")
		w.WriteUint16(2)
		w.WriteOffset(1020)
		w.WriteOffset(1030)
	})
	f.block(400, func(w *binary.Writer) {
		header(w, "EASB")
		w.WriteUint16(8)
		w.WriteOffset(500)
		w.WriteOffset(undef)
	})
	f.block(500, func(w *binary.Writer) {
		header(w, "EADB")
		w.WriteUint16(8)
		w.WriteOffset(1080)
		for range 3 {
			w.WriteOffset(undef)
		}
	})

	entries, err := readExtensibleArray(f.reader(), 100, func(i uint64) []uint64 { return []uint64{i} })
	require.NoError(t, err)
	var got []uint64
	for _, e := range entries {
		got = append(got, e.Offset[0], e.Address)
	}
	assert.Equal(t, []uint64{0, 1000, 2, 1020, 3, 1030, 8, 1080}, got)

	f.buf[100] = 'X'
	_, err = readExtensibleArray(f.reader(), 100, nil)
	assert.Error(t, err)
}

func TestChunkGrids(t *testing.T) {
	space := message.NewDataspace([]uint64{3, 4}, []uint64{4, unlimited})
	lay := message.NewChunkedLayout([]uint32{2, 2}, 4, message.ChunkIndexExtensibleArray)
	c, err := NewChunked(lay, space, int32Type, nil, (&memFile{}).reader())
	require.NoError(t, err)

	chunkDims := []uint32{2, 2}
	assert.Equal(t, []uint64{2, 2}, c.indexGrid(space.Dimensions, chunkDims))

	offsetOf := c.swizzledOffset(space.Dimensions, chunkDims)
	assert.Equal(t, []uint64{0, 0}, offsetOf(0))
	assert.Equal(t, []uint64{2, 0}, offsetOf(1))
	assert.Equal(t, []uint64{0, 2}, offsetOf(2))
	assert.Equal(t, []uint64{2, 6}, offsetOf(7))

	assert.Equal(t, []uint64{2, 1, 1}, rowMajorOffset(7, []uint64{3, 2, 2}, []uint32{2, 1, 1}))
}

func TestContiguousSelection(t *testing.T) {
	f := &memFile{buf: make([]byte, 128)}
	w := binary.NewWriter(f, binary.DefaultConfig())
	space := message.NewDataspace([]uint64{2, 3}, nil)
	c := NewContiguous(message.NewContiguousLayout(64, 24), space, int32Type, f.reader())

	require.NoError(t, c.WriteSelection(w, All([]uint64{2, 3}), int32Bytes(1, 2, 3, 4, 5, 6)))
	require.NoError(t, c.WriteSelection(w, Hyperslab{Start: []uint64{0, 0}, Count: []uint64{2, 2}, Stride: []uint64{1, 2}}, int32Bytes(10, 30, 40, 60)))

	got, err := c.ReadSelection(All([]uint64{2, 3}))
	require.NoError(t, err)
	assert.Equal(t, int32Bytes(10, 2, 30, 40, 5, 60), got)

	col, err := c.ReadSelection(Hyperslab{Start: []uint64{0, 1}, Count: []uint64{2, 1}})
	require.NoError(t, err)
	assert.Equal(t, int32Bytes(2, 5), col)

	assert.Error(t, c.WriteSelection(w, All([]uint64{2, 3}), int32Bytes(1)))
	_, err = c.ReadSelection(Hyperslab{Start: []uint64{2, 0}, Count: []uint64{1, 1}})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestContiguousUnallocated(t *testing.T) {
	f := &memFile{}
	space := message.NewDataspace([]uint64{3}, nil)
	c := NewContiguous(message.NewContiguousLayout(message.UndefinedAddress, 0), space, int32Type, f.reader())

	got, err := c.ReadSelection(All([]uint64{3}))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 12), got)
	assert.Error(t, c.WriteSelection(binary.NewWriter(f, binary.DefaultConfig()), All([]uint64{3}), int32Bytes(1, 2, 3)))
}

func TestCompactSelection(t *testing.T) {
	space := message.NewDataspace([]uint64{4}, nil)
	c := NewCompact(message.NewCompactLayout(nil), space, int32Type)

	require.NoError(t, c.WriteSelection(Hyperslab{Start: []uint64{2}, Count: []uint64{2}}, int32Bytes(7, 8)))
	assert.Equal(t, int32Bytes(0, 0, 7, 8), c.Data())

	got, err := c.ReadSelection(Hyperslab{Start: []uint64{1}, Count: []uint64{2}})
	require.NoError(t, err)
	assert.Equal(t, int32Bytes(0, 7), got)

	short := NewCompact(message.NewCompactLayout([]byte{1, 2}), space, int32Type)
	_, err = short.ReadSelection(All([]uint64{4}))
	assert.Error(t, err)
}

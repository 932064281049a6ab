package message

import (
	"bytes"
	"encoding/binary"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
)

var small = binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 4}

func roundTrip[T Serializable](t *testing.T, cfg binpkg.Config, m T, parse func(*dec) (T, error)) T {
	t.Helper()
	buf := binpkg.NewBuffer(0)
	w := binpkg.NewWriter(buf, cfg)
	require.NoError(t, m.Serialize(w))
	data := buf.Bytes()
	assert.Len(t, data, m.SerializedSize(w))

	d := &dec{buf: data, cfg: cfg}
	got, err := parse(d)
	require.NoError(t, err)
	assert.Zero(t, d.remaining(), "trailing bytes")
	return got
}

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func u64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func TestDataspace(t *testing.T) {
	t.Run("v1", func(t *testing.T) {
		data := slices.Concat([]byte{1, 2, 1, 0, 0, 0, 0, 0}, u64(3), u64(4), u64(10), u64(^uint64(0)))
		msg, err := Parse(TypeDataspace, data, 0, nil)
		require.NoError(t, err)
		ds := msg.(*Dataspace)
		assert.Equal(t, DataspaceSimple, ds.SpaceType)
		assert.Equal(t, []uint64{3, 4}, ds.Dimensions)
		assert.Equal(t, []uint64{10, ^uint64(0)}, ds.MaxDims)
		assert.Equal(t, uint64(12), ds.NumElements())
	})

	t.Run("v1 scalar", func(t *testing.T) {
		msg, err := Parse(TypeDataspace, []byte{1, 0, 0, 0, 0, 0, 0, 0}, 0, nil)
		require.NoError(t, err)
		assert.True(t, msg.(*Dataspace).IsScalar())
		assert.Equal(t, uint64(1), msg.(*Dataspace).NumElements())
	})

	t.Run("round trip", func(t *testing.T) {
		ds := NewDataspace([]uint64{5, 7}, []uint64{5, 100})
		assert.Equal(t, ds, roundTrip(t, small, ds, parseDataspace))

		scalar := NewScalarDataspace()
		assert.Equal(t, scalar, roundTrip(t, small, scalar, parseDataspace))
	})

	t.Run("bad version", func(t *testing.T) {
		_, err := Parse(TypeDataspace, []byte{7, 0, 0, 0}, 0, nil)
		assert.ErrorContains(t, err, "unsupported dataspace version 7")
	})
}

func TestDatatypeFixedPoint(t *testing.T) {
	data := []byte{0x10, 0x08, 0, 0, 4, 0, 0, 0, 0, 0, 32, 0}
	msg, err := Parse(TypeDatatype, data, 0, nil)
	require.NoError(t, err)
	dt := msg.(*Datatype)
	assert.Equal(t, ClassFixedPoint, dt.Class)
	assert.True(t, dt.IsInteger())
	assert.True(t, dt.Signed)
	assert.Equal(t, OrderLE, dt.ByteOrder)
	assert.Equal(t, uint32(4), dt.Size)
	assert.Equal(t, uint16(32), dt.BitPrecision)

	be := NewFixedPointDatatype(2, false, OrderBE)
	got := roundTrip(t, small, be, parseDatatype)
	assert.Equal(t, OrderBE, got.ByteOrder)
	assert.False(t, got.Signed)
	assert.Equal(t, uint16(16), got.BitPrecision)
}

func TestDatatypeFloat(t *testing.T) {
	for _, size := range []uint32{4, 8} {
		dt := NewFloatDatatype(size, OrderLE)
		got := roundTrip(t, small, dt, parseDatatype)
		assert.Equal(t, ClassFloatPoint, got.Class)
		assert.Equal(t, size, got.Size)
		assert.Equal(t, dt.ClassBits, got.ClassBits)
		assert.Equal(t, dt.Properties, got.Properties)
		assert.False(t, got.IsInteger())
	}
}

func TestDatatypeVarLenString(t *testing.T) {
	dt := NewVarLenStringDatatype(CharsetUTF8)
	got := roundTrip(t, small, dt, parseDatatype)
	assert.Equal(t, ClassVarLen, got.Class)
	assert.True(t, got.IsVarLenString)
	assert.Equal(t, CharsetUTF8, got.CharSet)
	require.NotNil(t, got.VarLenType)
	assert.Equal(t, ClassString, got.VarLenType.Class)
	assert.Equal(t, CharsetUTF8, got.VarLenType.CharSet)
}

func TestDatatypeEnum(t *testing.T) {
	base := []byte{0x10, 0, 0, 0, 1, 0, 0, 0, 0, 0, 8, 0}
	data := slices.Concat(
		[]byte{0x18, 2, 0, 0, 1, 0, 0, 0},
		base,
		[]byte("LOW\x00\x00\x00\x00\x00HIGH\x00\x00\x00\x00"),
		[]byte{0, 1},
	)
	d := newDec(data, nil)
	dt, err := parseDatatype(d)
	require.NoError(t, err)
	assert.Zero(t, d.remaining())
	assert.Equal(t, ClassEnum, dt.Class)
	require.NotNil(t, dt.BaseType)
	assert.Equal(t, uint32(1), dt.BaseType.Size)

	assert.Error(t, dt.Serialize(binpkg.NewWriter(binpkg.NewBuffer(0), small)))
}

func TestDatatypeOpaqueKeepsProperties(t *testing.T) {
	data := []byte{0x15, 0, 0, 0, 4, 0, 0, 0, 't', 'a', 'g', 0, 0, 0, 0, 0}
	msg, err := Parse(TypeDatatype, data, 0, nil)
	require.NoError(t, err)
	dt := msg.(*Datatype)
	assert.Equal(t, ClassOpaque, dt.Class)
	assert.Equal(t, data[8:], dt.Properties)

	got := roundTrip(t, small, dt, parseDatatype)
	assert.Equal(t, dt, got)
}

func TestLayoutV3(t *testing.T) {
	t.Run("contiguous", func(t *testing.T) {
		msg, err := Parse(TypeDataLayout, slices.Concat([]byte{3, 1}, u64(0x800), u64(64)), 0, nil)
		require.NoError(t, err)
		lay := msg.(*DataLayout)
		assert.Equal(t, LayoutContiguous, lay.Class)
		assert.Equal(t, uint64(0x800), lay.Address)
		assert.Equal(t, uint64(64), lay.Size)
	})

	t.Run("chunked", func(t *testing.T) {
		data := slices.Concat([]byte{3, 2, 3}, u64(0x1000), u32(10), u32(20), u32(4))
		msg, err := Parse(TypeDataLayout, data, 0, nil)
		require.NoError(t, err)
		lay := msg.(*DataLayout)
		assert.Equal(t, []uint32{10, 20, 4}, lay.ChunkDims)
		assert.Equal(t, uint64(0x1000), lay.ChunkIndexAddr)
		assert.Equal(t, ChunkIndexBTreeV1, lay.ChunkIndexType)
	})

	t.Run("virtual", func(t *testing.T) {
		_, err := Parse(TypeDataLayout, []byte{4, 3}, 0, nil)
		assert.Error(t, err)
	})
}

func TestLayoutV1(t *testing.T) {
	t.Run("chunked", func(t *testing.T) {
		data := slices.Concat([]byte{1, 2, 2, 0, 0, 0, 0, 0}, u64(0x2000), u32(16), u32(8))
		msg, err := Parse(TypeDataLayout, data, 0, nil)
		require.NoError(t, err)
		lay := msg.(*DataLayout)
		assert.Equal(t, LayoutChunked, lay.Class)
		assert.Equal(t, []uint32{16, 8}, lay.ChunkDims)
		assert.Equal(t, uint64(0x2000), lay.ChunkIndexAddr)
	})

	t.Run("compact", func(t *testing.T) {
		data := slices.Concat([]byte{2, 1, 0, 0, 0, 0, 0, 0}, u32(3), u32(3), []byte{7, 8, 9})
		msg, err := Parse(TypeDataLayout, data, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{7, 8, 9}, msg.(*DataLayout).CompactData)
	})

	t.Run("contiguous", func(t *testing.T) {
		data := slices.Concat([]byte{1, 2, 1, 0, 0, 0, 0, 0}, u64(0x40), u32(6), u32(8))
		msg, err := Parse(TypeDataLayout, data, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x40), msg.(*DataLayout).Address)
		assert.Equal(t, uint64(48), msg.(*DataLayout).Size)
	})
}

func TestLayoutRoundTrip(t *testing.T) {
	t.Run("compact", func(t *testing.T) {
		lay := NewCompactLayout([]byte{1, 2, 3})
		assert.Equal(t, lay, roundTrip(t, small, lay, parseDataLayout))
	})

	t.Run("contiguous", func(t *testing.T) {
		lay := NewContiguousLayout(UndefinedAddress, 0)
		assert.Equal(t, lay, roundTrip(t, small, lay, parseDataLayout))
	})

	t.Run("fixed array", func(t *testing.T) {
		lay := NewChunkedLayout([]uint32{100, 50}, 8, ChunkIndexFixedArray)
		lay.ChunkIndexAddr = 0x3000
		assert.Equal(t, uint8(1), lay.DimensionSizeBytes)

		got := roundTrip(t, small, lay, parseDataLayout)
		assert.Equal(t, []uint32{100, 50, 8}, got.ChunkDims)
		assert.Equal(t, ChunkIndexFixedArray, got.ChunkIndexType)
		assert.Equal(t, []byte{10}, got.IndexParams)
		assert.Equal(t, uint64(0x3000), got.ChunkIndexAddr)
	})

	t.Run("unallocated index", func(t *testing.T) {
		lay := NewChunkedLayout([]uint32{1000}, 4, ChunkIndexExtensibleArray)
		lay.ChunkIndexAddr = UndefinedAddress
		got := roundTrip(t, small, lay, parseDataLayout)
		assert.Equal(t, uint8(2), got.DimensionSizeBytes)
		assert.Equal(t, UndefinedAddress, got.ChunkIndexAddr)
		assert.Len(t, got.IndexParams, 5)
	})

	t.Run("filtered single chunk", func(t *testing.T) {
		lay := &DataLayout{
			Version:            4,
			Class:              LayoutChunked,
			ChunkDims:          []uint32{10, 4},
			DimensionSizeBytes: 1,
			ChunkFlags:         ChunkFlagSingleIndexFiltered,
			ChunkIndexType:     ChunkIndexSingleChunk,
			ChunkIndexAddr:     0x400,
			FilteredChunkSize:  33,
			FilterMask:         1,
		}
		assert.Equal(t, lay, roundTrip(t, small, lay, parseDataLayout))
	})
}

func TestLinkRoundTrip(t *testing.T) {
	long := strings.Repeat("n", 300)
	tests := []struct {
		name string
		link *Link
	}{
		{"hard", NewHardLink("entry", 0x1234)},
		{"soft", NewSoftLink("data", "/entry/instrument/detector/data")},
		{"external", NewExternalLink("raw", "scan_0001.nxs", "/entry/data")},
		{"long name", NewHardLink(long, 96)},
		{"utf8", &Link{Version: 1, Name: "Å", Charset: CharsetUTF8, ObjectAddress: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.link, roundTrip(t, small, tt.link, parseLink))
		})
	}
}

func TestLinkCreationOrder(t *testing.T) {
	data := slices.Concat([]byte{1, 0x0C, 1}, u64(5), []byte{1, 'a'}, u16(3), []byte("/bc"))
	msg, err := Parse(TypeLink, data, 0, nil)
	require.NoError(t, err)
	link := msg.(*Link)
	assert.True(t, link.IsSoft())
	assert.Equal(t, uint64(5), link.CreationOrder)
	assert.Equal(t, "a", link.Name)
	assert.Equal(t, "/bc", link.SoftLinkValue)
}

func TestLinkInfo(t *testing.T) {
	compact := NewLinkInfo()
	got := roundTrip(t, small, compact, parseLinkInfo)
	assert.Equal(t, compact, got)
	assert.False(t, got.Dense())

	dense := &LinkInfo{
		Flags:                  linkInfoTrackOrder | linkInfoIndexOrder,
		MaxCreationIndex:       7,
		FractalHeapAddr:        0x100,
		NameIndexBTreeAddr:     0x200,
		CreationOrderBTreeAddr: 0x300,
	}
	got = roundTrip(t, small, dense, parseLinkInfo)
	assert.Equal(t, dense, got)
	assert.True(t, got.Dense())
}

func TestGroupInfo(t *testing.T) {
	buf := binpkg.NewBuffer(0)
	w := binpkg.NewWriter(buf, small)
	gi := NewGroupInfo()
	require.NoError(t, gi.Serialize(w))
	assert.Equal(t, []byte{0, 0}, buf.Bytes())
	assert.Equal(t, 2, gi.SerializedSize(w))
}

func TestAttributeRoundTrip(t *testing.T) {
	dt := NewStringDatatype(6, PadNullTerm, CharsetUTF8)
	attr := NewAttribute("units", dt, NewScalarDataspace(), []byte("metre\x00"))
	got := roundTrip(t, small, attr, parseAttribute)
	assert.Equal(t, "units", got.Name)
	assert.Equal(t, CharsetUTF8, got.Encoding)
	assert.Equal(t, uint32(6), got.Datatype.Size)
	assert.True(t, got.Dataspace.IsScalar())
	assert.Equal(t, []byte("metre\x00"), got.Data)
}

func TestAttributeV1(t *testing.T) {
	dt := []byte{0x10, 0, 0, 0, 2, 0, 0, 0, 0, 0, 16, 0}
	ds := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	data := slices.Concat(
		[]byte{1, 0}, u16(5), u16(12), u16(8),
		[]byte("temp\x00\x00\x00\x00"),
		dt, []byte{0, 0, 0, 0},
		ds,
		[]byte{42, 0},
	)
	msg, err := Parse(TypeAttribute, data, 0, nil)
	require.NoError(t, err)
	attr := msg.(*Attribute)
	assert.Equal(t, "temp", attr.Name)
	assert.Equal(t, uint32(2), attr.Datatype.Size)
	assert.True(t, attr.Dataspace.IsScalar())
	assert.Equal(t, []byte{42, 0}, attr.Data)
}

func TestFilterPipeline(t *testing.T) {
	t.Run("v1", func(t *testing.T) {
		data := slices.Concat(
			[]byte{1, 1, 0, 0, 0, 0, 0, 0},
			u16(FilterDeflate), u16(8), u16(0), u16(1),
			[]byte("deflate\x00"),
			u32(6), u32(0),
		)
		msg, err := Parse(TypeFilterPipeline, data, 0, nil)
		require.NoError(t, err)
		fp := msg.(*FilterPipeline)
		require.Len(t, fp.Filters, 1)
		assert.Equal(t, FilterInfo{ID: FilterDeflate, Name: "deflate", ClientData: []uint32{6}}, fp.Filters[0])
	})

	t.Run("v2 round trip", func(t *testing.T) {
		fp := NewFilterPipeline(
			FilterInfo{ID: FilterShuffle, ClientData: []uint32{4}},
			FilterInfo{ID: FilterZstd, Flags: FilterFlagOptional, Name: "zstd", ClientData: []uint32{3}},
		)
		got := roundTrip(t, small, fp, parseFilterPipeline)
		assert.Equal(t, fp, got)
		assert.True(t, got.Filters[1].IsOptional())
		assert.False(t, got.Filters[0].IsOptional())
	})
}

func TestParseMisc(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		_, err := Parse(TypeLink, []byte{1}, 0, nil)
		assert.ErrorIs(t, err, errTruncated)
	})

	t.Run("unknown", func(t *testing.T) {
		msg, err := Parse(TypeObjectModTime, []byte{1, 2}, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, TypeObjectModTime, msg.Type())
		assert.Equal(t, []byte{1, 2}, msg.(*Unknown).Data())
	})

	t.Run("continuation", func(t *testing.T) {
		r := binpkg.NewReader(bytes.NewReader(nil), small)
		msg, err := Parse(TypeObjectHeaderContinuation, slices.Concat(u32(0x500), u32(0x80)), 0, r)
		require.NoError(t, err)
		assert.Equal(t, &Continuation{Offset: 0x500, Length: 0x80}, msg)
	})

	t.Run("symbol table", func(t *testing.T) {
		msg, err := Parse(TypeSymbolTable, slices.Concat(u64(0x60), u64(0x90)), 0, nil)
		require.NoError(t, err)
		assert.Equal(t, &SymbolTable{BTreeAddress: 0x60, LocalHeapAddress: 0x90}, msg)
	})
}

func TestFlagsOf(t *testing.T) {
	assert.Equal(t, FlagConstant, FlagsOf(NewFixedPointDatatype(4, true, OrderLE)))
	assert.Equal(t, uint8(2), FlagsOf(&Raw{MsgType: TypeAttribute, Flags: 2}))
	assert.Zero(t, FlagsOf(NewScalarDataspace()))
	assert.Zero(t, SerializedSize(&Unknown{typ: TypeBogus}, nil))
}

package dtype

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nexus/internal/alloc"
	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/heap"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

func TestDecodeIntegers(t *testing.T) {
	le := message.NewFixedPointDatatype(4, true, message.OrderLE)
	data := []byte{0xff, 0xff, 0xff, 0xff, 2, 0, 0, 0}

	var direct []int32
	require.NoError(t, Decode(le, data, 2, &direct, nil))
	assert.Equal(t, []int32{-1, 2}, direct)

	var widened []int64
	require.NoError(t, Decode(le, data, 2, &widened, nil))
	assert.Equal(t, []int64{-1, 2}, widened)

	var floats []float64
	require.NoError(t, Decode(le, data, 2, &floats, nil))
	assert.Equal(t, []float64{-1, 2}, floats)

	be := message.NewFixedPointDatatype(2, false, message.OrderBE)
	var u []uint16
	require.NoError(t, Decode(be, []byte{0x01, 0x02, 0xff, 0xfe}, 2, &u, nil))
	assert.Equal(t, []uint16{0x0102, 0xfffe}, u)

	var s []string
	assert.Error(t, Decode(le, data, 2, &s, nil))
	assert.Error(t, Decode(le, data[:4], 2, &direct, nil), "short data")
	assert.Error(t, Decode(le, data, 2, direct, nil), "not a pointer")
}

func TestDecodeFloats(t *testing.T) {
	f32 := message.NewFloatDatatype(4, message.OrderLE)
	data := make([]byte, 8)
	ByteOrder(f32).PutUint32(data, math.Float32bits(1.5))
	ByteOrder(f32).PutUint32(data[4:], math.Float32bits(-0.25))

	var out []float32
	require.NoError(t, Decode(f32, data, 2, &out, nil))
	assert.Equal(t, []float32{1.5, -0.25}, out)

	f64 := message.NewFloatDatatype(8, message.OrderBE)
	data = make([]byte, 8)
	ByteOrder(f64).PutUint64(data, math.Float64bits(math.Pi))
	var wide []float64
	require.NoError(t, Decode(f64, data, 1, &wide, nil))
	assert.Equal(t, []float64{math.Pi}, wide)
}

func TestDecodeEnumAsBase(t *testing.T) {
	enum := &message.Datatype{
		Class:    message.ClassEnum,
		Size:     1,
		BaseType: message.NewFixedPointDatatype(1, false, message.OrderLE),
	}
	var out []uint8
	require.NoError(t, Decode(enum, []byte{0, 1, 1}, 3, &out, nil))
	assert.Equal(t, []uint8{0, 1, 1}, out)

	_, err := Encode(&message.Datatype{Class: message.ClassOpaque, Size: 4}, []byte{1})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFixedStrings(t *testing.T) {
	tests := []struct {
		name    string
		padding message.StringPadding
		stored  string
	}{
		{"null-terminated", message.PadNullTerm, "ab\x00\x00abcd"},
		{"null-padded", message.PadNullPad, "ab\x00\x00abcd"},
		{"space-padded", message.PadSpacePad, "ab  abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := message.NewStringDatatype(4, tt.padding, message.CharsetASCII)
			data, err := Encode(dt, []string{"ab", "abcd"})
			require.NoError(t, err)
			assert.Equal(t, tt.stored, string(data))

			var out []string
			require.NoError(t, Decode(dt, data, 2, &out, nil))
			assert.Equal(t, []string{"ab", "abcd"}, out)
		})
	}

	dt := message.NewStringDatatype(4, message.PadNullPad, message.CharsetASCII)
	_, err := Encode(dt, "too long")
	assert.Error(t, err)
}

func TestEncodeNumbers(t *testing.T) {
	i16 := message.NewFixedPointDatatype(2, true, message.OrderBE)
	data, err := Encode(i16, []int16{-2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00, 0x03}, data)

	data, err = Encode(i16, int16(7))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 7}, data)

	f32 := message.NewFloatDatatype(4, message.OrderLE)
	data, err = Encode(f32, &[]float32{2.5})
	require.NoError(t, err)
	var back []float32
	require.NoError(t, Decode(f32, data, 1, &back, nil))
	assert.Equal(t, []float32{2.5}, back)

	_, err = Encode(i16, []string{"x"})
	assert.Error(t, err)
	_, err = Encode(i16, nil)
	assert.Error(t, err)
}

func TestDecodeVarStrings(t *testing.T) {
	cfg := binary.DefaultConfig()
	buf := binary.NewBuffer(0)
	w := binary.NewWriter(buf, cfg)
	a := alloc.New(256)

	strs := []string{"NXentry", "", "counts"}
	cw := heap.NewCollectionWriter(w, a.AllocFunc())
	for _, s := range strs {
		cw.AddString(s)
	}
	ids, err := cw.Write()
	require.NoError(t, err)

	refs := binary.NewBuffer(0)
	rw := binary.NewWriter(refs, cfg)
	for i, id := range ids {
		require.NoError(t, rw.WriteUint32(uint32(len(strs[i]))))
		require.NoError(t, id.Write(rw))
	}
	require.NoError(t, rw.WriteZeros(4+cfg.OffsetSize+4), "a null reference")

	r := binary.NewReader(bytes.NewReader(buf.Bytes()), cfg)
	var out []string
	require.NoError(t, Decode(message.NewVarLenStringDatatype(message.CharsetUTF8), refs.Bytes(), 4, &out, r))
	assert.Equal(t, []string{"NXentry", "", "counts", ""}, out)

	err = Decode(message.NewVarLenStringDatatype(message.CharsetUTF8), refs.Bytes(), 1, &out, nil)
	assert.ErrorContains(t, err, "no reader")
}

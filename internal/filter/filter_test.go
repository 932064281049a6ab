package filter

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

func sample(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 17)
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	filters := map[string]Filter{
		"deflate":       NewDeflate([]uint32{4}),
		"deflate-level": NewDeflate([]uint32{42}),
		"shuffle":       NewShuffle([]uint32{4}),
		"shuffle-odd":   NewShuffle([]uint32{3}),
		"fletcher32":    NewFletcher32(nil),
		"zstd":          NewZstd(nil),
		"lz4":           NewLZ4(nil),
		"lz4-blocks":    NewLZ4([]uint32{1000}),
	}
	in := sample(4099)
	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			enc, err := f.Encode(in)
			require.NoError(t, err)
			dec, err := f.Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, in, dec)
		})
	}
}

func TestDeflateReadsStandardZlib(t *testing.T) {
	in := []byte("chunk data compressed by another zlib implementation")
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(in)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := NewDeflate(nil).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = NewDeflate(nil).Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestShuffleLayout(t *testing.T) {
	in := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0xff,
	}
	want := []byte{
		0x01, 0x11, 0x21,
		0x02, 0x12, 0x22,
		0x03, 0x13, 0x23,
		0x04, 0x14, 0x24,
		0xff,
	}
	f := NewShuffle([]uint32{4})
	enc, err := f.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, want, enc)

	single := NewShuffle(nil)
	out, err := single.Decode(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFletcher32(t *testing.T) {
	f := NewFletcher32(nil)
	enc, err := f.Encode([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	require.Len(t, enc, 12)

	enc[0] ^= 0xff
	_, err = f.Decode(enc)
	assert.ErrorContains(t, err, "checksum mismatch")

	_, err = f.Decode([]byte{1, 2})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	f, err := New(message.FilterInfo{ID: message.FilterZstd, ClientData: []uint32{5}})
	require.NoError(t, err)
	assert.Equal(t, message.FilterZstd, f.ID())

	_, err = New(message.FilterInfo{ID: message.FilterSZIP})
	assert.ErrorContains(t, err, "szip")
	_, err = New(message.FilterInfo{ID: 40000})
	assert.ErrorContains(t, err, "unknown filter 40000")

	f, err = New(message.FilterInfo{ID: message.FilterSZIP, Flags: message.FilterFlagOptional})
	require.NoError(t, err)
	assert.Nil(t, f)

	assert.True(t, Supported(message.FilterLZ4))
	assert.False(t, Supported(message.FilterNBit))
	assert.Equal(t, "scaleoffset", Name(message.FilterScaleOffset))
	assert.Empty(t, Name(7))
}

func TestPipeline(t *testing.T) {
	p, err := NewPipeline(message.NewFilterPipeline(
		message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{8}},
		message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{6}},
		message.FilterInfo{ID: message.FilterFletcher32},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())

	in := bytes.Repeat([]byte{1, 0, 0, 0, 0, 0, 0, 0}, 512)
	enc, mask, err := p.Encode(in)
	require.NoError(t, err)
	assert.Zero(t, mask)
	assert.Less(t, len(enc), len(in))

	dec, err := p.Decode(enc, mask)
	require.NoError(t, err)
	assert.Equal(t, in, dec)
}

func TestPipelineMask(t *testing.T) {
	p, err := NewPipeline(message.NewFilterPipeline(
		message.FilterInfo{ID: 40000, Flags: message.FilterFlagOptional},
		message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{2}},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())
	assert.False(t, p.Empty())

	enc, mask, err := p.Encode([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, uint32(0b01), mask)
	assert.Equal(t, []byte{1, 3, 2, 4}, enc)

	// Bit 1 skips the shuffle, not the missing filter.
	out, err := p.Decode(enc, 0b11)
	require.NoError(t, err)
	assert.Equal(t, enc, out)

	out, err = p.Decode(enc, mask)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	_, err = p.Decode(enc, 0)
	assert.ErrorContains(t, err, "unavailable optional filter")
}

func TestPipelineElementSize(t *testing.T) {
	p, err := NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: message.FilterShuffle}))
	require.NoError(t, err)
	p.SetElementSize(2)
	enc, _, err := p.Encode([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3, 2, 4}, enc)
}

func TestEmptyPipeline(t *testing.T) {
	for _, fp := range []*message.FilterPipeline{nil, message.NewFilterPipeline()} {
		p, err := NewPipeline(fp)
		require.NoError(t, err)
		assert.True(t, p.Empty())
		out, mask, err := p.Encode([]byte{9})
		require.NoError(t, err)
		assert.Zero(t, mask)
		assert.Equal(t, []byte{9}, out)
	}
	_, err := NewPipeline(message.NewFilterPipeline(message.FilterInfo{ID: message.FilterNBit}))
	assert.Error(t, err)
}

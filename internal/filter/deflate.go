package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Deflate stores chunks as zlib streams.
type Deflate struct {
	level int
}

// NewDeflate creates a deflate filter. clientData[0] is the compression
// level, 0 to 9; other values select level 6.
func NewDeflate(clientData []uint32) *Deflate {
	if len(clientData) > 0 && clientData[0] <= 9 {
		return &Deflate{level: int(clientData[0])}
	}
	return &Deflate{level: 6}
}

func (f *Deflate) ID() uint16 { return message.FilterDeflate }

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var out bytes.Buffer
	out.Grow(4 * len(input))
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, fmt.Errorf("inflating %d bytes: %w", len(input), err)
	}
	return out.Bytes(), nil
}

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, f.level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(input); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

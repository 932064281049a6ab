package binary

import (
	"encoding/binary"
	"io"
)

// Reader decodes fields from an io.ReaderAt. Each Reader keeps its own
// position; readers derived with At share the source.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

func NewReader(src io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: src, cfg: cfg}
}

// At returns a reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: offset}
}

func (r *Reader) Pos() int64                  { return r.pos }
func (r *Reader) Config() Config              { return r.cfg }
func (r *Reader) OffsetSize() int             { return r.cfg.OffsetSize }
func (r *Reader) LengthSize() int             { return r.cfg.LengthSize }
func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }

// Skip moves the position forward by n bytes.
func (r *Reader) Skip(n int64) { r.pos += n }

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.src.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBytes consumes exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err == nil {
		r.pos += int64(len(buf))
	}
	return buf, err
}

// ReadUintN consumes an n-byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.cfg.uint(buf), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) { return r.ReadUintN(8) }

// ReadOffset consumes an address field.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.cfg.OffsetSize) }

// ReadLength consumes a length field.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.cfg.LengthSize) }

// IsUndefinedOffset reports whether addr is the undefined address.
func (r *Reader) IsUndefinedOffset(addr uint64) bool { return addr == r.cfg.Undefined() }

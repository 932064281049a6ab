package binary

import (
	"encoding/binary"
	"io"
)

// Writer encodes fields into an io.WriterAt.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

func NewWriter(dst io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: dst, cfg: cfg}
}

// At returns a writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: offset}
}

// Scratch returns a writer with w's configuration over a new in-memory
// buffer of size bytes.
func (w *Writer) Scratch(size int) (*Writer, *Buffer) {
	buf := NewBuffer(size)
	return NewWriter(buf, w.cfg), buf
}

func (w *Writer) Pos() int64                  { return w.pos }
func (w *Writer) Config() Config              { return w.cfg }
func (w *Writer) OffsetSize() int             { return w.cfg.OffsetSize }
func (w *Writer) LengthSize() int             { return w.cfg.LengthSize }
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

// Skip moves the position forward by n bytes without writing.
func (w *Writer) Skip(n int64) { w.pos += n }

// UndefinedOffset returns the undefined address for w's offset size.
func (w *Writer) UndefinedOffset() uint64 { return w.cfg.Undefined() }

func (w *Writer) WriteBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(p, w.pos)
	w.pos += int64(n)
	return err
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// WriteUintN writes v as an n-byte unsigned integer.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	w.cfg.putUint(buf, v)
	return w.WriteBytes(buf)
}

func (w *Writer) WriteUint8(v uint8) error   { return w.WriteUintN(uint64(v), 1) }
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteOffset writes an address field.
func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.cfg.OffsetSize) }

// WriteLength writes a length field.
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.cfg.LengthSize) }

// Buffer is an in-memory io.WriterAt that grows as needed.
type Buffer struct {
	b []byte
}

// NewBuffer returns a zeroed buffer of size bytes.
func NewBuffer(size int) *Buffer { return &Buffer{b: make([]byte, size)} }

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.b) {
		b.b = append(b.b, make([]byte, end-len(b.b))...)
	}
	copy(b.b[off:], p)
	return len(p), nil
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte { return b.b }

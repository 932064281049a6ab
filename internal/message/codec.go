package message

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

var errTruncated = errors.New("truncated")

// dec reads the fields of one message. The first failure sticks and later
// reads return zero values.
type dec struct {
	buf []byte
	off int
	cfg binary.Config
	err error
}

func newDec(data []byte, r *binary.Reader) *dec {
	cfg := binary.DefaultConfig()
	if r != nil {
		cfg = r.Config()
	}
	return &dec{buf: data, cfg: cfg}
}

// sub returns a decoder over the next n bytes and skips them.
func (d *dec) sub(n int) *dec {
	return &dec{buf: d.take(n), cfg: d.cfg, err: d.err}
}

func (d *dec) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.err = errTruncated
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *dec) skip(n int) { d.take(n) }

// pad8 skips to the next multiple of 8 from the start of the message.
func (d *dec) pad8() { d.skip((8 - d.off%8) % 8) }

func (d *dec) uintN(n int) uint64 {
	b := d.take(n)
	if b == nil {
		return 0
	}
	var v uint64
	switch n {
	case 1:
		v = uint64(b[0])
	case 2:
		v = uint64(d.cfg.ByteOrder.Uint16(b))
	case 4:
		v = uint64(d.cfg.ByteOrder.Uint32(b))
	case 8:
		v = d.cfg.ByteOrder.Uint64(b)
	default:
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
	}
	return v
}

func (d *dec) u8() uint8   { return uint8(d.uintN(1)) }
func (d *dec) u16() uint16 { return uint16(d.uintN(2)) }
func (d *dec) u32() uint32 { return uint32(d.uintN(4)) }
func (d *dec) u64() uint64 { return d.uintN(8) }

func (d *dec) offset() uint64 { return d.uintN(d.cfg.OffsetSize) }
func (d *dec) length() uint64 { return d.uintN(d.cfg.LengthSize) }

// address reads an offset, mapping the undefined address of the file to
// UndefinedAddress.
func (d *dec) address() uint64 {
	v := d.offset()
	if v == d.cfg.Undefined() {
		return UndefinedAddress
	}
	return v
}

// cstring reads n bytes and cuts them at the first NUL.
func (d *dec) cstring(n int) string {
	b := d.take(n)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (d *dec) rest() []byte {
	if d.err != nil {
		return nil
	}
	return append([]byte(nil), d.take(len(d.buf)-d.off)...)
}

func (d *dec) remaining() int { return len(d.buf) - d.off }

func (d *dec) check(what string) error {
	if d.err != nil {
		return fmt.Errorf("%s message: %w", what, d.err)
	}
	return nil
}

// enc writes the fields of one message with a sticky error.
type enc struct {
	w   *binary.Writer
	err error
}

func (e *enc) do(f func() error) {
	if e.err == nil {
		e.err = f()
	}
}

func (e *enc) u8(vs ...uint8)        { e.do(func() error { return e.w.WriteBytes(vs) }) }
func (e *enc) u16(v uint16)          { e.do(func() error { return e.w.WriteUint16(v) }) }
func (e *enc) u32(v uint32)          { e.do(func() error { return e.w.WriteUint32(v) }) }
func (e *enc) u64(v uint64)          { e.do(func() error { return e.w.WriteUint64(v) }) }
func (e *enc) uintN(v uint64, n int) { e.do(func() error { return e.w.WriteUintN(v, n) }) }
func (e *enc) offset(v uint64)       { e.do(func() error { return e.w.WriteOffset(v) }) }
func (e *enc) length(v uint64)       { e.do(func() error { return e.w.WriteLength(v) }) }
func (e *enc) bytes(b []byte)        { e.do(func() error { return e.w.WriteBytes(b) }) }
func (e *enc) str(s string)          { e.bytes([]byte(s)) }

// address writes an offset, mapping UndefinedAddress to the undefined
// address of the file.
func (e *enc) address(v uint64) {
	if v == UndefinedAddress {
		v = e.w.UndefinedOffset()
	}
	e.offset(v)
}

// measure returns the number of bytes encode writes.
func measure(w *binary.Writer, encode func(*binary.Writer) error) int {
	bw, buf := w.Scratch(0)
	if err := encode(bw); err != nil {
		return 0
	}
	return len(buf.Bytes())
}

// widthOf returns the smallest of 1, 2, 4 or 8 bytes that holds v.
func widthOf(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

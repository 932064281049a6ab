// Package binary reads and writes the little-endian, variable-width fields
// of the container format.
package binary

import "encoding/binary"

// Config fixes the byte order and the widths of address ("offset") and
// length fields, as declared by the superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte addresses and lengths. It is
// used before a superblock has been read.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// Undefined returns the all-ones address that marks an absent object.
func (c Config) Undefined() uint64 {
	if c.OffsetSize >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*c.OffsetSize) - 1
}

func (c Config) uint(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(c.ByteOrder.Uint16(buf))
	case 4:
		return uint64(c.ByteOrder.Uint32(buf))
	case 8:
		return c.ByteOrder.Uint64(buf)
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func (c Config) putUint(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		c.ByteOrder.PutUint16(buf, uint16(v))
	case 4:
		c.ByteOrder.PutUint32(buf, uint32(v))
	case 8:
		c.ByteOrder.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
	}
}

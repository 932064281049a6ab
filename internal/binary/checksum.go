package binary

import (
	"encoding/binary"
	"math/bits"
)

// Lookup3Checksum is Bob Jenkins' lookup3 hashlittle with an initial value
// of zero. It protects version 2 superblocks, object headers and other
// metadata blocks.
func Lookup3Checksum(data []byte) uint32 {
	le := binary.LittleEndian
	a := 0xdeadbeef + uint32(len(data))
	b, c := a, a

	// The final block of 1 to 12 bytes goes through the final mix, so a
	// block of exactly 12 is not consumed here.
	for len(data) > 12 {
		a += le.Uint32(data[0:])
		b += le.Uint32(data[4:])
		c += le.Uint32(data[8:])
		a, b, c = mix(a, b, c)
		data = data[12:]
	}
	if len(data) == 0 {
		return c
	}

	var tail [12]byte
	copy(tail[:], data)
	a += le.Uint32(tail[0:])
	b += le.Uint32(tail[4:])
	c += le.Uint32(tail[8:])
	_, _, c = final(a, b, c)
	return c
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= bits.RotateLeft32(c, 4)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 6)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 8)
	b += a
	a -= c
	a ^= bits.RotateLeft32(c, 16)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 19)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= bits.RotateLeft32(b, 14)
	a ^= c
	a -= bits.RotateLeft32(c, 11)
	b ^= a
	b -= bits.RotateLeft32(a, 25)
	c ^= b
	c -= bits.RotateLeft32(b, 16)
	a ^= c
	a -= bits.RotateLeft32(c, 4)
	b ^= a
	b -= bits.RotateLeft32(a, 14)
	c ^= b
	c -= bits.RotateLeft32(b, 24)
	return a, b, c
}

// Fletcher32 sums data as little-endian 16-bit words, padding an odd
// trailing byte with zero. It is the checksum of the fletcher32 filter.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	for len(data) > 0 {
		word := uint32(data[0])
		if len(data) > 1 {
			word |= uint32(data[1]) << 8
			data = data[2:]
		} else {
			data = data[1:]
		}
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
	}
	return sum2<<16 | sum1
}

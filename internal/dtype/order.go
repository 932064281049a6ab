package dtype

import (
	"encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// ErrUnsupported is returned for datatype classes this package does not map.
var ErrUnsupported = fmt.Errorf("unsupported datatype")

// ByteOrder returns the byte order of a numeric datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// numeric resolves enums to their base type and rejects anything that is
// not a plain integer or float.
func numeric(dt *message.Datatype) (*message.Datatype, error) {
	if dt.Class == message.ClassEnum && dt.BaseType != nil {
		dt = dt.BaseType
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		switch dt.Size {
		case 1, 2, 4, 8:
			return dt, nil
		}
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4, 8:
			return dt, nil
		}
	}
	return nil, fmt.Errorf("%w: class %d size %d", ErrUnsupported, dt.Class, dt.Size)
}

func readUint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func putUint(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

// signExtend widens a size-byte two's complement value.
func signExtend(v uint64, size int) int64 {
	shift := 64 - 8*size
	return int64(v<<shift) >> shift
}

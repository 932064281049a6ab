package h5

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// TypeID identifies a storage datatype. It packs the type class, the
// element size in bytes and a signed flag.
type TypeID uint64

// TypeClass is the class part of a TypeID.
type TypeClass uint8

const (
	ClassInteger TypeClass = 1
	ClassFloat   TypeClass = 2
	ClassString  TypeClass = 3

	// classForeign offsets the on-disk class of datatypes this package
	// reports but cannot write (compound, enum, ...).
	classForeign TypeClass = 16
)

func makeType(class TypeClass, size int, signed bool) TypeID {
	id := TypeID(class)<<32 | TypeID(size)<<1
	if signed {
		id |= 1
	}
	return id
}

// Predefined types. All numeric types are little-endian.
var (
	TypeInt8    = makeType(ClassInteger, 1, true)
	TypeInt16   = makeType(ClassInteger, 2, true)
	TypeInt32   = makeType(ClassInteger, 4, true)
	TypeInt64   = makeType(ClassInteger, 8, true)
	TypeUint8   = makeType(ClassInteger, 1, false)
	TypeUint16  = makeType(ClassInteger, 2, false)
	TypeUint32  = makeType(ClassInteger, 4, false)
	TypeUint64  = makeType(ClassInteger, 8, false)
	TypeFloat32 = makeType(ClassFloat, 4, true)
	TypeFloat64 = makeType(ClassFloat, 8, true)

	// TypeVarString is a variable-length UTF-8 string stored in the
	// global heap.
	TypeVarString = makeType(ClassString, 0, false)
)

// StringType returns a fixed-length, null-terminated string type of n bytes.
func StringType(n int) TypeID {
	return makeType(ClassString, n, false)
}

// Class returns the type class.
func (t TypeID) Class() TypeClass { return TypeClass(t >> 32) }

// Size returns the element size in bytes; zero for TypeVarString.
func (t TypeID) Size() int { return int(uint32(t) >> 1) }

// Signed reports whether an integer type is signed.
func (t TypeID) Signed() bool { return t&1 != 0 }

func (t TypeID) String() string {
	switch t.Class() {
	case ClassInteger:
		if t.Signed() {
			return fmt.Sprintf("int%d", 8*t.Size())
		}
		return fmt.Sprintf("uint%d", 8*t.Size())
	case ClassFloat:
		return fmt.Sprintf("float%d", 8*t.Size())
	case ClassString:
		if t.Size() == 0 {
			return "string"
		}
		return fmt.Sprintf("string[%d]", t.Size())
	default:
		return fmt.Sprintf("class%d[%d]", uint8(t.Class()-classForeign), t.Size())
	}
}

// datatypeOf builds the datatype message for t. offsetSize is needed for
// the size of variable-length string references.
func datatypeOf(t TypeID, offsetSize int) (*message.Datatype, error) {
	size := t.Size()
	switch t.Class() {
	case ClassInteger:
		switch size {
		case 1, 2, 4, 8:
			return message.NewFixedPointDatatype(uint32(size), t.Signed(), message.OrderLE), nil
		}
	case ClassFloat:
		if size == 4 || size == 8 {
			return message.NewFloatDatatype(uint32(size), message.OrderLE), nil
		}
	case ClassString:
		if size == 0 {
			dt := message.NewVarLenStringDatatype(message.CharsetUTF8)
			dt.Size = uint32(4 + offsetSize + 4)
			return dt, nil
		}
		return message.NewStringDatatype(uint32(size), message.PadNullTerm, message.CharsetUTF8), nil
	}
	return nil, fmt.Errorf("%w: datatype %s", ErrUnsupported, t)
}

// typeOf maps a datatype message to a TypeID. Datatypes outside the
// integer, float and string classes map to foreign IDs that datatypeOf
// rejects.
func typeOf(dt *message.Datatype) TypeID {
	switch dt.Class {
	case message.ClassFixedPoint:
		return makeType(ClassInteger, int(dt.Size), dt.Signed)
	case message.ClassFloatPoint:
		return makeType(ClassFloat, int(dt.Size), true)
	case message.ClassString:
		return StringType(int(dt.Size))
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return TypeVarString
		}
	}
	return makeType(classForeign+TypeClass(dt.Class), int(dt.Size), false)
}

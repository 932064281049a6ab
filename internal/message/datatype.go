package message

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the element type of a dataset or attribute. Numeric,
// string, enum and variable-length classes are decoded; the properties of
// other classes are kept as raw bytes.
type Datatype struct {
	Class     DatatypeClass
	Version   uint8
	ClassBits uint32
	Size      uint32

	ByteOrder ByteOrder

	// fixed-point
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool

	// strings, including the base of variable-length strings
	StringPadding StringPadding
	CharSet       CharacterSet

	// BaseType is the integer type of an enum.
	BaseType *Datatype

	// VarLenType is the element type of a variable-length type.
	VarLenType     *Datatype
	IsVarLenString bool

	// Properties holds the class properties as stored, for classes that
	// are not decoded and for float bit layouts.
	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsInteger reports whether the type is a fixed-point integer.
func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }

func parseDatatype(d *dec) (*Datatype, error) {
	dt := readDatatype(d)
	if err := d.check("datatype"); err != nil {
		return nil, err
	}
	return dt, nil
}

// readDatatype decodes one datatype and consumes exactly its bytes for the
// decoded classes; other classes consume the rest of d.
func readDatatype(d *dec) *Datatype {
	cv := d.u8()
	bits := d.uintN(3)
	dt := &Datatype{
		Class:     DatatypeClass(cv & 0x0F),
		Version:   cv >> 4,
		ClassBits: uint32(bits),
		Size:      d.u32(),
	}

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = dt.Class == ClassFixedPoint && bits&0x08 != 0
		dt.BitOffset = d.u16()
		dt.BitPrecision = d.u16()
	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Properties = append([]byte(nil), d.take(12)...)
	case ClassString:
		dt.StringPadding = StringPadding(bits & 0x0F)
		dt.CharSet = CharacterSet(bits >> 4 & 0x0F)
	case ClassReference:
	case ClassVarLen:
		dt.IsVarLenString = bits&0x0F == 1
		dt.StringPadding = StringPadding(bits >> 4 & 0x0F)
		dt.CharSet = CharacterSet(bits >> 8 & 0x0F)
		dt.VarLenType = readDatatype(d)
	case ClassEnum:
		dt.BaseType = readDatatype(d)
		n := int(bits & 0xFFFF)
		for range n {
			name := d.off
			for d.err == nil && d.off < len(d.buf) && d.buf[d.off] != 0 {
				d.off++
			}
			d.skip(1)
			if dt.Version < 3 {
				d.skip((8 - (d.off-name)%8) % 8)
			}
		}
		if dt.BaseType != nil {
			d.skip(n * int(dt.BaseType.Size))
		}
	default:
		dt.Properties = d.rest()
	}
	return dt
}

// Serialize writes the datatype. Decoded classes are re-encoded; others
// write their stored properties.
func (m *Datatype) Serialize(w *binary.Writer) error {
	version := m.Version
	if version == 0 {
		version = 1
	}
	e := &enc{w: w}
	e.u8(uint8(m.Class) | version<<4)
	e.uintN(uint64(m.ClassBits), 3)
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		props := m.Properties
		if len(props) < 12 {
			props = ieeeProperties(m.Size)
		}
		e.bytes(props[:12])
	case ClassString, ClassReference:
	case ClassVarLen:
		if m.VarLenType == nil {
			return fmt.Errorf("variable-length datatype without a base type")
		}
		e.do(func() error { return m.VarLenType.Serialize(w) })
	case ClassEnum:
		return fmt.Errorf("enum datatypes cannot be written")
	default:
		e.bytes(m.Properties)
	}
	return e.err
}

func (m *Datatype) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

// ieeeProperties returns the bit layout of IEEE 754 binary32 or binary64:
// offset, precision, exponent location and size, mantissa location and
// size, exponent bias.
func ieeeProperties(size uint32) []byte {
	if size == 4 {
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	}
	return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0}
}

func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		ClassBits:    bits,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
		Signed:       signed,
	}
}

// NewFloatDatatype returns an IEEE float of 4 or 8 bytes. The class bits
// carry the byte order, implied mantissa normalization and the sign bit
// position.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	sign := size*8 - 1
	return &Datatype{
		Class:      ClassFloatPoint,
		ClassBits:  uint32(order) | 1<<5 | sign<<8,
		Size:       size,
		ByteOrder:  order,
		Properties: ieeeProperties(size),
	}
}

func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns a variable-length string whose elements
// are 16-byte heap references.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(charset)<<8,
		Size:           16,
		CharSet:        charset,
		VarLenType:     NewStringDatatype(1, PadNullTerm, charset),
		IsVarLenString: true,
	}
}

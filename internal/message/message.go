package message

import (
	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// Type is a header message type code.
type Type uint16

const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeExternalDataFiles        Type = 0x0007
	TypeDataLayout               Type = 0x0008
	TypeBogus                    Type = 0x0009
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectComment            Type = 0x000D
	TypeObjectModTime            Type = 0x000E
	TypeSharedMessageTable       Type = 0x000F
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
	TypeObjectModTimeOld         Type = 0x0012
	TypeBTreeKValues             Type = 0x0013
	TypeDriverInfo               Type = 0x0014
	TypeAttributeInfo            Type = 0x0015
	TypeObjectRefCount           Type = 0x0016
)

// UndefinedAddress marks an absent address.
const UndefinedAddress = ^uint64(0)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Serializable is a message this package can encode.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
	SerializedSize(w *binary.Writer) int
}

// SerializedSize returns the encoded size of msg, or 0 if it cannot be
// encoded.
func SerializedSize(msg Message, w *binary.Writer) int {
	if s, ok := msg.(Serializable); ok {
		return s.SerializedSize(w)
	}
	return 0
}

// Parse decodes a message of type typ. r supplies the field widths of the
// file.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	d := newDec(data, r)
	switch typ {
	case TypeDataspace:
		return parseDataspace(d)
	case TypeDatatype:
		return parseDatatype(d)
	case TypeDataLayout:
		return parseDataLayout(d)
	case TypeFilterPipeline:
		return parseFilterPipeline(d)
	case TypeAttribute:
		return parseAttribute(d)
	case TypeLink:
		return parseLink(d)
	case TypeLinkInfo:
		return parseLinkInfo(d)
	case TypeSymbolTable:
		return parseSymbolTable(d)
	case TypeObjectHeaderContinuation:
		return ParseContinuation(data, r)
	}
	return &Unknown{typ: typ, data: data}, nil
}

// Unknown is a message type that is not decoded.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at another chunk of an object header.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// ParseContinuation decodes a continuation message: an address followed by
// a length.
func ParseContinuation(data []byte, r *binary.Reader) (*Continuation, error) {
	d := newDec(data, r)
	m := &Continuation{Offset: d.offset(), Length: d.length()}
	return m, d.check("continuation")
}

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(d *dec) (*SymbolTable, error) {
	m := &SymbolTable{BTreeAddress: d.offset(), LocalHeapAddress: d.offset()}
	return m, d.check("symbol table")
}

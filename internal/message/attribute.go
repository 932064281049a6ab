package message

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// Attribute is a small named value attached to an object header.
type Attribute struct {
	Version       uint8
	Name          string
	Encoding      CharacterSet
	DatatypeSize  uint16
	DataspaceSize uint16
	Datatype      *Datatype
	Dataspace     *Dataspace
	Data          []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func parseAttribute(d *dec) (*Attribute, error) {
	m := &Attribute{Version: d.u8()}
	switch m.Version {
	case 1, 2, 3:
	default:
		if d.err == nil {
			return nil, fmt.Errorf("unsupported attribute version %d", m.Version)
		}
	}
	flags := d.u8()
	if flags&0x03 != 0 {
		return nil, fmt.Errorf("attribute with shared datatype or dataspace is not supported")
	}
	nameSize := int(d.u16())
	m.DatatypeSize = d.u16()
	m.DataspaceSize = d.u16()
	if m.Version >= 3 {
		m.Encoding = CharacterSet(d.u8())
	}

	// Version 1 pads each field to a multiple of 8.
	field := func(n int) *dec {
		sub := d.sub(n)
		if m.Version == 1 {
			d.skip(padTo8(n))
		}
		return sub
	}
	m.Name = field(nameSize).cstring(nameSize)

	var err error
	if m.Datatype, err = parseDatatype(field(int(m.DatatypeSize))); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	if m.Dataspace, err = parseDataspace(field(int(m.DataspaceSize))); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	m.Data = d.rest()
	if err := d.check("attribute"); err != nil {
		return nil, err
	}
	return m, nil
}

func padTo8(n int) int { return (8 - n%8) % 8 }

// Serialize writes a version 3 attribute with a NUL-terminated name.
func (m *Attribute) Serialize(w *binary.Writer) error {
	if m.Datatype == nil || m.Dataspace == nil {
		return fmt.Errorf("attribute %q: missing datatype or dataspace", m.Name)
	}
	dtSize := m.Datatype.SerializedSize(w)
	dsSize := m.Dataspace.SerializedSize(w)

	e := &enc{w: w}
	e.u8(3, 0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(dtSize))
	e.u16(uint16(dsSize))
	e.u8(uint8(m.Encoding))
	e.str(m.Name)
	e.u8(0)
	e.do(func() error { return m.Datatype.Serialize(w) })
	e.do(func() error { return m.Dataspace.Serialize(w) })
	e.bytes(m.Data)
	return e.err
}

func (m *Attribute) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

// NewAttribute returns a version 3 attribute. Names are stored as UTF-8.
func NewAttribute(name string, dt *Datatype, ds *Dataspace, data []byte) *Attribute {
	return &Attribute{
		Version:   3,
		Name:      name,
		Encoding:  CharsetUTF8,
		Datatype:  dt,
		Dataspace: ds,
		Data:      data,
	}
}

package message

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when equal to Dimensions
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the number of elements the dataspace holds.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

// Version 1: version, rank, flags, 5 reserved bytes. Version 2: version,
// rank, flags, type. Both are followed by the dimensions and, with flag
// bit 0, the maximum dimensions.
func parseDataspace(d *dec) (*Dataspace, error) {
	m := &Dataspace{Version: d.u8(), Rank: int(d.u8())}
	flags := d.u8()
	switch m.Version {
	case 1:
		d.skip(5)
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(d.u8())
	default:
		return nil, fmt.Errorf("unsupported dataspace version %d", m.Version)
	}

	if m.SpaceType == DataspaceSimple && m.Rank > 0 {
		m.Dimensions = make([]uint64, m.Rank)
		for i := range m.Dimensions {
			m.Dimensions[i] = d.length()
		}
		if flags&0x01 != 0 {
			m.MaxDims = make([]uint64, m.Rank)
			for i := range m.MaxDims {
				m.MaxDims[i] = d.length()
			}
		}
	}
	if err := d.check("dataspace"); err != nil {
		return nil, err
	}
	return m, nil
}

// Serialize writes a version 2 dataspace.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	e := &enc{w: w}
	flags := uint8(0)
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	e.u8(2, uint8(m.Rank), flags, uint8(m.SpaceType))
	for _, dim := range m.Dimensions {
		e.length(dim)
	}
	if flags != 0 {
		for _, dim := range m.MaxDims {
			e.length(dim)
		}
	}
	return e.err
}

func (m *Dataspace) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}

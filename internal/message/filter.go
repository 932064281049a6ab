package message

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// Filter identifiers. IDs below 256 are reserved by HDF5; the others are
// registered third-party filters.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
	FilterZstd        uint16 = 32015
)

// FilterFlagOptional lets a writer skip the filter when it fails on a chunk.
const FilterFlagOptional uint16 = 0x0001

type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

func (f *FilterInfo) IsOptional() bool { return f.Flags&FilterFlagOptional != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func parseFilterPipeline(d *dec) (*FilterPipeline, error) {
	m := &FilterPipeline{Version: d.u8()}
	n := int(d.u8())
	switch m.Version {
	case 1:
		d.skip(6)
	case 2:
	default:
		if d.err == nil {
			return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
		}
	}

	for range n {
		var f FilterInfo
		f.ID = d.u16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(d.u16())
		}
		f.Flags = d.u16()
		nvalues := int(d.u16())
		if nameLen > 0 {
			f.Name = d.cstring(nameLen)
		}
		f.ClientData = make([]uint32, nvalues)
		for i := range f.ClientData {
			f.ClientData[i] = d.u32()
		}
		if m.Version == 1 && nvalues%2 == 1 {
			d.skip(4)
		}
		if d.err != nil {
			break
		}
		m.Filters = append(m.Filters, f)
	}
	if err := d.check("filter pipeline"); err != nil {
		return nil, err
	}
	return m, nil
}

// Serialize writes version 2, which stores names only for third-party
// filters.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	e := &enc{w: w}
	e.u8(2, uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.u16(f.ID)
		named := f.ID >= 256
		if named {
			e.u16(uint16(len(f.Name) + 1))
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		if named {
			e.str(f.Name)
			e.u8(0)
		}
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
	return e.err
}

func (m *FilterPipeline) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}

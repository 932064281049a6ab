package message

import (
	"github.com/robert-malhotra/go-nexus/internal/binary"
)

const (
	linkInfoTrackOrder = 0x01
	linkInfoIndexOrder = 0x02
)

// LinkInfo marks a new-style group. A group whose links live in a
// fractal heap has a defined FractalHeapAddr.
type LinkInfo struct {
	Version                uint8
	Flags                  uint8
	MaxCreationIndex       uint64
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether the links are stored in a fractal heap rather than
// as link messages in the header.
func (m *LinkInfo) Dense() bool { return m.FractalHeapAddr != UndefinedAddress }

func parseLinkInfo(d *dec) (*LinkInfo, error) {
	m := &LinkInfo{
		Version:                d.u8(),
		Flags:                  d.u8(),
		CreationOrderBTreeAddr: UndefinedAddress,
	}
	if m.Flags&linkInfoTrackOrder != 0 {
		m.MaxCreationIndex = d.u64()
	}
	m.FractalHeapAddr = d.address()
	m.NameIndexBTreeAddr = d.address()
	if m.Flags&linkInfoIndexOrder != 0 {
		m.CreationOrderBTreeAddr = d.address()
	}
	if err := d.check("link info"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LinkInfo) Serialize(w *binary.Writer) error {
	e := &enc{w: w}
	e.u8(m.Version, m.Flags)
	if m.Flags&linkInfoTrackOrder != 0 {
		e.u64(m.MaxCreationIndex)
	}
	e.address(m.FractalHeapAddr)
	e.address(m.NameIndexBTreeAddr)
	if m.Flags&linkInfoIndexOrder != 0 {
		e.address(m.CreationOrderBTreeAddr)
	}
	return e.err
}

func (m *LinkInfo) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

// NewLinkInfo returns the link info of an empty compact group.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{
		FractalHeapAddr:        UndefinedAddress,
		NameIndexBTreeAddr:     UndefinedAddress,
		CreationOrderBTreeAddr: UndefinedAddress,
	}
}

// GroupInfo carries the compact/dense thresholds of a group. Only the
// default, empty form is written.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Serialize(w *binary.Writer) error {
	e := &enc{w: w}
	e.u8(m.Version, m.Flags)
	if m.Flags&0x01 != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&0x02 != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
	return e.err
}

func (m *GroupInfo) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }

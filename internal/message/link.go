package message

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

const (
	linkCreationOrder = 0x04
	linkTypePresent   = 0x08
	linkCharsetSet    = 0x10
)

// Link is one entry of a compact group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       CharacterSet

	ObjectAddress uint64

	SoftLinkValue string

	ExternalFile string
	ExternalPath string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(d *dec) (*Link, error) {
	m := &Link{Version: d.u8()}
	if d.err == nil && m.Version != 1 {
		return nil, fmt.Errorf("unsupported link version %d", m.Version)
	}
	flags := d.u8()
	if flags&linkTypePresent != 0 {
		m.LinkType = LinkType(d.u8())
	}
	if flags&linkCreationOrder != 0 {
		m.CreationOrder = d.u64()
	}
	if flags&linkCharsetSet != 0 {
		m.Charset = CharacterSet(d.u8())
	}
	m.Name = string(d.take(int(d.uintN(1 << (flags & 0x03)))))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = d.offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(d.take(int(d.u16())))
	case LinkTypeExternal:
		info := d.take(int(d.u16()))
		if d.err == nil {
			if len(info) < 2 {
				return nil, fmt.Errorf("external link %q: value too short", m.Name)
			}
			file, path, _ := bytes.Cut(info[1:], []byte{0})
			m.ExternalFile = string(file)
			m.ExternalPath = string(bytes.TrimRight(path, "\x00"))
		}
	default:
		d.rest()
	}
	if err := d.check("link"); err != nil {
		return nil, err
	}
	return m, nil
}

// Serialize writes a version 1 link. The type byte is omitted for hard
// links and the charset byte for ASCII names.
func (m *Link) Serialize(w *binary.Writer) error {
	width := widthOf(uint64(len(m.Name)))
	flags := uint8(bits.TrailingZeros(uint(width)))
	if m.LinkType != LinkTypeHard {
		flags |= linkTypePresent
	}
	if m.Charset != CharsetASCII {
		flags |= linkCharsetSet
	}

	e := &enc{w: w}
	e.u8(1, flags)
	if flags&linkTypePresent != 0 {
		e.u8(uint8(m.LinkType))
	}
	if flags&linkCharsetSet != 0 {
		e.u8(uint8(m.Charset))
	}
	e.uintN(uint64(len(m.Name)), width)
	e.str(m.Name)

	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.str(m.SoftLinkValue)
	case LinkTypeExternal:
		e.u16(uint16(1 + len(m.ExternalFile) + 1 + len(m.ExternalPath) + 1))
		e.u8(0)
		e.str(m.ExternalFile)
		e.u8(0)
		e.str(m.ExternalPath)
		e.u8(0)
	default:
		return fmt.Errorf("cannot write link type %d", m.LinkType)
	}
	return e.err
}

func (m *Link) SerializedSize(w *binary.Writer) int { return measure(w, m.Serialize) }

func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

// NewExternalLink returns a link to path inside file.
func NewExternalLink(name, file, path string) *Link {
	return &Link{
		Version:      1,
		LinkType:     LinkTypeExternal,
		Name:         name,
		ExternalFile: file,
		ExternalPath: path,
	}
}

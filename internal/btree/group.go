package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/heap"
)

// GroupEntry is one member of an old-style group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64

	// Soft entries carry their target path instead of an address.
	Soft          bool
	SoftLinkValue string
}

// cacheSoft is the cache type of a symbol table entry for a soft link.
const cacheSoft = 2

// ReadGroupEntries lists the members of the group whose B-tree is at addr.
// Names are resolved through the group's local heap.
func ReadGroupEntries(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	var entries []GroupEntry
	err := walkV1(r, addr, nodeGroup, r.LengthSize(), 0, func(_ []byte, snod uint64) error {
		found, err := readSymbolNode(r, snod, names)
		entries = append(entries, found...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("group B-tree at %#x: %w", addr, err)
	}
	return entries, nil
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(head[:4]) != "SNOD" {
		return nil, fmt.Errorf("symbol node at %#x: bad signature %q", addr, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("symbol node at %#x: version %d", addr, head[4])
	}
	n := int(r.ByteOrder().Uint16(head[6:]))

	entries := make([]GroupEntry, 0, n)
	for range n {
		e, err := readSymbolEntry(nr, names)
		if err != nil {
			return nil, fmt.Errorf("symbol node at %#x: %w", addr, err)
		}
		if e.Name != "" {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// readSymbolEntry reads a symbol table entry: name offset, header address,
// cache type, 4 reserved bytes and a 16-byte scratch pad.
func readSymbolEntry(r *binary.Reader, names *heap.LocalHeap) (GroupEntry, error) {
	nameOff, err := r.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	addr, err := r.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	cache, err := r.ReadUint32()
	if err != nil {
		return GroupEntry{}, err
	}
	r.Skip(4)
	scratch, err := r.ReadBytes(16)
	if err != nil {
		return GroupEntry{}, err
	}

	e := GroupEntry{Name: names.Name(nameOff), ObjectAddress: addr}
	if cache == cacheSoft {
		e.Soft = true
		e.SoftLinkValue = names.Name(uint64(r.ByteOrder().Uint32(scratch)))
		e.ObjectAddress = 0
	}
	return e, nil
}

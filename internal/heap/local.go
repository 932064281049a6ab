package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// LocalHeap is the data segment of a version 0 local heap.
type LocalHeap struct {
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap reads the local heap whose header is at addr.
func ReadLocalHeap(r *binary.Reader, addr uint64) (*LocalHeap, error) {
	hr := r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("local heap at %#x: %w", addr, err)
	}
	if string(sig) != "HEAP" {
		return nil, fmt.Errorf("local heap at %#x: bad signature %q", addr, sig)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("local heap at %#x: version %d", addr, version)
	}
	hr.Skip(3)

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // free list head
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %#x: %w", dataAddr, err)
	}
	return &LocalHeap{DataAddress: dataAddr, data: data}, nil
}

// Name returns the NUL-terminated string at offset, or "" if offset is
// outside the heap.
func (h *LocalHeap) Name(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

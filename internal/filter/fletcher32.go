package filter

import (
	stdbinary "encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Fletcher32Filter appends a Fletcher-32 checksum to each chunk and checks
// it on the way back.
type Fletcher32Filter struct{}

func NewFletcher32([]uint32) *Fletcher32Filter { return &Fletcher32Filter{} }

func (f *Fletcher32Filter) ID() uint16 { return message.FilterFletcher32 }

func (f *Fletcher32Filter) Decode(input []byte) ([]byte, error) {
	n := len(input) - 4
	if n < 0 {
		return nil, fmt.Errorf("chunk of %d bytes has no checksum", len(input))
	}
	stored := stdbinary.LittleEndian.Uint32(input[n:])
	if sum := binary.Fletcher32(input[:n]); sum != stored {
		return nil, fmt.Errorf("checksum mismatch: stored %#08x, computed %#08x", stored, sum)
	}
	return input[:n], nil
}

func (f *Fletcher32Filter) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return stdbinary.LittleEndian.AppendUint32(out, binary.Fletcher32(input)), nil
}

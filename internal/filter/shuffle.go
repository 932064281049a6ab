package filter

import "github.com/robert-malhotra/go-nexus/internal/message"

// Shuffle regroups chunk bytes by their position within an element: all
// first bytes, then all second bytes, and so on. Trailing bytes that do
// not fill an element are left in place.
type Shuffle struct {
	elemSize int
}

// NewShuffle creates a shuffle filter. clientData[0] is the element size.
func NewShuffle(clientData []uint32) *Shuffle {
	if len(clientData) > 0 && clientData[0] > 0 {
		return &Shuffle{elemSize: int(clientData[0])}
	}
	return &Shuffle{elemSize: 1}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	return f.transpose(input, false), nil
}

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	return f.transpose(input, true), nil
}

// transpose treats the whole elements of input as an n x elemSize matrix
// and returns its transpose, or the inverse when back is set.
func (f *Shuffle) transpose(input []byte, back bool) []byte {
	size := f.elemSize
	n := len(input) / max(size, 1)
	if size <= 1 || n == 0 {
		return input
	}
	out := make([]byte, len(input))
	for e := range n {
		for b := range size {
			if back {
				out[e*size+b] = input[b*n+e]
			} else {
				out[b*n+e] = input[e*size+b]
			}
		}
	}
	copy(out[n*size:], input[n*size:])
	return out
}

package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Compact serves raw data stored inside the object header.
type Compact struct {
	data      []byte
	dataspace *message.Dataspace
	elemSize  uint64
}

func NewCompact(layout *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype) *Compact {
	return &Compact{data: layout.CompactData, dataspace: dataspace, elemSize: uint64(datatype.Size)}
}

// ReadSelection reads the selected elements in row-major selection order.
func (c *Compact) ReadSelection(sel Hyperslab) ([]byte, error) {
	out := make([]byte, 0, sel.NumElements()*c.elemSize)
	err := runBytes(sel, c.dataspace, c.elemSize, func(lo, hi, _ uint64) error {
		if hi > uint64(len(c.data)) {
			return fmt.Errorf("compact data holds %d bytes, need %d", len(c.data), hi)
		}
		out = append(out, c.data[lo:hi]...)
		return nil
	})
	return out, err
}

// WriteSelection updates the in-memory data. The caller stores Data back
// into the object header.
func (c *Compact) WriteSelection(sel Hyperslab, data []byte) error {
	if err := checkLen(sel, c.elemSize, data); err != nil {
		return err
	}
	if total := c.dataspace.NumElements() * c.elemSize; uint64(len(c.data)) < total {
		grown := make([]byte, total)
		copy(grown, c.data)
		c.data = grown
	}
	return runBytes(sel, c.dataspace, c.elemSize, func(lo, hi, at uint64) error {
		copy(c.data[lo:hi], data[at:])
		return nil
	})
}

// Data returns the current compact data.
func (c *Compact) Data() []byte { return c.data }

// runBytes validates sel and calls fn with the byte range [lo, hi) of each
// run of contiguous elements and its position at in the packed selection.
func runBytes(sel Hyperslab, space *message.Dataspace, elemSize uint64, fn func(lo, hi, at uint64) error) error {
	if err := sel.Validate(space.Dimensions); err != nil {
		return err
	}
	var at uint64
	return sel.Runs(space.Dimensions, func(off, n uint64) error {
		lo, hi := off*elemSize, (off+n)*elemSize
		if err := fn(lo, hi, at); err != nil {
			return err
		}
		at += hi - lo
		return nil
	})
}

func checkLen(sel Hyperslab, elemSize uint64, data []byte) error {
	if want := sel.NumElements() * elemSize; uint64(len(data)) != want {
		return fmt.Errorf("data has %d bytes, selection needs %d", len(data), want)
	}
	return nil
}

package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Contiguous serves raw data stored in a single block of the file.
type Contiguous struct {
	address   uint64
	dataspace *message.Dataspace
	elemSize  uint64
	reader    *binary.Reader
}

func NewContiguous(layout *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype, reader *binary.Reader) *Contiguous {
	return &Contiguous{
		address:   layout.Address,
		dataspace: dataspace,
		elemSize:  uint64(datatype.Size),
		reader:    reader,
	}
}

// ReadSelection reads the selected elements in row-major selection order.
// Storage that was never allocated reads as zeros.
func (c *Contiguous) ReadSelection(sel Hyperslab) ([]byte, error) {
	out := make([]byte, 0, sel.NumElements()*c.elemSize)
	if c.reader.IsUndefinedOffset(c.address) {
		if err := sel.Validate(c.dataspace.Dimensions); err != nil {
			return nil, err
		}
		return out[:cap(out)], nil
	}
	err := runBytes(sel, c.dataspace, c.elemSize, func(lo, hi, _ uint64) error {
		data, err := c.reader.At(int64(c.address + lo)).ReadBytes(int(hi - lo))
		if err != nil {
			return fmt.Errorf("reading contiguous data at byte %d: %w", lo, err)
		}
		out = append(out, data...)
		return nil
	})
	return out, err
}

// WriteSelection stores data, packed in selection order, into the
// allocated storage.
func (c *Contiguous) WriteSelection(w *binary.Writer, sel Hyperslab, data []byte) error {
	if err := checkLen(sel, c.elemSize, data); err != nil {
		return err
	}
	if c.reader.IsUndefinedOffset(c.address) {
		return errors.New("contiguous data not allocated")
	}
	return runBytes(sel, c.dataspace, c.elemSize, func(lo, hi, at uint64) error {
		if err := w.At(int64(c.address + lo)).WriteBytes(data[at : at+hi-lo]); err != nil {
			return fmt.Errorf("writing contiguous data at byte %d: %w", lo, err)
		}
		return nil
	})
}

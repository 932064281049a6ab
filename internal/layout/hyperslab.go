package layout

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a selection reaches past the dataset extent.
var ErrOutOfBounds = errors.New("selection out of bounds")

// Hyperslab is a strided rectangular selection. Count gives the number of
// elements per dimension; a nil Stride means a stride of one. A selection
// with no dimensions selects the single element of a scalar dataset.
type Hyperslab struct {
	Start  []uint64
	Count  []uint64
	Stride []uint64
}

// All selects every element of a dataset with the given dimensions.
func All(dims []uint64) Hyperslab {
	return Hyperslab{
		Start: make([]uint64, len(dims)),
		Count: append([]uint64(nil), dims...),
	}
}

func (h Hyperslab) stride(d int) uint64 {
	if h.Stride == nil || h.Stride[d] == 0 {
		return 1
	}
	return h.Stride[d]
}

// NumElements returns the number of selected elements.
func (h Hyperslab) NumElements() uint64 {
	n := uint64(1)
	for _, c := range h.Count {
		n *= c
	}
	return n
}

// Validate checks the selection against dataset dimensions.
func (h Hyperslab) Validate(dims []uint64) error {
	if len(h.Start) != len(dims) || len(h.Count) != len(dims) {
		return fmt.Errorf("%w: selection rank %d/%d, dataset rank %d", ErrOutOfBounds, len(h.Start), len(h.Count), len(dims))
	}
	if h.Stride != nil && len(h.Stride) != len(dims) {
		return fmt.Errorf("%w: stride rank %d, dataset rank %d", ErrOutOfBounds, len(h.Stride), len(dims))
	}
	for d := range dims {
		if h.Count[d] == 0 {
			continue
		}
		last := h.Start[d] + (h.Count[d]-1)*h.stride(d)
		if last >= dims[d] {
			return fmt.Errorf("%w: dimension %d, start=%d, count=%d, stride=%d, size=%d",
				ErrOutOfBounds, d, h.Start[d], h.Count[d], h.stride(d), dims[d])
		}
	}
	return nil
}

// Runs calls fn for each run of consecutive dataset elements covered by
// the selection, in row-major selection order. off is the linear element
// index of the run's first element.
func (h Hyperslab) Runs(dims []uint64, fn func(off, n uint64) error) error {
	if len(dims) == 0 {
		return fn(0, 1)
	}
	if h.NumElements() == 0 {
		return nil
	}

	strides := make([]uint64, len(dims))
	strides[len(dims)-1] = 1
	for d := len(dims) - 2; d >= 0; d-- {
		strides[d] = strides[d+1] * dims[d+1]
	}

	var pendOff, pendN uint64
	emit := func(off, n uint64) error {
		if pendN > 0 && pendOff+pendN == off {
			pendN += n
			return nil
		}
		if pendN > 0 {
			if err := fn(pendOff, pendN); err != nil {
				return err
			}
		}
		pendOff, pendN = off, n
		return nil
	}

	var walk func(d int, base uint64) error
	walk = func(d int, base uint64) error {
		last := d == len(dims)-1
		for i := uint64(0); i < h.Count[d]; i++ {
			off := base + (h.Start[d]+i*h.stride(d))*strides[d]
			if !last {
				if err := walk(d+1, off); err != nil {
					return err
				}
				continue
			}
			if h.stride(d) == 1 {
				return emit(off, h.Count[d])
			}
			if err := emit(off, 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, 0); err != nil {
		return err
	}
	if pendN > 0 {
		return fn(pendOff, pendN)
	}
	return nil
}

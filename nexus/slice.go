package nexus

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// Slice selects a strided hyperslab of a dataset. Nil fields take their
// defaults: Start is all zeros, Step all ones, and Count reaches the end
// of each dimension. The zero Slice selects the whole dataset.
type Slice struct {
	Start []int
	Count []int
	Step  []int
}

// All selects the whole dataset.
var All = Slice{}

// selection converts s into a container selection for a dataset of the
// given shape and returns the shape of the result.
func (s Slice) selection(shape []int) (*h5.Selection, []int, error) {
	rank := len(shape)
	for _, f := range []struct {
		name string
		v    []int
	}{{"start", s.Start}, {"count", s.Count}, {"step", s.Step}} {
		if f.v != nil && len(f.v) != rank {
			return nil, nil, fmt.Errorf("%s has rank %d, dataset has rank %d", f.name, len(f.v), rank)
		}
	}
	if rank == 0 {
		return nil, []int{}, nil
	}

	sel := &h5.Selection{
		Start: make([]uint64, rank),
		Count: make([]uint64, rank),
	}
	out := make([]int, rank)
	strided := false
	stride := make([]uint64, rank)
	for i, dim := range shape {
		start, step := 0, 1
		if s.Start != nil {
			start = s.Start[i]
		}
		if s.Step != nil {
			step = s.Step[i]
		}
		if start < 0 || step < 1 {
			return nil, nil, fmt.Errorf("dimension %d: start %d, step %d", i, start, step)
		}
		count := 0
		if s.Count != nil {
			count = s.Count[i]
		} else if start < dim {
			count = (dim - start + step - 1) / step
		}
		switch {
		case count < 0:
			return nil, nil, fmt.Errorf("dimension %d: negative count %d", i, count)
		case count == 0 && start > dim:
			return nil, nil, fmt.Errorf("dimension %d: start %d beyond extent %d", i, start, dim)
		case count > 0 && start+(count-1)*step >= dim:
			return nil, nil, fmt.Errorf("dimension %d: selection ends beyond extent %d", i, dim)
		}
		sel.Start[i] = uint64(start)
		sel.Count[i] = uint64(count)
		stride[i] = uint64(step)
		strided = strided || step != 1
		out[i] = count
	}
	if strided {
		sel.Stride = stride
	}
	return sel, out, nil
}

package h5

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Unlimited marks a dimension without an upper bound.
const Unlimited = ^uint64(0)

type spaceRef struct {
	space *message.Dataspace
}

// CreateSimpleSpace creates an n-dimensional dataspace. maxDims may be nil,
// meaning the extent is fixed; entries may be Unlimited.
func (f *File) CreateSimpleSpace(dims, maxDims []uint64) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return InvalidID, err
	}
	if len(dims) == 0 {
		return InvalidID, fmt.Errorf("%w: dataspace rank must be at least 1", ErrInvalid)
	}
	if maxDims != nil {
		if len(maxDims) != len(dims) {
			return InvalidID, fmt.Errorf("%w: %d max dimensions for rank %d", ErrInvalid, len(maxDims), len(dims))
		}
		for i, m := range maxDims {
			if m < dims[i] {
				return InvalidID, fmt.Errorf("%w: max dimension %d is %d, below %d", ErrInvalid, i, m, dims[i])
			}
		}
		maxDims = slices.Clone(maxDims)
	}
	ref := &spaceRef{space: message.NewDataspace(slices.Clone(dims), maxDims)}
	return register(&f.handles, f.handles.spaces, ref), nil
}

// CreateScalarSpace creates a single-element dataspace.
func (f *File) CreateScalarSpace() (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return InvalidID, err
	}
	ref := &spaceRef{space: message.NewScalarDataspace()}
	return register(&f.handles, f.handles.spaces, ref), nil
}

// SpaceDims returns the current and maximum dimensions of a dataspace.
// Both are empty for a scalar dataspace.
func (f *File) SpaceDims(id ID) (dims, maxDims []uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return nil, nil, err
	}
	ref, err := lookup(f.handles.spaces, id, CategorySpace)
	if err != nil {
		return nil, nil, err
	}
	return spaceDims(ref.space)
}

func spaceDims(ds *message.Dataspace) ([]uint64, []uint64, error) {
	switch {
	case ds.IsNull():
		return nil, nil, fmt.Errorf("%w: null dataspace", ErrUnsupported)
	case ds.IsScalar():
		return []uint64{}, []uint64{}, nil
	}
	dims := slices.Clone(ds.Dimensions)
	maxDims := slices.Clone(ds.MaxDims)
	if maxDims == nil {
		maxDims = slices.Clone(dims)
	}
	return dims, maxDims, nil
}

// CloseSpace releases a dataspace handle.
func (f *File) CloseSpace(id ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return err
	}
	return release(f.handles.spaces, id, CategorySpace)
}

package h5

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-nexus/internal/filter"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// LayoutClass selects how dataset elements are stored.
type LayoutClass uint8

const (
	LayoutContiguous LayoutClass = iota
	LayoutCompact
	LayoutChunked
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutContiguous:
		return "contiguous"
	case LayoutCompact:
		return "compact"
	case LayoutChunked:
		return "chunked"
	default:
		return fmt.Sprintf("layout(%d)", uint8(c))
	}
}

// Filter IDs accepted by SetFilter.
const (
	FilterDeflate    = message.FilterDeflate
	FilterShuffle    = message.FilterShuffle
	FilterFletcher32 = message.FilterFletcher32
	FilterLZ4        = message.FilterLZ4
	FilterZstd       = message.FilterZstd
)

// FilterOptional marks a filter whose failure does not fail a write.
const FilterOptional = message.FilterFlagOptional

// plistRef is a dataset creation property list.
type plistRef struct {
	layout  LayoutClass
	chunk   []uint64
	filters []message.FilterInfo
}

// CreateDatasetPlist creates a dataset creation property list with
// contiguous layout and no filters.
func (f *File) CreateDatasetPlist() (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return InvalidID, err
	}
	return register(&f.handles, f.handles.plists, &plistRef{}), nil
}

// SetLayout sets the storage layout. Chunked layout requires SetChunk.
func (f *File) SetLayout(id ID, layout LayoutClass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, err := f.plist(id)
	if err != nil {
		return err
	}
	if layout > LayoutChunked {
		return fmt.Errorf("%w: %s", ErrInvalid, layout)
	}
	pl.layout = layout
	return nil
}

// SetChunk sets chunked layout with the given chunk dimensions.
func (f *File) SetChunk(id ID, chunk []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, err := f.plist(id)
	if err != nil {
		return err
	}
	if len(chunk) == 0 {
		return fmt.Errorf("%w: empty chunk shape", ErrInvalid)
	}
	for i, c := range chunk {
		if c == 0 || c > 0xFFFFFFFF {
			return fmt.Errorf("%w: chunk dimension %d is %d", ErrInvalid, i, c)
		}
	}
	pl.layout = LayoutChunked
	pl.chunk = slices.Clone(chunk)
	return nil
}

// SetFilter appends a filter to the pipeline. Filters apply in the order
// they are added when writing and in reverse when reading.
func (f *File) SetFilter(id ID, filterID uint16, flags uint16, clientData ...uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, err := f.plist(id)
	if err != nil {
		return err
	}
	if !filter.Supported(filterID) {
		return fmt.Errorf("%w: filter %d", ErrUnsupported, filterID)
	}
	pl.filters = append(pl.filters, message.FilterInfo{
		ID:         filterID,
		Flags:      flags,
		ClientData: slices.Clone(clientData),
	})
	return nil
}

// ClosePlist releases a property list handle.
func (f *File) ClosePlist(id ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return err
	}
	return release(f.handles.plists, id, CategoryPlist)
}

func (f *File) plist(id ID) (*plistRef, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	return lookup(f.handles.plists, id, CategoryPlist)
}

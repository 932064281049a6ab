package h5

import "fmt"

// ID identifies an open object, dataspace, attribute or property list.
type ID int64

// InvalidID is never returned for an open resource.
const InvalidID ID = -1

// Valid reports whether id could refer to an open resource.
func (id ID) Valid() bool { return id >= 0 }

// Category selects one of the handle tables.
type Category uint8

const (
	CategoryObject Category = iota
	CategorySpace
	CategoryAttribute
	CategoryPlist
)

func (c Category) String() string {
	switch c {
	case CategoryObject:
		return "object"
	case CategorySpace:
		return "dataspace"
	case CategoryAttribute:
		return "attribute"
	case CategoryPlist:
		return "plist"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// handles holds the open resources of a File. IDs are unique across all
// categories so that a handle of one category is never accepted by another.
type handles struct {
	next    ID
	objects map[ID]*objectRef
	spaces  map[ID]*spaceRef
	attrs   map[ID]*attrRef
	plists  map[ID]*plistRef
}

func newHandles() handles {
	return handles{
		objects: make(map[ID]*objectRef),
		spaces:  make(map[ID]*spaceRef),
		attrs:   make(map[ID]*attrRef),
		plists:  make(map[ID]*plistRef),
	}
}

func register[T any](h *handles, table map[ID]T, v T) ID {
	id := h.next
	h.next++
	table[id] = v
	return id
}

func lookup[T any](table map[ID]T, id ID, c Category) (T, error) {
	v, ok := table[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %d", ErrInvalidHandle, c, id)
	}
	return v, nil
}

func release[T any](table map[ID]T, id ID, c Category) error {
	if _, ok := table[id]; !ok {
		return fmt.Errorf("%w: %s %d", ErrInvalidHandle, c, id)
	}
	delete(table, id)
	return nil
}

func (h *handles) count(c Category) int {
	switch c {
	case CategoryObject:
		return len(h.objects)
	case CategorySpace:
		return len(h.spaces)
	case CategoryAttribute:
		return len(h.attrs)
	case CategoryPlist:
		return len(h.plists)
	}
	return 0
}

// OpenCount returns the number of open handles in category c.
func (f *File) OpenCount(c Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles.count(c)
}

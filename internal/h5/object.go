package h5

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// ObjectKind distinguishes groups from datasets.
type ObjectKind uint8

const (
	KindGroup ObjectKind = iota + 1
	KindDataset
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	default:
		return "unknown"
	}
}

// ObjectInfo describes the object a path resolves to.
type ObjectInfo struct {
	Kind    ObjectKind
	Address uint64

	// External is set when the object lives in another container reached
	// through an external link.
	External bool

	NumAttributes int
}

// objectRef is an open group or dataset.
type objectRef struct {
	loc  location
	kind ObjectKind
	path string
}

// ObjectInfo returns information about the object at path.
func (f *File) ObjectInfo(path string) (ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return ObjectInfo{}, err
	}
	f.stats.Lookups++

	loc, err := f.resolve(path)
	if err != nil {
		return ObjectInfo{}, err
	}
	kind, hdr, err := kindOf(loc)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Kind:          kind,
		Address:       loc.addr,
		External:      loc.file != f,
		NumAttributes: len(hdr.GetMessages(message.TypeAttribute)),
	}, nil
}

// OpenObject opens the group or dataset at path.
func (f *File) OpenObject(path string) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return InvalidID, err
	}
	f.stats.Lookups++

	loc, err := f.resolve(path)
	if err != nil {
		return InvalidID, err
	}
	kind, _, err := kindOf(loc)
	if err != nil {
		return InvalidID, err
	}
	ref := &objectRef{loc: loc, kind: kind, path: absPath(splitPath(path))}
	return register(&f.handles, f.handles.objects, ref), nil
}

// ObjectKind returns the kind of an open object.
func (f *File) ObjectKind(id ID) (ObjectKind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	ref, err := lookup(f.handles.objects, id, CategoryObject)
	if err != nil {
		return 0, err
	}
	return ref.kind, nil
}

// CloseObject releases an object handle. Buffered chunks of a dataset
// are written out first.
func (f *File) CloseObject(id ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return err
	}
	ref, err := lookup(f.handles.objects, id, CategoryObject)
	if err != nil {
		return err
	}
	delete(f.handles.objects, id)

	if ref.kind == KindDataset && ref.loc.file == f && f.mode == ReadWrite {
		if err := f.flushDataset(ref.loc.addr); err != nil {
			return fmt.Errorf("closing %s: %w", ref.path, err)
		}
	}
	return nil
}

// object returns the open object id, which must be of kind want unless
// want is zero.
func (f *File) object(id ID, want ObjectKind) (*objectRef, error) {
	ref, err := lookup(f.handles.objects, id, CategoryObject)
	if err != nil {
		return nil, err
	}
	if want != 0 && ref.kind != want {
		if want == KindDataset {
			return nil, fmt.Errorf("%w: %s", ErrNotDataset, ref.path)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, ref.path)
	}
	return ref, nil
}

// writableObject is object for operations that modify the object header.
func (f *File) writableObject(id ID, want ObjectKind) (*objectRef, error) {
	ref, err := f.object(id, want)
	if err != nil {
		return nil, err
	}
	if ref.loc.file != f {
		return nil, fmt.Errorf("%w: %s is in external file %s", ErrReadOnly, ref.path, ref.loc.file.path)
	}
	return ref, nil
}

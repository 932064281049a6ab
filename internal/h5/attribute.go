package h5

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// maxAttributeSize is the largest attribute message kept in the object
// header. Larger attributes need dense storage, which is not written.
const maxAttributeSize = 0xFFFF

type attrRef struct {
	loc  location
	name string
}

// attribute returns the attribute message called name on the object at loc.
func attribute(loc location, name string) (*message.Attribute, error) {
	hdr, err := loc.file.header(loc.addr)
	if err != nil {
		return nil, err
	}
	for _, msg := range hdr.GetMessages(message.TypeAttribute) {
		if a := msg.(*message.Attribute); a.Name == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: attribute %q", ErrNotFound, name)
}

func cloneSpace(ds *message.Dataspace) *message.Dataspace {
	if ds.IsScalar() {
		return message.NewScalarDataspace()
	}
	return message.NewDataspace(slices.Clone(ds.Dimensions), slices.Clone(ds.MaxDims))
}

// CreateAttribute adds an attribute to an open object and opens it. The
// value is zero until WriteAttribute.
func (f *File) CreateAttribute(obj ID, name string, typ TypeID, space ID) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return InvalidID, err
	}
	ref, err := f.writableObject(obj, 0)
	if err != nil {
		return InvalidID, err
	}
	sp, err := lookup(f.handles.spaces, space, CategorySpace)
	if err != nil {
		return InvalidID, err
	}
	if name == "" {
		return InvalidID, fmt.Errorf("%w: empty attribute name", ErrInvalid)
	}
	if _, err := attribute(ref.loc, name); err == nil {
		return InvalidID, fmt.Errorf("%w: attribute %q on %s", ErrExists, name, ref.path)
	}
	dt, err := datatypeOf(typ, f.writer.OffsetSize())
	if err != nil {
		return InvalidID, err
	}

	ds := cloneSpace(sp.space)
	data := make([]byte, ds.NumElements()*uint64(dt.Size))
	if err := f.storeAttribute(ref.loc.addr, message.NewAttribute(name, dt, ds, data)); err != nil {
		return InvalidID, fmt.Errorf("creating attribute %q on %s: %w", name, ref.path, err)
	}
	return register(&f.handles, f.handles.attrs, &attrRef{loc: ref.loc, name: name}), nil
}

// storeAttribute adds attr to the header at addr, replacing an attribute
// of the same name in place.
func (f *File) storeAttribute(addr uint64, attr *message.Attribute) error {
	if size := attr.SerializedSize(f.writer); size > maxAttributeSize {
		return fmt.Errorf("%w: attribute of %d bytes", ErrUnsupported, size)
	}
	hdr, err := f.header(addr)
	if err != nil {
		return err
	}
	replaced := false
	msgs := make([]message.Message, 0, len(hdr.Raw)+1)
	for _, r := range hdr.Raw {
		if a, ok := r.Parsed.(*message.Attribute); ok && a.Name == attr.Name {
			msgs = append(msgs, attr)
			replaced = true
			continue
		}
		msgs = append(msgs, r)
	}
	if !replaced {
		msgs = append(msgs, attr)
	}
	return f.rewrite(addr, msgs)
}

// WriteAttribute stores src, a slice or a single value, as the value of an
// open attribute.
func (f *File) WriteAttribute(id ID, src any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	ref, err := lookup(f.handles.attrs, id, CategoryAttribute)
	if err != nil {
		return err
	}
	if ref.loc.file != f {
		return fmt.Errorf("%w: attribute %q is in external file %s", ErrReadOnly, ref.name, ref.loc.file.path)
	}
	cur, err := attribute(ref.loc, ref.name)
	if err != nil {
		return err
	}

	dt, err := datatypeOf(typeOf(cur.Datatype), f.writer.OffsetSize())
	if err != nil {
		return err
	}
	ds := cloneSpace(cur.Dataspace)
	data, err := f.encode(dt, src, ds.NumElements())
	if err != nil {
		return fmt.Errorf("writing attribute %q: %w", ref.name, err)
	}
	return f.storeAttribute(ref.loc.addr, message.NewAttribute(ref.name, dt, ds, data))
}

// OpenAttribute opens the attribute called name on an open object.
func (f *File) OpenAttribute(obj ID, name string) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return InvalidID, err
	}
	ref, err := f.object(obj, 0)
	if err != nil {
		return InvalidID, err
	}
	if _, err := attribute(ref.loc, name); err != nil {
		return InvalidID, fmt.Errorf("%s: %w", ref.path, err)
	}
	return register(&f.handles, f.handles.attrs, &attrRef{loc: ref.loc, name: name}), nil
}

// AttributeNames returns the attribute names of an open object in storage
// order.
func (f *File) AttributeNames(obj ID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	ref, err := f.object(obj, 0)
	if err != nil {
		return nil, err
	}
	hdr, err := ref.loc.file.header(ref.loc.addr)
	if err != nil {
		return nil, err
	}
	msgs := hdr.GetMessages(message.TypeAttribute)
	names := make([]string, len(msgs))
	for i, msg := range msgs {
		names[i] = msg.(*message.Attribute).Name
	}
	return names, nil
}

func (f *File) openAttribute(id ID) (*attrRef, *message.Attribute, error) {
	if err := f.checkOpen(); err != nil {
		return nil, nil, err
	}
	ref, err := lookup(f.handles.attrs, id, CategoryAttribute)
	if err != nil {
		return nil, nil, err
	}
	a, err := attribute(ref.loc, ref.name)
	if err != nil {
		return nil, nil, err
	}
	return ref, a, nil
}

// ReadAttribute reads the value of an open attribute into dest, a pointer
// to a slice or, for a single element, to a value.
func (f *File) ReadAttribute(id ID, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, a, err := f.openAttribute(id)
	if err != nil {
		return err
	}
	if a.Dataspace.IsNull() {
		return fmt.Errorf("%w: attribute %q has a null dataspace", ErrUnsupported, ref.name)
	}
	if err := decode(a.Datatype, a.Data, a.Dataspace.NumElements(), dest, ref.loc.file.reader); err != nil {
		return fmt.Errorf("reading attribute %q: %w", ref.name, err)
	}
	return nil
}

// AttributeType returns the storage type of an open attribute.
func (f *File) AttributeType(id ID) (TypeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, a, err := f.openAttribute(id)
	if err != nil {
		return 0, err
	}
	return typeOf(a.Datatype), nil
}

// AttributeSpace returns a new dataspace handle describing an open
// attribute.
func (f *File) AttributeSpace(id ID) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, a, err := f.openAttribute(id)
	if err != nil {
		return InvalidID, err
	}
	if a.Dataspace.IsNull() {
		return InvalidID, fmt.Errorf("%w: attribute %q has a null dataspace", ErrUnsupported, ref.name)
	}
	return register(&f.handles, f.handles.spaces, &spaceRef{space: cloneSpace(a.Dataspace)}), nil
}

// DeleteAttribute removes the attribute called name from an open object.
func (f *File) DeleteAttribute(obj ID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	ref, err := f.writableObject(obj, 0)
	if err != nil {
		return err
	}
	if _, err := attribute(ref.loc, name); err != nil {
		return fmt.Errorf("%s: %w", ref.path, err)
	}
	hdr, err := f.header(ref.loc.addr)
	if err != nil {
		return err
	}
	msgs := rawMessages(hdr, func(r *message.Raw) bool {
		a, ok := r.Parsed.(*message.Attribute)
		return !ok || a.Name != name
	})
	return f.rewrite(ref.loc.addr, msgs)
}

// CloseAttribute releases an attribute handle.
func (f *File) CloseAttribute(id ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return err
	}
	return release(f.handles.attrs, id, CategoryAttribute)
}

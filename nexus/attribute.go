package nexus

import (
	"errors"
	"log/slog"
	"reflect"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// Attribute is a named value attached to a group or dataset. Value is a
// scalar or a slice of one of the Go types a Buffer may hold.
type Attribute struct {
	Name  string
	Value any
}

// AddAttribute attaches attrs to the node at path, replacing attributes of
// the same name.
func (t *Tree) AddAttribute(path string, attrs ...Attribute) error {
	const op = "add attribute"
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(op, path); err != nil {
		return err
	}
	id, err := t.nav.find(op, p)
	if err != nil {
		return err
	}
	plain := t.cache.node(id).path
	obj, err := t.openObject(op, plain)
	if err != nil {
		return err
	}
	defer obj.Close()

	for _, a := range attrs {
		if err := writeAttribute(t.f, t.log, obj.ID(), a.Name, a.Value); err != nil {
			return translate(op, plain+"@"+a.Name, err)
		}
	}
	return nil
}

// Attributes returns the attributes of the node at path in storage order.
// Scalar attributes have scalar values.
func (t *Tree) Attributes(path string) ([]Attribute, error) {
	const op = "attributes"
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(op, path); err != nil {
		return nil, err
	}
	id, err := t.nav.find(op, p)
	if err != nil {
		return nil, err
	}
	plain := t.cache.node(id).path
	obj, err := t.openObject(op, plain)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	names, err := t.f.AttributeNames(obj.ID())
	if err != nil {
		return nil, translate(op, plain, err)
	}
	attrs := make([]Attribute, 0, len(names))
	for _, name := range names {
		v, err := readAttribute(t.f, t.types, t.log, obj.ID(), name)
		if err != nil {
			return nil, translate(op, plain+"@"+name, err)
		}
		attrs = append(attrs, Attribute{Name: name, Value: v})
	}
	return attrs, nil
}

// writeAttribute stores value as the attribute name of obj. An existing
// attribute of that name is replaced.
func writeAttribute(f *h5.File, log *slog.Logger, obj h5.ID, name string, value any) error {
	info, err := inspect(value)
	if err != nil {
		return err
	}
	var sid h5.ID
	if info.scalar {
		sid, err = f.CreateScalarSpace()
	} else {
		sid, err = f.CreateSimpleSpace([]uint64{uint64(info.n)}, nil)
	}
	if err != nil {
		return err
	}
	space := newSpaceHandle(f, sid, log)
	defer space.Close()

	if err := f.DeleteAttribute(obj, name); err != nil && !errors.Is(err, h5.ErrNotFound) {
		return err
	}
	typ := DefaultTypeMap().ElementToStorage(info.elem, info.unsigned)
	aid, err := f.CreateAttribute(obj, name, typ, sid)
	if err != nil {
		return err
	}
	attr := newAttrHandle(f, aid, log)
	err = f.WriteAttribute(aid, value)
	if hook := testHookAttributeWritten; err == nil && hook != nil {
		err = hook(name)
	}
	if err != nil {
		attr.Close()
		if derr := f.DeleteAttribute(obj, name); derr != nil {
			log.Warn("removing partially written attribute failed", "name", name, "error", derr)
		}
		return err
	}
	return attr.Close()
}

func readAttribute(f *h5.File, types *TypeMap, log *slog.Logger, obj h5.ID, name string) (any, error) {
	aid, err := f.OpenAttribute(obj, name)
	if err != nil {
		return nil, err
	}
	attr := newAttrHandle(f, aid, log)
	defer attr.Close()

	typ, err := f.AttributeType(aid)
	if err != nil {
		return nil, err
	}
	elem, unsigned, err := types.StorageToElement(typ)
	if err != nil {
		return nil, err
	}
	sid, err := f.AttributeSpace(aid)
	if err != nil {
		return nil, err
	}
	space := newSpaceHandle(f, sid, log)
	defer space.Close()
	dims, _, err := f.SpaceDims(sid)
	if err != nil {
		return nil, err
	}

	n := product(fromDims(dims))
	ptr := reflect.New(reflect.TypeOf(makeData(elem, unsigned, 0)))
	if n > 0 {
		if err := f.ReadAttribute(aid, ptr.Interface()); err != nil {
			return nil, err
		}
	}
	data := ptr.Elem()
	if len(dims) == 0 {
		if data.Len() == 0 {
			return nil, nil
		}
		return data.Index(0).Interface(), nil
	}
	if data.IsNil() {
		data = reflect.MakeSlice(data.Type(), 0, 0)
	}
	return data.Interface(), nil
}

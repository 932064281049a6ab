package nexus

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// Unlimited marks a dimension of MaxShape that can grow without bound.
const Unlimited = -1

// ShapeDescriptor describes a dataset to create.
type ShapeDescriptor struct {
	// Shape is the initial extent. An empty, non-nil Shape is a scalar.
	Shape []int
	// MaxShape bounds the extent; nil fixes it at Shape. Entries may be
	// Unlimited.
	MaxShape []int
	// Chunking is the chunk shape. Extendible datasets without one are
	// chunked by their initial shape.
	Chunking []int

	Type     ElementType
	Unsigned bool

	// Value, if set, is written as the initial contents.
	Value any
}

// DescriptorOf describes a dataset holding value, a scalar or a slice of
// a supported type.
func DescriptorOf(value any) (ShapeDescriptor, error) {
	info, err := inspect(value)
	if err != nil {
		return ShapeDescriptor{}, err
	}
	d := ShapeDescriptor{Shape: []int{}, Type: info.elem, Unsigned: info.unsigned, Value: value}
	if !info.scalar {
		d.Shape = []int{info.n}
	}
	return d, nil
}

func (d ShapeDescriptor) extendible() bool {
	return d.MaxShape != nil && !slices.Equal(d.MaxShape, d.Shape)
}

func (d ShapeDescriptor) chunks() []int {
	if d.Chunking != nil || !d.extendible() {
		return d.Chunking
	}
	c := make([]int, len(d.Shape))
	for i, s := range d.Shape {
		c[i] = max(s, 1)
	}
	return c
}

func (d ShapeDescriptor) validate(op, path string) error {
	if d.Shape == nil {
		return shapeErr(op, path, "shape is unset")
	}
	if !d.Type.Valid() {
		return &TreeError{Op: op, Path: path, Kind: ErrTypeMismatch, Detail: "invalid element type " + d.Type.String()}
	}
	rank := len(d.Shape)
	for i, s := range d.Shape {
		if s < 0 {
			return shapeErr(op, path, "dimension %d is negative", i)
		}
	}
	if d.MaxShape != nil {
		if len(d.MaxShape) != rank {
			return shapeErr(op, path, "max shape has rank %d, shape has rank %d", len(d.MaxShape), rank)
		}
		for i, m := range d.MaxShape {
			if m != Unlimited && m < d.Shape[i] {
				return shapeErr(op, path, "max dimension %d is %d, below %d", i, m, d.Shape[i])
			}
		}
	}
	if d.Chunking != nil {
		if rank == 0 || len(d.Chunking) != rank {
			return shapeErr(op, path, "chunking has rank %d, shape has rank %d", len(d.Chunking), rank)
		}
		for i, c := range d.Chunking {
			if c < 1 {
				return shapeErr(op, path, "chunk dimension %d is %d", i, c)
			}
		}
	}
	if d.Value != nil {
		info, err := inspect(d.Value)
		if err != nil {
			return err
		}
		if !info.matches(d.Type, d.Unsigned) {
			return typeMismatch(op, path, info, d.Type, d.Unsigned)
		}
		if n := product(d.Shape); info.n != n {
			return shapeErr(op, path, "value has %d elements, shape holds %d", info.n, n)
		}
	}
	return nil
}

func typeMismatch(op, path string, v valueInfo, elem ElementType, unsigned bool) error {
	return &TreeError{
		Op:     op,
		Path:   path,
		Kind:   ErrTypeMismatch,
		Detail: fmt.Sprintf("%s value for %s data", describeType(v.elem, v.unsigned), describeType(elem, unsigned)),
	}
}

func describeType(elem ElementType, unsigned bool) string {
	if unsigned && elem.IsInteger() {
		return "u" + elem.String()
	}
	return elem.String()
}

func toDims(shape []int) []uint64 {
	if shape == nil {
		return nil
	}
	dims := make([]uint64, len(shape))
	for i, s := range shape {
		if s == Unlimited {
			dims[i] = h5.Unlimited
		} else {
			dims[i] = uint64(s)
		}
	}
	return dims
}

func fromDims(dims []uint64) []int {
	shape := make([]int, len(dims))
	for i, d := range dims {
		if d == h5.Unlimited {
			shape[i] = Unlimited
		} else {
			shape[i] = int(d)
		}
	}
	return shape
}

// datasetEntry is an open dataset and its descriptor. The tree owns the
// object handle until it closes.
type datasetEntry struct {
	path     string
	obj      *objectHandle
	shape    []int
	maxShape []int
	chunking []int
	elem     ElementType
	unsigned bool
	storage  h5.TypeID
}

func describe(f *h5.File, types *TypeMap, log *slog.Logger, path string, obj *objectHandle) (*datasetEntry, error) {
	typ, err := f.DatasetType(obj.ID())
	if err != nil {
		return nil, err
	}
	elem, unsigned, err := types.StorageToElement(typ)
	if err != nil {
		return nil, err
	}

	sid, err := f.DatasetSpace(obj.ID())
	if err != nil {
		return nil, err
	}
	space := newSpaceHandle(f, sid, log)
	defer space.Close()
	dims, maxDims, err := f.SpaceDims(sid)
	if err != nil {
		return nil, err
	}

	class, chunk, err := f.DatasetLayout(obj.ID())
	if err != nil {
		return nil, err
	}
	e := &datasetEntry{
		path:     path,
		obj:      obj,
		shape:    fromDims(dims),
		maxShape: fromDims(maxDims),
		elem:     elem,
		unsigned: unsigned,
		storage:  typ,
	}
	if class == h5.LayoutChunked {
		e.chunking = fromDims(chunk)
	}
	return e, nil
}

// Direction is the direction a DataNode is armed for.
type Direction uint8

const (
	Read Direction = iota + 1
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// LazyDataset moves data between a dataset and memory in one direction.
// It is implemented by *Loader and *Saver only.
type LazyDataset interface {
	ReadSlice(s Slice) (Buffer, error)
	WriteSlice(s Slice, b Buffer) error
	Direction() Direction

	sealed()
}

// DataNode is a dataset of an open tree, armed for reading or writing.
type DataNode struct {
	tree    *Tree
	entry   *datasetEntry
	dataset LazyDataset
}

func newDataNode(t *Tree, e *datasetEntry, dir Direction) *DataNode {
	n := &DataNode{tree: t, entry: e}
	if dir == Write {
		n.dataset = &Saver{node: n}
	} else {
		n.dataset = &Loader{node: n}
	}
	return n
}

// Path returns the plain absolute path of the dataset.
func (n *DataNode) Path() string { return n.entry.path }

// Shape returns the current extent; it is empty for a scalar.
func (n *DataNode) Shape() []int {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return slices.Clone(n.entry.shape)
}

// MaxShape returns the maximum extent, with Unlimited entries for
// dimensions that can grow without bound.
func (n *DataNode) MaxShape() []int { return slices.Clone(n.entry.maxShape) }

// Chunking returns the chunk shape, or nil when the dataset is not chunked.
func (n *DataNode) Chunking() []int { return slices.Clone(n.entry.chunking) }

func (n *DataNode) ElementType() ElementType { return n.entry.elem }

// Unsigned reports whether the elements are unsigned integers.
func (n *DataNode) Unsigned() bool { return n.entry.unsigned }

func (n *DataNode) Scalar() bool { return len(n.entry.shape) == 0 }

// Dataset returns the strategy the node is armed with.
func (n *DataNode) Dataset() LazyDataset { return n.dataset }

func (n *DataNode) ReadSlice(s Slice) (Buffer, error) { return n.dataset.ReadSlice(s) }

func (n *DataNode) WriteSlice(s Slice, b Buffer) error { return n.dataset.WriteSlice(s, b) }

// ReadScalar returns the value of a scalar dataset.
func (n *DataNode) ReadScalar() (any, error) {
	l, ok := n.dataset.(*Loader)
	if !ok {
		return nil, treeErr("read", n.entry.path, ErrWrongDirection)
	}
	return l.ReadScalar()
}

// WriteScalar stores the value of a scalar dataset.
func (n *DataNode) WriteScalar(v any) error {
	s, ok := n.dataset.(*Saver)
	if !ok {
		return treeErr("write", n.entry.path, ErrWrongDirection)
	}
	return s.WriteScalar(v)
}

// Extend grows or shrinks a chunked dataset within its maximum shape.
func (n *DataNode) Extend(shape []int) error {
	s, ok := n.dataset.(*Saver)
	if !ok {
		return treeErr("extend", n.entry.path, ErrWrongDirection)
	}
	return s.Extend(shape)
}

// Loader reads slices of a dataset.
type Loader struct {
	node *DataNode
}

func (*Loader) sealed() {}

func (*Loader) Direction() Direction { return Read }

func (l *Loader) ReadSlice(s Slice) (Buffer, error) {
	t := l.node.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	return l.read(s)
}

func (l *Loader) read(s Slice) (Buffer, error) {
	t, e := l.node.tree, l.node.entry
	if err := t.checkOpen("read", e.path); err != nil {
		return Buffer{}, err
	}
	sel, shape, err := s.selection(e.shape)
	if err != nil {
		return Buffer{}, shapeErr("read", e.path, "%v", err)
	}
	n := product(shape)
	data := makeData(e.elem, e.unsigned, n)
	if n > 0 {
		ptr := reflect.New(reflect.TypeOf(data))
		if err := t.f.ReadDataset(e.obj.ID(), sel, ptr.Interface()); err != nil {
			return Buffer{}, translate("read", e.path, err)
		}
		data = ptr.Elem().Interface()
	}
	return Buffer{Shape: shape, Data: data}, nil
}

// ReadScalar returns the value of a scalar dataset.
func (l *Loader) ReadScalar() (any, error) {
	t, e := l.node.tree, l.node.entry
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(e.shape) != 0 {
		return nil, shapeErr("read", e.path, "dataset has shape %v", e.shape)
	}
	b, err := l.read(All)
	if err != nil {
		return nil, err
	}
	return b.Index(0), nil
}

// WriteSlice fails with ErrWrongDirection.
func (l *Loader) WriteSlice(Slice, Buffer) error {
	return treeErr("write", l.node.entry.path, ErrWrongDirection)
}

// Saver writes slices of a dataset.
type Saver struct {
	node *DataNode
}

func (*Saver) sealed() {}

func (*Saver) Direction() Direction { return Write }

// ReadSlice fails with ErrWrongDirection.
func (s *Saver) ReadSlice(Slice) (Buffer, error) {
	return Buffer{}, treeErr("read", s.node.entry.path, ErrWrongDirection)
}

// WriteSlice stores b into the selected elements. b must hold exactly as
// many elements as the selection, of the dataset's element type.
func (s *Saver) WriteSlice(sl Slice, b Buffer) error {
	t := s.node.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	return s.write(sl, b)
}

func (s *Saver) write(sl Slice, b Buffer) error {
	t, e := s.node.tree, s.node.entry
	if err := t.checkWritable("write", e.path); err != nil {
		return err
	}
	sel, shape, err := sl.selection(e.shape)
	if err != nil {
		return shapeErr("write", e.path, "%v", err)
	}
	info, err := inspect(b.Data)
	if err != nil {
		return err
	}
	if !info.matches(e.elem, e.unsigned) {
		return typeMismatch("write", e.path, info, e.elem, e.unsigned)
	}
	n := product(shape)
	if info.n != n {
		return shapeErr("write", e.path, "buffer holds %d elements, selection %d", info.n, n)
	}
	if b.Shape != nil && product(b.Shape) != n {
		return shapeErr("write", e.path, "buffer shape %v for selection %v", b.Shape, shape)
	}
	if n == 0 {
		return nil
	}
	return translate("write", e.path, t.f.WriteDataset(e.obj.ID(), sel, b.Data))
}

// WriteScalar stores the value of a scalar dataset.
func (s *Saver) WriteScalar(v any) error {
	t, e := s.node.tree, s.node.entry
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(e.shape) != 0 {
		return shapeErr("write", e.path, "dataset has shape %v", e.shape)
	}
	return s.write(All, Buffer{Shape: []int{}, Data: v})
}

// Extend changes the extent of a chunked dataset. Each dimension must stay
// within the maximum shape.
func (s *Saver) Extend(shape []int) error {
	t, e := s.node.tree, s.node.entry
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable("extend", e.path); err != nil {
		return err
	}
	if e.chunking == nil {
		return shapeErr("extend", e.path, "dataset is not chunked")
	}
	if len(shape) != len(e.shape) {
		return shapeErr("extend", e.path, "new shape has rank %d, dataset has rank %d", len(shape), len(e.shape))
	}
	for i, d := range shape {
		if d < 0 || (e.maxShape[i] != Unlimited && d > e.maxShape[i]) {
			return shapeErr("extend", e.path, "dimension %d cannot be %d (max %d)", i, d, e.maxShape[i])
		}
	}
	if err := t.f.SetExtent(e.obj.ID(), toDims(shape)); err != nil {
		return translate("extend", e.path, err)
	}
	e.shape = slices.Clone(shape)
	t.log.Debug("extended dataset", "path", e.path, "shape", shape)
	return nil
}

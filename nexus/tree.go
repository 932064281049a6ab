package nexus

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// TreeState is the lifecycle state of a Tree.
type TreeState uint8

const (
	Closed TreeState = iota
	OpenReadOnly
	OpenReadWrite
)

func (s TreeState) String() string {
	switch s {
	case OpenReadOnly:
		return "read-only"
	case OpenReadWrite:
		return "read-write"
	default:
		return "closed"
	}
}

// Option configures how a tree is opened.
type Option func(*treeOptions)

type treeOptions struct {
	log         *slog.Logger
	locking     bool
	compression Compression
	offsetSize  int
	lengthSize  int
}

// WithLogger sets the logger for diagnostics. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(o *treeOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithLocking enables or disables advisory locking of the container file.
// Locking is on by default.
func WithLocking(enabled bool) Option {
	return func(o *treeOptions) {
		o.locking = enabled
	}
}

// WithCompression sets the filters applied to chunked datasets.
func WithCompression(c Compression) Option {
	return func(o *treeOptions) {
		o.compression = c
	}
}

// WithAddressSizes sets the width in bytes of file addresses and lengths
// in files the tree creates. Both must be 2, 4 or 8; the default is 8.
// Existing files keep their own sizes.
func WithAddressSizes(offset, length int) Option {
	return func(o *treeOptions) {
		o.offsetSize, o.lengthSize = offset, length
	}
}

// createOptions returns the h5 options for creating a file.
func (o treeOptions) createOptions(extra ...h5.Option) []h5.Option {
	opts := append([]h5.Option{h5.WithLocking(o.locking)}, extra...)
	if o.offsetSize != 0 {
		opts = append(opts, h5.WithOffsetSize(o.offsetSize))
	}
	if o.lengthSize != 0 {
		opts = append(opts, h5.WithLengthSize(o.lengthSize))
	}
	return opts
}

func buildOptions(opts []Option) treeOptions {
	o := treeOptions{
		log:     slog.New(slog.DiscardHandler),
		locking: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Tree is a NeXus tree over one container file. Its methods and those of
// the nodes it returns are safe for concurrent use.
type Tree struct {
	mu    sync.Mutex
	path  string
	state TreeState
	f     *h5.File
	cache *nodeCache
	nav   *navigator
	types *TypeMap
	log   *slog.Logger
	opts  treeOptions
}

func newTree(path string, f *h5.File, state TreeState, rootState NodeState, o treeOptions) *Tree {
	t := &Tree{
		path:  path,
		state: state,
		f:     f,
		cache: newNodeCache(rootState),
		types: DefaultTypeMap(),
		log:   o.log.With("tree", path),
		opts:  o,
	}
	t.nav = &navigator{f: f, cache: t.cache, types: t.types, log: t.log}
	t.log.Debug("opened tree", "state", state.String())
	return t
}

// OpenToRead opens an existing file for reading.
func OpenToRead(path string, opts ...Option) (*Tree, error) {
	o := buildOptions(opts)
	f, err := h5.Open(path, h5.ReadOnly, h5.WithLocking(o.locking))
	if err != nil {
		return nil, &IoError{Op: "open", Path: path, Err: err}
	}
	return newTree(path, f, OpenReadOnly, NodeUnresolved, o), nil
}

// OpenToWrite opens a file for writing. A missing file is created when
// createIfNecessary is set; an existing file is never truncated.
func OpenToWrite(path string, createIfNecessary bool, opts ...Option) (*Tree, error) {
	o := buildOptions(opts)
	lock := h5.WithLocking(o.locking)

	f, err := h5.Open(path, h5.ReadWrite, lock)
	if err == nil {
		return newTree(path, f, OpenReadWrite, NodeUnresolved, o), nil
	}
	if !createIfNecessary || !errors.Is(err, fs.ErrNotExist) {
		return nil, &IoError{Op: "open", Path: path, Err: err}
	}

	f, err = h5.Create(path, o.createOptions(h5.WithExclusive())...)
	if errors.Is(err, fs.ErrExist) {
		// Created by someone else since the open above.
		f, err = h5.Open(path, h5.ReadWrite, lock)
		if err != nil {
			return nil, &IoError{Op: "open", Path: path, Err: err}
		}
		return newTree(path, f, OpenReadWrite, NodeUnresolved, o), nil
	}
	if err != nil {
		return nil, &IoError{Op: "create", Path: path, Err: err}
	}
	return newTree(path, f, OpenReadWrite, NodePopulated, o), nil
}

// CreateAndOpenToWrite creates a new empty file, truncating any existing
// one, and opens it for writing.
func CreateAndOpenToWrite(path string, opts ...Option) (*Tree, error) {
	o := buildOptions(opts)
	f, err := h5.Create(path, o.createOptions()...)
	if err != nil {
		return nil, &IoError{Op: "create", Path: path, Err: err}
	}
	return newTree(path, f, OpenReadWrite, NodePopulated, o), nil
}

// Path returns the file path the tree was opened with.
func (t *Tree) Path() string { return t.path }

// State returns the lifecycle state of the tree.
func (t *Tree) State() TreeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tree) checkOpen(op, path string) error {
	if t.state == Closed {
		return treeErr(op, path, ErrClosed)
	}
	return nil
}

func (t *Tree) checkWritable(op, path string) error {
	if err := t.checkOpen(op, path); err != nil {
		return err
	}
	if t.state != OpenReadWrite {
		return treeErr(op, path, ErrReadOnly)
	}
	return nil
}

// CreateGroup returns the group at path, creating it if it does not exist.
// Missing ancestors are created only when createIfNecessary is set. Each
// created group whose segment has a class gets an NX_class attribute.
func (t *Tree) CreateGroup(path string, createIfNecessary bool) (*GroupNode, error) {
	const op = "create group"
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(op, path); err != nil {
		return nil, err
	}
	seg, ok := p.Base()
	if !ok {
		return t.group(rootID), nil
	}
	parent, err := t.nav.resolve(op, p.Parent(), KindGroup, createIfNecessary)
	if err != nil {
		return nil, err
	}
	id, err := t.nav.step(op, parent, seg, KindGroup, true)
	if err != nil {
		return nil, err
	}
	if t.cache.node(id).kind != KindGroup {
		return nil, treeErr(op, p.Plain(), ErrKindMismatch)
	}
	return t.group(id), nil
}

// GetGroup returns the existing group at path.
func (t *Tree) GetGroup(path string) (*GroupNode, error) {
	const op = "get group"
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(op, path); err != nil {
		return nil, err
	}
	id, err := t.nav.resolve(op, p, KindGroup, false)
	if err != nil {
		return nil, err
	}
	return t.group(id), nil
}

func (t *Tree) group(id NodeID) *GroupNode {
	return &GroupNode{tree: t, id: id, path: t.cache.node(id).path}
}

// CreateData creates a dataset at path described by desc and returns it
// armed for writing. The parent group must exist unless createIfNecessary
// is set.
func (t *Tree) CreateData(path string, desc ShapeDescriptor, createIfNecessary bool) (*DataNode, error) {
	const op = "create data"
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(op, path); err != nil {
		return nil, err
	}
	seg, ok := p.Base()
	if !ok {
		return nil, treeErr(op, "/", ErrKindMismatch)
	}
	plain := p.Plain()
	if err := desc.validate(op, plain); err != nil {
		return nil, err
	}
	parent, err := t.nav.resolve(op, p.Parent(), KindGroup, createIfNecessary)
	if err != nil {
		return nil, err
	}
	id, found, err := t.nav.lookup(op, parent, seg.Name)
	if err != nil {
		return nil, err
	}
	if found {
		if t.cache.node(id).kind == KindGroup {
			return nil, treeErr(op, plain, ErrKindMismatch)
		}
		return nil, treeErr(op, plain, ErrExists)
	}

	e, err := t.createDataset(op, parent, seg.Name, desc)
	if err != nil {
		return nil, err
	}
	return newDataNode(t, e, Write), nil
}

func (t *Tree) createDataset(op string, parent NodeID, name string, d ShapeDescriptor) (*datasetEntry, error) {
	path := joinPath(t.cache.node(parent).path, name)
	f := t.f

	var sid h5.ID
	var err error
	if len(d.Shape) == 0 {
		sid, err = f.CreateScalarSpace()
	} else {
		sid, err = f.CreateSimpleSpace(toDims(d.Shape), toDims(d.MaxShape))
	}
	if err != nil {
		return nil, translate(op, path, err)
	}
	space := newSpaceHandle(f, sid, t.log)
	defer space.Close()

	pid := h5.InvalidID
	chunk := d.chunks()
	if chunk != nil {
		if pid, err = f.CreateDatasetPlist(); err != nil {
			return nil, translate(op, path, err)
		}
		plist := newPlistHandle(f, pid, t.log)
		defer plist.Close()
		if err := f.SetChunk(pid, toDims(chunk)); err != nil {
			return nil, translate(op, path, err)
		}
		for _, fl := range t.opts.compression.filters() {
			if err := f.SetFilter(pid, fl.id, 0, fl.clientData...); err != nil {
				return nil, translate(op, path, err)
			}
		}
	}

	typ := t.types.ElementToStorage(d.Type, d.Unsigned)
	oid, err := f.CreateDataset(path, typ, sid, pid)
	if err != nil {
		return nil, translate(op, path, err)
	}
	obj := newObjectHandle(f, oid, t.log)
	if d.Value != nil {
		err := f.WriteDataset(oid, nil, d.Value)
		if hook := testHookDatasetWritten; err == nil && hook != nil {
			err = hook(path)
		}
		if err != nil {
			obj.Close()
			t.nav.discard(path)
			return nil, translate(op, path, err)
		}
	}

	maxShape := d.MaxShape
	if maxShape == nil {
		maxShape = d.Shape
	}
	e := &datasetEntry{
		path:     path,
		obj:      obj,
		shape:    append([]int{}, d.Shape...),
		maxShape: append([]int{}, maxShape...),
		chunking: chunk,
		elem:     d.Type,
		unsigned: d.Unsigned && d.Type.IsInteger(),
		storage:  typ,
	}
	id := t.cache.add(parent, name, KindDataset, NodeDataset)
	t.cache.node(id).data = e
	t.nav.changed(parent)
	t.log.Debug("created dataset", "path", path, "type", describeType(e.elem, e.unsigned), "shape", d.Shape)
	return e, nil
}

// GetData returns the dataset at path armed for reading.
func (t *Tree) GetData(path string) (*DataNode, error) {
	return t.getData("get data", path, Read)
}

// GetWritableData returns the dataset at path armed for writing.
func (t *Tree) GetWritableData(path string) (*DataNode, error) {
	return t.getData("get writable data", path, Write)
}

func (t *Tree) getData(op, path string, dir Direction) (*DataNode, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if dir == Write {
		err = t.checkWritable(op, path)
	} else {
		err = t.checkOpen(op, path)
	}
	if err != nil {
		return nil, err
	}
	id, err := t.nav.resolve(op, p, KindDataset, false)
	if err != nil {
		return nil, err
	}
	e, err := t.nav.dataset(op, id)
	if err != nil {
		return nil, err
	}
	return newDataNode(t, e, dir), nil
}

// find returns the node at p, group or dataset.
func (n *navigator) find(op string, p ParsedPath) (NodeID, error) {
	seg, ok := p.Base()
	if !ok {
		return rootID, nil
	}
	parent, err := n.resolve(op, p.Parent(), KindGroup, false)
	if err != nil {
		return 0, err
	}
	id, found, err := n.lookup(op, parent, seg.Name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, treeErr(op, p.Plain(), ErrNotFound)
	}
	return id, nil
}

func (t *Tree) openObject(op, path string) (*objectHandle, error) {
	id, err := t.f.OpenObject(path)
	if err != nil {
		return nil, translate(op, path, err)
	}
	return newObjectHandle(t.f, id, t.log), nil
}

// Flush writes pending changes to the file. It does nothing for a
// read-only tree.
func (t *Tree) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush()
}

func (t *Tree) flush() error {
	if err := t.checkOpen("flush", t.path); err != nil {
		return err
	}
	if t.state == OpenReadOnly {
		return nil
	}
	if err := t.f.Flush(); err != nil {
		return &IoError{Op: "flush", Path: t.path, Err: err}
	}
	t.log.Debug("flushed tree")
	return nil
}

// Close flushes and closes the tree, releasing every handle it holds.
// Closing a closed tree does nothing.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Closed {
		return nil
	}
	for _, e := range t.cache.datasets() {
		e.obj.Close()
	}
	for _, c := range []h5.Category{h5.CategoryObject, h5.CategorySpace, h5.CategoryAttribute, h5.CategoryPlist} {
		if n := t.f.OpenCount(c); n > 0 {
			t.log.Warn("closing tree with open handles", "category", c.String(), "count", n)
		}
	}
	err := t.f.Close()
	t.state = Closed
	t.cache = newNodeCache(NodeUnresolved)
	t.nav.cache = t.cache
	t.log.Debug("closed tree")
	if err != nil {
		return &IoError{Op: "close", Path: t.path, Err: err}
	}
	return nil
}

// Checksum returns the BLAKE3-256 digest of the file contents after
// flushing pending changes.
func (t *Tree) Checksum() ([32]byte, error) {
	var sum [32]byte
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.flush(); err != nil {
		return sum, err
	}
	file, err := os.Open(t.path)
	if err != nil {
		return sum, &IoError{Op: "checksum", Path: t.path, Err: err}
	}
	defer file.Close()

	h := blake3.New()
	if _, err := io.Copy(h, file); err != nil {
		return sum, &IoError{Op: "checksum", Path: t.path, Err: err}
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func (t *Tree) String() string {
	return fmt.Sprintf("nexus.Tree(%s, %s)", t.path, t.State())
}

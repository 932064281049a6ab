package h5

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/dtype"
	"github.com/robert-malhotra/go-nexus/internal/filter"
	"github.com/robert-malhotra/go-nexus/internal/heap"
	"github.com/robert-malhotra/go-nexus/internal/layout"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

const (
	// datasetChunkSize is the minimum first header chunk of a new dataset,
	// leaving room for a few attributes before a continuation is needed.
	datasetChunkSize = 256

	// maxCompactSize bounds the raw data of a compact dataset, which is
	// stored inside the object header.
	maxCompactSize = 64*1024 - 256
)

// Selection is a strided hyperslab. A nil Stride means a stride of one.
type Selection struct {
	Start  []uint64
	Count  []uint64
	Stride []uint64
}

// datasetState is the open state of a dataset, shared by all handles to it.
type datasetState struct {
	space   *message.Dataspace
	dtype   *message.Datatype
	layout  *message.DataLayout
	filters *message.FilterPipeline

	chunks  *layout.ChunkCache
	compact *layout.Compact

	// headerDirty is set when the dataspace or layout message must be
	// stored back into the object header.
	headerDirty bool
}

func (st *datasetState) dims() []uint64 {
	if st.space.IsScalar() {
		return nil
	}
	return st.space.Dimensions
}

func (st *datasetState) hyperslab(sel *Selection) layout.Hyperslab {
	if sel == nil {
		return layout.All(st.dims())
	}
	return layout.Hyperslab{Start: sel.Start, Count: sel.Count, Stride: sel.Stride}
}

// dataset returns the state of the dataset at addr, loading it on first use.
func (f *File) dataset(addr uint64) (*datasetState, error) {
	if st, ok := f.datasets[addr]; ok {
		return st, nil
	}
	hdr, err := f.header(addr)
	if err != nil {
		return nil, err
	}
	space, dt, lay := hdr.Dataspace(), hdr.Datatype(), hdr.DataLayout()
	if space == nil || dt == nil || lay == nil {
		return nil, fmt.Errorf("%w: object at %d", ErrNotDataset, addr)
	}
	if space.IsNull() {
		return nil, fmt.Errorf("%w: dataset at %d has a null dataspace", ErrUnsupported, addr)
	}
	st := &datasetState{
		space: &message.Dataspace{
			Version:    space.Version,
			Rank:       space.Rank,
			SpaceType:  space.SpaceType,
			Dimensions: slices.Clone(space.Dimensions),
			MaxDims:    slices.Clone(space.MaxDims),
		},
		dtype:   dt,
		layout:  lay,
		filters: hdr.FilterPipeline(),
	}
	f.datasets[addr] = st
	return st, nil
}

// chunkCache returns the chunk cache of a chunked dataset.
func (f *File) chunkCache(st *datasetState) (*layout.ChunkCache, error) {
	if st.chunks != nil {
		return st.chunks, nil
	}
	src, err := layout.NewChunked(st.layout, st.space, st.dtype, st.filters, f.reader)
	if err != nil {
		return nil, err
	}
	cc, err := layout.NewChunkCache(src)
	if err != nil {
		return nil, err
	}
	st.chunks = cc
	return cc, nil
}

func (st *datasetState) compactStore() *layout.Compact {
	if st.compact == nil {
		st.compact = layout.NewCompact(st.layout, st.space, st.dtype)
	}
	return st.compact
}

func (f *File) readSelection(st *datasetState, sel layout.Hyperslab) ([]byte, error) {
	switch st.layout.Class {
	case message.LayoutChunked:
		cc, err := f.chunkCache(st)
		if err != nil {
			return nil, err
		}
		return cc.ReadSelection(sel)
	case message.LayoutContiguous:
		return layout.NewContiguous(st.layout, st.space, st.dtype, f.reader).ReadSelection(sel)
	case message.LayoutCompact:
		return st.compactStore().ReadSelection(sel)
	default:
		return nil, fmt.Errorf("%w: layout class %d", ErrUnsupported, st.layout.Class)
	}
}

func (f *File) writeSelection(st *datasetState, sel layout.Hyperslab, data []byte) error {
	switch st.layout.Class {
	case message.LayoutChunked:
		cc, err := f.chunkCache(st)
		if err != nil {
			return err
		}
		return cc.WriteSelection(sel, data)
	case message.LayoutContiguous:
		return layout.NewContiguous(st.layout, st.space, st.dtype, f.reader).WriteSelection(f.writer, sel, data)
	case message.LayoutCompact:
		if err := st.compactStore().WriteSelection(sel, data); err != nil {
			return err
		}
		st.headerDirty = true
		return nil
	default:
		return fmt.Errorf("%w: layout class %d", ErrUnsupported, st.layout.Class)
	}
}

// flushDataset writes buffered chunks of the dataset at addr and stores
// changed dataspace and layout messages in its header.
func (f *File) flushDataset(addr uint64) error {
	st, ok := f.datasets[addr]
	if !ok {
		return nil
	}

	if st.chunks != nil && st.chunks.Dirty() {
		pipeline, err := filter.NewPipeline(st.filters)
		if err != nil {
			return err
		}
		pipeline.SetElementSize(int(st.dtype.Size))
		updated, err := st.chunks.Flush(layout.NewChunkWriter(f.writer, pipeline, f.allocator.Reserve))
		if err != nil {
			return fmt.Errorf("flushing chunks of dataset at %d: %w", addr, err)
		}
		st.layout = updated
		st.headerDirty = true
	}
	if st.compact != nil && st.headerDirty {
		st.layout = message.NewCompactLayout(st.compact.Data())
	}
	if !st.headerDirty {
		return nil
	}

	hdr, err := f.header(addr)
	if err != nil {
		return err
	}
	msgs := make([]message.Message, 0, len(hdr.Raw))
	for _, r := range hdr.Raw {
		switch r.MsgType {
		case message.TypeDataspace:
			msgs = append(msgs, st.space)
		case message.TypeDataLayout:
			msgs = append(msgs, st.layout)
		default:
			msgs = append(msgs, r)
		}
	}
	if err := f.rewrite(addr, msgs); err != nil {
		return err
	}
	st.headerDirty = false
	return nil
}

// CreateDataset creates a dataset at path and opens it. plist may be
// InvalidID for contiguous storage without filters.
func (f *File) CreateDataset(path string, typ TypeID, space, plist ID) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return InvalidID, err
	}

	sp, err := lookup(f.handles.spaces, space, CategorySpace)
	if err != nil {
		return InvalidID, err
	}
	pl := &plistRef{}
	if plist != InvalidID {
		if pl, err = lookup(f.handles.plists, plist, CategoryPlist); err != nil {
			return InvalidID, err
		}
	}
	dt, err := datatypeOf(typ, f.writer.OffsetSize())
	if err != nil {
		return InvalidID, err
	}

	parent, name, err := f.writableParent(path)
	if err != nil {
		return InvalidID, err
	}
	if _, err := f.findLink(parent.addr, name); err == nil {
		return InvalidID, fmt.Errorf("%w: %s", ErrExists, path)
	}

	ds := &message.Dataspace{
		Version:    sp.space.Version,
		Rank:       sp.space.Rank,
		SpaceType:  sp.space.SpaceType,
		Dimensions: slices.Clone(sp.space.Dimensions),
		MaxDims:    slices.Clone(sp.space.MaxDims),
	}
	extendible := ds.MaxDims != nil && !slices.Equal(ds.MaxDims, ds.Dimensions)
	if extendible && pl.layout != LayoutChunked {
		return InvalidID, fmt.Errorf("%w: extendible dataset %s requires chunked layout", ErrInvalid, path)
	}
	if len(pl.filters) > 0 && pl.layout != LayoutChunked {
		return InvalidID, fmt.Errorf("%w: filters require chunked layout", ErrInvalid)
	}

	size := ds.NumElements() * uint64(dt.Size)
	msgs := []message.Message{ds, dt}

	switch pl.layout {
	case LayoutChunked:
		if ds.IsScalar() || len(pl.chunk) != len(ds.Dimensions) {
			return InvalidID, fmt.Errorf("%w: chunk rank %d for dataset rank %d", ErrInvalid, len(pl.chunk), len(ds.Dimensions))
		}
		chunk := make([]uint32, len(pl.chunk))
		for i, c := range pl.chunk {
			chunk[i] = uint32(c)
		}
		lay := message.NewChunkedLayout(chunk, dt.Size, message.ChunkIndexFixedArray)
		lay.ChunkIndexAddr = message.UndefinedAddress
		msgs = append(msgs, lay)

		if len(pl.filters) > 0 {
			fp := message.NewFilterPipeline(pipelineFilters(pl.filters, dt.Size)...)
			if _, err := filter.NewPipeline(fp); err != nil {
				return InvalidID, fmt.Errorf("%w: %w", ErrInvalid, err)
			}
			msgs = append(msgs, fp)
		}

	case LayoutCompact:
		if size > maxCompactSize {
			return InvalidID, fmt.Errorf("%w: %d bytes is too large for compact layout", ErrInvalid, size)
		}
		msgs = append(msgs, message.NewCompactLayout(make([]byte, size)))

	default:
		addr := message.UndefinedAddress
		if size > 0 {
			addr = f.allocator.Alloc(size)
			if err := f.extend(f.allocator.EOFAddr()); err != nil {
				return InvalidID, err
			}
		}
		msgs = append(msgs, message.NewContiguousLayout(addr, size))
	}

	addr, err := f.writeHeader(msgs, datasetChunkSize)
	if err != nil {
		return InvalidID, err
	}
	if err := f.addLink(parent.addr, message.NewHardLink(name, addr)); err != nil {
		return InvalidID, err
	}

	ref := &objectRef{loc: location{file: f, addr: addr}, kind: KindDataset, path: absPath(splitPath(path))}
	return register(&f.handles, f.handles.objects, ref), nil
}

// pipelineFilters fills in default client data: the element size for
// shuffle and level 6 for deflate.
func pipelineFilters(filters []message.FilterInfo, elemSize uint32) []message.FilterInfo {
	out := make([]message.FilterInfo, len(filters))
	for i, fi := range filters {
		out[i] = fi
		if len(fi.ClientData) > 0 {
			continue
		}
		switch fi.ID {
		case message.FilterShuffle:
			out[i].ClientData = []uint32{elemSize}
		case message.FilterDeflate:
			out[i].ClientData = []uint32{6}
		}
	}
	return out
}

// datasetOf returns the state of an open dataset.
func (f *File) datasetOf(id ID) (*objectRef, *datasetState, error) {
	if err := f.checkOpen(); err != nil {
		return nil, nil, err
	}
	ref, err := f.object(id, KindDataset)
	if err != nil {
		return nil, nil, err
	}
	st, err := ref.loc.file.dataset(ref.loc.addr)
	if err != nil {
		return nil, nil, err
	}
	return ref, st, nil
}

// DatasetSpace returns a new dataspace handle describing the current
// extent of a dataset.
func (f *File) DatasetSpace(id ID) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, st, err := f.datasetOf(id)
	if err != nil {
		return InvalidID, err
	}
	var ds *message.Dataspace
	if st.space.IsScalar() {
		ds = message.NewScalarDataspace()
	} else {
		ds = message.NewDataspace(slices.Clone(st.space.Dimensions), slices.Clone(st.space.MaxDims))
	}
	return register(&f.handles, f.handles.spaces, &spaceRef{space: ds}), nil
}

// DatasetType returns the storage type of a dataset.
func (f *File) DatasetType(id ID) (TypeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, st, err := f.datasetOf(id)
	if err != nil {
		return 0, err
	}
	return typeOf(st.dtype), nil
}

// DatasetLayout returns the storage layout of a dataset and, for chunked
// datasets, the chunk shape.
func (f *File) DatasetLayout(id ID) (LayoutClass, []uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, st, err := f.datasetOf(id)
	if err != nil {
		return 0, nil, err
	}
	switch st.layout.Class {
	case message.LayoutCompact:
		return LayoutCompact, nil, nil
	case message.LayoutContiguous:
		return LayoutContiguous, nil, nil
	case message.LayoutChunked:
		rank := len(st.dims())
		chunk := make([]uint64, rank)
		for i := 0; i < rank && i < len(st.layout.ChunkDims); i++ {
			chunk[i] = uint64(st.layout.ChunkDims[i])
		}
		return LayoutChunked, chunk, nil
	default:
		return 0, nil, fmt.Errorf("%w: layout class %d", ErrUnsupported, st.layout.Class)
	}
}

// DatasetFilters returns the filter IDs of a dataset's pipeline in
// application order.
func (f *File) DatasetFilters(id ID) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, st, err := f.datasetOf(id)
	if err != nil {
		return nil, err
	}
	if st.filters == nil {
		return nil, nil
	}
	ids := make([]uint16, len(st.filters.Filters))
	for i, fi := range st.filters.Filters {
		ids[i] = fi.ID
	}
	return ids, nil
}

// ReadDataset reads the selected elements into dest, which must be a
// pointer to a slice or, for a single element, to a value. A nil sel reads
// the whole dataset.
func (f *File) ReadDataset(id ID, sel *Selection, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, st, err := f.datasetOf(id)
	if err != nil {
		return err
	}
	hs := st.hyperslab(sel)
	data, err := ref.loc.file.readSelection(st, hs)
	if err != nil {
		return selectionError(ref.path, err)
	}
	return decode(st.dtype, data, hs.NumElements(), dest, ref.loc.file.reader)
}

// WriteDataset writes src, a slice or a single value, to the selected
// elements. A nil sel writes the whole dataset.
func (f *File) WriteDataset(id ID, sel *Selection, src any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	ref, err := f.writableObject(id, KindDataset)
	if err != nil {
		return err
	}
	st, err := f.dataset(ref.loc.addr)
	if err != nil {
		return err
	}
	hs := st.hyperslab(sel)
	if err := hs.Validate(st.dims()); err != nil {
		return selectionError(ref.path, err)
	}
	n := hs.NumElements()
	data, err := f.encode(st.dtype, src, n)
	if err != nil {
		return fmt.Errorf("writing %s: %w", ref.path, err)
	}
	if n == 0 {
		return nil
	}
	if err := f.writeSelection(st, hs, data); err != nil {
		return selectionError(ref.path, err)
	}
	return nil
}

// SetExtent changes the dimensions of a chunked dataset within its
// maximum dimensions. Elements outside the old extent read as zero.
func (f *File) SetExtent(id ID, dims []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	ref, err := f.writableObject(id, KindDataset)
	if err != nil {
		return err
	}
	st, err := f.dataset(ref.loc.addr)
	if err != nil {
		return err
	}
	if st.layout.Class != message.LayoutChunked {
		return fmt.Errorf("%w: %s is not chunked", ErrInvalid, ref.path)
	}
	if len(dims) != len(st.space.Dimensions) {
		return fmt.Errorf("%w: extent rank %d for dataset rank %d", ErrInvalid, len(dims), len(st.space.Dimensions))
	}
	maxDims := st.space.MaxDims
	if maxDims == nil {
		maxDims = st.space.Dimensions
	}
	for i, d := range dims {
		if maxDims[i] != Unlimited && d > maxDims[i] {
			return fmt.Errorf("%w: dimension %d of %s cannot exceed %d", ErrInvalid, i, ref.path, maxDims[i])
		}
	}

	cc, err := f.chunkCache(st)
	if err != nil {
		return err
	}
	if err := cc.Resize(dims); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	st.headerDirty = true
	return nil
}

func selectionError(path string, err error) error {
	if errors.Is(err, layout.ErrOutOfBounds) {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	return fmt.Errorf("accessing %s: %w", path, err)
}

// decode converts n stored elements into dest.
func decode(dt *message.Datatype, data []byte, n uint64, dest any, r *binpkg.Reader) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: destination must be a non-nil pointer, got %T", ErrInvalid, dest)
	}
	if v.Elem().Kind() == reflect.Slice {
		return dtype.Decode(dt, data, n, dest, r)
	}
	if n != 1 {
		return fmt.Errorf("%w: %d elements selected for a single value", ErrInvalid, n)
	}
	tmp := reflect.New(reflect.SliceOf(v.Elem().Type()))
	if err := dtype.Decode(dt, data, 1, tmp.Interface(), r); err != nil {
		return err
	}
	if tmp.Elem().Len() != 1 {
		return fmt.Errorf("%w: cannot convert %s to %s", ErrInvalid, typeOf(dt), v.Elem().Type())
	}
	v.Elem().Set(tmp.Elem().Index(0))
	return nil
}

// encode converts src into n stored elements of type dt.
func (f *File) encode(dt *message.Datatype, src any, n uint64) ([]byte, error) {
	if dt.Class == message.ClassVarLen && dt.IsVarLenString {
		strs, err := stringsOf(src)
		if err != nil {
			return nil, err
		}
		if uint64(len(strs)) != n {
			return nil, fmt.Errorf("%w: %d values for %d selected elements", ErrInvalid, len(strs), n)
		}
		return f.encodeVarStrings(strs)
	}

	if err := checkElemKind(typeOf(dt), src); err != nil {
		return nil, err
	}
	data, err := dtype.Encode(dt, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if uint64(len(data)) != n*uint64(dt.Size) {
		return nil, fmt.Errorf("%w: %d values for %d selected elements", ErrInvalid, uint64(len(data))/uint64(dt.Size), n)
	}
	return data, nil
}

// encodeVarStrings stores strs in a new global heap collection and returns
// the heap references.
func (f *File) encodeVarStrings(strs []string) ([]byte, error) {
	osize := f.writer.OffsetSize()
	refSize := 4 + osize + 4
	if len(strs) == 0 {
		return []byte{}, nil
	}

	gh := heap.NewCollectionWriter(f.writer, f.allocator.AllocFunc())
	for _, s := range strs {
		gh.AddString(s)
	}
	ids, err := gh.Write()
	if err != nil {
		return nil, err
	}

	w, buf := f.writer.Scratch(len(strs) * refSize)
	for i, s := range strs {
		if err := w.WriteUint32(uint32(len(s))); err != nil {
			return nil, err
		}
		if err := ids[i].Write(w); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func stringsOf(src any) ([]string, error) {
	switch v := src.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case *string:
		return []string{*v}, nil
	case *[]string:
		return *v, nil
	}
	return nil, fmt.Errorf("%w: cannot store %T as strings", ErrInvalid, src)
}

// checkElemKind verifies that the Go element type of src matches t in
// class and width.
func checkElemKind(t TypeID, src any) error {
	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return fmt.Errorf("%w: nil source", ErrInvalid)
	}
	et := v.Type()
	if k := et.Kind(); k == reflect.Slice || k == reflect.Array {
		et = et.Elem()
	}

	ok := false
	switch t.Class() {
	case ClassInteger:
		switch et.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ok = int(et.Size()) == t.Size()
		}
	case ClassFloat:
		switch et.Kind() {
		case reflect.Float32, reflect.Float64:
			ok = int(et.Size()) == t.Size()
		}
	case ClassString:
		ok = et.Kind() == reflect.String
	}
	if !ok {
		return fmt.Errorf("%w: cannot store %s values as %s", ErrInvalid, et, t)
	}
	return nil
}

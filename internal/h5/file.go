package h5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/robert-malhotra/go-nexus/internal/alloc"
	binpkg "github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/message"
	"github.com/robert-malhotra/go-nexus/internal/object"
	"github.com/robert-malhotra/go-nexus/internal/superblock"
)

// Stats counts accesses to the container.
type Stats struct {
	// Lookups counts path lookups made through LinkExists, LinkNames,
	// ObjectInfo and OpenObject.
	Lookups uint64

	// HeaderReads counts object headers read from disk.
	HeaderReads uint64
}

// File is an open HDF5 container and the owner of all handles into it.
// Its methods are safe for concurrent use.
type File struct {
	mu sync.Mutex

	path       string
	file       *os.File
	mode       Mode
	opts       *options
	superblock *superblock.Superblock
	reader     *binpkg.Reader
	locked     bool
	closed     bool

	// Write support fields
	writer    *binpkg.Writer
	allocator *alloc.Allocator

	headers       map[uint64]*object.Header
	datasets      map[uint64]*datasetState
	externalFiles map[string]*File // Cache of opened external files

	handles handles
	stats   Stats
}

func newFile(path string, osFile *os.File, mode Mode, o *options) *File {
	return &File{
		path:     path,
		file:     osFile,
		mode:     mode,
		opts:     o,
		headers:  make(map[uint64]*object.Header),
		datasets: make(map[uint64]*datasetState),
		handles:  newHandles(),
	}
}

// Open opens an existing container.
func Open(path string, mode Mode, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	osFile, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	f := newFile(path, osFile, mode, o)
	if err := f.lock(); err != nil {
		osFile.Close()
		return nil, err
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		f.abort()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	f.superblock = sb
	f.reader = binpkg.NewReader(osFile, sb.Config())

	if mode == ReadWrite {
		f.writer = binpkg.NewWriter(osFile, sb.Config())
		eof := sb.EOFAddress
		if info, err := osFile.Stat(); err == nil && uint64(info.Size()) > eof {
			eof = uint64(info.Size())
		}
		f.allocator = alloc.New(eof)
	}

	if _, err := f.header(sb.RootGroupAddress); err != nil {
		f.abort()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	return f, nil
}

// Create creates a container at path, truncating any existing file, and
// opens it ReadWrite. The file gets a version 3 superblock and an empty
// root group.
func Create(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	flag := os.O_RDWR | os.O_CREATE
	if o.exclusive {
		flag |= os.O_EXCL
	}
	osFile, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	f := newFile(path, osFile, ReadWrite, o)
	if err := f.lock(); err != nil {
		osFile.Close()
		return nil, err
	}
	if err := osFile.Truncate(0); err != nil {
		f.abort()
		return nil, fmt.Errorf("truncating file: %w", err)
	}

	cfg := binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: o.offsetSize,
		LengthSize: o.lengthSize,
	}
	writer := binpkg.NewWriter(osFile, cfg)

	sb := superblock.New(cfg)

	// Root group header right after the superblock.
	sbSize := sb.Size()
	sb.RootGroupAddress = uint64(sbSize)
	rootMessages := object.GroupMessages()
	headerSize := object.Size(writer, rootMessages, object.MinGroupChunk)
	sb.EOFAddress = uint64(sbSize + headerSize)

	if _, err := sb.Write(writer); err != nil {
		f.abort()
		return nil, fmt.Errorf("writing superblock: %w", err)
	}
	if _, err := object.Write(writer, rootMessages, object.MinGroupChunk); err != nil {
		f.abort()
		return nil, fmt.Errorf("writing root group: %w", err)
	}

	f.superblock = sb
	f.reader = binpkg.NewReader(osFile, cfg)
	f.writer = binpkg.NewWriter(osFile, cfg)
	f.allocator = alloc.New(sb.EOFAddress)
	return f, nil
}

func (f *File) lock() error {
	if !f.opts.locking {
		return nil
	}
	if err := lockFile(f.file, f.mode == ReadWrite); err != nil {
		if errors.Is(err, ErrLocked) {
			return fmt.Errorf("%w: %s", ErrLocked, f.path)
		}
		return fmt.Errorf("locking file: %w", err)
	}
	f.locked = true
	return nil
}

// abort releases the lock and the descriptor of a file that failed to open.
func (f *File) abort() {
	if f.locked {
		unlockFile(f.file)
	}
	f.file.Close()
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Mode returns the access mode.
func (f *File) Mode() Mode {
	return f.mode
}

// Stats returns a snapshot of the access counters.
func (f *File) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Flush writes buffered dataset chunks and the superblock, then syncs the
// file. It is a no-op for ReadOnly files.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.mode != ReadWrite {
		return nil
	}
	return f.flush()
}

func (f *File) flush() error {
	for _, addr := range slices.Sorted(maps.Keys(f.datasets)) {
		if err := f.flushDataset(addr); err != nil {
			return err
		}
	}

	// Update superblock with current EOF from allocator
	eof := f.allocator.EOFAddr()
	if err := f.extend(eof); err != nil {
		return err
	}
	f.superblock.EOFAddress = eof
	if err := f.superblock.Update(f.writer); err != nil {
		return fmt.Errorf("updating superblock: %w", err)
	}

	// Sync to disk
	return f.file.Sync()
}

// extend grows the file to at least size bytes. Allocated space that was
// never written must read back as zeros.
func (f *File) extend(size uint64) error {
	info, err := f.file.Stat()
	if err != nil {
		return err
	}
	if uint64(info.Size()) < size {
		return f.file.Truncate(int64(size))
	}
	return nil
}

// Close flushes a ReadWrite file, invalidates every open handle and closes
// all opened external files. Closing twice is a no-op.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	if f.mode == ReadWrite {
		errs = append(errs, f.flush())
	}

	// Close all external files
	for _, extFile := range f.externalFiles {
		errs = append(errs, extFile.Close())
	}
	f.externalFiles = nil

	f.handles = newHandles()
	f.headers = nil
	f.datasets = nil

	if f.locked {
		errs = append(errs, unlockFile(f.file))
	}
	errs = append(errs, f.file.Close())
	return errors.Join(errs...)
}

func (f *File) checkOpen() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if f.mode != ReadWrite {
		return fmt.Errorf("%w: %s", ErrReadOnly, f.path)
	}
	return nil
}

// header returns the object header at addr, reading it on first use.
func (f *File) header(addr uint64) (*object.Header, error) {
	if hdr, ok := f.headers[addr]; ok {
		return hdr, nil
	}
	hdr, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}
	f.stats.HeaderReads++
	f.headers[addr] = hdr
	return hdr, nil
}

// rewrite replaces the messages of the header at addr.
func (f *File) rewrite(addr uint64, msgs []message.Message) error {
	hdr, err := f.header(addr)
	if err != nil {
		return err
	}
	delete(f.headers, addr)
	if err := object.Rewrite(f.writer, f.allocator.Reserve, hdr, msgs); err != nil {
		return fmt.Errorf("rewriting object header at %d: %w", addr, err)
	}
	return nil
}

// rawMessages returns the stored messages of hdr for which keep returns
// true, or all of them when keep is nil.
func rawMessages(hdr *object.Header, keep func(*message.Raw) bool) []message.Message {
	out := make([]message.Message, 0, len(hdr.Raw))
	for _, r := range hdr.Raw {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// openExternalFile opens an external file by name, relative to the current
// file's directory. Files are opened read-only and cached.
func (f *File) openExternalFile(filename string) (*File, error) {
	if extFile, ok := f.externalFiles[filename]; ok {
		return extFile, nil
	}

	extPath := filename
	if !filepath.IsAbs(extPath) {
		extPath = filepath.Join(filepath.Dir(f.path), filename)
	}
	extFile, err := Open(extPath, ReadOnly, WithLocking(f.opts.locking))
	if err != nil {
		return nil, fmt.Errorf("opening external file %q: %w", extPath, err)
	}

	if f.externalFiles == nil {
		f.externalFiles = make(map[string]*File)
	}
	f.externalFiles[filename] = extFile
	return extFile, nil
}

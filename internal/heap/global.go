package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/binary"
)

// ID locates an object in a global heap collection.
type ID struct {
	Collection uint64
	Index      uint32
}

// IsNull reports whether id refers to no object.
func (id ID) IsNull() bool { return id.Collection == 0 }

// ParseID decodes an ID stored as an address of offsetSize bytes followed
// by a 4-byte index.
func ParseID(data []byte, offsetSize int) (ID, error) {
	if len(data) < offsetSize+4 {
		return ID{}, fmt.Errorf("global heap id: %d bytes, need %d", len(data), offsetSize+4)
	}
	r := binary.NewReader(bytes.NewReader(data), binary.Config{
		ByteOrder:  binary.DefaultConfig().ByteOrder,
		OffsetSize: offsetSize,
	})
	addr, err := r.ReadOffset()
	if err != nil {
		return ID{}, err
	}
	index, err := r.ReadUint32()
	if err != nil {
		return ID{}, err
	}
	return ID{Collection: addr, Index: index}, nil
}

// Write encodes id at the position of w.
func (id ID) Write(w *binary.Writer) error {
	if err := w.WriteOffset(id.Collection); err != nil {
		return err
	}
	return w.WriteUint32(id.Index)
}

// Collection holds the objects of one global heap collection.
type Collection struct {
	Size    uint64
	objects map[uint32][]byte
}

const (
	collectionVersion = 1
	// signature, version, 3 reserved bytes
	collectionPrefix = 8
	// index, reference count, 4 reserved bytes
	objectPrefix = 8
)

func pad8(n int) int { return (8 - n%8) % 8 }

// ReadCollection reads the collection at addr.
func ReadCollection(r *binary.Reader, addr uint64) (*Collection, error) {
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("global heap: invalid address %#x", addr)
	}
	hr := r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, err)
	}
	if string(sig) != "GCOL" {
		return nil, fmt.Errorf("global heap at %#x: bad signature %q", addr, sig)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != collectionVersion {
		return nil, fmt.Errorf("global heap at %#x: version %d", addr, version)
	}
	hr.Skip(3)
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	c := &Collection{Size: size, objects: make(map[uint32][]byte)}
	end := int64(addr) + int64(size)
	// An object header that no longer fits marks the free space at the end.
	for hr.Pos()+int64(objectPrefix+r.LengthSize()) <= end {
		index, err := hr.ReadUint16()
		if err != nil || index == 0 {
			break
		}
		hr.Skip(6)
		n, err := hr.ReadLength()
		if err != nil {
			return nil, err
		}
		if hr.Pos()+int64(n) > end {
			return nil, fmt.Errorf("global heap at %#x: object %d overruns the collection", addr, index)
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		c.objects[uint32(index)] = data
		hr.Skip(int64(pad8(int(n))))
	}
	return c, nil
}

// Object returns a copy of the object at index.
func (c *Collection) Object(index uint32) ([]byte, error) {
	data, ok := c.objects[index]
	if !ok {
		return nil, fmt.Errorf("global heap: no object %d", index)
	}
	return bytes.Clone(data), nil
}

// String returns the object at index as a string, cut at the first NUL.
func (c *Collection) String(index uint32) (string, error) {
	data, ok := c.objects[index]
	if !ok {
		return "", fmt.Errorf("global heap: no object %d", index)
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// CollectionWriter gathers objects and writes them as one new collection.
type CollectionWriter struct {
	w       *binary.Writer
	alloc   func(size int64) uint64
	objects [][]byte
}

// NewCollectionWriter returns a writer that takes space from alloc.
func NewCollectionWriter(w *binary.Writer, alloc func(size int64) uint64) *CollectionWriter {
	return &CollectionWriter{w: w, alloc: alloc}
}

// Add queues data and returns its position among the queued objects.
func (cw *CollectionWriter) Add(data []byte) int {
	cw.objects = append(cw.objects, data)
	return len(cw.objects) - 1
}

// AddString queues the bytes of s without a terminator.
func (cw *CollectionWriter) AddString(s string) int {
	return cw.Add([]byte(s))
}

// size returns the encoded size of the collection, a multiple of 8 that
// also leaves room for the terminating index.
func (cw *CollectionWriter) size() int {
	lsize := cw.w.LengthSize()
	n := collectionPrefix + lsize
	for _, obj := range cw.objects {
		n += objectPrefix + lsize + len(obj) + pad8(len(obj))
	}
	n += 2
	return n + pad8(n)
}

// Write stores the queued objects and returns their IDs in the order
// they were added. Writing an empty writer does nothing.
func (cw *CollectionWriter) Write() ([]ID, error) {
	if len(cw.objects) == 0 {
		return nil, nil
	}
	if len(cw.objects) > 0xFFFF {
		return nil, fmt.Errorf("global heap: %d objects do not fit in one collection", len(cw.objects))
	}
	size := cw.size()
	addr := cw.alloc(int64(size))

	w, buf := cw.w.Scratch(size)
	_ = w.WriteBytes([]byte("GCOL"))
	_ = w.WriteUint8(collectionVersion)
	w.Skip(3)
	_ = w.WriteLength(uint64(size))

	ids := make([]ID, len(cw.objects))
	for i, obj := range cw.objects {
		index := uint16(i + 1)
		_ = w.WriteUint16(index)
		_ = w.WriteUint16(1) // reference count
		w.Skip(4)
		_ = w.WriteLength(uint64(len(obj)))
		_ = w.WriteBytes(obj)
		w.Skip(int64(pad8(len(obj))))
		ids[i] = ID{Collection: addr, Index: uint32(index)}
	}
	// The zero index that ends the object list is already in the buffer.

	if err := cw.w.At(int64(addr)).WriteBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, err)
	}
	return ids, nil
}

package nexus

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// ElementType is the element type of a dataset or attribute.
type ElementType uint8

const (
	Int8 ElementType = iota + 1
	Int16
	Int32
	Int64
	Float32
	Float64
	String
)

var elementNames = map[ElementType]string{
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

func (t ElementType) String() string {
	if name, ok := elementNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", uint8(t))
}

// Valid reports whether t is one of the defined element types.
func (t ElementType) Valid() bool {
	_, ok := elementNames[t]
	return ok
}

// IsInteger reports whether t is an integer type.
func (t ElementType) IsInteger() bool {
	return t >= Int8 && t <= Int64
}

type storageKey struct {
	elem     ElementType
	unsigned bool
}

// TypeMap converts between storage types and element types. Integer
// storage types carry a signedness bit that element types do not, so the
// mapping returns it alongside.
type TypeMap struct {
	toElement map[h5.TypeID]storageKey
	toStorage map[storageKey]h5.TypeID
}

var (
	defaultTypeMapOnce sync.Once
	defaultTypeMap     *TypeMap
)

// DefaultTypeMap returns the process-wide type map. It is built once and
// is read-only afterwards.
func DefaultTypeMap() *TypeMap {
	defaultTypeMapOnce.Do(func() {
		m := &TypeMap{
			toElement: make(map[h5.TypeID]storageKey),
			toStorage: make(map[storageKey]h5.TypeID),
		}
		m.add(h5.TypeInt8, Int8, false)
		m.add(h5.TypeInt16, Int16, false)
		m.add(h5.TypeInt32, Int32, false)
		m.add(h5.TypeInt64, Int64, false)
		m.add(h5.TypeUint8, Int8, true)
		m.add(h5.TypeUint16, Int16, true)
		m.add(h5.TypeUint32, Int32, true)
		m.add(h5.TypeUint64, Int64, true)
		m.add(h5.TypeFloat32, Float32, false)
		m.add(h5.TypeFloat64, Float64, false)
		m.add(h5.TypeVarString, String, false)
		defaultTypeMap = m
	})
	return defaultTypeMap
}

func (m *TypeMap) add(id h5.TypeID, elem ElementType, unsigned bool) {
	key := storageKey{elem, unsigned}
	m.toElement[id] = key
	m.toStorage[key] = id
}

// StorageToElement returns the element type of a storage type and whether
// it is an unsigned integer. Every string storage type, fixed or variable
// length, maps to String.
func (m *TypeMap) StorageToElement(id h5.TypeID) (ElementType, bool, error) {
	if key, ok := m.toElement[id]; ok {
		return key.elem, key.unsigned, nil
	}
	if id.Class() == h5.ClassString {
		return String, false, nil
	}
	return 0, false, &TypeError{ID: id}
}

// ElementToStorage returns the storage type used when creating data of
// element type t. unsigned is ignored for non-integer types. Strings are
// stored with variable length. It returns 0 for an invalid t.
func (m *TypeMap) ElementToStorage(t ElementType, unsigned bool) h5.TypeID {
	if !t.IsInteger() {
		unsigned = false
	}
	return m.toStorage[storageKey{t, unsigned}]
}

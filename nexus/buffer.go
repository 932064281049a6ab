package nexus

import (
	"math/bits"
	"reflect"
)

// Buffer holds the elements of a selection in row-major order. Data is a
// slice whose element type matches the dataset: []int8, []int16, []int32
// or []int64 for signed integers, the uint variants for unsigned ones,
// []float32, []float64 or []string. Shape is empty for a scalar.
type Buffer struct {
	Shape []int
	Data  any
}

// NewBuffer returns a buffer over data. Without a shape the buffer is one
// dimensional, or scalar when data is not a slice.
func NewBuffer(data any, shape ...int) Buffer {
	if shape == nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			shape = []int{v.Len()}
		} else {
			shape = []int{}
		}
	}
	return Buffer{Shape: shape, Data: data}
}

// Len returns the number of elements in Data.
func (b Buffer) Len() int {
	v := reflect.ValueOf(b.Data)
	switch v.Kind() {
	case reflect.Slice:
		return v.Len()
	case reflect.Invalid:
		return 0
	default:
		return 1
	}
}

// Index returns element i of Data.
func (b Buffer) Index(i int) any {
	v := reflect.ValueOf(b.Data)
	if v.Kind() != reflect.Slice {
		return b.Data
	}
	return v.Index(i).Interface()
}

var goTypes = map[storageKey]reflect.Type{
	{Int8, false}:    reflect.TypeFor[int8](),
	{Int16, false}:   reflect.TypeFor[int16](),
	{Int32, false}:   reflect.TypeFor[int32](),
	{Int64, false}:   reflect.TypeFor[int64](),
	{Int8, true}:     reflect.TypeFor[uint8](),
	{Int16, true}:    reflect.TypeFor[uint16](),
	{Int32, true}:    reflect.TypeFor[uint32](),
	{Int64, true}:    reflect.TypeFor[uint64](),
	{Float32, false}: reflect.TypeFor[float32](),
	{Float64, false}: reflect.TypeFor[float64](),
	{String, false}:  reflect.TypeFor[string](),
}

// makeData allocates a slice of n elements of the Go type for elem.
func makeData(elem ElementType, unsigned bool, n int) any {
	if !elem.IsInteger() {
		unsigned = false
	}
	t := goTypes[storageKey{elem, unsigned}]
	return reflect.MakeSlice(reflect.SliceOf(t), n, n).Interface()
}

// valueInfo describes a Go value given as dataset or attribute contents.
type valueInfo struct {
	elem     ElementType
	unsigned bool
	n        int
	scalar   bool
}

// inspect returns the element type of v, which is a supported scalar or a
// slice of one.
func inspect(v any) (valueInfo, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return valueInfo{}, &TypeError{Go: "nil"}
	}
	info := valueInfo{n: 1, scalar: true}
	t := rv.Type()
	if t.Kind() == reflect.Slice {
		info.n, info.scalar = rv.Len(), false
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int8, reflect.Uint8:
		info.elem = Int8
	case reflect.Int16, reflect.Uint16:
		info.elem = Int16
	case reflect.Int32, reflect.Uint32:
		info.elem = Int32
	case reflect.Int64, reflect.Uint64:
		info.elem = Int64
	case reflect.Int, reflect.Uint:
		info.elem = Int64
		if bits.UintSize == 32 {
			info.elem = Int32
		}
	case reflect.Float32:
		info.elem = Float32
	case reflect.Float64:
		info.elem = Float64
	case reflect.String:
		info.elem = String
	default:
		return valueInfo{}, &TypeError{Go: rv.Type().String()}
	}
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		info.unsigned = true
	}
	return info, nil
}

func (v valueInfo) matches(elem ElementType, unsigned bool) bool {
	return v.elem == elem && v.unsigned == (unsigned && elem.IsInteger())
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

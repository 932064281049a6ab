package main

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-nexus/nexus"
)

var typeNames = map[string]struct {
	elem     nexus.ElementType
	unsigned bool
}{
	"int8":    {nexus.Int8, false},
	"int16":   {nexus.Int16, false},
	"int32":   {nexus.Int32, false},
	"int64":   {nexus.Int64, false},
	"uint8":   {nexus.Int8, true},
	"uint16":  {nexus.Int16, true},
	"uint32":  {nexus.Int32, true},
	"uint64":  {nexus.Int64, true},
	"float32": {nexus.Float32, false},
	"float64": {nexus.Float64, false},
	"string":  {nexus.String, false},
}

func parseType(name string) (nexus.ElementType, bool, error) {
	t, ok := typeNames[strings.ToLower(name)]
	if !ok {
		return 0, false, usagef("unknown element type %q", name)
	}
	return t.elem, t.unsigned, nil
}

var bitSizes = map[nexus.ElementType]int{
	nexus.Int8:    8,
	nexus.Int16:   16,
	nexus.Int32:   32,
	nexus.Int64:   64,
	nexus.Float32: 32,
	nexus.Float64: 64,
}

// parseValues converts command line values into a slice of the Go type
// that holds elem.
func parseValues(elem nexus.ElementType, unsigned bool, values []string) (any, error) {
	bits := bitSizes[elem]
	switch {
	case elem == nexus.String:
		return append([]string(nil), values...), nil
	case elem.IsInteger() && unsigned:
		out := make([]uint64, len(values))
		for i, v := range values {
			n, err := strconv.ParseUint(v, 0, bits)
			if err != nil {
				return nil, usagef("value %q: %v", v, err)
			}
			out[i] = n
		}
		return convert(out, elem, unsigned), nil
	case elem.IsInteger():
		out := make([]int64, len(values))
		for i, v := range values {
			n, err := strconv.ParseInt(v, 0, bits)
			if err != nil {
				return nil, usagef("value %q: %v", v, err)
			}
			out[i] = n
		}
		return convert(out, elem, unsigned), nil
	case elem == nexus.Float32 || elem == nexus.Float64:
		out := make([]float64, len(values))
		for i, v := range values {
			f, err := strconv.ParseFloat(v, bits)
			if err != nil {
				return nil, usagef("value %q: %v", v, err)
			}
			out[i] = f
		}
		return convert(out, elem, unsigned), nil
	}
	return nil, fmt.Errorf("unsupported element type %v", elem)
}

var goKinds = map[string]reflect.Type{
	"int8":    reflect.TypeFor[int8](),
	"int16":   reflect.TypeFor[int16](),
	"int32":   reflect.TypeFor[int32](),
	"int64":   reflect.TypeFor[int64](),
	"uint8":   reflect.TypeFor[uint8](),
	"uint16":  reflect.TypeFor[uint16](),
	"uint32":  reflect.TypeFor[uint32](),
	"uint64":  reflect.TypeFor[uint64](),
	"float32": reflect.TypeFor[float32](),
	"float64": reflect.TypeFor[float64](),
}

// convert narrows a parsed []int64, []uint64 or []float64 to the slice
// type of elem. Values were range checked while parsing.
func convert(wide any, elem nexus.ElementType, unsigned bool) any {
	src := reflect.ValueOf(wide)
	t := goKinds[typeName(elem, unsigned)]
	dst := reflect.MakeSlice(reflect.SliceOf(t), src.Len(), src.Len())
	for i := range src.Len() {
		dst.Index(i).Set(src.Index(i).Convert(t))
	}
	return dst.Interface()
}

// first returns element 0 of a slice.
func first(data any) any {
	return reflect.ValueOf(data).Index(0).Interface()
}

package dtype

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/robert-malhotra/go-nexus/internal/binary"
	"github.com/robert-malhotra/go-nexus/internal/heap"
	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Decode converts n stored elements of type dt into dest, which must point
// to a slice. The slice is grown to n elements. Numeric data converts to any
// Go integer or float element kind. r resolves variable-length strings and
// may be nil for other classes.
func Decode(dt *message.Datatype, data []byte, n uint64, dest any, r *binary.Reader) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("destination must point to a slice, got %T", dest)
	}
	out := v.Elem()
	if out.Len() < int(n) {
		out.Set(reflect.MakeSlice(out.Type(), int(n), int(n)))
	}

	switch dt.Class {
	case message.ClassString:
		return decodeFixedStrings(dt, data, n, out)
	case message.ClassVarLen:
		if !dt.IsVarLenString {
			return fmt.Errorf("%w: variable-length sequence", ErrUnsupported)
		}
		return decodeVarStrings(data, n, out, r)
	}

	base, err := numeric(dt)
	if err != nil {
		return err
	}
	size := int(base.Size)
	if uint64(len(data)) < n*uint64(size) {
		return fmt.Errorf("have %d bytes for %d elements of size %d", len(data), n, size)
	}
	if directCopy(base, data, n, out) {
		return nil
	}

	order := ByteOrder(base)
	et := out.Type().Elem()
	for i := range int(n) {
		raw := readUint(order, data[i*size:(i+1)*size])
		var val reflect.Value
		switch {
		case base.Class == message.ClassFloatPoint && size == 4:
			val = reflect.ValueOf(math.Float32frombits(uint32(raw)))
		case base.Class == message.ClassFloatPoint:
			val = reflect.ValueOf(math.Float64frombits(raw))
		case base.Signed:
			val = reflect.ValueOf(signExtend(raw, size))
		default:
			val = reflect.ValueOf(raw)
		}
		if !val.CanConvert(et) {
			return fmt.Errorf("cannot decode %s into %s", val.Type(), et)
		}
		out.Index(i).Set(val.Convert(et))
	}
	return nil
}

// directCopy copies little-endian data straight into a slice whose element
// type has the same representation.
func directCopy(dt *message.Datatype, data []byte, n uint64, out reflect.Value) bool {
	if dt.ByteOrder != message.OrderLE || n == 0 {
		return false
	}
	et := out.Type().Elem()
	if et.Size() != uintptr(dt.Size) {
		return false
	}
	switch et.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dt.Class != message.ClassFixedPoint || !dt.Signed {
			return false
		}
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if dt.Class != message.ClassFixedPoint || dt.Signed {
			return false
		}
	case reflect.Float32, reflect.Float64:
		if dt.Class != message.ClassFloatPoint {
			return false
		}
	default:
		return false
	}
	nbytes := int(n) * int(dt.Size)
	dst := unsafe.Slice((*byte)(out.UnsafePointer()), nbytes)
	copy(dst, data[:nbytes])
	return true
}

func decodeFixedStrings(dt *message.Datatype, data []byte, n uint64, out reflect.Value) error {
	if out.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("cannot decode strings into %s", out.Type().Elem())
	}
	size := int(dt.Size)
	if uint64(len(data)) < n*uint64(size) {
		return fmt.Errorf("have %d bytes for %d strings of size %d", len(data), n, size)
	}
	for i := range int(n) {
		s := data[i*size : (i+1)*size]
		end := len(s)
		for j, c := range s {
			if c == 0 {
				end = j
				break
			}
		}
		if dt.StringPadding == message.PadSpacePad {
			for end > 0 && s[end-1] == ' ' {
				end--
			}
		}
		out.Index(i).SetString(string(s[:end]))
	}
	return nil
}

// decodeVarStrings resolves heap references laid out as a 4-byte length
// followed by a global heap ID.
func decodeVarStrings(data []byte, n uint64, out reflect.Value, r *binary.Reader) error {
	if out.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("cannot decode strings into %s", out.Type().Elem())
	}
	offsetSize := 8
	if r != nil {
		offsetSize = r.OffsetSize()
	}
	refSize := 4 + offsetSize + 4
	if uint64(len(data)) < n*uint64(refSize) {
		return fmt.Errorf("have %d bytes for %d string references", len(data), n)
	}

	collections := make(map[uint64]*heap.Collection)
	for i := range int(n) {
		id, err := heap.ParseID(data[i*refSize+4:(i+1)*refSize], offsetSize)
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		if id.IsNull() {
			out.Index(i).SetString("")
			continue
		}
		if r == nil {
			return fmt.Errorf("string %d: no reader for global heap at 0x%x", i, id.Collection)
		}
		c, ok := collections[id.Collection]
		if !ok {
			if c, err = heap.ReadCollection(r, id.Collection); err != nil {
				return err
			}
			collections[id.Collection] = c
		}
		s, err := c.String(id.Index)
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		out.Index(i).SetString(s)
	}
	return nil
}

package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Encode converts src, a single value or a slice, into stored bytes of type
// dt. Variable-length strings are not handled here since they need heap
// space.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("nil source")
	}
	if k := v.Kind(); k != reflect.Slice && k != reflect.Array {
		one := reflect.New(reflect.SliceOf(v.Type())).Elem()
		v = reflect.Append(one, v)
	}

	if dt.Class == message.ClassString {
		return encodeFixedStrings(dt, v)
	}
	base, err := numeric(dt)
	if err != nil {
		return nil, err
	}

	size := int(base.Size)
	order := ByteOrder(base)
	out := make([]byte, v.Len()*size)
	for i := range v.Len() {
		raw, err := rawBits(base, v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		putUint(order, out[i*size:(i+1)*size], raw)
	}
	return out, nil
}

func rawBits(dt *message.Datatype, e reflect.Value) (uint64, error) {
	if dt.Class == message.ClassFloatPoint {
		var f float64
		switch {
		case e.CanFloat():
			f = e.Float()
		case e.CanInt():
			f = float64(e.Int())
		case e.CanUint():
			f = float64(e.Uint())
		default:
			return 0, fmt.Errorf("cannot encode %s as float", e.Type())
		}
		if dt.Size == 4 {
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	}
	switch {
	case e.CanInt():
		return uint64(e.Int()), nil
	case e.CanUint():
		return e.Uint(), nil
	case e.CanFloat():
		if dt.Signed {
			return uint64(int64(e.Float())), nil
		}
		return uint64(e.Float()), nil
	}
	return 0, fmt.Errorf("cannot encode %s as integer", e.Type())
}

func encodeFixedStrings(dt *message.Datatype, v reflect.Value) ([]byte, error) {
	size := int(dt.Size)
	pad := byte(0)
	if dt.StringPadding == message.PadSpacePad {
		pad = ' '
	}
	out := make([]byte, v.Len()*size)
	for i := range v.Len() {
		e := v.Index(i)
		if e.Kind() != reflect.String {
			return nil, fmt.Errorf("cannot encode %s as string", e.Type())
		}
		s := e.String()
		if len(s) > size {
			return nil, fmt.Errorf("string %d of length %d exceeds %d bytes", i, len(s), size)
		}
		slot := out[i*size : (i+1)*size]
		n := copy(slot, s)
		for j := n; j < size; j++ {
			slot[j] = pad
		}
	}
	return out, nil
}

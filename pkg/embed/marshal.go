package embed

import (
	"fmt"
	"reflect"

	"github.com/monolang/mono/internal/vm"
)

// ToValue converts a Go value into a script value on the interpreter's
// heap. Numbers of any width become the script number type; strings are
// interned; slices become arrays and maps with string keys become tables,
// both converted deeply.
func (in *Interp) ToValue(val any) (Value, error) {
	if val == nil {
		return vm.NilVal(), nil
	}
	if v, ok := val.(Value); ok {
		return v, nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.NumberVal(float64(v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return vm.NumberVal(float64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return vm.NumberVal(v.Float()), nil
	case reflect.Bool:
		return vm.BoolVal(v.Bool()), nil
	case reflect.String:
		return in.String(v.String()), nil

	case reflect.Slice, reflect.Array:
		elements := make([]Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			ev, err := in.ToValue(v.Index(i).Interface())
			if err != nil {
				return vm.NilVal(), fmt.Errorf("element %d: %w", i, err)
			}
			elements[i] = ev
		}
		return vm.ObjVal(in.heap.NewArray(elements)), nil

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return vm.NilVal(), fmt.Errorf("map key type %s: only string keys convert to tables", v.Type().Key())
		}
		table := in.heap.NewTable()
		iter := v.MapRange()
		for iter.Next() {
			ev, err := in.ToValue(iter.Value().Interface())
			if err != nil {
				return vm.NilVal(), fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			table.Entries[in.heap.NewString(iter.Key().String())] = ev
		}
		return vm.ObjVal(table), nil

	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return vm.NilVal(), nil
		}
		return in.ToValue(v.Elem().Interface())

	default:
		return vm.NilVal(), fmt.Errorf("cannot convert %s to a script value", v.Kind())
	}
}

// FromValue converts a script value back into a plain Go value: float64,
// bool, string, []any, map[string]any, or nil. Functions and closures do
// not convert.
func FromValue(v Value) (any, error) {
	switch {
	case v.IsNil():
		return nil, nil
	case v.IsBool():
		return v.AsBool(), nil
	case v.IsNumber():
		return v.AsNumber(), nil
	case v.IsString():
		return v.AsString().Chars, nil
	}

	switch obj := v.Obj.(type) {
	case *vm.ObjArray:
		out := make([]any, len(obj.Elements))
		for i, e := range obj.Elements {
			ge, err := FromValue(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = ge
		}
		return out, nil

	case *vm.ObjTable:
		out := make(map[string]any, len(obj.Entries))
		for k, e := range obj.Entries {
			ge, err := FromValue(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k.Chars, err)
			}
			out[k.Chars] = ge
		}
		return out, nil

	default:
		return nil, fmt.Errorf("cannot convert %s to a Go value", obj.Inspect())
	}
}

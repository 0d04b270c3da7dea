package vm

import (
	"math"
	"strconv"
)

// ValueType identifies the variant stored in a Value.
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is a stack-allocated tagged union. Primitives live in Data (float64
// bits or bool as 0/1); heap objects hang off Obj so they stay visible to
// the collector while on the stack.
type Value struct {
	Type ValueType
	Data uint64
	Obj  Object
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func NumberVal(v float64) Value {
	return Value{Type: ValNumber, Data: math.Float64bits(v)}
}

func ObjVal(o Object) Value {
	return Value{Type: ValObj, Obj: o}
}

// Accessors

func (v Value) AsNumber() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data == 1
}

// Type checking helpers

func (v Value) IsNil() bool    { return v.Type == ValNil }
func (v Value) IsBool() bool   { return v.Type == ValBool }
func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsObj() bool    { return v.Type == ValObj }

func (v Value) IsString() bool {
	return v.Type == ValObj && v.Obj.Type() == ObjStringType
}

func (v Value) AsString() *ObjString {
	return v.Obj.(*ObjString)
}

// Truthy reports the language's truthiness rule: only nil and false are
// falsy.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValNil:
		return false
	case ValBool:
		return v.Data == 1
	default:
		return true
	}
}

// Equals implements language equality. Numbers compare by IEEE-754 value
// (so NaN != NaN), strings by identity (valid because all strings are
// interned), other objects by identity, and values of different types are
// never equal.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValNil:
		return true
	case ValBool:
		return v.Data == other.Data
	case ValNumber:
		return v.AsNumber() == other.AsNumber()
	case ValObj:
		return v.Obj == other.Obj
	default:
		return false
	}
}

// Inspect returns the printable representation used by the print statement
// and error messages.
func (v Value) Inspect() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		if v.Data == 1 {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.AsNumber())
	case ValObj:
		return v.Obj.Inspect()
	default:
		return "<?>"
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

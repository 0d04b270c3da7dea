package vm

import (
	"fmt"
	"strings"
)

// ObjType identifies a heap object variant.
type ObjType uint8

const (
	ObjStringType ObjType = iota
	ObjFunctionType
	ObjClosureType
	ObjUpvalueType
	ObjNativeType
	ObjArrayType
	ObjTableType
)

// Object is the interface of every heap-allocated value. Objects are
// created only through the Heap so the collector sees them.
type Object interface {
	Type() ObjType
	Inspect() string
	header() *gcHeader
}

// gcHeader is embedded in every heap object: the mark bit, the intrusive
// all-objects link used by the sweep, and the accounted allocation size.
type gcHeader struct {
	marked bool
	next   Object
	size   int
}

func (h *gcHeader) header() *gcHeader { return h }

// ObjString is an interned, immutable string. Two ObjStrings with equal
// content are always the same pointer within one heap.
type ObjString struct {
	gcHeader
	Chars string
}

func (s *ObjString) Type() ObjType   { return ObjStringType }
func (s *ObjString) Inspect() string { return s.Chars }

// ObjFunction is a compiled function: its bytecode chunk, arity and the
// descriptors of the variables it captures. The chunk is immutable once
// compilation of the function finishes.
type ObjFunction struct {
	gcHeader
	Name         string // empty for anonymous functions
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
}

func (f *ObjFunction) Type() ObjType { return ObjFunctionType }
func (f *ObjFunction) Inspect() string {
	if f.Name == "" {
		return "<fn>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}

// ObjClosure pairs a function with the upvalues resolved at the point the
// CLOSURE instruction ran. Closures over the same function may share
// upvalues.
type ObjClosure struct {
	gcHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Type() ObjType   { return ObjClosureType }
func (c *ObjClosure) Inspect() string { return c.Function.Inspect() }

// ObjUpvalue is a captured variable. While open it aliases a live stack
// slot (Location >= 0); once closed it owns a copy of the value in Closed
// and Location is -1. Next links the VM's open-upvalue list, sorted by
// Location, highest first.
type ObjUpvalue struct {
	gcHeader
	Location int
	Closed   Value
	Next     *ObjUpvalue
}

func (u *ObjUpvalue) Type() ObjType   { return ObjUpvalueType }
func (u *ObjUpvalue) Inspect() string { return "upvalue" }

// IsOpen reports whether the upvalue still aliases a stack slot.
func (u *ObjUpvalue) IsOpen() bool { return u.Location >= 0 }

// NativeFn is the host-callable signature: a fixed-arity function over
// Values. A non-nil error aborts execution as a host runtime error.
type NativeFn func(args []Value) (Value, error)

// ObjNative is a host-provided callable registered through the embedding
// API.
type ObjNative struct {
	gcHeader
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *ObjNative) Type() ObjType   { return ObjNativeType }
func (n *ObjNative) Inspect() string { return fmt.Sprintf("<native %s>", n.Name) }

// ObjArray is a mutable ordered sequence of values.
type ObjArray struct {
	gcHeader
	Elements []Value
}

func (a *ObjArray) Type() ObjType { return ObjArrayType }
func (a *ObjArray) Inspect() string {
	parts := make([]string, len(a.Elements))
	for i, el := range a.Elements {
		parts[i] = inspectQuoted(el)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ObjTable is a mutable mapping from interned strings to values. Keying by
// *ObjString is sound because interning makes content equality pointer
// equality.
type ObjTable struct {
	gcHeader
	Entries map[*ObjString]Value
}

func (t *ObjTable) Type() ObjType { return ObjTableType }
func (t *ObjTable) Inspect() string {
	parts := make([]string, 0, len(t.Entries))
	for k, v := range t.Entries {
		parts = append(parts, fmt.Sprintf("%q: %s", k.Chars, inspectQuoted(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// inspectQuoted renders nested strings with quotes so collection output is
// unambiguous.
func inspectQuoted(v Value) string {
	if v.IsString() {
		return fmt.Sprintf("%q", v.AsString().Chars)
	}
	return v.Inspect()
}

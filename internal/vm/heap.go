package vm

// Approximate per-object sizes used for collection accounting. These drive
// the GC trigger, not real memory usage, so rough constants are enough.
const (
	sizeString   = 48
	sizeFunction = 96
	sizeClosure  = 48
	sizeUpvalue  = 56
	sizeNative   = 48
	sizeArray    = 48
	sizeTable    = 96
	sizeValue    = 24
)

// gcInitialThreshold is the allocation floor before the first collection.
const gcInitialThreshold = 1 << 17

// gcGrowthFactor scales the next collection threshold after each cycle.
const gcGrowthFactor = 2

// Heap owns every object allocated by one interpreter instance: the
// intrusive all-objects list swept by the collector, the string intern
// table, and the allocation accounting that triggers collections. A Heap
// is never shared between VM instances.
type Heap struct {
	objects        Object // head of the all-objects list
	objectCount    int
	bytesAllocated int
	nextGC         int

	strings *Interner

	// roots pinned by the embedder: compiled scripts that are not yet (or
	// not currently) reachable from any VM stack.
	pinnedRoots []Object

	gray []Object

	gcCycles uint64
}

func NewHeap() *Heap {
	return &Heap{
		nextGC:  gcInitialThreshold,
		strings: NewInterner(),
	}
}

// allocate links a fully-constructed object into the all-objects list and
// accounts its size. Collection never happens here; the VM checks the
// threshold between instructions.
func (h *Heap) allocate(obj Object, size int) {
	hdr := obj.header()
	hdr.size = size
	hdr.next = h.objects
	h.objects = obj
	h.objectCount++
	h.bytesAllocated += size
}

// NewString returns the interned string object for s, allocating only if
// the content is new to this heap.
func (h *Heap) NewString(s string) *ObjString {
	if existing := h.strings.Lookup(s); existing != nil {
		return existing
	}
	obj := &ObjString{Chars: s}
	h.allocate(obj, sizeString+len(s))
	h.strings.Insert(obj)
	return obj
}

func (h *Heap) NewFunction(name string) *ObjFunction {
	obj := &ObjFunction{Name: name, Chunk: NewChunk()}
	h.allocate(obj, sizeFunction)
	return obj
}

func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	obj := &ObjClosure{
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
	h.allocate(obj, sizeClosure+fn.UpvalueCount*8)
	return obj
}

func (h *Heap) NewUpvalue(location int) *ObjUpvalue {
	obj := &ObjUpvalue{Location: location}
	h.allocate(obj, sizeUpvalue)
	return obj
}

func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	obj := &ObjNative{Name: name, Arity: arity, Fn: fn}
	h.allocate(obj, sizeNative)
	return obj
}

func (h *Heap) NewArray(elements []Value) *ObjArray {
	obj := &ObjArray{Elements: elements}
	h.allocate(obj, sizeArray+len(elements)*sizeValue)
	return obj
}

func (h *Heap) NewTable() *ObjTable {
	obj := &ObjTable{Entries: make(map[*ObjString]Value)}
	h.allocate(obj, sizeTable)
	return obj
}

// PinRoot keeps obj alive across collections until UnpinRoot. Used for
// compiled scripts held by the embedder while no frame references them.
func (h *Heap) PinRoot(obj Object) {
	h.pinnedRoots = append(h.pinnedRoots, obj)
}

func (h *Heap) UnpinRoot(obj Object) {
	for i, root := range h.pinnedRoots {
		if root == obj {
			h.pinnedRoots = append(h.pinnedRoots[:i], h.pinnedRoots[i+1:]...)
			return
		}
	}
}

// Intern canonicalizes a value entering the heap from the outside. Strings
// are re-interned by content so pointer-identity equality keeps holding even
// when a collection purged the original from the intern table while only the
// host referenced it. Arrays and tables are walked so nested strings and
// table keys are canonical too.
func (h *Heap) Intern(v Value) Value {
	return h.internValue(v, nil)
}

func (h *Heap) internValue(v Value, seen map[Object]bool) Value {
	if v.Type != ValObj || v.Obj == nil {
		return v
	}
	switch o := v.Obj.(type) {
	case *ObjString:
		return ObjVal(h.NewString(o.Chars))
	case *ObjArray:
		if seen == nil {
			seen = make(map[Object]bool)
		}
		if seen[o] {
			return v
		}
		seen[o] = true
		for i, el := range o.Elements {
			o.Elements[i] = h.internValue(el, seen)
		}
	case *ObjTable:
		if seen == nil {
			seen = make(map[Object]bool)
		}
		if seen[o] {
			return v
		}
		seen[o] = true
		for k, val := range o.Entries {
			canon := h.NewString(k.Chars)
			cv := h.internValue(val, seen)
			if canon != k {
				delete(o.Entries, k)
			}
			o.Entries[canon] = cv
		}
	}
	return v
}

// BytesAllocated reports the accounted live-byte estimate.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// ObjectCount reports the number of objects on the all-objects list.
func (h *Heap) ObjectCount() int { return h.objectCount }

// Cycles reports how many collections have run.
func (h *Heap) Cycles() uint64 { return h.gcCycles }

// ShouldCollect reports whether allocation since the last cycle crossed the
// threshold. Checked by the VM between instructions only.
func (h *Heap) ShouldCollect() bool {
	return h.bytesAllocated > h.nextGC
}

package vm

import (
	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("mono.gc")

// collectGarbage runs one full mark-and-sweep cycle. It is only ever
// invoked from the dispatch loop between instructions, so no allocation is
// mid-construction while it runs.
func (vm *VM) collectGarbage() {
	h := vm.heap
	bytesBefore := h.bytesAllocated
	objectsBefore := h.objectCount

	vm.markRoots()
	h.traceReferences()

	// The intern table is a weak map: purge entries for strings that are
	// about to be swept, before the sweep clears mark bits.
	h.strings.removeUnmarked()

	freed := h.sweep()

	h.gcCycles++
	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.nextGC < gcInitialThreshold {
		h.nextGC = gcInitialThreshold
	}

	if gcLog.AllowLevel(commonlog.Debug) {
		gcLog.Debugf("cycle %d: freed %d of %d objects, %d -> %d bytes, next at %d",
			h.gcCycles, freed, objectsBefore, bytesBefore, h.bytesAllocated, h.nextGC)
	}
}

// markRoots marks everything directly reachable by the VM: live stack
// slots, every frame's closure, the global table, the open-upvalue list
// and the embedder's pinned scripts.
func (vm *VM) markRoots() {
	h := vm.heap

	for i := 0; i < vm.sp; i++ {
		h.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		h.markObject(vm.frames[i].closure)
	}
	for name, v := range vm.globals {
		h.markObject(name)
		h.markValue(v)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		h.markObject(uv)
	}
	for _, root := range h.pinnedRoots {
		h.markObject(root)
	}
}

func (h *Heap) markValue(v Value) {
	if v.Type == ValObj && v.Obj != nil {
		h.markObject(v.Obj)
	}
}

// markObject marks obj and queues it for tracing. The mark bit makes the
// traversal cycle-safe and ensures each object is visited exactly once.
func (h *Heap) markObject(obj Object) {
	if obj == nil || obj.header().marked {
		return
	}
	obj.header().marked = true
	h.gray = append(h.gray, obj)
}

// traceReferences drains the gray stack, marking each object's owned
// references. An explicit worklist keeps arbitrarily deep object graphs
// from overflowing the Go stack.
func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		obj := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(obj)
	}
}

func (h *Heap) blacken(obj Object) {
	switch o := obj.(type) {
	case *ObjString, *ObjNative:
		// no owned references
	case *ObjFunction:
		for _, c := range o.Chunk.Constants {
			h.markValue(c)
		}
	case *ObjClosure:
		h.markObject(o.Function)
		for _, uv := range o.Upvalues {
			h.markObject(uv)
		}
	case *ObjUpvalue:
		h.markValue(o.Closed)
	case *ObjArray:
		for _, el := range o.Elements {
			h.markValue(el)
		}
	case *ObjTable:
		for k, v := range o.Entries {
			h.markObject(k)
			h.markValue(v)
		}
	}
}

// sweep unlinks every unmarked object from the all-objects list and clears
// the mark bits of survivors for the next cycle.
func (h *Heap) sweep() int {
	freed := 0
	var prev Object
	obj := h.objects

	for obj != nil {
		hdr := obj.header()
		if hdr.marked {
			hdr.marked = false
			prev = obj
			obj = hdr.next
			continue
		}

		obj = hdr.next
		if prev == nil {
			h.objects = obj
		} else {
			prev.header().next = obj
		}
		hdr.next = nil

		h.objectCount--
		h.bytesAllocated -= hdr.size
		freed++
	}

	return freed
}

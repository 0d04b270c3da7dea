package vm

import (
	"context"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

// Initial sizes for the value and frame stacks.
const (
	initialStackSize  = 2048
	initialFrameCount = 64
)

// MaxFrames bounds call depth so runaway recursion fails with a runtime
// error instead of exhausting host memory.
const MaxFrames = 1024

// MaxStackSize bounds the value stack.
const MaxStackSize = 256 * 1024

// checkInterval is how many instructions run between context-cancellation
// polls.
const checkInterval = 1024

var vmLog = commonlog.GetLogger("mono.vm")

// BudgetFn is the optional per-instruction budget hook. It receives the
// number of instructions executed so far in this run; a non-nil error stops
// execution with a host runtime error.
type BudgetFn func(executed uint64) error

// CallFrame is one in-progress function invocation.
type CallFrame struct {
	closure *ObjClosure
	ip      int
	base    int // stack slot of the callee; locals start at base+1
}

// VM executes compiled chunks. It exclusively owns its value stack, call
// frames, global table and heap for its entire lifetime; instances share
// nothing and may run on separate goroutines.
type VM struct {
	stack []Value
	sp    int

	frames     []CallFrame
	frameCount int
	frame      *CallFrame

	globals map[*ObjString]Value

	// open upvalues, sorted by stack location, highest first
	openUpvalues *ObjUpvalue

	heap *Heap

	output   io.Writer
	ctx      context.Context
	budget   BudgetFn
	executed uint64
}

// New creates a VM around the given heap. Compiler and VM must share one
// heap so compile-time interning and runtime interning agree.
func New(heap *Heap) *VM {
	return &VM{
		stack:   make([]Value, initialStackSize),
		frames:  make([]CallFrame, initialFrameCount),
		globals: make(map[*ObjString]Value),
		heap:    heap,
		output:  os.Stdout,
	}
}

// Heap exposes the VM's heap for native registration and embedding.
func (vm *VM) Heap() *Heap { return vm.heap }

// SetOutput redirects the print statement. Defaults to stdout.
func (vm *VM) SetOutput(w io.Writer) {
	if w != nil {
		vm.output = w
	}
}

// SetContext installs a context polled periodically during execution for
// cooperative cancellation.
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// SetBudget installs the per-instruction budget hook.
func (vm *VM) SetBudget(fn BudgetFn) {
	vm.budget = fn
}

// DefineGlobal pre-populates a global, used by the embedding API to expose
// native callables and host values by name. The value is canonicalized so
// host-held strings stay interned even if a collection ran since they were
// created.
func (vm *VM) DefineGlobal(name string, v Value) {
	vm.globals[vm.heap.NewString(name)] = vm.heap.Intern(v)
}

// GlobalNames lists the names in the global table, for seeding strict-mode
// compiles with the globals this VM already owns.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, len(vm.globals))
	for k := range vm.globals {
		names = append(names, k.Chars)
	}
	return names
}

// GlobalsSnapshot copies the global table keyed by content, for tests and
// embedders inspecting final state.
func (vm *VM) GlobalsSnapshot() map[string]Value {
	out := make(map[string]Value, len(vm.globals))
	for k, v := range vm.globals {
		out[k.Chars] = v
	}
	return out
}

// Run executes a compiled top-level function to completion and returns the
// terminal value (the script's return value, nil if it falls off the end).
// A runtime error unwinds everything and is returned as *RuntimeError.
func (vm *VM) Run(fn *ObjFunction) (Value, error) {
	closure := vm.heap.NewClosure(fn)

	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
	vm.executed = 0

	// Slot 0 holds the callee, like every other call.
	vm.push(ObjVal(closure))
	vm.frames[0] = CallFrame{closure: closure, ip: 0, base: 0}
	vm.frameCount = 1
	vm.frame = &vm.frames[0]

	result, err := vm.dispatch()
	if err != nil {
		// Unwind completely: runtime errors admit no partial recovery.
		vm.sp = 0
		vm.frameCount = 0
		vm.frame = nil
		vm.openUpvalues = nil
		vmLog.Debugf("run failed after %d instructions: %s", vm.executed, err)
		return NilVal(), err
	}
	vmLog.Debugf("run finished, %d instructions", vm.executed)
	return result, nil
}

// Stack operations

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		if len(vm.stack)*2 > MaxStackSize {
			// Surfaced as a runtime error by the dispatch loop.
			panic(errStackOverflow)
		}
		grown := make([]Value, len(vm.stack)*2)
		copy(grown, vm.stack[:vm.sp])
		vm.stack = grown
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// Bytecode reading

func (vm *VM) readByte() byte {
	b := vm.frame.closure.Function.Chunk.Code[vm.frame.ip]
	vm.frame.ip++
	return b
}

func (vm *VM) readU16() int {
	chunk := vm.frame.closure.Function.Chunk
	v := chunk.ReadU16(vm.frame.ip)
	vm.frame.ip += 2
	return v
}

func (vm *VM) readConstant() Value {
	return vm.frame.closure.Function.Chunk.Constants[vm.readU16()]
}

// Upvalue machinery

// captureUpvalue returns the open upvalue for the given stack slot,
// creating one if no closure has captured that slot yet. Sharing the
// upvalue is what makes mutations visible across sibling closures.
func (vm *VM) captureUpvalue(location int) *ObjUpvalue {
	var prev *ObjUpvalue
	uv := vm.openUpvalues

	for uv != nil && uv.Location > location {
		prev = uv
		uv = uv.Next
	}

	if uv != nil && uv.Location == location {
		return uv
	}

	created := vm.heap.NewUpvalue(location)
	created.Next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above lastSlot: the current
// slot value is copied into the upvalue's own storage and the upvalue is
// re-pointed at it, freezing a snapshot for all closures that share it.
func (vm *VM) closeUpvalues(lastSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= lastSlot {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.Location = -1
		vm.openUpvalues = uv.Next
		uv.Next = nil
	}
}

// Package embed is the host-facing API of the mono runtime. An Interp
// owns one isolated heap, global table and VM; hosts compile scripts,
// run them, and expose native Go functions to them.
package embed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/monolang/mono/internal/diagnostics"
	"github.com/monolang/mono/internal/vm"

	_ "github.com/tliron/commonlog/simple"
)

// Value is the script-value type surfaced to hosts.
type Value = vm.Value

// NativeFn is the signature of a host function callable from scripts.
type NativeFn = vm.NativeFn

// RuntimeError is the structured error a failed run returns.
type RuntimeError = vm.RuntimeError

// CompileError aggregates every diagnostic from one compile. It keeps the
// source so the diagnostics can be rendered with context.
type CompileError struct {
	Source string
	Diags  []*diagnostics.Error
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Diags))
	for i, d := range e.Diags {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// Render writes the diagnostics to w with the offending source lines
// quoted and carets under the reported columns.
func (e *CompileError) Render(w io.Writer) {
	diagnostics.Render(w, e.Source, e.Diags)
}

// Option configures an Interp at construction time.
type Option func(*Interp)

// WithOutput redirects the print statement. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interp) { in.vm.SetOutput(w) }
}

// WithStrict rejects assignment to undeclared variables at compile time.
func WithStrict() Option {
	return func(in *Interp) { in.opts.Strict = true }
}

// WithContext installs a context polled during execution; cancelling it
// stops a running script with a runtime error.
func WithContext(ctx context.Context) Option {
	return func(in *Interp) { in.vm.SetContext(ctx) }
}

// WithBudget installs a per-instruction budget hook. The hook receives
// the running instruction count; returning an error aborts execution.
func WithBudget(fn vm.BudgetFn) Option {
	return func(in *Interp) { in.vm.SetBudget(fn) }
}

// WithLogVerbosity raises the runtime's log verbosity. At 2 and above the
// collector logs per-cycle statistics.
func WithLogVerbosity(verbosity int) Option {
	return func(in *Interp) { commonlog.Configure(verbosity, nil) }
}

// Interp is one isolated interpreter instance. Instances share nothing;
// values and compiled scripts must not cross between them.
type Interp struct {
	id   string
	heap *vm.Heap
	vm   *vm.VM
	opts vm.Options
}

// New creates an interpreter with its own heap and global table.
func New(options ...Option) *Interp {
	heap := vm.NewHeap()
	in := &Interp{
		id:   uuid.NewString(),
		heap: heap,
		vm:   vm.New(heap),
	}
	for _, opt := range options {
		opt(in)
	}
	return in
}

// ID returns the instance's unique identifier, for log correlation when a
// host runs several interpreters.
func (in *Interp) ID() string { return in.id }

// Script is a compiled program bound to the interpreter that compiled it.
// It stays valid across collections until Close.
type Script struct {
	interp *Interp
	fn     *vm.ObjFunction
	closed bool
}

// Compile turns source into a runnable Script. On failure it returns a
// *CompileError carrying every diagnostic; no script is produced. Strict
// compiles see every global the interpreter already owns, so later scripts
// may assign to names earlier scripts or the host declared.
func (in *Interp) Compile(source string) (*Script, error) {
	opts := in.opts
	opts.KnownGlobals = in.vm.GlobalNames()
	fn, diags := vm.Compile(source, in.heap, opts)
	if len(diags) > 0 {
		return nil, &CompileError{Source: source, Diags: diags}
	}

	// Pin the chunk: nothing on any VM stack references it until Run.
	in.heap.PinRoot(fn)
	return &Script{interp: in, fn: fn}, nil
}

// Close releases the script's pin so the collector may reclaim it.
func (s *Script) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.interp.heap.UnpinRoot(s.fn)
}

// Disassemble writes a human-readable bytecode listing of the script and
// every function it contains.
func (s *Script) Disassemble(w io.Writer) {
	disassembleAll(w, s.fn)
}

func disassembleAll(w io.Writer, fn *vm.ObjFunction) {
	name := fn.Name
	if name == "" {
		name = "<anonymous>"
	}
	vm.DisassembleChunk(w, fn.Chunk, name)
	for _, c := range fn.Chunk.Constants {
		if inner, ok := c.Obj.(*vm.ObjFunction); ok {
			disassembleAll(w, inner)
		}
	}
}

// Run executes a compiled script and returns its terminal value. Runtime
// failures come back as *RuntimeError with the full call trace.
func (in *Interp) Run(s *Script) (Value, error) {
	if s.closed {
		return vm.NilVal(), fmt.Errorf("script is closed")
	}
	if s.interp != in {
		return vm.NilVal(), fmt.Errorf("script belongs to another interpreter")
	}
	return in.vm.Run(s.fn)
}

// Eval compiles and runs source in one step. The compiled script is
// released afterwards.
func (in *Interp) Eval(source string) (Value, error) {
	s, err := in.Compile(source)
	if err != nil {
		return vm.NilVal(), err
	}
	defer s.Close()
	return in.Run(s)
}

// RegisterNative exposes a Go function to scripts as a global callable
// with a fixed arity. An error returned by fn surfaces in the script as a
// runtime error of kind HostError.
func (in *Interp) RegisterNative(name string, arity int, fn NativeFn) {
	native := in.heap.NewNative(name, arity, fn)
	in.vm.DefineGlobal(name, vm.ObjVal(native))
}

// SetGlobal binds a value under name in the interpreter's global table.
func (in *Interp) SetGlobal(name string, v Value) {
	in.vm.DefineGlobal(name, v)
}

// Globals returns a copy of the global table keyed by name.
func (in *Interp) Globals() map[string]Value {
	return in.vm.GlobalsSnapshot()
}

// Number, String, Bool and Nil build script values for SetGlobal and for
// native return values.

func Number(f float64) Value { return vm.NumberVal(f) }

func Bool(b bool) Value { return vm.BoolVal(b) }

func Nil() Value { return vm.NilVal() }

// String interns s in the interpreter's heap and returns it as a value.
func (in *Interp) String(s string) Value {
	return vm.ObjVal(in.heap.NewString(s))
}

package vm

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a runtime failure.
type ErrorKind uint8

const (
	TypeError ErrorKind = iota
	ArityError
	UndefinedError
	IndexError
	OverflowError
	HostError // a native callable returned an error
)

var errorKindNames = map[ErrorKind]string{
	TypeError:      "TypeError",
	ArityError:     "ArityError",
	UndefinedError: "UndefinedError",
	IndexError:     "IndexError",
	OverflowError:  "OverflowError",
	HostError:      "HostError",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return "RuntimeError"
}

// TraceEntry is one level of the call chain at the moment of failure.
type TraceEntry struct {
	Function string
	Line     int
}

// RuntimeError is the single structured error a failed run returns. The
// failure unwinds the whole frame stack; Trace records it innermost first.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Line    int
	Trace   []TraceEntry

	// Cause preserves the host-side error behind a HostError so callers
	// can match it with errors.Is and errors.As.
	Cause error
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s at line %d: %s", e.Kind, e.Line, e.Message)
	for _, entry := range e.Trace {
		fmt.Fprintf(&sb, "\n  at %s:%d", entry.Function, entry.Line)
	}
	return sb.String()
}

// runtimeError builds a RuntimeError located at the currently executing
// instruction, with a stack trace walked from the innermost frame out.
func (vm *VM) runtimeError(kind ErrorKind, format string, args ...any) *RuntimeError {
	err := &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    vm.currentLine(),
	}

	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		name := frame.closure.Function.Name
		if name == "" {
			name = "<anonymous>"
		}
		if i == 0 {
			name = "<script>"
		}
		line := 0
		chunk := frame.closure.Function.Chunk
		if frame.ip > 0 && frame.ip-1 < len(chunk.Lines) {
			line = chunk.Lines[frame.ip-1]
		}
		err.Trace = append(err.Trace, TraceEntry{Function: name, Line: line})
	}

	return err
}

// currentLine reports the source line of the instruction being executed.
func (vm *VM) currentLine() int {
	if vm.frame == nil {
		return 0
	}
	chunk := vm.frame.closure.Function.Chunk
	ip := vm.frame.ip - 1
	if ip >= 0 && ip < len(chunk.Lines) {
		return chunk.Lines[ip]
	}
	return 0
}

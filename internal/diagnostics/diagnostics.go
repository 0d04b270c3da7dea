// Package diagnostics defines the compile-time error values shared by the
// lexer-facing and compiler-facing halves of the front end.
package diagnostics

import (
	"fmt"
)

// Error codes. The letter names the stage that produced the error: L for
// lexical, P for parse, R for resolution.
const (
	ErrL001 = "L001" // malformed token
	ErrP001 = "P001" // unexpected token
	ErrP002 = "P002" // missing expected token
	ErrP003 = "P003" // invalid assignment target
	ErrP004 = "P004" // too many constants / locals / arguments
	ErrP005 = "P005" // jump distance exceeds operand range
	ErrP006 = "P006" // nesting depth limit exceeded
	ErrR001 = "R001" // duplicate declaration in same scope
	ErrR002 = "R002" // variable read in its own initializer
	ErrR003 = "R003" // assignment to undeclared variable (strict mode)
)

// Error is a single compile-time diagnostic.
type Error struct {
	Code    string
	Message string
	Line    int
	Column  int
}

func New(code string, line, column int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Column:  column,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %d:%d: %s", e.Code, e.Line, e.Column, e.Message)
}

// Bag collects diagnostics in source order.
type Bag struct {
	errs []*Error
}

func (b *Bag) Add(e *Error) {
	b.errs = append(b.errs, e)
}

func (b *Bag) Addf(code string, line, column int, format string, args ...any) {
	b.Add(New(code, line, column, format, args...))
}

func (b *Bag) Len() int { return len(b.errs) }

func (b *Bag) HasErrors() bool { return len(b.errs) > 0 }

// Errors returns the collected diagnostics in the order they were recorded.
func (b *Bag) Errors() []*Error { return b.errs }

package vm

import (
	"github.com/monolang/mono/internal/diagnostics"
	"github.com/monolang/mono/internal/token"
)

// Compile-time limits fixed by the operand widths of the bytecode.
const (
	maxLocals    = 256   // u8 slot operand
	maxUpvalues  = 256   // u8 upvalue operand
	maxCallArgs  = 255   // u8 argument count
	maxConstants = 65536 // u16 constant index
	maxJump      = 65535 // u16 jump offset
)

// local is a variable slot in the current function's stack window.
// depth == -1 marks a declared-but-uninitialized variable, which makes
// self-reference in the initializer detectable.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueDesc records, at compile time, where a captured variable lives:
// a local slot of the immediately enclosing function, or one of its own
// upvalues.
type upvalueDesc struct {
	index   uint8
	isLocal bool
}

// funcCompiler holds the per-function compilation state. Compilers nest
// through the enclosing link while the parser descends into function
// bodies.
type funcCompiler struct {
	enclosing *funcCompiler
	function  *ObjFunction
	isScript  bool

	locals     [maxLocals]local
	localCount int
	upvalues   [maxUpvalues]upvalueDesc
	scopeDepth int
}

func newFuncCompiler(enclosing *funcCompiler, fn *ObjFunction, isScript bool) *funcCompiler {
	return &funcCompiler{
		enclosing: enclosing,
		function:  fn,
		isScript:  isScript,
	}
}

// Scope management

func (p *parser) beginScope() {
	p.compiler.scopeDepth++
}

// endScope discards the scope's locals. Captured slots are hoisted into
// their upvalues with CLOSE_UPVALUE; the rest are simply popped.
func (p *parser) endScope() {
	c := p.compiler
	c.scopeDepth--

	for c.localCount > 0 && c.locals[c.localCount-1].depth > c.scopeDepth {
		if c.locals[c.localCount-1].isCaptured {
			p.emit(OP_CLOSE_UPVALUE)
		} else {
			p.emit(OP_POP)
		}
		c.localCount--
	}
}

// Variable declaration

// parseVariable consumes an identifier and declares it. For globals it
// returns the name's constant-pool index; for locals the index is unused.
func (p *parser) parseVariable(errorMessage string) int {
	p.consume(token.IDENT, "%s", errorMessage)
	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous.Lexeme)
}

// declareVariable registers a new local in the current scope. Globals are
// late-bound by name and need no compile-time slot.
func (p *parser) declareVariable() {
	c := p.compiler
	if c.scopeDepth == 0 {
		return
	}

	name := p.previous.Lexeme
	for i := c.localCount - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name == name {
			p.error(diagnostics.ErrR001, "variable '%s' already declared in this scope", name)
		}
	}
	p.addLocal(name)
}

func (p *parser) addLocal(name string) {
	c := p.compiler
	if c.localCount >= maxLocals {
		p.error(diagnostics.ErrP004, "too many local variables in function")
		return
	}
	c.locals[c.localCount] = local{name: name, depth: -1}
	c.localCount++
}

// defineVariable makes a declared variable available. Locals become live
// by marking their slot initialized; globals emit a DEFINE_GLOBAL.
func (p *parser) defineVariable(nameIdx int) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.declaredGlobals[p.previousGlobalName(nameIdx)] = true
	p.emit(OP_DEFINE_GLOBAL)
	p.emitU16(uint16(nameIdx))
}

// previousGlobalName recovers the declared name from the constant pool so
// strict mode can track it. The constant was interned by
// identifierConstant just before.
func (p *parser) previousGlobalName(nameIdx int) string {
	v := p.currentChunk().Constants[nameIdx]
	return v.AsString().Chars
}

func (p *parser) markInitialized() {
	c := p.compiler
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].depth = c.scopeDepth
}

// identifierConstant interns the name and stores it in the constant pool.
// Interning means repeated references to one global share a single
// ObjString, and the VM can key its globals table by pointer.
func (p *parser) identifierConstant(name string) int {
	s := p.heap.NewString(name)
	return p.makeConstant(ObjVal(s))
}

// Variable resolution: local slot first, then upvalue chain, then global.

// resolveLocal returns the slot of name in the current function, or -1.
func (p *parser) resolveLocal(c *funcCompiler, name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.name == name {
			if l.depth == -1 {
				p.error(diagnostics.ErrR002, "cannot read '%s' in its own initializer", name)
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue walks outward through enclosing functions. A hit in the
// immediate parent captures that local; a hit further out is threaded
// through each intermediate function as a chained upvalue.
func (p *parser) resolveUpvalue(c *funcCompiler, name string) int {
	if c.enclosing == nil {
		return -1
	}

	if slot := p.resolveLocal(c.enclosing, name); slot != -1 {
		c.enclosing.locals[slot].isCaptured = true
		return p.addUpvalue(c, uint8(slot), true)
	}
	if idx := p.resolveUpvalue(c.enclosing, name); idx != -1 {
		return p.addUpvalue(c, uint8(idx), false)
	}
	return -1
}

func (p *parser) addUpvalue(c *funcCompiler, index uint8, isLocal bool) int {
	count := c.function.UpvalueCount
	for i := 0; i < count; i++ {
		uv := &c.upvalues[i]
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}

	if count >= maxUpvalues {
		p.error(diagnostics.ErrP004, "too many captured variables in function")
		return 0
	}
	c.upvalues[count] = upvalueDesc{index: index, isLocal: isLocal}
	c.function.UpvalueCount++
	return count
}

// namedVariable emits the load or store for an identifier, choosing the
// local, upvalue, or global form.
func (p *parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp Opcode
	var arg int
	wide := false

	if slot := p.resolveLocal(p.compiler, name); slot != -1 {
		getOp, setOp, arg = OP_GET_LOCAL, OP_SET_LOCAL, slot
	} else if idx := p.resolveUpvalue(p.compiler, name); idx != -1 {
		getOp, setOp, arg = OP_GET_UPVALUE, OP_SET_UPVALUE, idx
	} else {
		getOp, setOp, arg = OP_GET_GLOBAL, OP_SET_GLOBAL, p.identifierConstant(name)
		wide = true
	}

	if canAssign && p.match(token.ASSIGN) {
		if setOp == OP_SET_GLOBAL && p.strict && !p.declaredGlobals[name] {
			p.error(diagnostics.ErrR003, "assignment to undeclared variable '%s'", name)
		}
		p.expression()
		p.emit(setOp)
	} else {
		p.emit(getOp)
	}
	if wide {
		p.emitU16(uint16(arg))
	} else {
		p.emitByte(uint8(arg))
	}
}

// Bytecode emission. Every instruction is tagged with the line of the
// token that produced it.

func (p *parser) currentChunk() *Chunk {
	return p.compiler.function.Chunk
}

func (p *parser) emit(op Opcode) {
	p.currentChunk().WriteOp(op, p.previous.Line)
}

func (p *parser) emitByte(b uint8) {
	p.currentChunk().Write(b, p.previous.Line)
}

func (p *parser) emitU16(v uint16) {
	p.currentChunk().WriteU16(v, p.previous.Line)
}

func (p *parser) makeConstant(v Value) int {
	idx := p.currentChunk().AddConstant(v)
	if idx >= maxConstants {
		p.error(diagnostics.ErrP004, "too many constants in one chunk")
		return 0
	}
	return idx
}

func (p *parser) emitConstant(v Value) {
	p.emit(OP_CONST)
	p.emitU16(uint16(p.makeConstant(v)))
}

// emitJump writes a jump with a placeholder offset and returns the
// position of the operand for patching.
func (p *parser) emitJump(op Opcode) int {
	p.emit(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return p.currentChunk().Len() - 2
}

func (p *parser) patchJump(operandPos int) {
	// -2 skips the operand itself.
	jump := p.currentChunk().Len() - operandPos - 2
	if jump > maxJump {
		p.error(diagnostics.ErrP005, "too much code to jump over")
		return
	}
	c := p.currentChunk()
	c.Code[operandPos] = uint8(jump >> 8)
	c.Code[operandPos+1] = uint8(jump)
}

func (p *parser) emitLoop(loopStart int) {
	p.emit(OP_LOOP)
	offset := p.currentChunk().Len() - loopStart + 2
	if offset > maxJump {
		p.error(diagnostics.ErrP005, "loop body too large")
		offset = 0
	}
	p.emitU16(uint16(offset))
}

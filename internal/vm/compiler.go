package vm

import (
	"github.com/monolang/mono/internal/diagnostics"
	"github.com/monolang/mono/internal/lexer"
	"github.com/monolang/mono/internal/token"
)

// Options controls compilation behavior.
type Options struct {
	// Strict rejects assignment to undeclared variables at compile time.
	// Without it the assignment compiles to a global store that fails at
	// run time if the name is still undefined.
	Strict bool

	// KnownGlobals are global names that already exist outside this compile
	// unit (declared by earlier scripts, SetGlobal, native registration).
	// Strict mode accepts assignments to them.
	KnownGlobals []string
}

// Compile turns source text into the top-level function's chunk. On any
// error it returns the full diagnostic list and no function: a chunk is
// never handed to the VM alongside errors.
func Compile(source string, heap *Heap, opts Options) (*ObjFunction, []*diagnostics.Error) {
	p := &parser{
		lx:              lexer.New(source),
		heap:            heap,
		strict:          opts.Strict,
		declaredGlobals: make(map[string]bool, len(opts.KnownGlobals)),
	}
	for _, name := range opts.KnownGlobals {
		p.declaredGlobals[name] = true
	}
	p.registerRules()
	p.compiler = newFuncCompiler(nil, heap.NewFunction("<script>"), true)

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endCompiler()

	if p.bag.HasErrors() {
		return nil, p.bag.Errors()
	}
	return fn, nil
}

// maxNestingDepth bounds expression nesting so adversarial input fails
// with a diagnostic instead of a host stack overflow.
const maxNestingDepth = 64

// parser drives the lexer and emits bytecode directly; there is no
// intermediate AST. One funcCompiler per enclosing function tracks scope
// state.
type parser struct {
	lx   *lexer.Lexer
	heap *Heap

	current  token.Token
	previous token.Token

	bag       diagnostics.Bag
	panicMode bool

	compiler *funcCompiler

	strict          bool
	declaredGlobals map[string]bool

	nesting int

	prefixFns   map[token.Type]parseFn
	infixFns    map[token.Type]parseFn
	precedences map[token.Type]precedence
}

// Token handling

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lx.NextToken()
		if p.current.Type != token.ILLEGAL {
			return
		}
		p.errorAtCurrent(diagnostics.ErrL001, "%s", p.current.Lexeme)
	}
}

func (p *parser) check(t token.Type) bool {
	return p.current.Type == t
}

func (p *parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t token.Type, format string, args ...any) {
	if p.check(t) {
		p.advance()
		return
	}
	p.errorAtCurrent(diagnostics.ErrP002, format, args...)
}

// Error reporting. The first error in a statement flips panic mode, which
// suppresses the cascade until synchronize reaches the next statement.

func (p *parser) errorAt(tok token.Token, code string, format string, args ...any) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.bag.Addf(code, tok.Line, tok.Column, format, args...)
}

func (p *parser) error(code string, format string, args ...any) {
	p.errorAt(p.previous, code, format, args...)
}

func (p *parser) errorAtCurrent(code string, format string, args ...any) {
	p.errorAt(p.current, code, format, args...)
}

// synchronize skips tokens to the next statement boundary so independent
// errors in later statements are still reported.
func (p *parser) synchronize() {
	p.panicMode = false

	for p.current.Type != token.EOF {
		if p.previous.Type == token.SEMI {
			return
		}
		switch p.current.Type {
		case token.VAR, token.FUN, token.IF, token.WHILE, token.FOR,
			token.RETURN, token.PRINT:
			return
		}
		p.advance()
	}
}

// Declarations and statements

func (p *parser) declaration() {
	switch {
	case p.match(token.VAR):
		p.varDeclaration()
	case p.match(token.FUN):
		p.funDeclaration()
	default:
		p.statement()
	}

	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) varDeclaration() {
	nameIdx := p.parseVariable("expected variable name after 'var'")

	if p.match(token.ASSIGN) {
		p.expression()
	} else {
		p.emit(OP_NIL)
	}
	p.consume(token.SEMI, "expected ';' after variable declaration")

	p.defineVariable(nameIdx)
}

func (p *parser) funDeclaration() {
	nameIdx := p.parseVariable("expected function name after 'fun'")
	name := p.previous.Lexeme
	// The name is usable inside the body so functions can recurse.
	p.markInitialized()
	p.function(name)
	p.defineVariable(nameIdx)
}

func (p *parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) printStatement() {
	p.expression()
	p.consume(token.SEMI, "expected ';' after print value")
	p.emit(OP_PRINT)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMI, "expected ';' after expression")
	p.emit(OP_POP)
}

func (p *parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expected '}' after block")
}

func (p *parser) ifStatement() {
	p.consume(token.LPAREN, "expected '(' after 'if'")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	thenJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.statement()
	elseJump := p.emitJump(OP_JUMP)

	p.patchJump(thenJump)
	p.emit(OP_POP)
	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := p.currentChunk().Len()

	p.consume(token.LPAREN, "expected '(' after 'while'")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	exitJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emit(OP_POP)
}

// forStatement compiles for (init; cond; incr) body into the same jump
// shape as a while loop, with the increment clause threaded in after the
// body.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "expected '(' after 'for'")

	switch {
	case p.match(token.SEMI):
		// no initializer
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.currentChunk().Len()
	exitJump := -1
	if !p.match(token.SEMI) {
		p.expression()
		p.consume(token.SEMI, "expected ';' after loop condition")
		exitJump = p.emitJump(OP_JUMP_IF_FALSE)
		p.emit(OP_POP)
	}

	if !p.match(token.RPAREN) {
		bodyJump := p.emitJump(OP_JUMP)
		incrementStart := p.currentChunk().Len()
		p.expression()
		p.emit(OP_POP)
		p.consume(token.RPAREN, "expected ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emit(OP_POP)
	}
	p.endScope()
}

func (p *parser) returnStatement() {
	if p.compiler.isScript {
		p.error(diagnostics.ErrP001, "'return' outside of a function")
	}

	if p.match(token.SEMI) {
		p.emit(OP_NIL)
		p.emit(OP_RETURN)
		return
	}
	p.expression()
	p.consume(token.SEMI, "expected ';' after return value")
	p.emit(OP_RETURN)
}

// function compiles a function body (named declaration or anonymous
// expression) in a fresh funcCompiler and emits the CLOSURE instruction
// in the enclosing chunk. The function's chunk and constant pool are
// finalized before anything references them.
func (p *parser) function(name string) {
	fc := newFuncCompiler(p.compiler, p.heap.NewFunction(name), false)
	p.compiler = fc
	p.beginScope()

	p.consume(token.LPAREN, "expected '(' after function name")
	if !p.check(token.RPAREN) {
		for {
			if fc.function.Arity >= maxCallArgs {
				p.errorAtCurrent(diagnostics.ErrP004, "functions take at most %d parameters", maxCallArgs)
			}
			fc.function.Arity++
			idx := p.parseVariable("expected parameter name")
			p.defineVariable(idx)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after parameters")
	p.consume(token.LBRACE, "expected '{' before function body")
	p.block()

	fn := p.endCompiler()

	idx := p.makeConstant(ObjVal(fn))
	p.emit(OP_CLOSURE)
	p.emitU16(uint16(idx))
	for i := 0; i < fn.UpvalueCount; i++ {
		if fc.upvalues[i].isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(fc.upvalues[i].index)
	}
}

// endCompiler seals the current function (implicit nil return) and pops
// back to the enclosing one.
func (p *parser) endCompiler() *ObjFunction {
	p.emit(OP_NIL)
	p.emit(OP_RETURN)
	fn := p.compiler.function
	p.compiler = p.compiler.enclosing
	return fn
}

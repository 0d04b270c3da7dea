package vm

import (
	"strconv"

	"github.com/monolang/mono/internal/diagnostics"
	"github.com/monolang/mono/internal/token"
)

// precedence orders the infix operators for Pratt parsing. Each infix
// rule parses its right operand at one level tighter, so all binary
// operators are left-associative.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < <= > >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // () []
)

type parseFn func(canAssign bool)

// registerRules installs the prefix and infix parsers. Registration at
// construction time avoids a package-level init cycle between the parser
// methods and the table.
func (p *parser) registerRules() {
	p.prefixFns = map[token.Type]parseFn{
		token.LPAREN:   p.grouping,
		token.LBRACKET: p.arrayLiteral,
		token.LBRACE:   p.tableLiteral,
		token.MINUS:    p.unary,
		token.BANG:     p.unary,
		token.NUMBER:   p.number,
		token.STRING:   p.stringLiteral,
		token.IDENT:    p.variable,
		token.TRUE:     p.literal,
		token.FALSE:    p.literal,
		token.NIL:      p.literal,
		token.FUN:      p.funExpression,
	}
	p.infixFns = map[token.Type]parseFn{
		token.LPAREN:   p.call,
		token.LBRACKET: p.index,
		token.MINUS:    p.binary,
		token.PLUS:     p.binary,
		token.SLASH:    p.binary,
		token.STAR:     p.binary,
		token.EQ:       p.binary,
		token.NE:       p.binary,
		token.LT:       p.binary,
		token.LE:       p.binary,
		token.GT:       p.binary,
		token.GE:       p.binary,
		token.AND:      p.and,
		token.OR:       p.or,
	}
	p.precedences = map[token.Type]precedence{
		token.LPAREN:   precCall,
		token.LBRACKET: precCall,
		token.MINUS:    precTerm,
		token.PLUS:     precTerm,
		token.SLASH:    precFactor,
		token.STAR:     precFactor,
		token.EQ:       precEquality,
		token.NE:       precEquality,
		token.LT:       precComparison,
		token.LE:       precComparison,
		token.GT:       precComparison,
		token.GE:       precComparison,
		token.AND:      precAnd,
		token.OR:       precOr,
	}
}

func (p *parser) currentPrecedence() precedence {
	if prec, ok := p.precedences[p.current.Type]; ok {
		return prec
	}
	return precNone
}

func (p *parser) expression() {
	p.parsePrecedence(precAssignment)
}

// parsePrecedence is the Pratt core: one prefix parse, then infix parses
// while the next operator binds at least as tightly as prec. canAssign
// flows down so `a = b` only compiles as assignment where one is legal.
func (p *parser) parsePrecedence(prec precedence) {
	p.nesting++
	defer func() { p.nesting-- }()
	if p.nesting > maxNestingDepth {
		p.errorAtCurrent(diagnostics.ErrP006, "expression nesting too deep")
		p.skipToStatementBoundary()
		return
	}

	p.advance()
	prefix, ok := p.prefixFns[p.previous.Type]
	if !ok {
		p.error(diagnostics.ErrP001, "unexpected token '%s'", p.previous.Lexeme)
		return
	}
	canAssign := prec <= precAssignment
	prefix(canAssign)

	for prec <= p.currentPrecedence() {
		p.advance()
		p.infixFns[p.previous.Type](canAssign)
	}

	if canAssign && p.match(token.ASSIGN) {
		p.error(diagnostics.ErrP003, "invalid assignment target")
	}
}

// skipToStatementBoundary abandons a too-deep expression without driving
// the recursive descent any further into it.
func (p *parser) skipToStatementBoundary() {
	for p.current.Type != token.EOF && p.current.Type != token.SEMI {
		p.advance()
	}
}

// Prefix parsers

func (p *parser) grouping(canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "expected ')' after expression")
}

func (p *parser) number(canAssign bool) {
	f, err := strconv.ParseFloat(p.previous.Lexeme, 64)
	if err != nil {
		p.error(diagnostics.ErrP001, "invalid number literal '%s'", p.previous.Lexeme)
		return
	}
	p.emitConstant(NumberVal(f))
}

func (p *parser) stringLiteral(canAssign bool) {
	s := p.heap.NewString(p.previous.Lexeme)
	p.emitConstant(ObjVal(s))
}

func (p *parser) literal(canAssign bool) {
	switch p.previous.Type {
	case token.TRUE:
		p.emit(OP_TRUE)
	case token.FALSE:
		p.emit(OP_FALSE)
	case token.NIL:
		p.emit(OP_NIL)
	}
}

func (p *parser) variable(canAssign bool) {
	p.namedVariable(p.previous.Lexeme, canAssign)
}

func (p *parser) unary(canAssign bool) {
	op := p.previous.Type
	p.parsePrecedence(precUnary)
	switch op {
	case token.MINUS:
		p.emit(OP_NEG)
	case token.BANG:
		p.emit(OP_NOT)
	}
}

// funExpression compiles an anonymous function literal.
func (p *parser) funExpression(canAssign bool) {
	p.function("")
}

// arrayLiteral compiles [e1, e2, ...] by pushing the elements and
// emitting MAKE_ARRAY with the count.
func (p *parser) arrayLiteral(canAssign bool) {
	count := 0
	if !p.check(token.RBRACKET) {
		for {
			p.expression()
			if count >= maxCallArgs {
				p.error(diagnostics.ErrP004, "array literal has too many elements")
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
			if p.check(token.RBRACKET) {
				break // trailing comma
			}
		}
	}
	p.consume(token.RBRACKET, "expected ']' after array elements")
	p.emit(OP_MAKE_ARRAY)
	p.emitByte(uint8(count))
}

// tableLiteral compiles { "key": value, ... }. Keys are string literals;
// identifier keys are sugar for their quoted form.
func (p *parser) tableLiteral(canAssign bool) {
	count := 0
	if !p.check(token.RBRACE) {
		for {
			switch {
			case p.match(token.STRING), p.match(token.IDENT):
				s := p.heap.NewString(p.previous.Lexeme)
				p.emitConstant(ObjVal(s))
			default:
				p.errorAtCurrent(diagnostics.ErrP002, "expected string key in table literal")
				p.skipToStatementBoundary()
				return
			}
			p.consume(token.COLON, "expected ':' after table key")
			p.expression()
			if count >= maxCallArgs {
				p.error(diagnostics.ErrP004, "table literal has too many entries")
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
			if p.check(token.RBRACE) {
				break // trailing comma
			}
		}
	}
	p.consume(token.RBRACE, "expected '}' after table entries")
	p.emit(OP_MAKE_TABLE)
	p.emitByte(uint8(count))
}

// Infix parsers

func (p *parser) binary(canAssign bool) {
	op := p.previous.Type
	p.parsePrecedence(p.precedences[op] + 1)

	switch op {
	case token.PLUS:
		p.emit(OP_ADD)
	case token.MINUS:
		p.emit(OP_SUB)
	case token.STAR:
		p.emit(OP_MUL)
	case token.SLASH:
		p.emit(OP_DIV)
	case token.EQ:
		p.emit(OP_EQ)
	case token.NE:
		p.emit(OP_NE)
	case token.LT:
		p.emit(OP_LT)
	case token.LE:
		p.emit(OP_LE)
	case token.GT:
		p.emit(OP_GT)
	case token.GE:
		p.emit(OP_GE)
	}
}

// and short-circuits: if the left operand is falsy it stays on the stack
// as the result and the right operand is skipped.
func (p *parser) and(canAssign bool) {
	endJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

// or short-circuits the mirrored way: a truthy left operand is the
// result.
func (p *parser) or(canAssign bool) {
	elseJump := p.emitJump(OP_JUMP_IF_FALSE)
	endJump := p.emitJump(OP_JUMP)

	p.patchJump(elseJump)
	p.emit(OP_POP)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emit(OP_CALL)
	p.emitByte(uint8(argCount))
}

func (p *parser) argumentList() int {
	count := 0
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			if count >= maxCallArgs {
				p.error(diagnostics.ErrP004, "calls take at most %d arguments", maxCallArgs)
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after arguments")
	return count
}

// index compiles a[i] as a load, or a[i] = v as a store when the
// expression sits in assignment position.
func (p *parser) index(canAssign bool) {
	p.expression()
	p.consume(token.RBRACKET, "expected ']' after index")

	if canAssign && p.match(token.ASSIGN) {
		p.expression()
		p.emit(OP_SET_INDEX)
	} else {
		p.emit(OP_GET_INDEX)
	}
}

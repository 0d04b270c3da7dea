// Package token defines the lexical tokens of the mono language.
package token

// Type identifies the kind of a token.
type Type uint8

const (
	ILLEGAL Type = iota // malformed input; Lexeme carries the message
	EOF

	// Identifiers and literals
	IDENT
	NUMBER
	STRING

	// Operators
	ASSIGN // =
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /
	BANG   // !

	EQ // ==
	NE // !=
	LT // <
	LE // <=
	GT // >
	GE // >=

	// Punctuation
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	COMMA    // ,
	SEMI     // ;
	COLON    // :

	// Keywords
	VAR
	FUN
	IF
	ELSE
	WHILE
	FOR
	RETURN
	PRINT
	AND
	OR
	TRUE
	FALSE
	NIL
)

var names = map[Type]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	ASSIGN: "=",
	PLUS:   "+",
	MINUS:  "-",
	STAR:   "*",
	SLASH:  "/",
	BANG:   "!",

	EQ: "==",
	NE: "!=",
	LT: "<",
	LE: "<=",
	GT: ">",
	GE: ">=",

	LPAREN:   "(",
	RPAREN:   ")",
	LBRACE:   "{",
	RBRACE:   "}",
	LBRACKET: "[",
	RBRACKET: "]",
	COMMA:    ",",
	SEMI:     ";",
	COLON:    ":",

	VAR:    "var",
	FUN:    "fun",
	IF:     "if",
	ELSE:   "else",
	WHILE:  "while",
	FOR:    "for",
	RETURN: "return",
	PRINT:  "print",
	AND:    "and",
	OR:     "or",
	TRUE:   "true",
	FALSE:  "false",
	NIL:    "nil",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is a single lexical unit. Immutable once produced by the lexer.
type Token struct {
	Type   Type
	Lexeme string
	Line   int
	Column int
}

var keywords = map[string]Type{
	"var":    VAR,
	"fun":    FUN,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"return": RETURN,
	"print":  PRINT,
	"and":    AND,
	"or":     OR,
	"true":   TRUE,
	"false":  FALSE,
	"nil":    NIL,
}

// LookupIdent returns the keyword type for ident, or IDENT if it is not
// a reserved word.
func LookupIdent(ident string) Type {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return IDENT
}

// Package lexer turns mono source text into a stream of tokens.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/monolang/mono/internal/token"
)

// Lexer scans source text one token at a time. The cursor only moves
// forward; restarting requires a new Lexer over the same text.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int
	column       int
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

// NextToken returns the next token in the input. Malformed input produces
// an ILLEGAL token whose lexeme is the error message; scanning resumes at
// the following character, so the stream always reaches EOF.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.column

	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Lexeme: "", Line: line, Column: col}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.EQ, "==", line, col)
		}
		return l.emit(token.ASSIGN, "=", line, col)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.NE, "!=", line, col)
		}
		return l.emit(token.BANG, "!", line, col)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.LE, "<=", line, col)
		}
		return l.emit(token.LT, "<", line, col)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.GE, ">=", line, col)
		}
		return l.emit(token.GT, ">", line, col)
	case '+':
		return l.emit(token.PLUS, "+", line, col)
	case '-':
		return l.emit(token.MINUS, "-", line, col)
	case '*':
		return l.emit(token.STAR, "*", line, col)
	case '/':
		return l.emit(token.SLASH, "/", line, col)
	case '(':
		return l.emit(token.LPAREN, "(", line, col)
	case ')':
		return l.emit(token.RPAREN, ")", line, col)
	case '{':
		return l.emit(token.LBRACE, "{", line, col)
	case '}':
		return l.emit(token.RBRACE, "}", line, col)
	case '[':
		return l.emit(token.LBRACKET, "[", line, col)
	case ']':
		return l.emit(token.RBRACKET, "]", line, col)
	case ',':
		return l.emit(token.COMMA, ",", line, col)
	case ';':
		return l.emit(token.SEMI, ";", line, col)
	case ':':
		return l.emit(token.COLON, ":", line, col)
	case '"':
		return l.readString(line, col)
	default:
		if isDigit(l.ch) {
			return l.readNumber(line, col)
		}
		if isLetter(l.ch) {
			return l.readIdentifier(line, col)
		}
		bad := string(l.ch)
		l.readChar()
		return token.Token{
			Type:   token.ILLEGAL,
			Lexeme: "unexpected character '" + bad + "'",
			Line:   line,
			Column: col,
		}
	}
}

func (l *Lexer) emit(t token.Type, lexeme string, line, col int) token.Token {
	l.readChar()
	return token.Token{Type: t, Lexeme: lexeme, Line: line, Column: col}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // consume '/'
			l.readChar() // consume '*'
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar() // consume '*'
				l.readChar() // consume '/'
			}
			continue
		}
		return
	}
}

// readString scans a double-quoted string literal, translating the escape
// sequences \n, \t, \" and \\. An unterminated string yields an ILLEGAL
// token located at the opening quote.
func (l *Lexer) readString(line, col int) token.Token {
	var sb strings.Builder
	l.readChar() // consume opening quote

	for l.ch != '"' {
		if l.ch == 0 {
			return token.Token{
				Type:   token.ILLEGAL,
				Lexeme: "unterminated string",
				Line:   line,
				Column: col,
			}
		}
		if l.ch == '\\' {
			switch l.peekChar() {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				bad := string(l.peekChar())
				l.readChar()
				l.readChar()
				return token.Token{
					Type:   token.ILLEGAL,
					Lexeme: "invalid escape sequence '\\" + bad + "'",
					Line:   line,
					Column: col,
				}
			}
			l.readChar() // consume '\'
			l.readChar() // consume escape char
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	l.readChar() // consume closing quote
	return token.Token{Type: token.STRING, Lexeme: sb.String(), Line: line, Column: col}
}

// readNumber scans an integer or floating literal. A trailing '.' not
// followed by a digit is left for the next token.
func (l *Lexer) readNumber(line, col int) token.Token {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return token.Token{Type: token.NUMBER, Lexeme: l.input[start:l.position], Line: line, Column: col}
}

func (l *Lexer) readIdentifier(line, col int) token.Token {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	ident := l.input[start:l.position]
	return token.Token{Type: token.LookupIdent(ident), Lexeme: ident, Line: line, Column: col}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenEOF    TokenType = iota
	TokenWord             // bare run of value characters; keys, keywords and values
	TokenString           // "quoted string"; Value holds the unescaped text
	TokenBang             // !
	TokenEq               // =
	TokenEqEq             // ==
	TokenTilde            // ~
	TokenLt               // <
	TokenLte              // <=
	TokenGt               // >
	TokenGte              // >=
	TokenError            // error token
)

var tokenNames = map[TokenType]string{
	TokenEOF:    "EOF",
	TokenWord:   "VALUE",
	TokenString: "ESCAPED_STRING",
	TokenBang:   "!",
	TokenEq:     "=",
	TokenEqEq:   "==",
	TokenTilde:  "~",
	TokenLt:     "<",
	TokenLte:    "<=",
	TokenGt:     ">",
	TokenGte:    ">=",
	TokenError:  "ERROR",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexer token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	// Space reports whether whitespace precedes the token.
	Space bool
}

// Lexer tokenizes a query string.
type Lexer struct {
	input string
	pos   int
	start int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	space := l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos, Space: space}
	}

	l.start = l.pos
	ch := l.input[l.pos]

	switch ch {
	case '!':
		l.pos++
		return Token{Type: TokenBang, Value: "!", Pos: l.start, Space: space}
	case '~':
		l.pos++
		return Token{Type: TokenTilde, Value: "~", Pos: l.start, Space: space}
	case '=':
		if l.peekByte() == '=' {
			l.pos += 2
			return Token{Type: TokenEqEq, Value: "==", Pos: l.start, Space: space}
		}
		l.pos++
		return Token{Type: TokenEq, Value: "=", Pos: l.start, Space: space}
	case '<':
		if l.peekByte() == '=' {
			l.pos += 2
			return Token{Type: TokenLte, Value: "<=", Pos: l.start, Space: space}
		}
		l.pos++
		return Token{Type: TokenLt, Value: "<", Pos: l.start, Space: space}
	case '>':
		if l.peekByte() == '=' {
			l.pos += 2
			return Token{Type: TokenGte, Value: ">=", Pos: l.start, Space: space}
		}
		l.pos++
		return Token{Type: TokenGt, Value: ">", Pos: l.start, Space: space}
	case '"':
		return l.scanString(space)
	default:
		return l.scanWord(space)
	}
}

func (l *Lexer) peekByte() byte {
	if l.pos+1 < len(l.input) {
		return l.input[l.pos+1]
	}
	return 0
}

func (l *Lexer) skipWhitespace() bool {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	return l.pos > start
}

func (l *Lexer) scanWord(space bool) Token {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if unicode.IsSpace(r) || isOperatorChar(r) {
			break
		}
		l.pos += size
	}
	return Token{Type: TokenWord, Value: l.input[start:l.pos], Pos: start, Space: space}
}

// scanString reads a double-quoted string. \" and \\ are escapes; any other
// backslash is kept as written.
func (l *Lexer) scanString(space bool) Token {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input) && (l.input[l.pos+1] == '"' || l.input[l.pos+1] == '\\'):
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case ch == '"':
			l.pos++
			return Token{Type: TokenString, Value: sb.String(), Pos: start, Space: space}
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return Token{Type: TokenError, Value: l.input[start:], Pos: start, Space: space}
}

func isOperatorChar(r rune) bool {
	switch r {
	case '"', '!', '=', '~', '<', '>':
		return true
	}
	return false
}

// isKey reports whether s is a valid filter key: a letter followed by
// letters, digits or underscores.
func isKey(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
		case i > 0 && ((ch >= '0' && ch <= '9') || ch == '_'):
		default:
			return false
		}
	}
	return true
}

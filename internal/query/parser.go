package query

import (
	"regexp"
	"strings"
)

// textOps is the operator vocabulary accepted after a key as a word.
var textOps = map[string]bool{
	"like": true, "like_exact": true,
	"contains": true, "icontains": true,
	"endswith": true, "iendswith": true,
	"startswith": true, "istartswith": true,
	"eq": true, "ieq": true,
	"exact": true, "iexact": true,
	"regex": true, "iregex": true,
	"sregex": true, "nsregex": true,
	"is_odd": true, "is_even": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
	"ne": true, "in": true, "lc": true,
	"exists": true, "notset": true,
}

func isTextOp(op string) bool {
	return textOps[op]
}

// complements pairs operators with their built-in negation.
var complements = map[string]string{
	"exact":     "ne",
	"ne":        "exact",
	"contains":  "not_contains",
	"icontains": "inot_contains",
	"in":        "not_in",
	"like":      "not_like",
	"sregex":    "nsregex",
	"nsregex":   "sregex",
}

func complementOf(op string) string {
	for pos, neg := range complements {
		if neg == op && pos != "ne" && pos != "nsregex" {
			return pos
		}
	}
	return ""
}

// negate returns the negation of op: its built-in complement when one
// exists, otherwise the derived not__op variant.
func negate(op string) string {
	if neg, ok := complements[op]; ok {
		return neg
	}
	if strings.HasPrefix(op, negationPrefix) {
		return strings.TrimPrefix(op, negationPrefix)
	}
	return negationPrefix + op
}

var mathOps = map[TokenType]string{
	TokenEqEq: "exact",
	TokenLt:   "lt",
	TokenLte:  "lte",
	TokenGt:   "gt",
	TokenGte:  "gte",
}

// Expected-token names reported by UnexpectedEOFError.
var (
	expectOperation = []string{"NOT", "!", "TEXT_OP", "=", "~", "<", "<=", ">", ">=", "=="}
	expectAfterBang = []string{"TEXT_OP", "=", "~"}
	expectAfterNot  = []string{"TEXT_OP"}
	expectValue     = []string{"ESCAPED_STRING", "VALUE"}
)

// Regex metacharacters that make a title default use like instead of icontains.
const titleMetaChars = "()[]{}^$+*.?"

// DefaultEscape lists the regex metacharacters matched literally in like and
// regex values unless configured otherwise.
const DefaultEscape = "()"

// instrumentalPattern is the default exclusion for instrumental versions. It
// is compiled here so configured escapes never apply to it.
var instrumentalPattern = regexp.MustCompile(`(?i)inst(?:\.?|rumental)`)

// ParseOptions controls default clause injection.
type ParseOptions struct {
	// Title adds a title clause unless the query already has one with the
	// same key. ".*" disables it.
	Title string
	// AllowInstrumental suppresses the default instrumental exclusion.
	AllowInstrumental bool
	// Escape lists metacharacters treated literally. Used to pick between
	// icontains and like for Title.
	Escape string
	// TextOps extends the operator vocabulary, for registered plugin operators.
	TextOps []string
}

// Parser parses query strings into FilterSpecs.
type Parser struct {
	input   string
	lexer   *Lexer
	curr    Token
	peek    Token
	extra   map[string]bool
	pending []Token
}

// Parse parses a query string without injecting defaults.
func Parse(input string) (*FilterSpec, error) {
	return newParser(input, nil).parseQuery()
}

// ParseWithOptions parses a query string and injects the defaults described
// by opts for any key the query does not set.
func ParseWithOptions(input string, opts ParseOptions) (*FilterSpec, error) {
	spec, err := newParser(input, opts.TextOps).parseQuery()
	if err != nil {
		return nil, err
	}
	applyDefaults(spec, opts)
	return spec, nil
}

func newParser(input string, extra []string) *Parser {
	p := &Parser{input: input, lexer: NewLexer(input)}
	if len(extra) > 0 {
		p.extra = make(map[string]bool, len(extra))
		for _, op := range extra {
			p.extra[strings.ToLower(op)] = true
		}
	}
	p.advance()
	p.advance()
	return p
}

func applyDefaults(spec *FilterSpec, opts ParseOptions) {
	if opts.Title != "" && opts.Title != ".*" {
		op := "icontains"
		for _, ch := range titleMetaChars {
			if strings.ContainsRune(opts.Title, ch) && !strings.ContainsRune(opts.Escape, ch) {
				op = "like"
				break
			}
		}
		spec.SetDefault(Clause{Field: "title", Op: op, Value: Text(opts.Title)})
	}
	if !opts.AllowInstrumental {
		spec.SetDefault(Clause{Field: "title", Op: "not_like", Value: Pattern{Re: instrumentalPattern}})
	}
}

func (p *Parser) advance() {
	p.curr = p.peek
	if len(p.pending) > 0 {
		p.peek = p.pending[0]
		p.pending = p.pending[1:]
		return
	}
	p.peek = p.lexer.NextToken()
}

// lookahead returns the token n positions after peek without consuming it.
func (p *Parser) lookahead(n int) Token {
	for len(p.pending) < n {
		p.pending = append(p.pending, p.lexer.NextToken())
	}
	return p.pending[n-1]
}

func (p *Parser) isTextOp(word string) bool {
	lower := strings.ToLower(word)
	return textOps[lower] || p.extra[lower]
}

// parseQuery parses clauses until end of input. An empty query yields an
// empty spec.
func (p *Parser) parseQuery() (*FilterSpec, error) {
	spec := NewFilterSpec()
	for p.curr.Type != TokenEOF {
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		spec.Set(clause)
	}
	return spec, nil
}

func (p *Parser) parseClause() (Clause, error) {
	if err := p.checkToken(p.curr); err != nil {
		return Clause{}, err
	}
	if p.curr.Type != TokenWord || !isKey(p.curr.Value) {
		return Clause{}, newParseError(p.input, p.curr.Pos, "expected filter key, got %q", p.curr.Value)
	}
	key := p.curr.Value
	p.advance()

	op, err := p.parseOperation()
	if err != nil {
		return Clause{}, err
	}

	value, err := p.parseValue()
	if err != nil {
		return Clause{}, err
	}
	return Clause{Field: key, Op: op, Value: value}, nil
}

func (p *Parser) parseOperation() (string, error) {
	tok := p.curr
	switch tok.Type {
	case TokenEOF:
		return "", p.eof(expectOperation)
	case TokenEq:
		p.advance()
		return "exact", nil
	case TokenTilde:
		p.advance()
		return "like", nil
	case TokenEqEq, TokenLt, TokenLte, TokenGt, TokenGte:
		p.advance()
		return mathOps[tok.Type], nil
	case TokenBang:
		p.advance()
		return p.parseBang()
	case TokenWord:
		if !tok.Space {
			return "", newParseError(p.input, tok.Pos, "expected operator")
		}
		lower := strings.ToLower(tok.Value)
		if lower == "not" {
			p.advance()
			return p.parseNot()
		}
		if rest, ok := strings.CutPrefix(lower, "not_"); ok && p.isTextOp(rest) {
			p.advance()
			return negate(rest), p.requireValueSpace()
		}
		if p.isTextOp(lower) {
			p.advance()
			return lower, p.requireValueSpace()
		}
		return "", newParseError(p.input, tok.Pos, "unknown operator %q", tok.Value)
	default:
		if err := p.checkToken(tok); err != nil {
			return "", err
		}
		return "", newParseError(p.input, tok.Pos, "expected operator, got %q", tok.Value)
	}
}

func (p *Parser) parseBang() (string, error) {
	tok := p.curr
	if tok.Type == TokenEOF {
		return "", p.eof(expectAfterBang)
	}
	if tok.Space {
		return "", newParseError(p.input, tok.Pos, "expected operator directly after '!'")
	}
	switch tok.Type {
	case TokenEq:
		p.advance()
		return negate("exact"), nil
	case TokenTilde:
		p.advance()
		return negate("like"), nil
	case TokenWord:
		if !p.isTextOp(tok.Value) {
			return "", newParseError(p.input, tok.Pos, "expected operator after '!'")
		}
		p.advance()
		return negate(strings.ToLower(tok.Value)), p.requireValueSpace()
	default:
		return "", newParseError(p.input, tok.Pos, "expected operator after '!'")
	}
}

func (p *Parser) parseNot() (string, error) {
	tok := p.curr
	switch {
	case tok.Type == TokenEOF:
		return "", p.eof(expectAfterNot)
	case tok.Type == TokenWord && tok.Space && p.isTextOp(tok.Value):
		p.advance()
		return negate(strings.ToLower(tok.Value)), p.requireValueSpace()
	default:
		return "", newParseError(p.input, tok.Pos, "expected operator after NOT")
	}
}

// requireValueSpace enforces the whitespace between a word operator and its value.
func (p *Parser) requireValueSpace() error {
	if p.curr.Type == TokenEOF {
		return p.eof(expectValue)
	}
	if !p.curr.Space {
		return newParseError(p.input, p.curr.Pos, "expected whitespace after operator")
	}
	return nil
}

func (p *Parser) parseValue() (Literal, error) {
	tok := p.curr
	switch tok.Type {
	case TokenEOF:
		return nil, p.eof(expectValue)
	case TokenString:
		p.advance()
		return Text(tok.Value), nil
	case TokenWord:
		parts := []string{tok.Value}
		p.advance()
		for p.curr.Type == TokenWord && !p.startsClause() {
			parts = append(parts, p.curr.Value)
			p.advance()
		}
		return ParseLiteral(strings.Join(parts, " ")), nil
	default:
		if err := p.checkToken(tok); err != nil {
			return nil, err
		}
		return nil, newParseError(p.input, tok.Pos, "expected value, got %q", tok.Value)
	}
}

// startsClause reports whether curr begins a new clause: a key followed by a
// complete operation.
func (p *Parser) startsClause() bool {
	if p.curr.Type != TokenWord || !isKey(p.curr.Value) {
		return false
	}
	switch p.peek.Type {
	case TokenEq, TokenEqEq, TokenTilde, TokenLt, TokenLte, TokenGt, TokenGte:
		return true
	case TokenBang:
		next := p.lookahead(1)
		return next.Type == TokenEq || next.Type == TokenTilde ||
			(next.Type == TokenWord && !next.Space && p.isTextOp(next.Value))
	case TokenWord:
		if !p.peek.Space {
			return false
		}
		lower := strings.ToLower(p.peek.Value)
		next := p.lookahead(1)
		if lower == "not" {
			value := p.lookahead(2)
			return next.Type == TokenWord && next.Space && p.isTextOp(next.Value) && value.Space && value.Type != TokenEOF
		}
		if rest, ok := strings.CutPrefix(lower, "not_"); ok && p.isTextOp(rest) {
			return next.Space && next.Type != TokenEOF
		}
		return p.isTextOp(lower) && next.Space && next.Type != TokenEOF
	}
	return false
}

func (p *Parser) checkToken(tok Token) error {
	if tok.Type == TokenError {
		return newParseError(p.input, tok.Pos, "unterminated string")
	}
	return nil
}

func (p *Parser) eof(expected []string) error {
	return &UnexpectedEOFError{Query: p.input, Expected: append([]string(nil), expected...)}
}

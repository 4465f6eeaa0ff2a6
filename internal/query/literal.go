package query

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// LiteralKind tags the variant of a Literal.
type LiteralKind uint8

const (
	LiteralBool LiteralKind = iota + 1
	LiteralInt
	LiteralFloat
	LiteralText
	LiteralSet
	LiteralPattern // compiled regular expression; produced by operator resolution only
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralBool:
		return "bool"
	case LiteralInt:
		return "int"
	case LiteralFloat:
		return "float"
	case LiteralText:
		return "string"
	case LiteralSet:
		return "set"
	case LiteralPattern:
		return "pattern"
	default:
		return "none"
	}
}

// Literal is a query value. The variants are Bool, Int, Float, Text, Set and Pattern.
type Literal interface {
	Kind() LiteralKind
	String() string
	literal()
}

// Bool is a boolean literal.
type Bool bool

// Int is an integer literal.
type Int int64

// Float is a floating point literal.
type Float float64

// Text is a string literal.
type Text string

// Set is an ordered set of literals. Build one with NewSet to drop duplicates.
type Set []Literal

// Pattern is a compiled regular expression.
type Pattern struct {
	Re *regexp.Regexp
}

func (Bool) Kind() LiteralKind    { return LiteralBool }
func (Int) Kind() LiteralKind     { return LiteralInt }
func (Float) Kind() LiteralKind   { return LiteralFloat }
func (Text) Kind() LiteralKind    { return LiteralText }
func (Set) Kind() LiteralKind     { return LiteralSet }
func (Pattern) Kind() LiteralKind { return LiteralPattern }

func (Bool) literal()    {}
func (Int) literal()     {}
func (Float) literal()   {}
func (Text) literal()    {}
func (Set) literal()     {}
func (Pattern) literal() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (i Int) String() string  { return strconv.FormatInt(int64(i), 10) }
func (t Text) String() string { return string(t) }

func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = formatLiteral(l)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p Pattern) String() string {
	if p.Re == nil {
		return ""
	}
	return p.Re.String()
}

// NewSet builds a Set, keeping the first occurrence of each scalar literal.
func NewSet(items ...Literal) Set {
	seen := make(map[Literal]struct{}, len(items))
	out := make(Set, 0, len(items))
	for _, item := range items {
		if _, isSet := item.(Set); !isSet {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

// TextSet builds a Set of Text literals.
func TextSet(items ...string) Set {
	lits := make([]Literal, len(items))
	for i, s := range items {
		lits[i] = Text(s)
	}
	return NewSet(lits...)
}

// Contains reports whether the set holds lit.
func (s Set) Contains(lit Literal) bool {
	for _, item := range s {
		if literalsEqual(item, lit) {
			return true
		}
	}
	return false
}

// Intersect returns the members of s also present in o, in s's order.
func (s Set) Intersect(o Set) Set {
	out := make(Set, 0, min(len(s), len(o)))
	for _, item := range s {
		if o.Contains(item) {
			out = append(out, item)
		}
	}
	return out
}

// ParseLiteral coerces raw query text: int first, then float, else string.
func ParseLiteral(raw string) Literal {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Int(i)
	}
	if looksNumeric(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Float(f)
		}
	}
	return Text(raw)
}

// looksNumeric rejects spellings ParseFloat accepts but a query value should not
// treat as numbers (inf, nan, hex floats).
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return true
}

// Truthy reports the literal's truth value.
func Truthy(l Literal) bool {
	switch v := l.(type) {
	case nil:
		return false
	case Bool:
		return bool(v)
	case Int:
		return v != 0
	case Float:
		return v != 0
	case Text:
		return v != ""
	case Set:
		return len(v) > 0
	default:
		return true
	}
}

// IsEmptySentinel reports whether l marks "field is unset" for exact matches:
// zero, blank or false.
func IsEmptySentinel(l Literal) bool {
	switch l.(type) {
	case nil, Bool, Int, Float, Text:
		return !Truthy(l)
	default:
		return false
	}
}

// Shape summarises a literal for cast selection.
type Shape struct {
	Kind LiteralKind
	// Elem is the shared element kind of a Set, 0 when the set is empty or
	// mixed, and LiteralFloat when the elements are mixed numbers.
	Elem LiteralKind
}

// ShapeOf returns the shape of l.
func ShapeOf(l Literal) Shape {
	if l == nil {
		return Shape{}
	}
	s, ok := l.(Set)
	if !ok {
		return Shape{Kind: l.Kind()}
	}
	shape := Shape{Kind: LiteralSet}
	if len(s) == 0 {
		return shape
	}
	numeric := true
	first := s[0].Kind()
	same := true
	for _, item := range s {
		k := item.Kind()
		if k != first {
			same = false
		}
		if k != LiteralInt && k != LiteralFloat {
			numeric = false
		}
	}
	switch {
	case same:
		shape.Elem = first
	case numeric:
		shape.Elem = LiteralFloat
	}
	return shape
}

func literalsEqual(a, b Literal) bool {
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
	case Float:
		switch bv := b.(type) {
		case Int:
			return float64(av) == float64(bv)
		case Float:
			return av == bv
		}
	case Set:
		bs, ok := b.(Set)
		if !ok || len(av) != len(bs) {
			return false
		}
		for _, item := range av {
			if !bs.Contains(item) {
				return false
			}
		}
		return true
	case Pattern:
		bp, ok := b.(Pattern)
		return ok && av.String() == bp.String()
	}
	return a == b
}

// formatLiteral renders a literal in query syntax.
func formatLiteral(l Literal) string {
	switch v := l.(type) {
	case nil:
		return `""`
	case Text:
		return quoteText(string(v))
	case Pattern:
		return quoteText(v.String())
	default:
		return l.String()
	}
}

func quoteText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}

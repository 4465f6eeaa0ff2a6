package query

import (
	"fmt"
	"strconv"
	"strings"
)

// CastMode selects how an operator coerces attribute text before comparing.
type CastMode uint8

const (
	// CastByLiteral derives the coercion from the query literal's shape.
	CastByLiteral CastMode = iota
	// CastNever compares the raw attribute text.
	CastNever
	// CastNumber always coerces to int or float.
	CastNumber
)

// CastFunc coerces one attribute value.
type CastFunc struct {
	// Target names the type produced, for diagnostics.
	Target string
	Fn     func(string) (any, error)
}

// Apply runs the cast. A nil CastFunc returns the text unchanged.
func (c *CastFunc) Apply(s string) (any, error) {
	if c == nil {
		return s, nil
	}
	return c.Fn(s)
}

var (
	castNumber = &CastFunc{Target: "number", Fn: castFloatOrInt}
	castFloat  = &CastFunc{Target: "float", Fn: castFloat64}
	castBool   = &CastFunc{Target: "bool", Fn: castBoolean}
)

// castFloatOrInt parses text with a '.' as float and anything else as int.
func castFloatOrInt(s string) (any, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		return castFloat64(s)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse int %q: %w", s, err)
	}
	return i, nil
}

func castFloat64(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("parse float %q: %w", s, err)
	}
	return f, nil
}

// castBoolean treats integer text by value ("0" is false) and otherwise
// accepts the usual spellings; any other non-empty text is true.
func castBoolean(s string) (any, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i != 0, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	return s != "", nil
}

// castForShape picks the coercion for an operator and literal shape.
func castForShape(op *OperatorDescriptor, shape Shape) *CastFunc {
	switch op.Cast {
	case CastNever:
		return nil
	case CastNumber:
		return castNumber
	}
	if op.MatchSet != nil {
		return nil
	}
	switch shape.Kind {
	case LiteralBool:
		return castBool
	case LiteralInt:
		return castNumber
	case LiteralFloat:
		return castFloat
	case LiteralSet:
		switch shape.Elem {
		case LiteralInt:
			return castNumber
		case LiteralFloat:
			return castFloat
		case LiteralBool:
			return castBool
		}
	}
	return nil
}

package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/aidanlsb/crate/internal/dates"
)

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		n = strings.TrimSpace(n)
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

type cmpKind int

const (
	cmpNil cmpKind = iota
	cmpNumber
	cmpTemporal // date or datetime
	cmpString
)

type cmpVal struct {
	kind cmpKind
	num  float64
	t    time.Time
	s    string
}

func normalizeForCompare(v any) cmpVal {
	if v == nil {
		return cmpVal{kind: cmpNil}
	}

	if n, ok := toNumber(v); ok {
		return cmpVal{kind: cmpNumber, num: n, s: valueString(v)}
	}

	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if t, ok := dates.ParseTemporal(s); ok {
			return cmpVal{kind: cmpTemporal, t: t, s: s}
		}
		return cmpVal{kind: cmpString, s: s}
	}

	return cmpVal{kind: cmpString, s: valueString(v)}
}

func compareValues(a, b any) int {
	av := normalizeForCompare(a)
	bv := normalizeForCompare(b)

	if av.kind == cmpNil && bv.kind == cmpNil {
		return 0
	}
	if av.kind == cmpNil {
		return -1
	}
	if bv.kind == cmpNil {
		return 1
	}

	// If both are numbers, compare numerically.
	if av.kind == cmpNumber && bv.kind == cmpNumber {
		switch {
		case av.num < bv.num:
			return -1
		case av.num > bv.num:
			return 1
		default:
			return 0
		}
	}

	// If both are temporal, compare by parsed time.
	if av.kind == cmpTemporal && bv.kind == cmpTemporal {
		switch {
		case av.t.Before(bv.t):
			return -1
		case av.t.After(bv.t):
			return 1
		default:
			return 0
		}
	}

	// Mixed kinds compare as text.
	return strings.Compare(av.s, bv.s)
}

// valueString renders a candidate value (cast or not) as text.
func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case Literal:
		return x.String()
	default:
		return ""
	}
}

// literalValue unwraps a scalar literal into the value shapes used by casts.
func literalValue(q Literal) any {
	switch x := q.(type) {
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Text:
		return string(x)
	case nil:
		return nil
	default:
		return x.String()
	}
}

// asLiteral wraps a candidate value back into a literal for set membership.
func asLiteral(v any) Literal {
	switch x := v.(type) {
	case bool:
		return Bool(x)
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case string:
		return Text(x)
	case Literal:
		return x
	default:
		return Text(valueString(v))
	}
}

// equalTo compares a candidate value with a scalar literal. Numbers compare
// numerically; anything else compares as text.
func equalTo(v any, q Literal) bool {
	switch qv := q.(type) {
	case Int, Float:
		if n, ok := v.(int64); ok {
			return literalsEqual(Int(n), q)
		}
		if f, ok := v.(float64); ok {
			return literalsEqual(Float(f), q)
		}
		return valueString(v) == qv.String()
	case Bool:
		if b, ok := v.(bool); ok {
			return b == bool(qv)
		}
		return valueString(v) == qv.String()
	case Set:
		return false
	case nil:
		return v == nil
	default:
		return valueString(v) == q.String()
	}
}

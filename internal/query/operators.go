package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// MatchFunc tests one (possibly cast) attribute value against a query literal.
type MatchFunc func(v any, q Literal) bool

// SetMatchFunc tests the whole resolved value list of an attribute.
type SetMatchFunc func(values []string, q Literal) bool

// OperatorDescriptor defines a filter operator. Exactly one of Match and
// MatchSet is set.
type OperatorDescriptor struct {
	Name string
	// Match is applied per resolved value.
	Match MatchFunc
	// MatchSet is applied once to all resolved values (exists, notset).
	MatchSet SetMatchFunc
	// Negated marks negative-sense operators: every resolved value must pass.
	Negated bool
	Cast    CastMode

	// shorthand operators expand into another operator with a compiled
	// pattern before evaluation.
	expandTo  string
	wildcards bool
}

// Pattern flags for regex compilation.
type patternMode uint8

const (
	patternSearch patternMode = iota
	patternAnchored
	patternAnchoredFold
	patternSearchFold
)

// patternOps lists operators whose value is compiled into a Pattern.
var patternOps = map[string]patternMode{
	"regex":   patternAnchored,
	"iregex":  patternAnchoredFold,
	"sregex":  patternSearch,
	"nsregex": patternSearch,
}

func builtinOperators() []*OperatorDescriptor {
	contains := func(v any, q Literal) bool { return containsLiteral(valueString(v), q, false) }
	icontains := func(v any, q Literal) bool { return containsLiteral(valueString(v), q, true) }
	in := func(v any, q Literal) bool { return inLiteral(v, q) }
	search := func(v any, q Literal) bool { return patternMatch(v, q) }

	return []*OperatorDescriptor{
		{Name: "exact", Match: equalTo},
		{Name: "eq", Match: equalTo},
		{Name: "iexact", Match: equalFold, Cast: CastNever},
		{Name: "ieq", Match: equalFold, Cast: CastNever},
		{Name: "lc", Match: func(v any, q Literal) bool {
			return strings.ToLower(valueString(v)) == q.String()
		}, Cast: CastNever},
		{Name: "ne", Match: func(v any, q Literal) bool { return !equalTo(v, q) }, Negated: true},

		{Name: "contains", Match: contains, Cast: CastNever},
		{Name: "icontains", Match: icontains, Cast: CastNever},
		{Name: "not_contains", Match: func(v any, q Literal) bool { return !contains(v, q) }, Negated: true, Cast: CastNever},
		{Name: "inot_contains", Match: func(v any, q Literal) bool { return !icontains(v, q) }, Negated: true, Cast: CastNever},
		{Name: "inot_contains_any", Match: inotContainsAny, Negated: true, Cast: CastNever},

		{Name: "in", Match: in},
		{Name: "not_in", Match: func(v any, q Literal) bool { return !in(v, q) }, Negated: true},
		{Name: "inot_in", Match: inotIn, Negated: true, Cast: CastNever},
		{Name: "inot_in_any", Match: inotInAny, Negated: true, Cast: CastNever},

		{Name: "gt", Match: func(v any, q Literal) bool { return compareValues(v, literalValue(q)) > 0 }},
		{Name: "gte", Match: func(v any, q Literal) bool { return compareValues(v, literalValue(q)) >= 0 }},
		{Name: "lt", Match: func(v any, q Literal) bool { return compareValues(v, literalValue(q)) < 0 }},
		{Name: "lte", Match: func(v any, q Literal) bool { return compareValues(v, literalValue(q)) <= 0 }},

		{Name: "startswith", Match: func(v any, q Literal) bool {
			return strings.HasPrefix(valueString(v), q.String())
		}, Cast: CastNever},
		{Name: "istartswith", Match: func(v any, q Literal) bool {
			return strings.HasPrefix(strings.ToLower(valueString(v)), strings.ToLower(q.String()))
		}, Cast: CastNever},
		{Name: "endswith", Match: func(v any, q Literal) bool {
			return strings.HasSuffix(valueString(v), q.String())
		}, Cast: CastNever},
		{Name: "iendswith", Match: func(v any, q Literal) bool {
			return strings.HasSuffix(strings.ToLower(valueString(v)), strings.ToLower(q.String()))
		}, Cast: CastNever},

		{Name: "regex", Match: search, Cast: CastNever},
		{Name: "iregex", Match: search, Cast: CastNever},
		{Name: "sregex", Match: search, Cast: CastNever},
		{Name: "nsregex", Match: func(v any, q Literal) bool { return !patternMatch(v, q) }, Negated: true, Cast: CastNever},

		{Name: "is_odd", Match: func(v any, _ Literal) bool { return parity(v) == 1 }, Cast: CastNumber},
		{Name: "is_even", Match: func(v any, _ Literal) bool { return parity(v) == 0 }, Cast: CastNumber},

		{Name: "exists", MatchSet: func(values []string, q Literal) bool {
			return (len(values) > 0) == Truthy(q)
		}},
		{Name: "notset", MatchSet: func(values []string, q Literal) bool {
			if Truthy(q) {
				return len(values) == 0
			}
			return len(values) > 0
		}},

		{Name: "like", expandTo: "sregex", wildcards: true, Cast: CastNever},
		{Name: "like_exact", expandTo: "sregex", Cast: CastNever},
		{Name: "not_like", expandTo: "nsregex", Negated: true, Cast: CastNever},
	}
}

func equalFold(v any, q Literal) bool {
	return strings.EqualFold(valueString(v), q.String())
}

func containsLiteral(s string, q Literal, fold bool) bool {
	if fold {
		s = strings.ToLower(s)
	}
	needles := []Literal{q}
	if set, ok := q.(Set); ok {
		needles = set
	}
	for _, needle := range needles {
		n := needle.String()
		if fold {
			n = strings.ToLower(n)
		}
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func inLiteral(v any, q Literal) bool {
	switch qv := q.(type) {
	case Set:
		return qv.Contains(asLiteral(v))
	case Text:
		return strings.Contains(string(qv), valueString(v))
	default:
		return equalTo(v, q)
	}
}

func inotIn(v any, q Literal) bool {
	lv := strings.ToLower(valueString(v))
	if set, ok := q.(Set); ok {
		for _, item := range set {
			if strings.ToLower(item.String()) == lv {
				return false
			}
		}
		return true
	}
	return !strings.Contains(strings.ToLower(q.String()), lv)
}

func inotInAny(v any, q Literal) bool {
	lv := strings.ToLower(valueString(v))
	if lv == "" {
		return false
	}
	for _, item := range setItems(q) {
		if strings.Contains(strings.ToLower(item.String()), lv) {
			return false
		}
	}
	return true
}

func inotContainsAny(v any, q Literal) bool {
	lv := strings.ToLower(valueString(v))
	if lv == "" {
		return true
	}
	for _, item := range setItems(q) {
		if strings.Contains(lv, strings.ToLower(item.String())) {
			return false
		}
	}
	return true
}

func setItems(q Literal) []Literal {
	if set, ok := q.(Set); ok {
		return set
	}
	return []Literal{q}
}

func patternMatch(v any, q Literal) bool {
	p, ok := q.(Pattern)
	if !ok || p.Re == nil {
		return false
	}
	return p.Re.MatchString(valueString(v))
}

// parity returns 0 or 1 for numbers and -1 for anything else.
func parity(v any) int64 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case float64:
		n = int64(x)
	default:
		return -1
	}
	if n < 0 {
		n = -n
	}
	return n % 2
}

// ResolvedKey is the result of splitting a normalized key.
type ResolvedKey struct {
	Field string
	Op    *OperatorDescriptor
}

type castKey struct {
	op    string
	shape Shape
}

type patternKey struct {
	pattern string
	mode    patternMode
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// Registry maps operator names to descriptors and memoizes key resolution,
// cast selection and pattern compilation. The operator table is fixed at
// construction; the caches are safe for concurrent use.
type Registry struct {
	ops      map[string]*OperatorDescriptor
	custom   []string
	derived  *xsync.MapOf[string, *OperatorDescriptor]
	keys     *xsync.MapOf[string, ResolvedKey]
	casts    *xsync.MapOf[castKey, *CastFunc]
	patterns *xsync.MapOf[patternKey, compiledPattern]
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the process-wide registry of built-in operators.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// NewRegistry builds a registry of the built-in operators plus custom ones.
// Custom operator names must be new identifiers.
func NewRegistry(custom ...OperatorDescriptor) (*Registry, error) {
	r := &Registry{
		ops:      make(map[string]*OperatorDescriptor),
		derived:  xsync.NewMapOf[string, *OperatorDescriptor](),
		keys:     xsync.NewMapOf[string, ResolvedKey](),
		casts:    xsync.NewMapOf[castKey, *CastFunc](),
		patterns: xsync.NewMapOf[patternKey, compiledPattern](),
	}
	for _, op := range builtinOperators() {
		r.ops[op.Name] = op
	}
	for i := range custom {
		desc := custom[i]
		name := strings.ToLower(desc.Name)
		switch {
		case !isKey(name) || strings.Contains(name, JoinMarker) || strings.HasPrefix(name, "not_"):
			return nil, fmt.Errorf("operator %q: invalid name", desc.Name)
		case r.ops[name] != nil:
			return nil, fmt.Errorf("operator %q: already registered", desc.Name)
		case (desc.Match == nil) == (desc.MatchSet == nil):
			return nil, fmt.Errorf("operator %q: exactly one of Match and MatchSet must be set", desc.Name)
		}
		desc.Name = name
		desc.expandTo, desc.wildcards = "", false
		r.ops[name] = &desc
		r.custom = append(r.custom, name)
	}
	return r, nil
}

// CustomNames returns the names of registered plugin operators.
func (r *Registry) CustomNames() []string {
	return append([]string(nil), r.custom...)
}

// Lookup returns the descriptor for an operator name, including derived
// not__ negations.
func (r *Registry) Lookup(name string) (*OperatorDescriptor, bool) {
	if base, ok := strings.CutPrefix(name, negationPrefix); ok {
		desc, found := r.ops[base]
		if !found {
			return nil, false
		}
		return r.derive(desc), true
	}
	desc, ok := r.ops[name]
	return desc, ok
}

func (r *Registry) derive(base *OperatorDescriptor) *OperatorDescriptor {
	neg, _ := r.derived.LoadOrCompute(base.Name, func() *OperatorDescriptor {
		d := &OperatorDescriptor{
			Name:      negationPrefix + base.Name,
			Negated:   true,
			Cast:      base.Cast,
			expandTo:  base.expandTo,
			wildcards: base.wildcards,
		}
		if base.Match != nil {
			match := base.Match
			d.Match = func(v any, q Literal) bool { return !match(v, q) }
		}
		if base.MatchSet != nil {
			matchSet := base.MatchSet
			d.MatchSet = func(values []string, q Literal) bool { return !matchSet(values, q) }
		}
		if d.expandTo != "" {
			d.expandTo = negationPrefix + d.expandTo
		}
		return d
	})
	return neg
}

// ResolveKey splits a normalized key into its field and operator. A key
// whose last segment is not an operator is an exact match on the whole key;
// a "__not" segment before the operator selects its derived negation.
func (r *Registry) ResolveKey(key string) ResolvedKey {
	rk, _ := r.keys.LoadOrCompute(key, func() ResolvedKey {
		exact := r.ops["exact"]
		idx := strings.LastIndex(key, JoinMarker)
		if idx < 0 {
			return ResolvedKey{Field: key, Op: exact}
		}
		base, name := key[:idx], key[idx+len(JoinMarker):]
		desc, ok := r.ops[name]
		if !ok {
			return ResolvedKey{Field: key, Op: exact}
		}
		if field, negated := strings.CutSuffix(base, JoinMarker+"not"); negated {
			return ResolvedKey{Field: field, Op: r.derive(desc)}
		}
		return ResolvedKey{Field: base, Op: desc}
	})
	return rk
}

// CastFor returns the coercion for op given a literal, memoized by
// (operator, literal shape).
func (r *Registry) CastFor(op *OperatorDescriptor, q Literal) *CastFunc {
	if op.Cast == CastNever || op.MatchSet != nil {
		return nil
	}
	key := castKey{op: op.Name, shape: ShapeOf(q)}
	cast, _ := r.casts.LoadOrCompute(key, func() *CastFunc {
		return castForShape(op, key.shape)
	})
	return cast
}

// compile returns the cached compiled pattern for a value.
func (r *Registry) compile(pattern string, mode patternMode) (*regexp.Regexp, error) {
	cp, _ := r.patterns.LoadOrCompute(patternKey{pattern: pattern, mode: mode}, func() compiledPattern {
		expr := pattern
		switch mode {
		case patternAnchored:
			expr = `^(?:` + expr + `)`
		case patternAnchoredFold:
			expr = `(?i)^(?:` + expr + `)`
		case patternSearchFold:
			expr = `(?i)` + expr
		}
		re, err := regexp.Compile(expr)
		return compiledPattern{re: re, err: err}
	})
	return cp.re, cp.err
}

// escapePattern backslash-escapes the metacharacters listed in escape.
func escapePattern(s, escape string) string {
	if escape == "" {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, ch := range s {
		if strings.ContainsRune(`()[]{}^$+*.?|\`, ch) && strings.ContainsRune(escape, ch) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

var whitespaceRun = regexp.MustCompile(`\s+`)

var errUnknownOperator = errors.New("unknown operator")

// ResolvedClause is a clause ready for evaluation.
type ResolvedClause struct {
	Key   string
	Field string
	Op    *OperatorDescriptor
	Value Literal
	Cast  *CastFunc
}

// Resolve turns a clause into its evaluable form: the operator is looked up,
// shorthands are expanded, pattern values compiled and the cast chosen.
func (r *Registry) Resolve(c Clause, escape string) (ResolvedClause, error) {
	rk := r.ResolveKey(c.Key())
	if rk.Field != c.Field {
		return ResolvedClause{}, fmt.Errorf("%w %q", errUnknownOperator, c.Op)
	}
	op := rk.Op
	value := c.Value

	if op.expandTo != "" {
		target, ok := r.Lookup(op.expandTo)
		if !ok {
			return ResolvedClause{}, fmt.Errorf("operator %q expands to unknown %q", op.Name, op.expandTo)
		}
		if _, compiled := value.(Pattern); !compiled {
			text := value.String()
			if op.wildcards {
				text = whitespaceRun.ReplaceAllString(text, ".*?")
			}
			re, err := r.compile(escapePattern(text, escape), patternSearchFold)
			if err != nil {
				return ResolvedClause{}, fmt.Errorf("invalid pattern %q: %w", text, err)
			}
			value = Pattern{Re: re}
		}
		op = target
	} else if mode, ok := patternOps[strings.TrimPrefix(op.Name, negationPrefix)]; ok {
		if _, compiled := value.(Pattern); !compiled {
			re, err := r.compile(escapePattern(value.String(), escape), mode)
			if err != nil {
				return ResolvedClause{}, fmt.Errorf("invalid pattern %q: %w", value.String(), err)
			}
			value = Pattern{Re: re}
		}
	}

	return ResolvedClause{
		Key:   c.Key(),
		Field: rk.Field,
		Op:    op,
		Value: value,
		Cast:  r.CastFor(op, value),
	}, nil
}

package query

import (
	"strings"
)

// JoinMarker separates path segments and the operator suffix in a filter key.
const JoinMarker = "__"

// negationPrefix marks a derived negation: "not__exact" is the negation of exact.
const negationPrefix = "not" + JoinMarker

// Clause is one normalized filter: an attribute path, an operator and a value.
type Clause struct {
	// Field is the attribute path as written, segments joined with JoinMarker.
	Field string
	// Op is the operator name. Derived negations carry the "not__" prefix.
	Op    string
	Value Literal
}

// Key returns the normalized filter key, field__op.
func (c Clause) Key() string {
	return c.Field + JoinMarker + c.Op
}

// Path returns the attribute path segments.
func (c Clause) Path() []string {
	return strings.Split(c.Field, JoinMarker)
}

// Negated reports whether the clause uses a derived negation.
func (c Clause) Negated() bool {
	return strings.HasPrefix(c.Op, negationPrefix)
}

// BaseOp returns the operator with any derived-negation prefix removed.
func (c Clause) BaseOp() string {
	return strings.TrimPrefix(c.Op, negationPrefix)
}

// String renders the clause in query syntax.
func (c Clause) String() string {
	return formatClause(c)
}

// FilterSpec is an insertion-ordered set of clauses keyed by normalized key.
// A later clause with the same key replaces the earlier value but keeps its
// position. All clauses are combined with AND.
type FilterSpec struct {
	keys    []string
	clauses map[string]Clause
}

// NewFilterSpec creates a spec holding the given clauses.
func NewFilterSpec(clauses ...Clause) *FilterSpec {
	s := &FilterSpec{clauses: make(map[string]Clause, len(clauses))}
	for _, c := range clauses {
		s.Set(c)
	}
	return s
}

// Set adds or replaces a clause.
func (s *FilterSpec) Set(c Clause) {
	if s.clauses == nil {
		s.clauses = make(map[string]Clause)
	}
	key := c.Key()
	if _, exists := s.clauses[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.clauses[key] = c
}

// SetDefault adds c only when its key is absent. It reports whether c was added.
func (s *FilterSpec) SetDefault(c Clause) bool {
	if s.Has(c.Key()) {
		return false
	}
	s.Set(c)
	return true
}

// Has reports whether a clause with the normalized key exists.
func (s *FilterSpec) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.clauses[key]
	return ok
}

// Get returns the clause with the normalized key.
func (s *FilterSpec) Get(key string) (Clause, bool) {
	if s == nil {
		return Clause{}, false
	}
	c, ok := s.clauses[key]
	return c, ok
}

// Delete removes the clause with the normalized key.
func (s *FilterSpec) Delete(key string) {
	if !s.Has(key) {
		return
	}
	delete(s.clauses, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Pop removes and returns every clause for which match reports true.
func (s *FilterSpec) Pop(match func(Clause) bool) []Clause {
	var popped []Clause
	for _, c := range s.Clauses() {
		if match(c) {
			popped = append(popped, c)
			s.Delete(c.Key())
		}
	}
	return popped
}

// Len returns the number of clauses.
func (s *FilterSpec) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the normalized keys in insertion order.
func (s *FilterSpec) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Clauses returns the clauses in insertion order.
func (s *FilterSpec) Clauses() []Clause {
	if s == nil {
		return nil
	}
	out := make([]Clause, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.clauses[k]
	}
	return out
}

// Clone returns an independent copy.
func (s *FilterSpec) Clone() *FilterSpec {
	return NewFilterSpec(s.Clauses()...)
}

// And returns a new spec holding the clauses of s followed by those of o.
// Clauses of o replace clauses of s with the same key.
func (s *FilterSpec) And(o *FilterSpec) *FilterSpec {
	out := s.Clone()
	for _, c := range o.Clauses() {
		out.Set(c)
	}
	return out
}

// RestrictIn narrows field to the given members with an "in" clause. An
// existing "in" clause on the same field, scalar or set, is intersected
// rather than replaced.
func (s *FilterSpec) RestrictIn(field string, members Set) {
	c := Clause{Field: field, Op: "in", Value: members}
	if existing, ok := s.Get(c.Key()); ok {
		c.Value = members.Intersect(inMembers(existing.Value))
	}
	s.Set(c)
}

// ExcludeIn removes the given members of field with a "not_in" clause,
// adding to whatever an existing exclusion on the same field already removes.
func (s *FilterSpec) ExcludeIn(field string, members Set) {
	c := Clause{Field: field, Op: "not_in", Value: members}
	if existing, ok := s.Get(c.Key()); ok {
		prev := inMembers(existing.Value)
		c.Value = NewSet(append(append([]Literal(nil), prev...), members...)...)
	}
	s.Set(c)
}

// inMembers lists, as text, the values an "in" clause on q accepts. Join
// results are text keys, so merging happens in that form. A text scalar
// accepts every substring of itself.
func inMembers(q Literal) Set {
	switch v := q.(type) {
	case nil:
		return Set{}
	case Set:
		items := make([]Literal, len(v))
		for i, item := range v {
			items[i] = Text(item.String())
		}
		return NewSet(items...)
	case Text:
		str := string(v)
		bounds := make([]int, 0, len(str)+1)
		for i := range str {
			bounds = append(bounds, i)
		}
		bounds = append(bounds, len(str))
		items := []Literal{Text("")}
		for i, from := range bounds {
			for _, to := range bounds[i+1:] {
				items = append(items, Text(str[from:to]))
			}
		}
		return NewSet(items...)
	default:
		return Set{Text(v.String())}
	}
}

// Equal reports whether both specs hold the same clauses, ignoring order.
func (s *FilterSpec) Equal(o *FilterSpec) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, c := range s.Clauses() {
		oc, ok := o.Get(c.Key())
		if !ok || !literalsEqual(c.Value, oc.Value) {
			return false
		}
	}
	return true
}

// String renders the spec in canonical query syntax: clauses in insertion
// order separated by single spaces. Parsing the result yields an equal spec.
func (s *FilterSpec) String() string {
	clauses := s.Clauses()
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = formatClause(c)
	}
	return strings.Join(parts, " ")
}

// opTokens maps operators with a symbolic spelling to that spelling.
var opTokens = map[string]string{
	"exact":    "=",
	"ne":       "!=",
	"like":     "~",
	"not_like": "!~",
	"gte":      ">=",
	"gt":       ">",
	"lte":      "<=",
	"lt":       "<",
}

func formatClause(c Clause) string {
	value := formatLiteral(c.Value)
	if tok, ok := opTokens[c.Op]; ok {
		return c.Field + tok + value
	}
	op := c.Op
	switch {
	case isTextOp(op):
	case complementOf(op) != "" && isTextOp(complementOf(op)):
		op = "not " + complementOf(op)
	case c.Negated():
		op = "not " + c.BaseOp()
	}
	return c.Field + " " + op + " " + value
}

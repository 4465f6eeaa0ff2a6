package query

import (
	"github.com/aidanlsb/crate/internal/record"
)

// RecordFilter is a record-level predicate applied after all clauses.
type RecordFilter func(r *record.Record) bool

// compiledSpec is a FilterSpec with every clause resolved.
type compiledSpec struct {
	clauses []ResolvedClause
	filters []RecordFilter
}

func (cs *compiledSpec) match(r *record.Record, diags *diagCollector) bool {
	for i := range cs.clauses {
		if !matchClause(r, &cs.clauses[i], diags) {
			return false
		}
	}
	for _, f := range cs.filters {
		if !f(r) {
			return false
		}
	}
	return true
}

// matchClause applies one clause to a record. Positive operators need one
// passing value; negative operators need every value to pass, so a record
// with no values passes them. A record lacking the attribute matches an
// exact clause on an empty value.
func matchClause(r *record.Record, c *ResolvedClause, diags *diagCollector) bool {
	values := ResolveAttr(r, c.Field)
	op := c.Op

	if op.MatchSet != nil {
		return op.MatchSet(values, c.Value)
	}

	if op.Negated {
		for _, v := range values {
			if !applyValue(c, v, diags) {
				return false
			}
		}
		return true
	}

	if len(values) == 0 {
		return (op.Name == "exact" || op.Name == "eq") && IsEmptySentinel(c.Value)
	}
	for _, v := range values {
		if applyValue(c, v, diags) {
			return true
		}
	}
	return false
}

// applyValue casts v and runs the predicate. A failed cast is recorded and the
// raw text is compared instead.
func applyValue(c *ResolvedClause, v string, diags *diagCollector) bool {
	cv, err := c.Cast.Apply(v)
	if err != nil {
		if diags != nil {
			diags.add(c.Key, v, c.Cast.Target, err)
		}
		return c.Op.Match(v, c.Value)
	}
	return c.Op.Match(cv, c.Value)
}

// evaluate returns the records matching any of the variants, in input order.
func evaluate(variants []*compiledSpec, records []*record.Record) ([]*record.Record, Diagnostics) {
	var diags diagCollector
	out := make([]*record.Record, 0, len(records))
	for _, r := range records {
		for _, cs := range variants {
			if cs.match(r, &diags) {
				out = append(out, r)
				break
			}
		}
	}
	return out, diags.list
}

package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/aidanlsb/crate/internal/record"
)

// ErrKindMismatch is returned when combining result sets of different kinds.
var ErrKindMismatch = errors.New("result sets hold different kinds")

// ResultSet is an ordered set of matched records of one kind, keyed by
// identifying key. Derivations return new sets and never re-query the source
// unless they navigate to another kind.
type ResultSet struct {
	engine  *Engine
	kind    record.Kind
	records []*record.Record
	index   map[string]int
	diags   Diagnostics
}

func newResultSet(e *Engine, kind record.Kind, records []*record.Record, diags Diagnostics) *ResultSet {
	rs := &ResultSet{
		engine:  e,
		kind:    kind,
		records: make([]*record.Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
		diags:   diags,
	}
	for _, r := range records {
		rs.add(r)
	}
	return rs
}

func (rs *ResultSet) add(r *record.Record) {
	key := r.Key()
	if _, exists := rs.index[key]; exists {
		return
	}
	rs.index[key] = len(rs.records)
	rs.records = append(rs.records, r)
}

func (rs *ResultSet) derive(records []*record.Record, diags Diagnostics) *ResultSet {
	return newResultSet(rs.engine, rs.kind, records, diags)
}

// Kind returns the kind of the held records.
func (rs *ResultSet) Kind() record.Kind { return rs.kind }

// Len returns the number of records.
func (rs *ResultSet) Len() int { return len(rs.records) }

// Records returns the records in match order.
func (rs *ResultSet) Records() []*record.Record {
	return append([]*record.Record(nil), rs.records...)
}

// Keys returns the identifying keys in match order.
func (rs *ResultSet) Keys() []string {
	keys := make([]string, len(rs.records))
	for i, r := range rs.records {
		keys[i] = r.Key()
	}
	return keys
}

// Contains reports whether a record with key is present.
func (rs *ResultSet) Contains(key string) bool {
	_, ok := rs.index[key]
	return ok
}

// Diagnostics returns the non-fatal problems recorded while producing the set.
func (rs *ResultSet) Diagnostics() Diagnostics { return rs.diags }

func (rs *ResultSet) checkKind(o *ResultSet, op string) error {
	if rs.kind != o.kind {
		return fmt.Errorf("%s %s with %s: %w", op, rs.kind, o.kind, ErrKindMismatch)
	}
	return nil
}

// Union returns the records in either set.
func (rs *ResultSet) Union(o *ResultSet) (*ResultSet, error) {
	if err := rs.checkKind(o, "union"); err != nil {
		return nil, err
	}
	records := make([]*record.Record, 0, len(rs.records)+len(o.records))
	records = append(records, rs.records...)
	records = append(records, o.records...)
	return rs.derive(records, rs.diags.merge(o.diags)), nil
}

// Difference returns the records of rs not in o.
func (rs *ResultSet) Difference(o *ResultSet) (*ResultSet, error) {
	if err := rs.checkKind(o, "difference"); err != nil {
		return nil, err
	}
	records := make([]*record.Record, 0, len(rs.records))
	for _, r := range rs.records {
		if !o.Contains(r.Key()) {
			records = append(records, r)
		}
	}
	return rs.derive(records, rs.diags), nil
}

// Intersect returns the records of rs also in o.
func (rs *ResultSet) Intersect(o *ResultSet) (*ResultSet, error) {
	if err := rs.checkKind(o, "intersect"); err != nil {
		return nil, err
	}
	records := make([]*record.Record, 0, min(len(rs.records), len(o.records)))
	for _, r := range rs.records {
		if o.Contains(r.Key()) {
			records = append(records, r)
		}
	}
	return rs.derive(records, rs.diags), nil
}

// Filter narrows the set with spec. Cross-entity clauses still issue their
// sub-queries; the held records themselves are not re-fetched.
func (rs *ResultSet) Filter(ctx context.Context, spec *FilterSpec) (*ResultSet, error) {
	if spec.Len() == 0 {
		return rs, nil
	}
	if rs.engine == nil {
		return nil, errors.New("result set has no engine")
	}
	variants, err := rs.engine.plan(ctx, rs.kind, spec, SearchOptions{})
	if err != nil {
		return nil, err
	}
	matched, diags := evaluate(variants, rs.records)
	return rs.derive(matched, rs.diags.merge(diags)), nil
}

// hop describes navigation between related kinds: target records whose
// targetField is among the source records' sourceAttr values.
type hop struct {
	from, to    record.Kind
	targetField string
	sourceAttr  string
}

var hops = []hop{
	{record.KindArtist, record.KindAlbum, record.AttrParentKey, record.AttrKey},
	{record.KindArtist, record.KindTrack, record.AttrGrandparentKey, record.AttrKey},
	{record.KindAlbum, record.KindTrack, record.AttrParentKey, record.AttrKey},
	{record.KindAlbum, record.KindArtist, record.AttrKey, record.AttrParentKey},
	{record.KindTrack, record.KindAlbum, record.AttrKey, record.AttrParentKey},
	{record.KindTrack, record.KindArtist, record.AttrKey, record.AttrGrandparentKey},
	{record.KindShow, record.KindSeason, record.AttrParentKey, record.AttrKey},
	{record.KindShow, record.KindEpisode, record.AttrGrandparentKey, record.AttrKey},
	{record.KindSeason, record.KindEpisode, record.AttrParentKey, record.AttrKey},
	{record.KindSeason, record.KindShow, record.AttrKey, record.AttrParentKey},
	{record.KindEpisode, record.KindSeason, record.AttrKey, record.AttrParentKey},
	{record.KindEpisode, record.KindShow, record.AttrKey, record.AttrGrandparentKey},
}

// Navigate returns the records of kind related to this set, narrowed by
// spec. Navigating to the set's own kind is Filter.
func (rs *ResultSet) Navigate(ctx context.Context, kind record.Kind, spec *FilterSpec) (*ResultSet, error) {
	if kind == rs.kind {
		return rs.Filter(ctx, spec)
	}
	if rs.engine == nil {
		return nil, errors.New("result set has no engine")
	}
	for _, h := range hops {
		if h.from != rs.kind || h.to != kind {
			continue
		}
		var values []string
		for _, r := range rs.records {
			values = append(values, r.Attrs().Get(h.sourceAttr).Strings()...)
		}
		next := spec.Clone()
		next.RestrictIn(h.targetField, TextSet(values...))
		return rs.engine.Search(ctx, kind, next, SearchOptions{})
	}
	return nil, fmt.Errorf("cannot navigate from %s to %s", rs.kind, kind)
}

// Materialize maps every record of rs through fn, stopping at the first error.
func Materialize[T any](rs *ResultSet, fn func(*record.Record) (T, error)) ([]T, error) {
	out := make([]T, 0, rs.Len())
	for _, r := range rs.records {
		v, err := fn(r)
		if err != nil {
			return nil, fmt.Errorf("materialize %s: %w", r, err)
		}
		out = append(out, v)
	}
	return out, nil
}

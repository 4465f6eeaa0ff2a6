package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aidanlsb/crate/internal/record"
)

// CollectionProvider fetches the records of a kind that match a spec. The
// engine issues cross-entity sub-queries through it.
type CollectionProvider interface {
	Fetch(ctx context.Context, kind record.Kind, spec *FilterSpec) ([]*record.Record, error)
}

// NamedSetProvider lists named sets and their member keys.
type NamedSetProvider interface {
	NamedSets(ctx context.Context) ([]string, error)
	NamedSetMembers(ctx context.Context, name string) ([]string, error)
}

// NameMatcher folds titles for grouping and decides near-duplicates.
type NameMatcher interface {
	Fold(text string) string
	NearDuplicate(a, b string) bool
}

// schemaSource is implemented by sources that know their attribute vocabulary.
type schemaSource interface {
	Schema() *record.Schema
}

// SearchOptions tunes one search.
type SearchOptions struct {
	// ExcludeRatedDupes drops unrated tracks whose title matches a rated
	// track by the same artist. It only applies to track searches with a
	// userRating clause.
	ExcludeRatedDupes bool
}

// Engine evaluates filter specs against a record source.
type Engine struct {
	source    record.Source
	provider  CollectionProvider
	sets      NamedSetProvider
	matcher   NameMatcher
	schema    *record.Schema
	schemaSet bool
	escape    string
	custom    []OperatorDescriptor
	registry  *Registry
	log       logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider routes cross-entity sub-queries through p instead of the engine itself.
func WithProvider(p CollectionProvider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithNamedSets sets the provider used to resolve in_playlist clauses.
func WithNamedSets(p NamedSetProvider) Option {
	return func(e *Engine) { e.sets = p }
}

// WithNameMatcher sets the matcher used for rated-duplicate exclusion.
func WithNameMatcher(m NameMatcher) Option {
	return func(e *Engine) { e.matcher = m }
}

// WithSchema validates filter keys against s. A nil schema disables validation.
func WithSchema(s *record.Schema) Option {
	return func(e *Engine) {
		e.schema = s
		e.schemaSet = true
	}
}

// WithEscape sets the metacharacters matched literally in like and regex values.
func WithEscape(chars string) Option {
	return func(e *Engine) { e.escape = chars }
}

// WithLogger sets the engine's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithOperators registers plugin operators alongside the built-in ones.
func WithOperators(ops ...OperatorDescriptor) Option {
	return func(e *Engine) { e.custom = append(e.custom, ops...) }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewEngine creates an engine over source. Unless configured otherwise the
// engine answers its own sub-queries, and validates keys against the
// source's schema when it has one.
func NewEngine(source record.Source, opts ...Option) (*Engine, error) {
	e := &Engine{source: source, escape: DefaultEscape}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = discardLogger()
	}
	if !e.schemaSet {
		if ss, ok := source.(schemaSource); ok {
			e.schema = ss.Schema()
		}
	}
	if e.sets == nil {
		if sp, ok := source.(NamedSetProvider); ok {
			e.sets = sp
		}
	}
	if len(e.custom) == 0 {
		e.registry = DefaultRegistry()
	} else {
		r, err := NewRegistry(e.custom...)
		if err != nil {
			return nil, fmt.Errorf("register operators: %w", err)
		}
		e.registry = r
	}
	return e, nil
}

// Registry returns the engine's operator registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Query parses q with opts and runs the search.
func (e *Engine) Query(ctx context.Context, kind record.Kind, q string, popts ParseOptions, sopts SearchOptions) (*ResultSet, error) {
	popts.TextOps = append(popts.TextOps, e.registry.CustomNames()...)
	if popts.Escape == "" {
		popts.Escape = e.escape
	}
	spec, err := ParseWithOptions(q, popts)
	if err != nil {
		return nil, err
	}
	return e.Search(ctx, kind, spec, sopts)
}

// Search returns the records of kind matching spec.
func (e *Engine) Search(ctx context.Context, kind record.Kind, spec *FilterSpec, opts SearchOptions) (*ResultSet, error) {
	variants, err := e.plan(ctx, kind, spec, opts)
	if err != nil {
		return nil, err
	}
	records, err := e.source.Records(ctx, kind)
	if err != nil {
		return nil, collaboratorError(ctx, "load "+kind.String()+" records", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, &CancelledQueryError{Stage: "load " + kind.String() + " records", Err: err}
	}
	matched, diags := evaluate(variants, records)
	e.log.WithFields(logrus.Fields{
		"kind":    kind.String(),
		"scanned": len(records),
		"matched": len(matched),
	}).Debug("search complete")
	return newResultSet(e, kind, matched, diags), nil
}

// Fetch implements CollectionProvider.
func (e *Engine) Fetch(ctx context.Context, kind record.Kind, spec *FilterSpec) ([]*record.Record, error) {
	rs, err := e.Search(ctx, kind, spec, SearchOptions{})
	if err != nil {
		return nil, err
	}
	return rs.Records(), nil
}

// ResultSet wraps records already held by the caller.
func (e *Engine) ResultSet(kind record.Kind, records ...*record.Record) *ResultSet {
	return newResultSet(e, kind, records, nil)
}

// plan validates spec, resolves named sets and cross-entity clauses, and
// compiles what remains. The returned variants are alternatives: a record
// matching any of them matches the search.
func (e *Engine) plan(ctx context.Context, kind record.Kind, spec *FilterSpec, opts SearchOptions) ([]*compiledSpec, error) {
	spec = spec.Clone()
	e.applyAliases(kind, spec)
	if err := e.validate(kind, spec); err != nil {
		return nil, err
	}
	if err := e.resolveNamedSets(ctx, spec); err != nil {
		return nil, err
	}

	var filters []RecordFilter
	if opts.ExcludeRatedDupes && kind == record.KindTrack && hasField(spec, ratingAttr) {
		f, err := e.ratedDupeFilter(ctx, spec)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	if err := e.applyRoutes(ctx, kind, spec, routesFor(kind)); err != nil {
		return nil, err
	}

	specs := []*FilterSpec{spec}
	if kind == record.KindTrack && hasField(spec, "artist") {
		var err error
		if specs, err = e.artistVariants(ctx, spec); err != nil {
			return nil, err
		}
	}

	variants := make([]*compiledSpec, 0, len(specs))
	for _, s := range specs {
		cs, err := e.compile(s)
		if err != nil {
			return nil, err
		}
		cs.filters = filters
		variants = append(variants, cs)
	}
	return variants, nil
}

func (e *Engine) compile(spec *FilterSpec) (*compiledSpec, error) {
	cs := &compiledSpec{clauses: make([]ResolvedClause, 0, spec.Len())}
	for _, c := range spec.Clauses() {
		rc, err := e.registry.Resolve(c, e.escape)
		if err != nil {
			return nil, err
		}
		cs.clauses = append(cs.clauses, rc)
	}
	return cs, nil
}

const ratingAttr = "userRating"

// aliases maps shorthand attribute names to stored ones.
var aliases = map[string]string{
	"rating": ratingAttr,
}

func (e *Engine) applyAliases(kind record.Kind, spec *FilterSpec) {
	for _, c := range spec.Clauses() {
		head, rest, hasRest := strings.Cut(c.Field, JoinMarker)
		target, ok := aliases[head]
		if !ok && kind == record.KindTrack && head == "year" {
			target, ok = "parentYear", true
		}
		if !ok {
			continue
		}
		spec.Delete(c.Key())
		if hasRest {
			target += JoinMarker + rest
		}
		e.log.WithFields(logrus.Fields{"from": c.Field, "to": target}).Debug("resolved alias")
		c.Field = target
		spec.Set(c)
	}
}

// validate rejects clauses whose operator is unknown, whose pattern does not
// compile, or whose field names nothing the kind can resolve.
func (e *Engine) validate(kind record.Kind, spec *FilterSpec) error {
	for _, c := range spec.Clauses() {
		if _, err := e.registry.Resolve(c, e.escape); err != nil {
			if errors.Is(err, errUnknownOperator) {
				return &InvalidFilterKeyError{Kind: kind, Key: c.Key(), Message: err.Error()}
			}
			return &ParseError{Query: c.String(), Pos: -1, Message: err.Error()}
		}
		if e.schema == nil {
			continue
		}
		head, _, _ := strings.Cut(c.Field, JoinMarker)
		switch {
		case head == namedSetField || head == TagAttribute:
		case routeFor(kind, head) != nil:
		case kind == record.KindTrack && head == "artist":
		case e.schema.HasAttribute(kind, c.Field), e.schema.HasAttribute(kind, head), e.schema.HasChild(kind, head):
		default:
			err := &InvalidFilterKeyError{Kind: kind, Key: c.Field, Message: "no such attribute or join"}
			if s := e.schema.Suggest(kind, head); s != "" {
				err.Suggestion = fmt.Sprintf("Did you mean %q?", s)
			}
			return err
		}
	}
	return nil
}

// fetch issues a sub-query through the collection provider.
func (e *Engine) fetch(ctx context.Context, kind record.Kind, spec *FilterSpec) ([]*record.Record, error) {
	provider := e.provider
	if provider == nil {
		provider = e
	}
	e.log.WithFields(logrus.Fields{"kind": kind.String(), "filters": spec.String()}).Debug("sub-query")
	records, err := provider.Fetch(ctx, kind, spec)
	if err != nil {
		return nil, collaboratorError(ctx, "fetch "+kind.String()+" records", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, &CancelledQueryError{Stage: "fetch " + kind.String() + " records", Err: err}
	}
	return records, nil
}

// collaboratorError marks context failures as cancellation and wraps
// everything else with the stage that failed.
func collaboratorError(ctx context.Context, stage string, err error) error {
	var cancelled *CancelledQueryError
	if errors.As(err, &cancelled) {
		return err
	}
	if isContextErr(err) {
		return &CancelledQueryError{Stage: stage, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CancelledQueryError{Stage: stage, Err: ctxErr}
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func hasField(spec *FilterSpec, field string) bool {
	for _, c := range spec.Clauses() {
		if matchesPrefix(c.Field, field) {
			return true
		}
	}
	return false
}

// matchesPrefix reports whether field is prefix or a path below it.
func matchesPrefix(field, prefix string) bool {
	return field == prefix || strings.HasPrefix(field, prefix+JoinMarker)
}

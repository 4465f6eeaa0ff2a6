package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/aidanlsb/crate/internal/record"
)

// ParseError reports a query that does not match the grammar.
type ParseError struct {
	Query   string
	Pos     int
	Context string
	Message string
}

func (e *ParseError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("invalid query %q: %s", e.Query, e.Message)
	}
	return fmt.Sprintf("invalid query %q: %s at position %d near %q", e.Query, e.Message, e.Pos, e.Context)
}

func newParseError(query string, pos int, format string, args ...any) *ParseError {
	return &ParseError{
		Query:   query,
		Pos:     pos,
		Context: contextAt(query, pos),
		Message: fmt.Sprintf(format, args...),
	}
}

// contextAt returns a short excerpt of query starting at pos.
func contextAt(query string, pos int) string {
	if pos < 0 || pos >= len(query) {
		return ""
	}
	const width = 20
	end := min(pos+width, len(query))
	return query[pos:end]
}

// UnexpectedEOFError reports a query that ended where more input was required.
type UnexpectedEOFError struct {
	Query    string
	Expected []string
}

func (e *UnexpectedEOFError) Error() string {
	return fmt.Sprintf("incomplete query %q: expected one of %s", e.Query, strings.Join(e.Expected, ", "))
}

// InvalidFilterKeyError reports a filter key that resolves to no attribute,
// child record or join route of the queried kind.
type InvalidFilterKeyError struct {
	Kind       record.Kind
	Key        string
	Message    string
	Suggestion string
}

func (e *InvalidFilterKeyError) Error() string {
	msg := fmt.Sprintf("invalid filter key %q for %s", e.Key, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Suggestion != "" {
		msg += ". " + e.Suggestion
	}
	return msg
}

// UnknownNamedSetError reports a named set that does not exist.
type UnknownNamedSetError struct {
	Name      string
	Available []string
}

func (e *UnknownNamedSetError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown named set %q (no named sets exist)", e.Name)
	}
	return fmt.Sprintf("unknown named set %q; available: %s", e.Name, strings.Join(e.Available, ", "))
}

func (e *UnknownNamedSetError) Unwrap() error { return record.ErrNamedSetNotFound }

// CancelledQueryError reports a query aborted by its context while waiting on
// a collaborator.
type CancelledQueryError struct {
	Stage string
	Err   error
}

func (e *CancelledQueryError) Error() string {
	return fmt.Sprintf("query cancelled during %s: %v", e.Stage, e.Err)
}

func (e *CancelledQueryError) Unwrap() error { return e.Err }

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// AmbiguousCastError records attribute values that could not be cast for a
// clause. The comparison fell back to the uncast text.
type AmbiguousCastError struct {
	Key    string
	Value  string
	Target string
	Count  int
	Err    error
}

func (e *AmbiguousCastError) Error() string {
	msg := fmt.Sprintf("%s: value %q is not a %s; compared as text", e.Key, e.Value, e.Target)
	if e.Count > 1 {
		msg += fmt.Sprintf(" (%d records)", e.Count)
	}
	return msg
}

func (e *AmbiguousCastError) Unwrap() error { return e.Err }

// Diagnostics lists the non-fatal problems found while evaluating a query.
type Diagnostics []*AmbiguousCastError

// Err combines the diagnostics into one error, or returns nil when empty.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, diag := range d {
		merr = multierror.Append(merr, diag)
	}
	return merr.ErrorOrNil()
}

func (d Diagnostics) merge(o Diagnostics) Diagnostics {
	if len(o) == 0 {
		return d
	}
	index := make(map[[2]string]*AmbiguousCastError, len(d))
	out := make(Diagnostics, 0, len(d)+len(o))
	for _, diag := range d {
		cp := *diag
		index[[2]string{cp.Key, cp.Value}] = &cp
		out = append(out, &cp)
	}
	for _, diag := range o {
		if existing, ok := index[[2]string{diag.Key, diag.Value}]; ok {
			existing.Count += diag.Count
			continue
		}
		cp := *diag
		index[[2]string{cp.Key, cp.Value}] = &cp
		out = append(out, &cp)
	}
	return out
}

// diagCollector accumulates cast failures for one evaluation, one entry per
// distinct (key, value).
type diagCollector struct {
	index map[[2]string]*AmbiguousCastError
	list  Diagnostics
}

func (c *diagCollector) add(key, value, target string, err error) {
	if c.index == nil {
		c.index = make(map[[2]string]*AmbiguousCastError)
	}
	id := [2]string{key, value}
	if existing, ok := c.index[id]; ok {
		existing.Count++
		return
	}
	diag := &AmbiguousCastError{Key: key, Value: value, Target: target, Count: 1, Err: err}
	c.index[id] = diag
	c.list = append(c.list, diag)
}

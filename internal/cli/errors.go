package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aidanlsb/crate/internal/index"
	"github.com/aidanlsb/crate/internal/query"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Config errors
	ErrConfigInvalid = "CONFIG_INVALID"

	// Index errors
	ErrDatabaseError = "DATABASE_ERROR"
	ErrIndexLocked   = "INDEX_LOCKED"
	ErrFileReadError = "FILE_READ_ERROR"

	// Query errors
	ErrQueryParse       = "QUERY_PARSE_ERROR"
	ErrQueryIncomplete  = "QUERY_INCOMPLETE"
	ErrInvalidFilterKey = "INVALID_FILTER_KEY"
	ErrUnknownNamedSet  = "UNKNOWN_NAMED_SET"
	ErrQueryCancelled   = "QUERY_CANCELLED"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// classifyQueryError maps an engine error onto its stable code and a hint.
func classifyQueryError(err error) (code, suggestion string) {
	var (
		parseErr     *query.ParseError
		eofErr       *query.UnexpectedEOFError
		keyErr       *query.InvalidFilterKeyError
		setErr       *query.UnknownNamedSetError
		cancelledErr *query.CancelledQueryError
	)
	switch {
	case errors.As(err, &parseErr):
		return ErrQueryParse, "Run 'crate syntax' for the query language reference"
	case errors.As(err, &eofErr):
		return ErrQueryIncomplete, fmt.Sprintf("The query ends early; expected one of %s", strings.Join(eofErr.Expected, ", "))
	case errors.As(err, &keyErr):
		return ErrInvalidFilterKey, keyErr.Suggestion
	case errors.As(err, &setErr):
		if len(setErr.Available) == 0 {
			return ErrUnknownNamedSet, "Add playlists to the library and run 'crate index'"
		}
		return ErrUnknownNamedSet, "Run 'crate playlists' to list playlist names"
	case errors.As(err, &cancelledErr):
		return ErrQueryCancelled, "Raise the limit with --timeout or query.timeout"
	case errors.Is(err, index.ErrIndexLocked):
		return ErrIndexLocked, "Another 'crate index' is running; try again when it finishes"
	default:
		return ErrInternal, ""
	}
}

// queryErrorDetails exposes the machine-readable fields of an engine error.
func queryErrorDetails(err error) map[string]interface{} {
	var (
		parseErr     *query.ParseError
		eofErr       *query.UnexpectedEOFError
		keyErr       *query.InvalidFilterKeyError
		setErr       *query.UnknownNamedSetError
		cancelledErr *query.CancelledQueryError
	)
	switch {
	case errors.As(err, &parseErr):
		if parseErr.Pos < 0 {
			return map[string]interface{}{"clause": parseErr.Query}
		}
		return map[string]interface{}{"position": parseErr.Pos, "near": parseErr.Context}
	case errors.As(err, &eofErr):
		return map[string]interface{}{"expected": eofErr.Expected}
	case errors.As(err, &keyErr):
		return map[string]interface{}{"kind": keyErr.Kind.String(), "key": keyErr.Key}
	case errors.As(err, &setErr):
		available := setErr.Available
		if available == nil {
			available = []string{}
		}
		return map[string]interface{}{"name": setErr.Name, "available": available}
	case errors.As(err, &cancelledErr):
		return map[string]interface{}{"stage": cancelledErr.Stage}
	}
	return nil
}

package testutil

import (
	"reflect"
	"testing"
)

// AssertQueryKeys runs a query and checks the keys of the returned records, in order.
func (l *TestLibrary) AssertQueryKeys(kind, query string, want ...string) *CLIResult {
	l.t.Helper()
	args := []string{"query", kind}
	if query != "" {
		args = append(args, query)
	}
	result := l.RunCLI(args...)
	result.MustSucceed(l.t)

	got := result.RecordKeys("records")
	if want == nil {
		want = []string{}
	}
	if !reflect.DeepEqual(got, want) {
		l.t.Errorf("query %s %q: keys = %v, want %v\nRaw: %s", kind, query, got, want, result.RawJSON)
	}
	return result
}

// RecordKeys extracts record keys from a list of encoded records in the Data field.
func (r *CLIResult) RecordKeys(key string) []string {
	keys := []string{}
	for _, item := range r.DataList(key) {
		rec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		attrs, _ := rec["attrs"].(map[string]interface{})
		values, _ := attrs["key"].([]interface{})
		if len(values) == 0 {
			continue
		}
		if s, ok := values[0].(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}

// AssertHasWarning checks that the result contains a warning with the given code.
func (r *CLIResult) AssertHasWarning(t *testing.T, code string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Code == code {
			return
		}
	}
	t.Errorf("expected warning with code %s, got warnings: %+v", code, r.Warnings)
}

// AssertNoWarnings checks that the result has no warnings.
func (r *CLIResult) AssertNoWarnings(t *testing.T) {
	t.Helper()
	if len(r.Warnings) > 0 {
		t.Errorf("expected no warnings, got: %+v", r.Warnings)
	}
}

// AssertResultCount checks that a list in the Data field has the expected length.
func (r *CLIResult) AssertResultCount(t *testing.T, key string, expected int) {
	t.Helper()
	results := r.DataList(key)
	if len(results) != expected {
		t.Errorf("expected %d %s, got %d\nRaw: %s", expected, key, len(results), r.RawJSON)
	}
}

// Package lastresults persists the records shown by the most recent query so
// follow-up commands can refer to them by row number.
package lastresults

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aidanlsb/crate/internal/atomicfile"
	"github.com/aidanlsb/crate/internal/record"
)

// Source identifies the command that produced the results.
type Source string

const (
	SourceQuery    Source = "query"
	SourcePlaylist Source = "playlist"
)

// fileName is stored next to the library index.
const fileName = "last-results.json"

// LastResults stores the records of the most recent retrieval command in the
// order they were numbered.
type LastResults struct {
	Source    Source           `json:"source"`
	Kind      string           `json:"kind,omitempty"`
	Query     string           `json:"query,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Results   []*record.Record `json:"results"`
}

// Errors
var (
	ErrNoLastResults    = errors.New("no last results available")
	ErrNumberOutOfRange = errors.New("result number out of range")
)

// Path returns the last-results file that belongs to the index at dbPath.
func Path(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), fileName)
}

// New builds a LastResults stamped with the current time.
func New(source Source, kind record.Kind, query string, results []*record.Record) *LastResults {
	lr := &LastResults{
		Source:    source,
		Query:     query,
		Timestamp: time.Now(),
		Results:   results,
	}
	if kind != record.KindGeneric {
		lr.Kind = kind.String()
	}
	if lr.Results == nil {
		lr.Results = []*record.Record{}
	}
	return lr
}

// Write saves the last results next to the index at dbPath.
func Write(dbPath string, lr *LastResults) error {
	err := atomicfile.Write(Path(dbPath), 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lr)
	})
	if err != nil {
		return fmt.Errorf("failed to write last results: %w", err)
	}
	return nil
}

// Read loads the last results for the index at dbPath.
func Read(dbPath string) (*LastResults, error) {
	data, err := os.ReadFile(Path(dbPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoLastResults
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last results: %w", err)
	}

	var lr LastResults
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, fmt.Errorf("failed to parse last results: %w", err)
	}
	return &lr, nil
}

// GetByNumbers returns the records with the given 1-indexed row numbers.
func (lr *LastResults) GetByNumbers(nums []int) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(nums))
	for _, num := range nums {
		if num < 1 || num > len(lr.Results) {
			return nil, fmt.Errorf("%w: %d (valid range: 1-%d)", ErrNumberOutOfRange, num, len(lr.Results))
		}
		out = append(out, lr.Results[num-1])
	}
	return out, nil
}

// Keys returns the record keys in result order.
func (lr *LastResults) Keys() []string {
	keys := make([]string, len(lr.Results))
	for i, r := range lr.Results {
		keys[i] = r.Key()
	}
	return keys
}

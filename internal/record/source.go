package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNamedSetNotFound is returned when a named set does not exist.
var ErrNamedSetNotFound = errors.New("named set not found")

// Source supplies the stored records of one kind.
type Source interface {
	Records(ctx context.Context, kind Kind) ([]*Record, error)
}

// MemorySource is an in-memory Source and named-set store. It is safe for
// concurrent readers once populated.
type MemorySource struct {
	mu      sync.RWMutex
	records map[Kind][]*Record
	sets    map[string][]string
	order   []string
}

// NewMemorySource creates a source holding the given records.
func NewMemorySource(records ...*Record) *MemorySource {
	m := &MemorySource{
		records: make(map[Kind][]*Record),
		sets:    make(map[string][]string),
	}
	m.Add(records...)
	return m
}

// Add appends records to the source.
func (m *MemorySource) Add(records ...*Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.Kind()] = append(m.records[r.Kind()], r)
	}
}

// AddNamedSet stores a named set of member keys.
func (m *MemorySource) AddNamedSet(name string, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sets[name]; !exists {
		m.order = append(m.order, name)
	}
	m.sets[name] = append([]string(nil), keys...)
}

// Records returns the records of kind in insertion order.
func (m *MemorySource) Records(ctx context.Context, kind Kind) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Record(nil), m.records[kind]...), nil
}

// NamedSets returns the stored set names sorted case-insensitively.
func (m *MemorySource) NamedSets(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := append([]string(nil), m.order...)
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	return names, nil
}

// NamedSetMembers returns the member keys of the set with the exact name.
func (m *MemorySource) NamedSetMembers(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, ok := m.sets[name]
	if !ok {
		return nil, fmt.Errorf("named set %q: %w", name, ErrNamedSetNotFound)
	}
	return append([]string(nil), keys...), nil
}

// Schema returns the built-in schema extended with every stored record.
func (m *MemorySource) Schema() *Schema {
	s := DefaultSchema()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, records := range m.records {
		for _, r := range records {
			s.Observe(r)
		}
	}
	return s
}

package record

import (
	"encoding/json"
	"sort"
	"strings"
)

// ValueKind tags the shape of an attribute value.
type ValueKind uint8

const (
	Absent ValueKind = iota
	One
	Many
)

// Value is an attribute value: absent, a single string or several strings.
// The zero Value is Absent.
type Value struct {
	kind ValueKind
	one  string
	many []string
}

// OneValue returns a single-valued attribute.
func OneValue(s string) Value {
	return Value{kind: One, one: s}
}

// ManyValues returns a multi-valued attribute. Zero values yield Absent,
// a single value yields One.
func ManyValues(ss ...string) Value {
	switch len(ss) {
	case 0:
		return Value{}
	case 1:
		return OneValue(ss[0])
	}
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{kind: Many, many: cp}
}

// Kind reports the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the attribute is missing.
func (v Value) IsAbsent() bool { return v.kind == Absent }

// Len returns the number of strings held.
func (v Value) Len() int {
	switch v.kind {
	case One:
		return 1
	case Many:
		return len(v.many)
	default:
		return 0
	}
}

// Strings returns the held strings; Absent yields an empty, non-nil slice.
// The returned slice must not be modified.
func (v Value) Strings() []string {
	switch v.kind {
	case One:
		return []string{v.one}
	case Many:
		return v.many
	default:
		return []string{}
	}
}

// First returns the first held string.
func (v Value) First() (string, bool) {
	switch v.kind {
	case One:
		return v.one, true
	case Many:
		return v.many[0], true
	default:
		return "", false
	}
}

// String returns the first value, or "" when absent.
func (v Value) String() string {
	s, _ := v.First()
	return s
}

// MarshalJSON encodes the value as a JSON string list.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Strings())
}

// UnmarshalJSON decodes a JSON string list (or single string).
func (v *Value) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		var single string
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return err
		}
		*v = OneValue(single)
		return nil
	}
	*v = ManyValues(list...)
	return nil
}

// Attrs is a record's attribute bag. Lookups never fail: a missing
// attribute is the Absent value.
type Attrs struct {
	m map[string]Value
}

// NewAttrs builds an attribute bag from a map of string lists.
func NewAttrs(values map[string][]string) Attrs {
	a := Attrs{m: make(map[string]Value, len(values))}
	for name, vals := range values {
		if v := ManyValues(vals...); !v.IsAbsent() {
			a.m[name] = v
		}
	}
	return a
}

// Get returns the value stored under the exact name.
func (a Attrs) Get(name string) Value {
	return a.m[name]
}

// GetFold returns the value for name, retrying case-insensitively on a miss.
func (a Attrs) GetFold(name string) Value {
	if v, ok := a.m[name]; ok {
		return v
	}
	lower := strings.ToLower(name)
	if v, ok := a.m[lower]; ok {
		return v
	}
	for k, v := range a.m {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return Value{}
}

// Has reports whether name is present (exact match).
func (a Attrs) Has(name string) bool {
	_, ok := a.m[name]
	return ok
}

// Len returns the number of present attributes.
func (a Attrs) Len() int { return len(a.m) }

// Names returns the present attribute names in sorted order.
func (a Attrs) Names() []string {
	names := make([]string, 0, len(a.m))
	for k := range a.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the bag with name set to v. An Absent v removes name.
func (a Attrs) With(name string, v Value) Attrs {
	out := Attrs{m: make(map[string]Value, len(a.m)+1)}
	for k, existing := range a.m {
		out.m[k] = existing
	}
	if v.IsAbsent() {
		delete(out.m, name)
	} else {
		out.m[name] = v
	}
	return out
}

// MarshalJSON encodes the bag as an object of string lists.
func (a Attrs) MarshalJSON() ([]byte, error) {
	if a.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.m)
}

// UnmarshalJSON decodes an object of string lists.
func (a *Attrs) UnmarshalJSON(data []byte) error {
	var m map[string]Value
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	a.m = make(map[string]Value, len(m))
	for k, v := range m {
		if !v.IsAbsent() {
			a.m[k] = v
		}
	}
	return nil
}

package record

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Attribute names with structural meaning.
const (
	AttrKey            = "key"
	AttrParentKey      = "parentKey"
	AttrGrandparentKey = "grandparentKey"
	AttrTitle          = "title"
)

// Record is an immutable snapshot of one entity and its nested sub-entities.
// Records are shared between queries; nothing may modify one after construction.
type Record struct {
	kind     Kind
	tag      string
	attrs    Attrs
	children []*Record
}

// New creates a record of a known kind.
func New(kind Kind, attrs Attrs, children ...*Record) *Record {
	return &Record{kind: kind, tag: kind.Tag(), attrs: attrs, children: children}
}

// NewTagged creates a record for an arbitrary tag. Tags that name a known kind
// produce a record of that kind.
func NewTagged(tag string, attrs Attrs, children ...*Record) *Record {
	return &Record{kind: KindForTag(tag), tag: tag, attrs: attrs, children: children}
}

// Kind returns the record's entity kind.
func (r *Record) Kind() Kind { return r.kind }

// Tag returns the record's type tag.
func (r *Record) Tag() string { return r.tag }

// Attrs returns the record's attribute bag.
func (r *Record) Attrs() Attrs { return r.attrs }

// Children returns the ordered child records. The slice must not be modified.
func (r *Record) Children() []*Record { return r.children }

// Key returns the identifying key.
func (r *Record) Key() string {
	return r.attrs.Get(AttrKey).String()
}

// Title returns the title attribute, or "".
func (r *Record) Title() string {
	return r.attrs.Get(AttrTitle).String()
}

func (r *Record) String() string {
	return r.tag + "(" + r.Key() + ")"
}

type recordJSON struct {
	Tag      string        `json:"tag"`
	Attrs    Attrs         `json:"attrs"`
	Children []*recordJSON `json:"children,omitempty"`
}

func (r *Record) toJSON() *recordJSON {
	out := &recordJSON{Tag: r.tag, Attrs: r.attrs}
	for _, c := range r.children {
		out.Children = append(out.Children, c.toJSON())
	}
	return out
}

func (rj *recordJSON) toRecord() *Record {
	children := make([]*Record, 0, len(rj.Children))
	for _, c := range rj.Children {
		children = append(children, c.toRecord())
	}
	return NewTagged(rj.Tag, rj.Attrs, children...)
}

// MarshalJSON encodes the record tree.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}

// UnmarshalJSON decodes a record tree.
func (r *Record) UnmarshalJSON(data []byte) error {
	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	*r = *rj.toRecord()
	return nil
}

// CompareKeys orders identifying keys: integer keys numerically, anything else bytewise.
func CompareKeys(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

package query

import (
	"strings"

	"github.com/aidanlsb/crate/internal/record"
)

// TagAttribute is the synthetic attribute holding a record's type tag.
const TagAttribute = "etag"

// ResolveAttr returns the values of field on r. An exact attribute name wins;
// then the synthetic tag attribute; then, for a path, descent into every
// child whose tag matches the first segment; then a case-insensitive lookup.
// A missing attribute yields an empty slice.
func ResolveAttr(r *record.Record, field string) []string {
	attrs := r.Attrs()
	if v := attrs.Get(field); !v.IsAbsent() {
		return v.Strings()
	}
	if field == TagAttribute {
		return []string{r.Tag()}
	}

	head, rest, isPath := strings.Cut(field, JoinMarker)
	if !isPath {
		return attrs.GetFold(field).Strings()
	}

	var out []string
	for _, child := range r.Children() {
		if !strings.EqualFold(child.Tag(), head) {
			continue
		}
		for _, v := range ResolveAttr(child, rest) {
			if v != "" {
				out = append(out, v)
			}
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

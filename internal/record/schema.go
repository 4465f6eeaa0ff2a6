package record

import (
	"sort"
	"strings"
)

// Schema records which attribute names and child tags exist per kind.
// It backs filter-key validation; it never restricts what a record may hold.
type Schema struct {
	attrs    map[Kind]map[string]string // lowercase -> canonical
	children map[Kind]map[string]string
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		attrs:    make(map[Kind]map[string]string),
		children: make(map[Kind]map[string]string),
	}
}

var commonAttrs = []string{"key", "title", "titleSort", "summary", "addedAt", "updatedAt", "userRating", "viewCount", "lastViewedAt"}

var defaultAttrs = map[Kind][]string{
	KindArtist:   {"genre", "country", "mood", "style"},
	KindAlbum:    {"parentKey", "parentTitle", "year", "originallyAvailableAt", "genre", "mood", "style", "studio", "subtype"},
	KindTrack:    {"index", "parentIndex", "parentKey", "parentTitle", "parentYear", "parentOriginallyAvailableAt", "grandparentKey", "grandparentTitle", "originalTitle", "originallyAvailableAt", "duration", "mood"},
	KindShow:     {"year", "genre", "studio", "originallyAvailableAt"},
	KindSeason:   {"index", "parentKey", "parentTitle"},
	KindEpisode:  {"index", "parentIndex", "parentKey", "parentTitle", "grandparentKey", "grandparentTitle", "originallyAvailableAt", "duration"},
	KindMovie:    {"year", "genre", "studio", "originallyAvailableAt", "duration"},
	KindPlaylist: {"playlistType", "leafCount", "smart"},
}

var defaultChildren = map[Kind][]string{
	KindTrack:   {"Media"},
	KindEpisode: {"Media"},
	KindMovie:   {"Media"},
}

// DefaultSchema returns the built-in attribute vocabulary.
func DefaultSchema() *Schema {
	s := NewSchema()
	for _, k := range QueryableKinds() {
		for _, name := range commonAttrs {
			s.AddAttribute(k, name)
		}
		for _, name := range defaultAttrs[k] {
			s.AddAttribute(k, name)
		}
		for _, tag := range defaultChildren[k] {
			s.AddChild(k, tag)
		}
	}
	return s
}

// AddAttribute registers an attribute name for kind.
func (s *Schema) AddAttribute(kind Kind, name string) {
	addName(s.attrs, kind, name)
}

// AddChild registers a child tag for kind.
func (s *Schema) AddChild(kind Kind, tag string) {
	addName(s.children, kind, tag)
}

func addName(m map[Kind]map[string]string, kind Kind, name string) {
	names, ok := m[kind]
	if !ok {
		names = make(map[string]string)
		m[kind] = names
	}
	if _, exists := names[strings.ToLower(name)]; !exists {
		names[strings.ToLower(name)] = name
	}
}

// Observe registers every attribute and direct child tag found on r.
func (s *Schema) Observe(r *Record) {
	for _, name := range r.Attrs().Names() {
		s.AddAttribute(r.Kind(), name)
	}
	for _, c := range r.Children() {
		s.AddChild(r.Kind(), c.Tag())
	}
}

// Merge adds everything from o into s.
func (s *Schema) Merge(o *Schema) {
	if o == nil {
		return
	}
	for kind, names := range o.attrs {
		for _, name := range names {
			s.AddAttribute(kind, name)
		}
	}
	for kind, tags := range o.children {
		for _, tag := range tags {
			s.AddChild(kind, tag)
		}
	}
}

// HasAttribute reports whether name is a known attribute of kind (case-insensitive).
// Generic kinds accept every name.
func (s *Schema) HasAttribute(kind Kind, name string) bool {
	if kind == KindGeneric {
		return true
	}
	_, ok := s.attrs[kind][strings.ToLower(name)]
	return ok
}

// HasChild reports whether tag is a known child tag of kind (case-insensitive).
func (s *Schema) HasChild(kind Kind, tag string) bool {
	if kind == KindGeneric {
		return true
	}
	_, ok := s.children[kind][strings.ToLower(tag)]
	return ok
}

// Attributes returns the known attribute names of kind, sorted.
func (s *Schema) Attributes(kind Kind) []string {
	out := make([]string, 0, len(s.attrs[kind]))
	for _, name := range s.attrs[kind] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Children returns the known child tags of kind, sorted.
func (s *Schema) Children(kind Kind) []string {
	out := make([]string, 0, len(s.children[kind]))
	for _, tag := range s.children[kind] {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Suggest returns the closest known attribute name for a misspelled one, or "".
func (s *Schema) Suggest(kind Kind, name string) string {
	lower := strings.ToLower(name)
	best, bestDist := "", 3
	for _, candidate := range s.Attributes(kind) {
		lc := strings.ToLower(candidate)
		if strings.HasPrefix(lc, lower) || strings.HasPrefix(lower, lc) {
			return candidate
		}
		if d := levenshtein(lower, lc); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

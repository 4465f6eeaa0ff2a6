// Package record defines the attributed record trees that queries run against.
package record

import (
	"fmt"
	"strings"
)

// Kind identifies the entity type of a record.
type Kind int

const (
	KindGeneric Kind = iota // any other tag, e.g. Media, Part
	KindArtist
	KindAlbum
	KindTrack
	KindShow
	KindSeason
	KindEpisode
	KindMovie
	KindPlaylist
)

var kindNames = [...]string{
	KindGeneric:  "generic",
	KindArtist:   "artist",
	KindAlbum:    "album",
	KindTrack:    "track",
	KindShow:     "show",
	KindSeason:   "season",
	KindEpisode:  "episode",
	KindMovie:    "movie",
	KindPlaylist: "playlist",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "generic"
	}
	return kindNames[k]
}

// Tag returns the canonical type tag for records of this kind ("Track", "Album", ...).
func (k Kind) Tag() string {
	name := k.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// QueryableKinds lists the kinds a query may target.
func QueryableKinds() []Kind {
	return []Kind{KindArtist, KindAlbum, KindTrack, KindShow, KindSeason, KindEpisode, KindMovie, KindPlaylist}
}

// ParseKind resolves a kind name. Matching is case-insensitive and accepts plurals ("tracks").
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := lookupKind(name); ok {
		return k, nil
	}
	if trimmed := strings.TrimSuffix(name, "s"); trimmed != name {
		if k, ok := lookupKind(trimmed); ok {
			return k, nil
		}
	}

	names := make([]string, 0, len(kindNames)-1)
	for _, k := range QueryableKinds() {
		names = append(names, k.String())
	}
	return KindGeneric, fmt.Errorf("invalid kind %q - expected one of: %s", s, strings.Join(names, ", "))
}

// KindForTag maps a record type tag onto its kind; unknown tags are generic.
func KindForTag(tag string) Kind {
	if k, ok := lookupKind(strings.ToLower(tag)); ok {
		return k
	}
	return KindGeneric
}

func lookupKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if Kind(i) != KindGeneric && n == name {
			return Kind(i), true
		}
	}
	return KindGeneric, false
}

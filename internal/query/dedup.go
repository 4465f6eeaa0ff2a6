package query

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aidanlsb/crate/internal/dates"
	"github.com/aidanlsb/crate/internal/record"
)

// DedupPolicy decides which record of a duplicate group survives.
type DedupPolicy struct {
	// PreferRated keeps the rated member when exactly one is rated.
	PreferRated bool
	// PreferMostRecent keeps the member with the later release date.
	PreferMostRecent bool
	// AllowSingles disables the penalty for releases filed under singles.
	AllowSingles bool
	// Fuzzy also merges near-duplicate titles of one performer.
	Fuzzy bool
}

// DefaultDedupPolicy prefers rated, then recent releases, merges
// near-duplicate titles and leaves singles unpenalized.
func DefaultDedupPolicy() DedupPolicy {
	return DedupPolicy{PreferRated: true, PreferMostRecent: true, AllowSingles: true, Fuzzy: true}
}

const variousArtists = "Various Artists"

// releaseDateAttrs are consulted in order for a record's release date.
var releaseDateAttrs = []string{"originallyAvailableAt", "parentOriginallyAvailableAt", "parentYear", "year"}

const singlesMarker = "/singles/"

// Dedup keeps one record per performer and folded title. With Fuzzy and a
// matcher, titles the matcher calls near-duplicates are merged as well.
// Survivors keep their original order.
func (rs *ResultSet) Dedup(policy DedupPolicy, m NameMatcher) *ResultSet {
	fold := foldTitle
	if m != nil {
		fold = m.Fold
	}

	type group struct {
		titles []string
		kept   map[string]*record.Record
	}
	var performers []string
	groups := make(map[string]*group)

	for _, r := range rs.records {
		p := performer(r)
		g, ok := groups[p]
		if !ok {
			g = &group{kept: make(map[string]*record.Record)}
			groups[p] = g
			performers = append(performers, p)
		}
		title := fold(r.Title())
		if existing, dup := g.kept[title]; dup {
			g.kept[title] = rs.pick(policy, existing, r)
			continue
		}
		g.titles = append(g.titles, title)
		g.kept[title] = r
	}

	keep := make(map[*record.Record]bool, len(rs.records))
	for _, p := range performers {
		g := groups[p]
		if !policy.Fuzzy || m == nil {
			for _, t := range g.titles {
				keep[g.kept[t]] = true
			}
			continue
		}

		type entry struct {
			title string
			rec   *record.Record
		}
		var uniq []entry
		for _, t := range g.titles {
			r := g.kept[t]
			title := r.Title()
			matched := -1
			for i, u := range uniq {
				if m.NearDuplicate(u.title, title) {
					matched = i
					break
				}
			}
			if matched < 0 {
				uniq = append(uniq, entry{title: title, rec: r})
				continue
			}
			if winner := rs.pick(policy, uniq[matched].rec, r); winner != uniq[matched].rec {
				uniq[matched] = entry{title: title, rec: winner}
			}
		}
		for _, u := range uniq {
			keep[u.rec] = true
		}
	}

	out := make([]*record.Record, 0, len(keep))
	for _, r := range rs.records {
		if keep[r] {
			out = append(out, r)
		}
	}
	return rs.derive(out, rs.diags)
}

func (rs *ResultSet) pick(policy DedupPolicy, a, b *record.Record) *record.Record {
	winner, reason := policy.pick(a, b)
	if rs.engine != nil {
		rs.engine.log.WithFields(logrus.Fields{
			"kept":    winner.Key(),
			"dropped": other(winner, a, b).Key(),
			"reason":  reason,
		}).Debug("dedup")
	}
	return winner
}

func other(winner, a, b *record.Record) *record.Record {
	if winner == a {
		return b
	}
	return a
}

func (p DedupPolicy) pick(a, b *record.Record) (*record.Record, string) {
	if p.PreferRated {
		ra, rb := isRated(a), isRated(b)
		switch {
		case ra && !rb:
			return a, "rated"
		case rb && !ra:
			return b, "rated"
		}
	}
	if !p.AllowSingles {
		sa, sb := isSingle(a), isSingle(b)
		switch {
		case sa && !sb:
			return b, "single"
		case sb && !sa:
			return a, "single"
		}
	}
	if p.PreferMostRecent {
		da, okA := releaseDate(a)
		db, okB := releaseDate(b)
		if okA && okB {
			switch {
			case da.After(db):
				return a, "latest"
			case db.After(da):
				return b, "latest"
			}
		}
	}
	if record.CompareKeys(a.Key(), b.Key()) <= 0 {
		return a, "key"
	}
	return b, "key"
}

// performer returns the grouping artist: the album artist, or the track
// artist on compilations.
func performer(r *record.Record) string {
	attrs := r.Attrs()
	artist := attrs.Get("grandparentTitle").String()
	if artist == variousArtists {
		if orig := attrs.Get("originalTitle").String(); orig != "" {
			return orig
		}
	}
	if artist == "" {
		artist = attrs.Get("parentTitle").String()
	}
	return artist
}

// isRated reports whether r carries any rating value. A stored zero still
// counts.
func isRated(r *record.Record) bool {
	return strings.TrimSpace(r.Attrs().Get(ratingAttr).String()) != ""
}

func isSingle(r *record.Record) bool {
	for _, path := range ResolveAttr(r, "media__part__file") {
		if strings.Contains(strings.ToLower(path), singlesMarker) {
			return true
		}
	}
	return false
}

func releaseDate(r *record.Record) (time.Time, bool) {
	attrs := r.Attrs()
	for _, name := range releaseDateAttrs {
		v := attrs.Get(name).String()
		if v == "" {
			continue
		}
		if t, _, err := dates.Parse(v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

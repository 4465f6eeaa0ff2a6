package query

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"github.com/aidanlsb/crate/internal/record"
)

// ratedDupeFilter builds the record filter that drops tracks duplicating a
// rated track by the same artist. The rated tracks come from the same spec
// with its rating clauses replaced by "rated at all".
func (e *Engine) ratedDupeFilter(ctx context.Context, spec *FilterSpec) (RecordFilter, error) {
	sub := spec.Clone()
	sub.Pop(func(c Clause) bool { return matchesPrefix(c.Field, ratingAttr) })
	sub.Set(Clause{Field: ratingAttr, Op: "gte", Value: Int(1)})

	rated, err := e.fetch(ctx, record.KindTrack, sub)
	if err != nil {
		return nil, err
	}

	byArtist := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for _, r := range rated {
		artist := r.Attrs().Get(record.AttrGrandparentKey).String()
		title := e.fold(r.Title())
		if seen[[2]string{artist, title}] {
			continue
		}
		seen[[2]string{artist, title}] = true
		byArtist[artist] = append(byArtist[artist], title)
	}
	e.log.WithFields(logrus.Fields{"rated": len(rated), "artists": len(byArtist)}).Debug("rated duplicate index built")

	return func(r *record.Record) bool {
		titles := byArtist[r.Attrs().Get(record.AttrGrandparentKey).String()]
		if len(titles) == 0 {
			return true
		}
		title := e.fold(r.Title())
		for _, t := range titles {
			if t == title {
				return false
			}
		}
		if e.matcher == nil {
			return true
		}
		for _, t := range titles {
			if e.matcher.NearDuplicate(t, title) {
				return false
			}
		}
		return true
	}, nil
}

// fold normalizes a title for grouping.
func (e *Engine) fold(s string) string {
	if e != nil && e.matcher != nil {
		return e.matcher.Fold(s)
	}
	return foldTitle(s)
}

func foldTitle(s string) string {
	return cases.Fold().String(s)
}

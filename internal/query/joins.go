package query

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aidanlsb/crate/internal/record"
)

// namedSetField is the pseudo-attribute that restricts results to a named set.
const namedSetField = "in_playlist"

// route sends clauses on prefix to a sub-query against a related kind and
// replaces them with a foreign-key membership clause.
type route struct {
	prefix     string
	related    record.Kind
	attr       string
	foreignKey string
}

var trackArtistRoute = route{prefix: "artist", related: record.KindArtist, attr: record.AttrTitle, foreignKey: record.AttrGrandparentKey}

// routesFor returns the join routes of a kind in application order. Track
// artist clauses are handled separately since they also match the track's
// own originalTitle.
func routesFor(kind record.Kind) []route {
	switch kind {
	case record.KindTrack:
		return []route{
			{prefix: "album", related: record.KindAlbum, attr: record.AttrTitle, foreignKey: record.AttrParentKey},
			{prefix: "genre", related: record.KindAlbum, attr: "genre", foreignKey: record.AttrParentKey},
		}
	case record.KindAlbum:
		return []route{
			{prefix: "artist", related: record.KindArtist, attr: record.AttrTitle, foreignKey: record.AttrParentKey},
		}
	case record.KindSeason:
		return []route{
			{prefix: "show", related: record.KindShow, attr: record.AttrTitle, foreignKey: record.AttrParentKey},
		}
	case record.KindEpisode:
		return []route{
			{prefix: "show", related: record.KindShow, attr: record.AttrTitle, foreignKey: record.AttrGrandparentKey},
		}
	default:
		return nil
	}
}

func routeFor(kind record.Kind, prefix string) *route {
	for _, r := range routesFor(kind) {
		if r.prefix == prefix {
			return &r
		}
	}
	return nil
}

// applyRoutes replaces every routed clause group with a membership clause on
// the route's foreign key. Sub-query clauses keep their operator and value;
// a path below the prefix names the related attribute.
func (e *Engine) applyRoutes(ctx context.Context, kind record.Kind, spec *FilterSpec, routes []route) error {
	for _, rt := range routes {
		popped := spec.Pop(func(c Clause) bool { return matchesPrefix(c.Field, rt.prefix) })
		if len(popped) == 0 {
			continue
		}
		sub := NewFilterSpec()
		for _, c := range popped {
			attr := rt.attr
			if rest, ok := strings.CutPrefix(c.Field, rt.prefix+JoinMarker); ok {
				attr = rest
			}
			sub.Set(Clause{Field: attr, Op: c.Op, Value: c.Value})
		}

		related, err := e.fetch(ctx, rt.related, sub)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(related))
		for _, r := range related {
			keys = append(keys, r.Key())
		}
		spec.RestrictIn(rt.foreignKey, TextSet(keys...))
		e.log.WithFields(logrus.Fields{
			"kind":  kind.String(),
			"route": rt.prefix,
			"field": rt.foreignKey,
			"keys":  len(keys),
		}).Debug("resolved join")
	}
	return nil
}

// artistVariants plans track artist clauses. A track's artist is its album
// artist or its own originalTitle. Positive clauses may match either, so they
// yield one variant per source. Negative clauses must hold for both and are
// kept in every variant.
func (e *Engine) artistVariants(ctx context.Context, spec *FilterSpec) ([]*FilterSpec, error) {
	for _, c := range spec.Clauses() {
		if c.Field == "artist" && isNegative(c.Op) {
			c.Field = "originalTitle"
			spec.Set(c)
		}
	}

	albumArtist := spec.Clone()
	if err := e.applyRoutes(ctx, record.KindTrack, albumArtist, []route{trackArtistRoute}); err != nil {
		return nil, err
	}
	variants := []*FilterSpec{albumArtist}

	if trackArtist, ok := originalTitleVariant(spec); ok {
		if err := e.applyRoutes(ctx, record.KindTrack, trackArtist, []route{trackArtistRoute}); err != nil {
			return nil, err
		}
		variants = append(variants, trackArtist)
	}
	return variants, nil
}

// originalTitleVariant rewrites positive plain artist clauses onto the
// track's own originalTitle. Clauses on paths below artist have no
// counterpart there, and a spec without positive artist clauses needs no
// second variant; neither produces one.
func originalTitleVariant(spec *FilterSpec) (*FilterSpec, bool) {
	out := NewFilterSpec()
	rewritten := false
	for _, c := range spec.Clauses() {
		switch {
		case c.Field == "artist" && !isNegative(c.Op):
			c.Field = "originalTitle"
			rewritten = true
		case c.Field != "artist" && matchesPrefix(c.Field, "artist"):
			return nil, false
		}
		out.Set(c)
	}
	return out, rewritten
}

// resolveNamedSets replaces in_playlist clauses with key membership. Names
// match case-insensitively; negative operators exclude the members instead.
func (e *Engine) resolveNamedSets(ctx context.Context, spec *FilterSpec) error {
	popped := spec.Pop(func(c Clause) bool { return matchesPrefix(c.Field, namedSetField) })
	if len(popped) == 0 {
		return nil
	}
	if e.sets == nil {
		return &UnknownNamedSetError{Name: popped[0].Value.String()}
	}

	names, err := e.sets.NamedSets(ctx)
	if err != nil {
		return collaboratorError(ctx, "list named sets", err)
	}
	for _, c := range popped {
		want := c.Value.String()
		name, found := "", false
		for _, n := range names {
			if strings.EqualFold(n, want) {
				name, found = n, true
				break
			}
		}
		if !found {
			return &UnknownNamedSetError{Name: want, Available: names}
		}
		members, err := e.sets.NamedSetMembers(ctx, name)
		if err != nil {
			return collaboratorError(ctx, "load named set "+name, err)
		}
		if err := ctx.Err(); err != nil {
			return &CancelledQueryError{Stage: "load named set " + name, Err: err}
		}
		if isNegative(c.Op) {
			spec.ExcludeIn(record.AttrKey, TextSet(members...))
		} else {
			spec.RestrictIn(record.AttrKey, TextSet(members...))
		}
		e.log.WithFields(logrus.Fields{"set": name, "members": len(members)}).Debug("resolved named set")
	}
	return nil
}

func isNegative(op string) bool {
	return op == "ne" || op == "nsregex" || strings.Contains(op, "not")
}

package query

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/crate/internal/record"
)

// attrs builds an attribute bag from name/value pairs. A value containing
// "|" is split into several values.
func attrs(kv ...string) record.Attrs {
	m := make(map[string][]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = strings.Split(kv[i+1], "|")
	}
	return record.NewAttrs(m)
}

func media(file string) *record.Record {
	return record.NewTagged("Media", attrs("container", "flac"),
		record.NewTagged("Part", attrs("file", file)))
}

// testLibrary is a small music library:
//
//	Queen: A Night at the Opera (1975, Rock), Greatest Hits (1981, Pop)
//	Various Artists: Now 99 (1999, Pop)
//	Björk: Debut (1993, Pop|Electronic)
func testLibrary() *record.MemorySource {
	src := record.NewMemorySource(
		record.New(record.KindArtist, attrs("key", "1", "title", "Queen", "genre", "Rock")),
		record.New(record.KindArtist, attrs("key", "2", "title", "Various Artists")),
		record.New(record.KindArtist, attrs("key", "3", "title", "Björk", "genre", "Electronic")),

		record.New(record.KindAlbum, attrs("key", "10", "title", "A Night at the Opera", "parentKey", "1", "parentTitle", "Queen", "genre", "Rock", "year", "1975")),
		record.New(record.KindAlbum, attrs("key", "11", "title", "Greatest Hits", "parentKey", "1", "parentTitle", "Queen", "genre", "Pop", "year", "1981")),
		record.New(record.KindAlbum, attrs("key", "12", "title", "Now 99", "parentKey", "2", "parentTitle", "Various Artists", "genre", "Pop", "year", "1999")),
		record.New(record.KindAlbum, attrs("key", "13", "title", "Debut", "parentKey", "3", "parentTitle", "Björk", "genre", "Pop|Electronic", "year", "1993")),

		record.New(record.KindTrack, attrs("key", "100", "title", "Bohemian Rhapsody", "index", "1",
			"parentKey", "10", "parentTitle", "A Night at the Opera", "parentYear", "1975",
			"grandparentKey", "1", "grandparentTitle", "Queen", "userRating", "10"),
			media("/music/Queen/A Night at the Opera/01.flac")),
		record.New(record.KindTrack, attrs("key", "101", "title", "Love of My Life", "index", "2",
			"parentKey", "10", "parentTitle", "A Night at the Opera", "parentYear", "1975",
			"grandparentKey", "1", "grandparentTitle", "Queen"),
			media("/music/Queen/A Night at the Opera/02.flac")),
		record.New(record.KindTrack, attrs("key", "102", "title", "Bohemian Rhapsody", "index", "1",
			"parentKey", "11", "parentTitle", "Greatest Hits", "parentYear", "1981",
			"grandparentKey", "1", "grandparentTitle", "Queen"),
			media("/music/Queen/Greatest Hits/01.flac")),
		record.New(record.KindTrack, attrs("key", "103", "title", "Another One Bites the Dust", "index", "3",
			"parentKey", "11", "parentTitle", "Greatest Hits", "parentYear", "1981",
			"grandparentKey", "1", "grandparentTitle", "Queen", "userRating", "6"),
			media("/music/Queen/Greatest Hits/03.flac")),
		record.New(record.KindTrack, attrs("key", "104", "title", "Bohemian Rhapsody", "index", "4",
			"parentKey", "12", "parentTitle", "Now 99", "parentYear", "1999",
			"grandparentKey", "2", "grandparentTitle", "Various Artists", "originalTitle", "Queen"),
			media("/music/Compilations/Now 99/04.flac")),
		record.New(record.KindTrack, attrs("key", "105", "title", "Human Behaviour", "index", "1",
			"parentKey", "13", "parentTitle", "Debut", "parentYear", "1993",
			"grandparentKey", "3", "grandparentTitle", "Björk", "userRating", "8"),
			media("/music/Björk/Debut/01.flac")),
		record.New(record.KindTrack, attrs("key", "106", "title", "Venus as a Boy (Instrumental)", "index", "5",
			"parentKey", "13", "parentTitle", "Debut", "parentYear", "1993",
			"grandparentKey", "3", "grandparentTitle", "Björk"),
			media("/music/Björk/Debut/05.flac")),
	)
	src.AddNamedSet("Favorites", "100", "105")
	src.AddNamedSet("Road Trip", "103")
	return src
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(testLibrary(), opts...)
	require.NoError(t, err)
	return e
}

// rawOpts parses queries without injecting defaults other than the parser's own.
var rawOpts = ParseOptions{AllowInstrumental: true}

func queryKeys(t *testing.T, e *Engine, kind record.Kind, q string) []string {
	t.Helper()
	rs, err := e.Query(context.Background(), kind, q, rawOpts, SearchOptions{})
	require.NoError(t, err, "query %q", q)
	return rs.Keys()
}

// countingProvider records the sub-queries routed through it.
type countingProvider struct {
	inner CollectionProvider
	mu    sync.Mutex
	kinds []record.Kind
}

func (p *countingProvider) Fetch(ctx context.Context, kind record.Kind, spec *FilterSpec) ([]*record.Record, error) {
	p.mu.Lock()
	p.kinds = append(p.kinds, kind)
	p.mu.Unlock()
	return p.inner.Fetch(ctx, kind, spec)
}

// stubMatcher folds case and treats titles sharing a prefix before " (" as
// near-duplicates.
type stubMatcher struct{}

func (stubMatcher) Fold(s string) string { return strings.ToLower(s) }

func (stubMatcher) NearDuplicate(a, b string) bool {
	base := func(s string) string {
		if i := strings.Index(s, " ("); i >= 0 {
			s = s[:i]
		}
		return strings.ToLower(s)
	}
	return base(a) == base(b)
}

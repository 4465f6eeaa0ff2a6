package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aidanlsb/crate/internal/record"
)

func dedupTrack(key, title, artist string, kv ...string) *record.Record {
	pairs := append([]string{"key", key, "title", title, "grandparentTitle", artist}, kv...)
	return record.New(record.KindTrack, attrs(pairs...))
}

func dedupKeys(policy DedupPolicy, m NameMatcher, records ...*record.Record) []string {
	rs := newResultSet(nil, record.KindTrack, records, nil)
	return rs.Dedup(policy, m).Keys()
}

func TestDedupPicksSurvivor(t *testing.T) {
	tests := []struct {
		name    string
		policy  DedupPolicy
		records []*record.Record
		want    []string
	}{
		{
			name:   "rated beats unrated",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band", "parentYear", "2020"),
				dedupTrack("2", "Song", "Band", "parentYear", "1990", "userRating", "8"),
			},
			want: []string{"2"},
		},
		{
			name:   "any stored rating counts as rated",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band", "parentYear", "1990", "userRating", "0"),
				dedupTrack("2", "Song", "Band", "parentYear", "2020"),
			},
			want: []string{"1"},
		},
		{
			name:   "most recent release wins",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band", "parentYear", "1975"),
				dedupTrack("2", "Song", "Band", "parentYear", "1981"),
			},
			want: []string{"2"},
		},
		{
			name:   "full dates beat years",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band", "originallyAvailableAt", "1981-06-01", "parentYear", "1975"),
				dedupTrack("2", "Song", "Band", "parentYear", "1981"),
			},
			want: []string{"1"},
		},
		{
			name:   "release dates of every precision compare",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band", "originallyAvailableAt", "1981-06-01T10:00:00Z"),
				dedupTrack("2", "Song", "Band", "originallyAvailableAt", "1981-07"),
				dedupTrack("3", "Song", "Band", "originallyAvailableAt", "1981-05-31"),
			},
			want: []string{"2"},
		},
		{
			name:   "unparsable dates fall back to the smaller key",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("5", "Song", "Band", "originallyAvailableAt", "someday"),
				dedupTrack("4", "Song", "Band", "parentYear", "1981"),
			},
			want: []string{"4"},
		},
		{
			name:   "without recency the smaller key wins",
			policy: DedupPolicy{PreferRated: true},
			records: []*record.Record{
				dedupTrack("10", "Song", "Band", "parentYear", "1981"),
				dedupTrack("9", "Song", "Band", "parentYear", "1975"),
			},
			want: []string{"9"},
		},
		{
			name:   "titles fold case",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "SONG", "Band"),
				dedupTrack("2", "song", "Band"),
			},
			want: []string{"1"},
		},
		{
			name:   "different performers are kept",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band"),
				dedupTrack("2", "Song", "Other Band"),
			},
			want: []string{"1", "2"},
		},
		{
			name:   "compilations group by track artist",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "Song", "Band", "parentYear", "1975"),
				dedupTrack("2", "Song", "Various Artists", "originalTitle", "Band", "parentYear", "1999"),
			},
			want: []string{"2"},
		},
		{
			name:   "survivors keep source order",
			policy: DefaultDedupPolicy(),
			records: []*record.Record{
				dedupTrack("1", "B", "Band"),
				dedupTrack("2", "A", "Band", "parentYear", "1990"),
				dedupTrack("3", "A", "Band", "parentYear", "2000"),
				dedupTrack("4", "C", "Band"),
			},
			want: []string{"1", "3", "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedupKeys(tt.policy, nil, tt.records...))
		})
	}
}

func TestDedupSingles(t *testing.T) {
	album := record.New(record.KindTrack, attrs("key", "1", "title", "Song", "grandparentTitle", "Band", "parentYear", "2019"),
		media("/music/Band/Album/01.flac"))
	single := record.New(record.KindTrack, attrs("key", "2", "title", "Song", "grandparentTitle", "Band", "parentYear", "2020"),
		media("/music/Band/Singles/Song.flac"))

	policy := DefaultDedupPolicy()
	assert.Equal(t, []string{"2"}, dedupKeys(policy, nil, album, single), "singles are not penalized by default")

	policy.AllowSingles = false
	assert.Equal(t, []string{"1"}, dedupKeys(policy, nil, album, single))
}

func TestDedupFuzzy(t *testing.T) {
	records := []*record.Record{
		dedupTrack("1", "Song", "Band", "parentYear", "1990"),
		dedupTrack("2", "Song (Japanese Version)", "Band", "parentYear", "2000"),
		dedupTrack("3", "Other", "Band"),
	}

	assert.Equal(t, []string{"2", "3"}, dedupKeys(DefaultDedupPolicy(), stubMatcher{}, records...))

	exactOnly := DefaultDedupPolicy()
	exactOnly.Fuzzy = false
	assert.Equal(t, []string{"1", "2", "3"}, dedupKeys(exactOnly, stubMatcher{}, records...))
	assert.Equal(t, []string{"1", "2", "3"}, dedupKeys(DefaultDedupPolicy(), nil, records...), "fuzzy merging needs a matcher")
}

func TestDedupOnEngineResults(t *testing.T) {
	e := newTestEngine(t)
	rs := search(t, e, record.KindTrack, "title ~ rhapsody")
	assert.Equal(t, []string{"100"}, rs.Dedup(DefaultDedupPolicy(), nil).Keys(), "the rated original wins over later releases")
}

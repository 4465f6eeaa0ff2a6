package record

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{input: "track", want: KindTrack},
		{input: "Tracks", want: KindTrack},
		{input: " albums ", want: KindAlbum},
		{input: "episode", want: KindEpisode},
		{input: "generic", wantErr: true},
		{input: "song", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindTags(t *testing.T) {
	assert.Equal(t, "Track", KindTrack.Tag())
	assert.Equal(t, KindAlbum, KindForTag("Album"))
	assert.Equal(t, KindGeneric, KindForTag("Media"))
	assert.Equal(t, "generic", Kind(99).String())
}

func TestValueShapes(t *testing.T) {
	assert.True(t, ManyValues().IsAbsent())
	assert.Equal(t, One, ManyValues("a").Kind())
	assert.Equal(t, Many, ManyValues("a", "b").Kind())
	assert.Equal(t, []string{}, Value{}.Strings())
	assert.Equal(t, "a", ManyValues("a", "b").String())
	assert.Equal(t, 2, ManyValues("a", "b").Len())
}

func TestAttrs(t *testing.T) {
	a := NewAttrs(map[string][]string{
		"title":      {"Song"},
		"genre":      {"Pop", "Rock"},
		"userRating": {},
	})

	assert.False(t, a.Has("userRating"), "empty lists are absent")
	assert.Equal(t, []string{"genre", "title"}, a.Names())
	assert.Equal(t, "Song", a.GetFold("TITLE").String())
	assert.True(t, a.Get("TITLE").IsAbsent())

	b := a.With("mood", OneValue("calm")).With("title", Value{})
	assert.True(t, b.Has("mood"))
	assert.False(t, b.Has("title"))
	assert.True(t, a.Has("title"), "With copies the bag")
}

func TestRecordJSON(t *testing.T) {
	r := New(KindTrack,
		NewAttrs(map[string][]string{"key": {"7"}, "title": {"Song"}, "genre": {"Pop", "Rock"}}),
		NewTagged("Media", NewAttrs(map[string][]string{"container": {"flac"}}),
			NewTagged("Part", NewAttrs(map[string][]string{"file": {"/a.flac"}}))),
	)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindTrack, back.Kind())
	assert.Equal(t, "7", back.Key())
	assert.Equal(t, []string{"Pop", "Rock"}, back.Attrs().Get("genre").Strings())
	require.Len(t, back.Children(), 1)
	assert.Equal(t, "Media", back.Children()[0].Tag())
	assert.Equal(t, "/a.flac", back.Children()[0].Children()[0].Attrs().Get("file").String())
}

func TestValueUnmarshalSingleString(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`"x"`), &v))
	assert.Equal(t, "x", v.String())
}

func TestCompareKeys(t *testing.T) {
	assert.Equal(t, -1, CompareKeys("9", "10"))
	assert.Equal(t, 1, CompareKeys("b", "a"))
	assert.Equal(t, 0, CompareKeys("42", "42"))
	assert.Equal(t, -1, CompareKeys("10", "9a"), "mixed keys compare bytewise")
}

func TestSchema(t *testing.T) {
	s := DefaultSchema()
	assert.True(t, s.HasAttribute(KindTrack, "grandparentTitle"))
	assert.True(t, s.HasAttribute(KindTrack, "GRANDPARENTTITLE"))
	assert.False(t, s.HasAttribute(KindTrack, "bpm"))
	assert.True(t, s.HasChild(KindTrack, "media"))
	assert.True(t, s.HasAttribute(KindGeneric, "anything"))

	s.Observe(New(KindTrack, NewAttrs(map[string][]string{"bpm": {"120"}}), NewTagged("Lyrics", Attrs{})))
	assert.True(t, s.HasAttribute(KindTrack, "bpm"))
	assert.True(t, s.HasChild(KindTrack, "Lyrics"))

	other := NewSchema()
	other.AddAttribute(KindAlbum, "label")
	s.Merge(other)
	assert.True(t, s.HasAttribute(KindAlbum, "label"))

	assert.Equal(t, "title", s.Suggest(KindTrack, "titel"))
	assert.Equal(t, "userRating", s.Suggest(KindTrack, "userRat"))
	assert.Equal(t, "", s.Suggest(KindTrack, "zzzzzzzz"))
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource(
		New(KindTrack, NewAttrs(map[string][]string{"key": {"1"}})),
		New(KindAlbum, NewAttrs(map[string][]string{"key": {"2"}})),
	)
	src.AddNamedSet("road trip", "1")
	src.AddNamedSet("Favorites", "1", "3")

	tracks, err := src.Records(ctx, KindTrack)
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	names, err := src.NamedSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Favorites", "road trip"}, names)

	members, err := src.NamedSetMembers(ctx, "Favorites")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, members)

	_, err = src.NamedSetMembers(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNamedSetNotFound))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.Records(cancelled, KindTrack)
	assert.True(t, errors.Is(err, context.Canceled))
}

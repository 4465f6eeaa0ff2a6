package lastresults

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aidanlsb/crate/internal/record"
)

func track(key, title string) *record.Record {
	return record.New(record.KindTrack, record.NewAttrs(map[string][]string{
		record.AttrKey:   {key},
		record.AttrTitle: {title},
		"genre":          {"Rock", "Pop"},
	}))
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "index.db")

	lr := New(SourceQuery, record.KindTrack, "rating >= 8", []*record.Record{
		track("100", "Bohemian Rhapsody"),
		track("101", "Love of My Life"),
	})
	if err := Write(dbPath, lr); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(dbPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Source != SourceQuery || got.Kind != "track" || got.Query != "rating >= 8" {
		t.Fatalf("unexpected header: %+v", got)
	}
	if !got.Timestamp.Equal(lr.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, lr.Timestamp)
	}
	if !reflect.DeepEqual(got.Keys(), []string{"100", "101"}) {
		t.Fatalf("Keys() = %v", got.Keys())
	}
	if got.Results[0].Kind() != record.KindTrack {
		t.Errorf("decoded kind = %v, want track", got.Results[0].Kind())
	}
	if g := got.Results[0].Attrs().Get("genre").Strings(); !reflect.DeepEqual(g, []string{"Rock", "Pop"}) {
		t.Errorf("genre = %v, want [Rock Pop]", g)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "index.db"))
	if !errors.Is(err, ErrNoLastResults) {
		t.Fatalf("Read() error = %v, want ErrNoLastResults", err)
	}
}

func TestGetByNumbers(t *testing.T) {
	lr := New(SourcePlaylist, record.KindGeneric, "Road Trip", []*record.Record{
		track("100", "Bohemian Rhapsody"),
		track("101", "Love of My Life"),
		track("102", "Seaside Rendezvous"),
	})
	if lr.Kind != "" {
		t.Errorf("Kind = %q, want empty for mixed results", lr.Kind)
	}

	got, err := lr.GetByNumbers([]int{3, 1})
	if err != nil {
		t.Fatalf("GetByNumbers: %v", err)
	}
	if got[0].Key() != "102" || got[1].Key() != "100" {
		t.Fatalf("GetByNumbers returned %v", got)
	}

	if _, err := lr.GetByNumbers([]int{4}); !errors.Is(err, ErrNumberOutOfRange) {
		t.Fatalf("expected ErrNumberOutOfRange, got %v", err)
	}
}

func TestNewWithoutResults(t *testing.T) {
	lr := New(SourceQuery, record.KindAlbum, "year < 1900", nil)
	if lr.Results == nil || len(lr.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", lr.Results)
	}
}

func TestPath(t *testing.T) {
	want := filepath.Join("data", "crate", "last-results.json")
	if got := Path(filepath.Join("data", "crate", "index.db")); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/spf13/pflag"

	"github.com/aidanlsb/crate/internal/config"
	"github.com/aidanlsb/crate/internal/index"
	"github.com/aidanlsb/crate/internal/query"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	os.Stdout = w

	outputCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		_, copyErr := io.Copy(&buf, r)
		_ = r.Close()
		if copyErr != nil {
			errCh <- copyErr
			return
		}
		outputCh <- buf.String()
	}()

	fn()

	os.Stdout = orig
	_ = w.Close()
	select {
	case err := <-errCh:
		t.Fatalf("io.Copy: %v", err)
		return ""
	case out := <-outputCh:
		return out
	}
}

const testLibrary = `
artists:
  - key: 1
    title: Queen
    genre: [Rock]
    albums:
      - key: 10
        title: A Night at the Opera
        year: 1975
        tracks:
          - key: 100
            title: Bohemian Rhapsody
            userRating: 10
          - key: 101
            title: Love of My Life
          - key: 102
            title: Bohemian Rhapsody (Instrumental)
playlists:
  - key: 4
    title: Road Trip
    items: [101, 100]
`

type testResponse struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *ErrorInfo      `json:"error"`
	Meta  *Meta           `json:"meta"`
}

// setupIndexedLibrary indexes testLibrary into a temp directory and points
// the CLI config at it, in JSON mode.
func setupIndexedLibrary(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	libPath := filepath.Join(dir, "music.yaml")
	if err := os.WriteFile(libPath, []byte(testLibrary), 0o644); err != nil {
		t.Fatalf("write library: %v", err)
	}

	prevCfg := cfg
	prevJSON := jsonOutput
	t.Cleanup(func() {
		cfg = prevCfg
		jsonOutput = prevJSON
		resetQueryFlags()
	})
	cfg = &config.Config{Library: filepath.Join(dir, "index.db")}
	jsonOutput = true

	out := captureStdout(t, func() {
		if err := indexCmd.RunE(indexCmd, []string{libPath}); err != nil {
			t.Fatalf("indexCmd.RunE: %v", err)
		}
	})
	resp := decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("index failed: %s", out)
	}
}

// resetQueryFlags restores every query flag to its default.
func resetQueryFlags() {
	queryCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func decodeResponse(t *testing.T, out string) testResponse {
	t.Helper()
	var resp testResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("expected JSON output, got parse error: %v; out=%s", err, out)
	}
	return resp
}

func runQueryJSON(t *testing.T, args ...string) (testResponse, []string) {
	t.Helper()
	out := captureStdout(t, func() {
		if err := runQuery(queryCmd, args); err != nil {
			t.Fatalf("runQuery: %v", err)
		}
	})
	resp := decodeResponse(t, out)
	if !resp.OK {
		return resp, nil
	}
	var data struct {
		Records []struct {
			Attrs map[string]json.RawMessage `json:"attrs"`
		} `json:"records"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v; out=%s", err, out)
	}
	keys := make([]string, 0, len(data.Records))
	for _, r := range data.Records {
		var key []string
		if err := json.Unmarshal(r.Attrs["key"], &key); err != nil || len(key) != 1 {
			t.Fatalf("decode key: %v; out=%s", err, out)
		}
		keys = append(keys, key[0])
	}
	return resp, keys
}

func TestQueryCommand(t *testing.T) {
	setupIndexedLibrary(t)

	t.Run("rating filter", func(t *testing.T) {
		resp, keys := runQueryJSON(t, "tracks", "rating", ">=", "8")
		if !resp.OK {
			t.Fatalf("expected ok, got error %+v", resp.Error)
		}
		if !reflect.DeepEqual(keys, []string{"100"}) {
			t.Fatalf("keys = %v, want [100]", keys)
		}
		if resp.Meta == nil || resp.Meta.Count != 1 {
			t.Fatalf("expected meta count 1, got %+v", resp.Meta)
		}
	})

	t.Run("instrumental versions hidden by default", func(t *testing.T) {
		_, keys := runQueryJSON(t, "tracks", "title ~ bohemian")
		if !reflect.DeepEqual(keys, []string{"100"}) {
			t.Fatalf("keys = %v, want [100]", keys)
		}

		queryAllowInst = true
		defer func() { queryAllowInst = false }()
		_, keys = runQueryJSON(t, "tracks", "title ~ bohemian")
		if !reflect.DeepEqual(keys, []string{"100", "102"}) {
			t.Fatalf("keys = %v, want [100 102]", keys)
		}
	})

	t.Run("playlist membership", func(t *testing.T) {
		_, keys := runQueryJSON(t, "tracks", "in_playlist = Road Trip")
		if !reflect.DeepEqual(keys, []string{"100", "101"}) {
			t.Fatalf("keys = %v, want [100 101]", keys)
		}
	})

	t.Run("limit", func(t *testing.T) {
		queryLimit = 1
		defer func() { queryLimit = 0 }()
		resp, keys := runQueryJSON(t, "tracks")
		if len(keys) != 1 {
			t.Fatalf("expected 1 record, got %v", keys)
		}
		var data struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.Total != 2 {
			t.Fatalf("total = %d, want 2", data.Total)
		}
	})
}

func TestQueryCommandErrors(t *testing.T) {
	setupIndexedLibrary(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown kind", []string{"songs", "title = x"}, ErrInvalidInput},
		{"unknown key", []string{"tracks", "bogus = 1"}, ErrInvalidFilterKey},
		{"unknown playlist", []string{"tracks", "in_playlist = Nowhere"}, ErrUnknownNamedSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := runQueryJSON(t, tt.args...)
			if resp.OK {
				t.Fatalf("expected error response")
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Fatalf("error = %+v, want code %s", resp.Error, tt.code)
			}
		})
	}
}

func TestQueryCommandMissingIndex(t *testing.T) {
	prevCfg := cfg
	prevJSON := jsonOutput
	t.Cleanup(func() {
		cfg = prevCfg
		jsonOutput = prevJSON
	})
	cfg = &config.Config{Library: filepath.Join(t.TempDir(), "missing.db")}
	jsonOutput = true

	resp, _ := runQueryJSON(t, "tracks", "title = x")
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrDatabaseError {
		t.Fatalf("expected %s, got %+v", ErrDatabaseError, resp.Error)
	}
	if resp.Error.Suggestion == "" {
		t.Fatal("expected a suggestion to run crate index")
	}
}

func TestPlaylistsCommand(t *testing.T) {
	setupIndexedLibrary(t)

	out := captureStdout(t, func() {
		if err := playlistsCmd.RunE(playlistsCmd, nil); err != nil {
			t.Fatalf("playlistsCmd.RunE: %v", err)
		}
	})
	resp := decodeResponse(t, out)
	var list struct {
		Playlists []playlistSummary `json:"playlists"`
	}
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	want := []playlistSummary{{Name: "Road Trip", Members: 2}}
	if !reflect.DeepEqual(list.Playlists, want) {
		t.Fatalf("playlists = %+v, want %+v", list.Playlists, want)
	}

	out = captureStdout(t, func() {
		if err := playlistsCmd.RunE(playlistsCmd, []string{"Road Trip"}); err != nil {
			t.Fatalf("playlistsCmd.RunE: %v", err)
		}
	})
	resp = decodeResponse(t, out)
	var members struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(resp.Data, &members); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !reflect.DeepEqual(members.Keys, []string{"101", "100"}) {
		t.Fatalf("keys = %v, want [101 100]", members.Keys)
	}

	out = captureStdout(t, func() {
		if err := playlistsCmd.RunE(playlistsCmd, []string{"Nowhere"}); err != nil {
			t.Fatalf("playlistsCmd.RunE: %v", err)
		}
	})
	resp = decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrUnknownNamedSet {
		t.Fatalf("expected %s, got %s", ErrUnknownNamedSet, out)
	}
}

func TestIndexCommandRejectsBadLibrary(t *testing.T) {
	prevCfg := cfg
	prevJSON := jsonOutput
	t.Cleanup(func() {
		cfg = prevCfg
		jsonOutput = prevJSON
	})
	dir := t.TempDir()
	cfg = &config.Config{Library: filepath.Join(dir, "index.db")}
	jsonOutput = true

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("movies:\n  - title: No Key\n"), 0o644); err != nil {
		t.Fatalf("write library: %v", err)
	}
	out := captureStdout(t, func() {
		if err := indexCmd.RunE(indexCmd, []string{bad}); err != nil {
			t.Fatalf("indexCmd.RunE: %v", err)
		}
	})
	resp := decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrFileReadError {
		t.Fatalf("expected %s, got %s", ErrFileReadError, out)
	}

	out = captureStdout(t, func() {
		if err := indexCmd.RunE(indexCmd, nil); err != nil {
			t.Fatalf("indexCmd.RunE: %v", err)
		}
	})
	resp = decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrMissingArgument {
		t.Fatalf("expected %s, got %s", ErrMissingArgument, out)
	}
}

func TestBuildIndexErrors(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index", "index.db")

	lock, err := index.AcquireLock(dbPath)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	_, err = buildIndex(context.Background(), dbPath, []string{filepath.Join(dir, "missing.yaml")})
	_ = lock.Release()

	var ie *indexError
	if !errors.As(err, &ie) || ie.code != ErrIndexLocked {
		t.Fatalf("expected %s, got %v", ErrIndexLocked, err)
	}

	_, err = buildIndex(context.Background(), dbPath, []string{filepath.Join(dir, "missing.yaml")})
	if !errors.As(err, &ie) || ie.code != ErrFileReadError {
		t.Fatalf("expected %s, got %v", ErrFileReadError, err)
	}
}

func TestClassifyQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"parse", &query.ParseError{Query: "title ==", Pos: 6, Message: "unexpected operator"}, ErrQueryParse},
		{"eof", &query.UnexpectedEOFError{Query: "title", Expected: []string{"operation"}}, ErrQueryIncomplete},
		{"key", fmt.Errorf("search: %w", &query.InvalidFilterKeyError{Key: "bogus"}), ErrInvalidFilterKey},
		{"named set", &query.UnknownNamedSetError{Name: "Nowhere"}, ErrUnknownNamedSet},
		{"cancelled", &query.CancelledQueryError{Stage: "load track records", Err: errors.New("deadline")}, ErrQueryCancelled},
		{"locked", fmt.Errorf("index: %w", index.ErrIndexLocked), ErrIndexLocked},
		{"other", errors.New("boom"), ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := classifyQueryError(tt.err); code != tt.code {
				t.Errorf("classifyQueryError() = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestQueryErrorDetails(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want map[string]interface{}
	}{
		{"parse", &query.ParseError{Query: "title ==", Pos: 6, Context: "=="}, map[string]interface{}{"position": 6, "near": "=="}},
		{"bad pattern", &query.ParseError{Query: "title regex [", Pos: -1}, map[string]interface{}{"clause": "title regex ["}},
		{"eof", &query.UnexpectedEOFError{Expected: []string{"VALUE"}}, map[string]interface{}{"expected": []string{"VALUE"}}},
		{"named set", &query.UnknownNamedSetError{Name: "Nowhere"}, map[string]interface{}{"name": "Nowhere", "available": []string{}}},
		{"other", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryErrorDetails(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("queryErrorDetails() = %v, want nil", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("queryErrorDetails() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJoinQueryArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"artist", "=", "Queen"}, "artist = Queen"},
		{[]string{"in_playlist = Road Trip", " ", "rating", ">=", "8"}, "in_playlist = Road Trip rating >= 8"},
	}
	for _, tt := range tests {
		if got := joinQueryArgs(tt.args); got != tt.want {
			t.Errorf("joinQueryArgs(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestDedupPolicyFlags(t *testing.T) {
	t.Cleanup(resetQueryFlags)

	got := dedupPolicy(config.DedupConfig{})
	want := query.DefaultDedupPolicy()
	if got != want {
		t.Fatalf("default policy = %+v, want %+v", got, want)
	}

	queryNoRated = true
	querySingles = true
	got = dedupPolicy(config.DedupConfig{})
	if got.PreferRated || got.AllowSingles || !got.PreferMostRecent || !got.Fuzzy {
		t.Fatalf("unexpected policy with overrides: %+v", got)
	}
}

func TestLastCommand(t *testing.T) {
	setupIndexedLibrary(t)

	if _, keys := runQueryJSON(t, "tracks"); !reflect.DeepEqual(keys, []string{"100", "101"}) {
		t.Fatalf("keys = %v, want [100 101]", keys)
	}

	out := captureStdout(t, func() {
		if err := lastCmd.RunE(lastCmd, []string{"2"}); err != nil {
			t.Fatalf("lastCmd.RunE: %v", err)
		}
	})
	resp := decodeResponse(t, out)
	var data struct {
		Kind    string `json:"kind"`
		Numbers []int  `json:"numbers"`
		Records []struct {
			Attrs map[string][]string `json:"attrs"`
		} `json:"records"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v; out=%s", err, out)
	}
	if data.Kind != "track" || !reflect.DeepEqual(data.Numbers, []int{2}) {
		t.Fatalf("unexpected last results header: %s", out)
	}
	if len(data.Records) != 1 || data.Records[0].Attrs["key"][0] != "101" {
		t.Fatalf("expected record 101, got %s", out)
	}

	out = captureStdout(t, func() {
		if err := lastCmd.RunE(lastCmd, []string{"9"}); err != nil {
			t.Fatalf("lastCmd.RunE: %v", err)
		}
	})
	resp = decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrInvalidInput {
		t.Fatalf("expected %s, got %s", ErrInvalidInput, out)
	}
}

func TestConfigSetAndUnset(t *testing.T) {
	prevPath := configPath
	prevJSON := jsonOutput
	t.Cleanup(func() {
		configPath = prevPath
		jsonOutput = prevJSON
	})
	configPath = filepath.Join(t.TempDir(), "config.toml")
	jsonOutput = true

	var data struct {
		Changed  []string          `json:"changed"`
		Settings map[string]string `json:"settings"`
	}
	run := func(c func() error) testResponse {
		t.Helper()
		out := captureStdout(t, func() {
			if err := c(); err != nil {
				t.Fatalf("RunE: %v", err)
			}
		})
		return decodeResponse(t, out)
	}

	resp := run(func() error {
		return configSetCmd.RunE(configSetCmd, []string{"dedup.singles", "true", "query.timeout", "30s"})
	})
	if !resp.OK {
		t.Fatalf("set failed: %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data.Changed, []string{"dedup.singles", "query.timeout"}) {
		t.Errorf("changed = %v", data.Changed)
	}
	if data.Settings["dedup.singles"] != "true" || data.Settings["query.timeout"] != "30s" {
		t.Errorf("settings = %v", data.Settings)
	}

	loaded, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !loaded.Dedup.PenalizeSingles() || loaded.Query.Timeout != "30s" {
		t.Fatalf("config not persisted: %+v", loaded)
	}

	resp = run(func() error { return configUnsetCmd.RunE(configUnsetCmd, []string{"query.timeout"}) })
	if !resp.OK {
		t.Fatalf("unset failed: %+v", resp.Error)
	}
	loaded, err = config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Query.Timeout != "" || !loaded.Dedup.PenalizeSingles() {
		t.Fatalf("unset changed the wrong fields: %+v", loaded)
	}

	resp = run(func() error { return configSetCmd.RunE(configSetCmd, []string{"query.nope", "1"}) })
	if resp.OK || resp.Error.Code != ErrInvalidInput {
		t.Fatalf("expected %s for unknown key, got %+v", ErrInvalidInput, resp)
	}

	resp = run(func() error { return configSetCmd.RunE(configSetCmd, []string{"dedup.fuzzy", "sometimes"}) })
	if resp.OK || resp.Error.Code != ErrInvalidInput {
		t.Fatalf("expected %s for bad value, got %+v", ErrInvalidInput, resp)
	}
}

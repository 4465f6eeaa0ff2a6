// Package testutil provides reusable test utilities for crate integration tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLibrary is a temporary set of library files plus the index and config
// paths the CLI is pointed at.
type TestLibrary struct {
	Dir        string
	IndexPath  string
	ConfigPath string
	t          *testing.T
	files      map[string]string
	order      []string
	config     string
}

// NewTestLibrary creates a new test library builder.
// Call Build() to write the files.
func NewTestLibrary(t *testing.T) *TestLibrary {
	t.Helper()
	return &TestLibrary{
		t:     t,
		files: make(map[string]string),
	}
}

// WithFile adds a YAML library file. Files are indexed in the order added.
func (l *TestLibrary) WithFile(name, yaml string) *TestLibrary {
	if _, exists := l.files[name]; !exists {
		l.order = append(l.order, name)
	}
	l.files[name] = yaml
	return l
}

// WithConfig sets the config.toml content used by every command.
func (l *TestLibrary) WithConfig(toml string) *TestLibrary {
	l.config = toml
	return l
}

// Build writes the library files and config into a temp directory.
func (l *TestLibrary) Build() *TestLibrary {
	l.t.Helper()

	l.Dir = l.t.TempDir()
	l.IndexPath = filepath.Join(l.Dir, "index", "index.db")
	l.ConfigPath = filepath.Join(l.Dir, "config.toml")

	l.writeFile("config.toml", l.config)
	for _, name := range l.order {
		l.writeFile(name, l.files[name])
	}
	return l
}

// Files returns the absolute paths of the library files in index order.
func (l *TestLibrary) Files() []string {
	paths := make([]string, len(l.order))
	for i, name := range l.order {
		paths[i] = filepath.Join(l.Dir, name)
	}
	return paths
}

// Index runs 'crate index' over every library file and requires success.
func (l *TestLibrary) Index() *TestLibrary {
	l.t.Helper()
	l.RunCLI(append([]string{"index"}, l.Files()...)...).MustSucceed(l.t)
	return l
}

func (l *TestLibrary) writeFile(relPath, content string) {
	l.t.Helper()
	fullPath := filepath.Join(l.Dir, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		l.t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		l.t.Fatalf("failed to write file %s: %v", relPath, err)
	}
}

// MusicLibrary returns a small artist/album/track library with one compilation
// and one playlist.
func MusicLibrary() string {
	return `
artists:
  - key: 1
    title: Queen
    albums:
      - key: 10
        title: A Night at the Opera
        year: 1975
        genre: [Rock]
        tracks:
          - key: 100
            title: Bohemian Rhapsody
            userRating: 10
            file: /music/Queen/Opera/11.flac
          - key: 101
            title: Love of My Life
          - key: 102
            title: Bohemian Rhapsody (Instrumental)
      - key: 11
        title: Greatest Hits
        year: 1981
        genre: [Rock, Pop]
        tracks:
          - key: 110
            title: Bohemian Rhapsody
            file: /music/Queen/Hits/01.flac
  - key: 2
    title: Various Artists
    albums:
      - key: 20
        title: Now 1
        year: 1983
        genre: [Pop]
        tracks:
          - key: 200
            title: Radio Ga Ga
            originalTitle: Queen
playlists:
  - key: 9
    title: Road Trip
    items: [100, 200]
`
}

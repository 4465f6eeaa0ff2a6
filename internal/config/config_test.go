package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFrom(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `library = "/data/crate.db"

[query]
allow_instrumental = true
escape = ""
timeout = "45s"
exclude_rated_dupes = true
strict_keys = false

[dedup]
latest = false
singles = true

[ui]
accent = "39"
code_theme = "dracula"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LibraryPath() != "/data/crate.db" {
		t.Errorf("expected library '/data/crate.db', got %q", cfg.LibraryPath())
	}
	if !cfg.Query.AllowInstrumental {
		t.Error("expected query.allow_instrumental=true")
	}
	if cfg.Query.EscapeChars() != "" {
		t.Errorf("expected empty escape set, got %q", cfg.Query.EscapeChars())
	}
	if d, _ := cfg.Query.QueryTimeout(); d != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", d)
	}
	if !cfg.Query.ExcludeRatedDupes {
		t.Error("expected query.exclude_rated_dupes=true")
	}
	if cfg.Query.ValidateKeys() {
		t.Error("expected key validation to be off")
	}
	if !cfg.Dedup.PreferRated() {
		t.Error("expected dedup.rated to default to true")
	}
	if cfg.Dedup.PreferLatest() {
		t.Error("expected dedup.latest=false")
	}
	if !cfg.Dedup.PenalizeSingles() {
		t.Error("expected dedup.singles=true")
	}
	if !cfg.Dedup.FuzzyTitles() {
		t.Error("expected dedup.fuzzy to default to true")
	}
	if cfg.UI.Accent != "39" {
		t.Errorf("expected ui.accent '39', got %q", cfg.UI.Accent)
	}
	if cfg.UI.CodeTheme != "dracula" {
		t.Errorf("expected ui.code_theme 'dracula', got %q", cfg.UI.CodeTheme)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	if cfg.Query.EscapeChars() != DefaultEscape {
		t.Errorf("expected default escape %q, got %q", DefaultEscape, cfg.Query.EscapeChars())
	}
	if d, err := cfg.Query.QueryTimeout(); err != nil || d != 0 {
		t.Errorf("expected no timeout, got %v (%v)", d, err)
	}
	if !cfg.Query.ValidateKeys() {
		t.Error("expected key validation on by default")
	}
	if !cfg.Dedup.PreferRated() || !cfg.Dedup.PreferLatest() || !cfg.Dedup.FuzzyTitles() {
		t.Error("expected rated, latest and fuzzy dedup on by default")
	}
	if cfg.Dedup.PenalizeSingles() {
		t.Error("expected singles penalty off by default")
	}
	if filepath.Base(cfg.LibraryPath()) != "index.db" && filepath.Base(cfg.LibraryPath()) != "crate.db" {
		t.Errorf("unexpected default library path %q", cfg.LibraryPath())
	}
}

func TestLibraryPathExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := &Config{Library: "~/music/crate.db"}
	want := filepath.Join(home, "music", "crate.db")
	if cfg.LibraryPath() != want {
		t.Errorf("expected %q, got %q", want, cfg.LibraryPath())
	}
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "invalid toml", content: `this is not valid toml {{{{`, wantErr: "failed to parse config"},
		{name: "unknown key", content: "[query]\nallow_inst = true\n", wantErr: "unknown config keys"},
		{name: "bad timeout", content: "[query]\ntimeout = \"soon\"\n", wantErr: "invalid query.timeout"},
		{name: "negative timeout", content: "[query]\ntimeout = \"-1s\"\n", wantErr: "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			_, err := LoadFrom(configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadPathMissingFile(t *testing.T) {
	cfg, err := LoadPath(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Library != "" {
		t.Errorf("expected empty config, got library %q", cfg.Library)
	}
}

func TestCreateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate", "config.toml")

	got, err := CreateDefault(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Errorf("expected %q, got %q", path, got)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
	if cfg.Query.EscapeChars() != DefaultEscape {
		t.Errorf("expected default escape, got %q", cfg.Query.EscapeChars())
	}

	if err := os.WriteFile(path, []byte("library = \"/kept.db\"\n"), 0644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}
	if _, err := CreateDefault(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err = LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Library != "/kept.db" {
		t.Error("CreateDefault must not overwrite an existing config")
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("/explicit/config.toml"); got != "/explicit/config.toml" {
		t.Errorf("expected explicit path, got %q", got)
	}
	if got := ResolveConfigPath("  "); got != DefaultPath() {
		t.Errorf("expected default path, got %q", got)
	}
}

func TestXDGPath(t *testing.T) {
	path, err := XDGPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(path) != "config.toml" {
		t.Errorf("expected config.toml, got %s", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "crate" {
		t.Errorf("expected crate config directory, got %s", filepath.Dir(path))
	}
}

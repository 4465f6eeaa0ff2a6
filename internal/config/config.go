// Package config handles global crate configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global crate configuration.
type Config struct {
	// Library is the path of the SQLite library index.
	Library string `toml:"library"`

	// Query holds query-time defaults.
	Query QueryConfig `toml:"query"`

	// Dedup holds the default duplicate-removal policy for --unique.
	Dedup DedupConfig `toml:"dedup"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`
}

// QueryConfig holds query-time defaults.
type QueryConfig struct {
	// AllowInstrumental disables the default instrumental-title exclusion.
	AllowInstrumental bool `toml:"allow_instrumental"`

	// Escape lists regex metacharacters matched literally in like and regex values.
	// Unset means "()"; an empty string escapes nothing.
	Escape *string `toml:"escape"`

	// Timeout bounds a single query, e.g. "30s". Empty means no limit.
	Timeout string `toml:"timeout"`

	// ExcludeRatedDupes drops unrated tracks that duplicate a rated one by the same artist.
	ExcludeRatedDupes bool `toml:"exclude_rated_dupes"`

	// StrictKeys rejects filter keys the library has never seen. Defaults to true.
	StrictKeys *bool `toml:"strict_keys"`
}

// DedupConfig holds the default duplicate-removal policy. Unset flags take
// their defaults: rated, latest and fuzzy on, singles off.
type DedupConfig struct {
	Rated   *bool `toml:"rated"`
	Latest  *bool `toml:"latest"`
	Singles *bool `toml:"singles"`
	Fuzzy   *bool `toml:"fuzzy"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered markdown code blocks.
	// Example values: "monokai", "dracula", "github", "nord".
	CodeTheme string `toml:"code_theme"`
}

// DefaultEscape is the escape set used when none is configured.
const DefaultEscape = "()"

// EscapeChars returns the configured escape set.
func (q QueryConfig) EscapeChars() string {
	if q.Escape == nil {
		return DefaultEscape
	}
	return *q.Escape
}

// QueryTimeout parses the configured timeout. Zero means no limit.
func (q QueryConfig) QueryTimeout() (time.Duration, error) {
	if strings.TrimSpace(q.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(q.Timeout))
	if err != nil {
		return 0, fmt.Errorf("invalid query.timeout %q: %w", q.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid query.timeout %q: must not be negative", q.Timeout)
	}
	return d, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// ValidateKeys reports whether filter keys are checked against the library schema.
func (q QueryConfig) ValidateKeys() bool { return boolOr(q.StrictKeys, true) }

// PreferRated reports whether rated tracks survive deduplication.
func (d DedupConfig) PreferRated() bool { return boolOr(d.Rated, true) }

// PreferLatest reports whether later releases survive deduplication.
func (d DedupConfig) PreferLatest() bool { return boolOr(d.Latest, true) }

// PenalizeSingles reports whether tracks filed under a singles folder lose ties.
func (d DedupConfig) PenalizeSingles() bool { return boolOr(d.Singles, false) }

// FuzzyTitles reports whether near-duplicate titles are merged.
func (d DedupConfig) FuzzyTitles() bool { return boolOr(d.Fuzzy, true) }

// LibraryPath returns the configured index path, or the default location.
func (c *Config) LibraryPath() string {
	if p := strings.TrimSpace(c.Library); p != "" {
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				return filepath.Join(home, p[2:])
			}
		}
		return p
	}
	return DefaultLibraryPath()
}

// DefaultLibraryPath returns ~/.local/share/crate/index.db, or a path in the
// working directory when the home directory is unknown.
func DefaultLibraryPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "crate", "index.db")
	}
	return filepath.Join(".", "crate.db")
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	return LoadPath(DefaultPath())
}

// LoadPath loads the configuration at path, returning a default config if
// the file doesn't exist.
func LoadPath(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if _, err := config.Query.QueryTimeout(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &config, nil
}

// ResolveConfigPath resolves the effective config path from an optional override.
func ResolveConfigPath(explicitConfigPath string) string {
	if strings.TrimSpace(explicitConfigPath) != "" {
		return explicitConfigPath
	}
	return DefaultPath()
}

// DefaultPath returns the default config file path.
// Checks ~/.config/crate/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if xdgPath, err := XDGPath(); err == nil {
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "crate", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// XDGPath returns the XDG-style config path (~/.config/crate/config.toml).
func XDGPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "crate", "config.toml"), nil
}

const defaultConfig = `# crate configuration

# SQLite library index written by "crate index"
# library = "~/.local/share/crate/index.db"

[query]
# Keep instrumental versions in title-filtered results
# allow_instrumental = false
#
# Regex metacharacters matched literally in like/regex values
# escape = "()"
#
# Abort queries that run longer than this
# timeout = "30s"
#
# Drop unrated tracks duplicating a rated track by the same artist
# exclude_rated_dupes = false
#
# Reject filter keys the library has never seen
# strict_keys = true

[dedup]
# Survivor preferences for --unique
# rated = true
# latest = true
# singles = false
# fuzzy = true

# Optional UI accent color for headers in terminal output.
# Supports ANSI color codes (0-255) or hex (#RRGGBB).
# [ui]
# accent = "39"
# code_theme = "monokai"
`

// CreateDefault creates a default config file at path if it doesn't exist.
func CreateDefault(path string) (string, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil // Already exists
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

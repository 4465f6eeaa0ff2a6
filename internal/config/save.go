package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/crate/internal/atomicfile"
)

type persistedConfig struct {
	Library *string              `toml:"library,omitempty"`
	Query   *persistedQuery      `toml:"query,omitempty"`
	Dedup   *DedupConfig         `toml:"dedup,omitempty"`
	UI      *persistedUISettings `toml:"ui,omitempty"`
}

type persistedQuery struct {
	AllowInstrumental bool    `toml:"allow_instrumental,omitempty"`
	Escape            *string `toml:"escape"`
	Timeout           *string `toml:"timeout,omitempty"`
	ExcludeRatedDupes bool    `toml:"exclude_rated_dupes,omitempty"`
	StrictKeys        *bool   `toml:"strict_keys"`
}

type persistedUISettings struct {
	Accent    *string `toml:"accent,omitempty"`
	CodeTheme *string `toml:"code_theme,omitempty"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Save writes the global config to the default config path.
func Save(cfg *Config) error {
	return SaveTo(DefaultPath(), cfg)
}

// SaveTo writes the global config to a specific path atomically.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	out := persistedConfig{
		Library: nonEmptyPtr(cfg.Library),
	}

	q := persistedQuery{
		AllowInstrumental: cfg.Query.AllowInstrumental,
		Escape:            cfg.Query.Escape,
		Timeout:           nonEmptyPtr(cfg.Query.Timeout),
		ExcludeRatedDupes: cfg.Query.ExcludeRatedDupes,
		StrictKeys:        cfg.Query.StrictKeys,
	}
	if q != (persistedQuery{}) {
		out.Query = &q
	}

	if d := cfg.Dedup; d.Rated != nil || d.Latest != nil || d.Singles != nil || d.Fuzzy != nil {
		out.Dedup = &d
	}

	accent := nonEmptyPtr(cfg.UI.Accent)
	codeTheme := nonEmptyPtr(cfg.UI.CodeTheme)
	if accent != nil || codeTheme != nil {
		out.UI = &persistedUISettings{
			Accent:    accent,
			CodeTheme: codeTheme,
		}
	}

	err := atomicfile.Write(path, 0o644, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(out)
	})
	if err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingDefaults(t *testing.T) {
	cfg := &Config{}
	want := map[string]string{
		"query.allow_instrumental": "false",
		"query.escape":             "()",
		"query.timeout":            "0s",
		"query.strict_keys":        "true",
		"dedup.rated":              "true",
		"dedup.latest":             "true",
		"dedup.singles":            "false",
		"dedup.fuzzy":              "true",
		"ui.accent":                "",
	}
	for key, value := range want {
		s, err := LookupSetting(key)
		require.NoError(t, err, key)
		assert.Equal(t, value, s.Get(cfg), key)
	}
}

func TestSettingSetAndUnset(t *testing.T) {
	cfg := &Config{}

	s, err := LookupSetting("Dedup.Singles")
	require.NoError(t, err)
	require.NoError(t, s.Set(cfg, "true"))
	require.NotNil(t, cfg.Dedup.Singles)
	assert.True(t, cfg.Dedup.PenalizeSingles())
	s.Unset(cfg)
	assert.Nil(t, cfg.Dedup.Singles)

	esc, err := LookupSetting("query.escape")
	require.NoError(t, err)
	require.NoError(t, esc.Set(cfg, ""))
	assert.Equal(t, "", cfg.Query.EscapeChars())
	esc.Unset(cfg)
	assert.Equal(t, DefaultEscape, cfg.Query.EscapeChars())
}

func TestSettingRejectsBadValues(t *testing.T) {
	cfg := &Config{Query: QueryConfig{Timeout: "5s"}}

	timeout, err := LookupSetting("query.timeout")
	require.NoError(t, err)
	assert.Error(t, timeout.Set(cfg, "soon"))
	assert.Equal(t, "5s", cfg.Query.Timeout)

	strict, err := LookupSetting("query.strict_keys")
	require.NoError(t, err)
	assert.Error(t, strict.Set(cfg, "maybe"))
	assert.Nil(t, cfg.Query.StrictKeys)

	lib, err := LookupSetting("library")
	require.NoError(t, err)
	assert.Error(t, lib.Set(cfg, "  "))

	_, err = LookupSetting("query.nope")
	assert.ErrorContains(t, err, "unknown config key")
}

func TestSettingsRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := &Config{}
	for key, value := range map[string]string{
		"query.strict_keys": "false",
		"dedup.fuzzy":       "false",
		"ui.code_theme":     "dracula",
	} {
		s, err := LookupSetting(key)
		require.NoError(t, err)
		require.NoError(t, s.Set(cfg, value))
	}
	require.NoError(t, SaveTo(path, cfg))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.False(t, loaded.Query.ValidateKeys())
	assert.False(t, loaded.Dedup.FuzzyTitles())
	assert.Equal(t, "dracula", loaded.UI.CodeTheme)
}

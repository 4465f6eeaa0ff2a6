package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Setting is one dotted config key editable from the command line.
type Setting struct {
	Key   string
	Usage string
	get   func(*Config) string
	set   func(*Config, string) error
	unset func(*Config)
}

// Get returns the effective value, with defaults applied.
func (s Setting) Get(c *Config) string { return s.get(c) }

// Set parses value and stores it on c. c is left unchanged on error.
func (s Setting) Set(c *Config, value string) error {
	if err := s.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", s.Key, err)
	}
	return nil
}

// Unset restores the default.
func (s Setting) Unset(c *Config) { s.unset(c) }

func parseBool(value string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("expected true or false, got %q", value)
	}
	return b, nil
}

func requireValue(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("value cannot be empty; use unset to clear it")
	}
	return v, nil
}

func boolSetting(key, usage string, field func(*Config) **bool, def bool) Setting {
	return Setting{
		Key:   key,
		Usage: usage,
		get:   func(c *Config) string { return strconv.FormatBool(boolOr(*field(c), def)) },
		set: func(c *Config, value string) error {
			b, err := parseBool(value)
			if err != nil {
				return err
			}
			*field(c) = &b
			return nil
		},
		unset: func(c *Config) { *field(c) = nil },
	}
}

func stringSetting(key, usage string, field func(*Config) *string, get func(*Config) string, check func(string) error) Setting {
	return Setting{
		Key:   key,
		Usage: usage,
		get:   get,
		set: func(c *Config, value string) error {
			v, err := requireValue(value)
			if err != nil {
				return err
			}
			if check != nil {
				if err := check(v); err != nil {
					return err
				}
			}
			*field(c) = v
			return nil
		},
		unset: func(c *Config) { *field(c) = "" },
	}
}

var settings = []Setting{
	stringSetting("library", "Path of the library index",
		func(c *Config) *string { return &c.Library },
		func(c *Config) string { return c.LibraryPath() }, nil),
	{
		Key:   "query.allow_instrumental",
		Usage: "Keep instrumental versions in track results",
		get:   func(c *Config) string { return strconv.FormatBool(c.Query.AllowInstrumental) },
		set: func(c *Config, value string) error {
			b, err := parseBool(value)
			if err != nil {
				return err
			}
			c.Query.AllowInstrumental = b
			return nil
		},
		unset: func(c *Config) { c.Query.AllowInstrumental = false },
	},
	{
		Key:   "query.escape",
		Usage: "Regex metacharacters matched literally in like and regex values (may be empty)",
		get:   func(c *Config) string { return c.Query.EscapeChars() },
		set: func(c *Config, value string) error {
			c.Query.Escape = &value
			return nil
		},
		unset: func(c *Config) { c.Query.Escape = nil },
	},
	stringSetting("query.timeout", "Per-query time limit, e.g. 30s",
		func(c *Config) *string { return &c.Query.Timeout },
		func(c *Config) string {
			d, _ := c.Query.QueryTimeout()
			return d.String()
		},
		func(v string) error {
			_, err := QueryConfig{Timeout: v}.QueryTimeout()
			return err
		}),
	{
		Key:   "query.exclude_rated_dupes",
		Usage: "Drop unrated tracks that duplicate a rated one",
		get:   func(c *Config) string { return strconv.FormatBool(c.Query.ExcludeRatedDupes) },
		set: func(c *Config, value string) error {
			b, err := parseBool(value)
			if err != nil {
				return err
			}
			c.Query.ExcludeRatedDupes = b
			return nil
		},
		unset: func(c *Config) { c.Query.ExcludeRatedDupes = false },
	},
	boolSetting("query.strict_keys", "Reject filter keys the library has never seen",
		func(c *Config) **bool { return &c.Query.StrictKeys }, true),
	boolSetting("dedup.rated", "Rated tracks survive --unique",
		func(c *Config) **bool { return &c.Dedup.Rated }, true),
	boolSetting("dedup.latest", "Later releases survive --unique",
		func(c *Config) **bool { return &c.Dedup.Latest }, true),
	boolSetting("dedup.singles", "Tracks filed under singles lose --unique ties",
		func(c *Config) **bool { return &c.Dedup.Singles }, false),
	boolSetting("dedup.fuzzy", "Merge near-duplicate titles in --unique",
		func(c *Config) **bool { return &c.Dedup.Fuzzy }, true),
	stringSetting("ui.accent", "Accent color, ANSI 0-255 or #RRGGBB",
		func(c *Config) *string { return &c.UI.Accent },
		func(c *Config) string { return strings.TrimSpace(c.UI.Accent) }, nil),
	stringSetting("ui.code_theme", "Syntax theme for code blocks in rendered docs",
		func(c *Config) *string { return &c.UI.CodeTheme },
		func(c *Config) string { return strings.TrimSpace(c.UI.CodeTheme) }, nil),
}

// Settings lists every editable key in display order.
func Settings() []Setting {
	return append([]Setting(nil), settings...)
}

// LookupSetting finds a setting by its dotted key.
func LookupSetting(key string) (Setting, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range settings {
		if s.Key == key {
			return s, nil
		}
	}
	return Setting{}, fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(SettingKeys(), ", "))
}

// SettingKeys returns the sorted list of editable keys.
func SettingKeys() []string {
	keys := make([]string, len(settings))
	for i, s := range settings {
		keys[i] = s.Key
	}
	sort.Strings(keys)
	return keys
}

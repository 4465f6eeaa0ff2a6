package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette: default foreground for primary text, one accent for headers and
// titles, gray for secondary text. Status is shown with symbols, not color.
const (
	defaultAccent = "#A78BFA"
	mutedColor    = "#6C7086"
)

var (
	// Accent highlights headers and titles.
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent))

	// AccentBold is Accent in bold.
	AccentBold = Accent.Bold(true)

	// Muted is for hints, row numbers, keys and parent context.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(mutedColor))

	// Bold is for emphasis.
	Bold = lipgloss.NewStyle().Bold(true)

	accentColor = defaultAccent
)

// ConfigureTheme applies the [ui] accent setting. Empty, "none", "off" and
// "default" select the built-in accent.
func ConfigureTheme(accent string) {
	color, ok := normalizeAccentColor(accent)
	if !ok {
		color = defaultAccent
	}
	accentColor = color
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	AccentBold = Accent.Bold(true)
}

// normalizeAccentColor accepts an ANSI code ("0"-"255") or a hex color,
// expanding "#abc" to "#aabbcc".
func normalizeAccentColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "off", "default":
		return "", false
	}

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		hex = strings.ToLower(hex)
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return "", false
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return "", false
		}
		return "#" + hex, true
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 255 {
		return "", false
	}
	return strconv.Itoa(n), true
}

const (
	symbolSuccess = "✓"
	symbolError   = "✗"
	symbolWarning = "⚠"
)

// Successf formats a message prefixed with a check mark.
func Successf(format string, args ...interface{}) string {
	return symbolSuccess + " " + fmt.Sprintf(format, args...)
}

// Error prefixes msg with a cross.
func Error(msg string) string {
	return symbolError + " " + msg
}

// Warning prefixes msg with a warning sign.
func Warning(msg string) string {
	return symbolWarning + " " + msg
}

// Header renders a section title, such as a playlist name.
func Header(msg string) string {
	return AccentBold.Render(msg)
}

func Hint(msg string) string {
	return Muted.Render(msg)
}

// Count renders "(1 track)" or "(3 tracks)".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("(%d %s)", n, singular)
	}
	return fmt.Sprintf("(%d %s)", n, plural)
}

// Pluralize appends "s" unless count is one.
func Pluralize(singular string, count int) string {
	if count == 1 {
		return singular
	}
	return singular + "s"
}

package ui

import (
	"strings"

	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
)

// markdownMargin indents rendered markdown from the left edge.
const markdownMargin = 2

const defaultCodeTheme = "monokai"

var markdownCodeTheme = defaultCodeTheme

// ConfigureMarkdownCodeTheme sets the Chroma theme used for code blocks in
// 'crate syntax'. Unknown themes fall back to monokai.
func ConfigureMarkdownCodeTheme(theme string) {
	name := strings.ToLower(strings.TrimSpace(theme))
	if _, ok := chromastyles.Registry[name]; !ok {
		name = defaultCodeTheme
	}
	markdownCodeTheme = name
}

// RenderMarkdown renders content for a terminal width columns wide.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle()),
		glamour.WithWordWrap(width-markdownMargin),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// markdownStyle is glamour's dark style with the crate accent on headings,
// underlined top-level headings and the configured code theme.
func markdownStyle() ansi.StyleConfig {
	style := glamourstyles.DarkStyleConfig

	style.Document.Margin = uintPtr(markdownMargin)
	style.Heading.Color = stringPtr(accentColor)
	style.H1.StylePrimitive = ansi.StylePrimitive{Prefix: "# ", Bold: boolPtr(true), Underline: boolPtr(true)}
	style.H2.StylePrimitive = ansi.StylePrimitive{Prefix: "## ", Underline: boolPtr(true)}
	style.Code.Color = stringPtr("203")
	style.Code.BackgroundColor = nil
	style.CodeBlock.Theme = markdownCodeTheme
	style.CodeBlock.Margin = uintPtr(markdownMargin)
	return style
}

func boolPtr(v bool) *bool { return &v }

func stringPtr(v string) *string { return &v }

func uintPtr(v uint) *uint { return &v }

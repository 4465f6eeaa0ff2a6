// Package namematch decides when two track or album titles name the same work.
//
// Titles are compared after Unicode normalization and case folding. Two
// titles are near-duplicates when they agree once version qualifiers such as
// "(Japanese Version)" or "[Inst.]" are removed, when one is the other plus a
// parenthetical, when a romanized alternate title matches, or when their
// transliterated slugs agree.
package namematch

import (
	"regexp"
	"strings"
	"unicode"

	goslug "github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Matcher is the default title matcher. The zero value is ready to use.
type Matcher struct{}

// New returns a Matcher.
func New() Matcher {
	return Matcher{}
}

// Fold returns the grouping key for a title: NFKC-normalized, case-folded,
// with whitespace runs collapsed.
func (Matcher) Fold(text string) string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}

var (
	// qualifier matches a trailing version or language tag, bracketed or after a dash.
	qualifier = regexp.MustCompile(`(?i)\s*(?:[(\[]\s*|-\s+)(?:(?:japanese|jp|chinese|mandarin|cantonese|korean|english|spanish)\s+(?:ver\.?|version)|inst\.?|instrumental|off vocal|remaster(?:ed)?(?:\s+\d{4})?|\d{4}\s+remaster(?:ed)?|single version|album version|radio edit)\s*[)\]]?\s*$`)

	// parenthetical matches a trailing bracketed part.
	parenthetical = regexp.MustCompile(`^(.*?)\s*[(\[]([^()\[\]]*)[)\]]\s*$`)
)

// stripQualifiers removes every trailing version qualifier from a folded title.
func stripQualifiers(s string) string {
	for {
		stripped := qualifier.ReplaceAllString(s, "")
		if stripped == s {
			return strings.TrimSpace(s)
		}
		s = stripped
	}
}

// NearDuplicate reports whether a and b are variants of the same title.
func (m Matcher) NearDuplicate(a, b string) bool {
	fa, fb := m.Fold(a), m.Fold(b)
	if fa == fb {
		return true
	}
	sa, sb := stripQualifiers(fa), stripQualifiers(fb)
	if sa == "" || sb == "" {
		return false
	}
	if sa == sb {
		return true
	}

	na, nb := names(sa), names(sb)
	for _, x := range na {
		for _, y := range nb {
			if x == y {
				return true
			}
		}
	}

	slugA, slugB := goslug.Make(sa), goslug.Make(sb)
	return slugA != "" && slugA == slugB
}

// names returns the forms a stripped title may be known by: the whole title,
// the part before a trailing parenthetical, and the parenthetical itself when
// it is written in a different script than the main title (a romanization or
// translation).
func names(s string) []string {
	out := []string{s}
	sub := parenthetical.FindStringSubmatch(s)
	if sub == nil {
		return out
	}
	main, alt := strings.TrimSpace(sub[1]), strings.TrimSpace(sub[2])
	if main != "" {
		out = append(out, main)
	}
	if alt != "" && main != "" && script(main) != script(alt) {
		out = append(out, alt)
	}
	return out
}

type scriptClass uint8

const (
	scriptNone scriptClass = iota
	scriptLatin
	scriptOther
)

// script classifies text by its letters: Latin, other, or none when it has no letters.
func script(s string) scriptClass {
	class := scriptNone
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.Is(unicode.Latin, r) {
			return scriptOther
		}
		class = scriptLatin
	}
	return class
}

// Package shellquote renders copy-pasteable crate command lines for hints.
package shellquote

import "strings"

// shellSpecial covers word splitting, globbing, redirection and the query
// comparison operators (<, >, ~, !).
const shellSpecial = " \t\n#[]()|!\"'<>~&;*?$`\\{}"

// Quote wraps s in single quotes. An embedded quote closes the string,
// emits an escaped quote and reopens it.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' {
			b.WriteString(`'\''`)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// Arg returns s as a single shell word.
func Arg(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, shellSpecial) {
		return Quote(s)
	}
	return s
}

// Command joins a crate invocation, quoting each argument as needed.
func Command(args ...string) string {
	words := make([]string, 0, len(args)+1)
	words = append(words, "crate")
	for _, a := range args {
		words = append(words, Arg(a))
	}
	return strings.Join(words, " ")
}

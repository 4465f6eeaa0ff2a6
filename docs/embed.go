package docs

import _ "embed"

// Syntax is the query-language reference shown by "crate syntax".
//
//go:embed syntax.md
var Syntax string

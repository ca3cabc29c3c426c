// Package symbol finds struct, class and function definitions by scanning
// source text directly. It is a heuristic fast path: matching is regex and
// brace counting, not parsing.
package symbol

import (
	"regexp"
	"strings"
)

// Kind is the construct a symbol query names.
type Kind string

const (
	KindStruct Kind = "struct"
	KindClass  Kind = "class"
	KindDef    Kind = "def"
)

// Query is a recognised symbol query.
type Query struct {
	Kind Kind
	Name string
}

func (q Query) String() string { return string(q.Kind) + " " + q.Name }

// patterns are tried in order; the first match wins. A bare identifier
// matches none of them and is left to similarity search.
var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindStruct, regexp.MustCompile(`^struct\s+([A-Za-z_]\w*)\b`)},
	{KindClass, regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\b`)},
	{KindDef, regexp.MustCompile(`^def\s+([A-Za-z_]\w*)\s*(?:\(|$)`)},
}

// Detect reports whether query names a code construct.
func Detect(query string) (Query, bool) {
	query = strings.TrimSpace(query)
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(query); m != nil {
			return Query{Kind: p.kind, Name: m[1]}, true
		}
	}
	return Query{}, false
}

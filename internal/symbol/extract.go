package symbol

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Defaults for ExtractBlock.
const (
	DefaultLookback      = 64
	DefaultFallbackLines = 40
)

// ExtractBlock returns the brace-delimited block declared by the first
// "<kind> <name>" in text. Forward declarations (a ';' before any '{') are
// skipped. The block text starts at the declaring line, but no more than
// lookback bytes before the keyword, and ends at the brace that closes it.
// A declaration line ending in ':' (a Python class) takes the indented lines
// that follow it instead of searching for a brace.
// When no declaration has a body, up to fallback lines starting at the first
// match are returned. An unbalanced block is returned up to end of text.
func ExtractBlock(text string, kind Kind, name string, lookback, fallback int) (string, bool) {
	if lookback < 0 {
		lookback = DefaultLookback
	}
	if fallback <= 0 {
		fallback = DefaultFallbackLines
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(string(kind)) + `\s+` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return "", false
	}
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return "", false
	}

	for _, loc := range locs {
		if opensSuite(text, loc[1]) {
			return indentedBlock(splitLines(text[declStart(text, loc[0], lookback):]), 0), true
		}
		open := bodyStart(text, loc[1])
		if open < 0 {
			continue
		}
		start := declStart(text, loc[0], lookback)
		end := matchBrace(text, open)
		if end < 0 {
			return strings.TrimSpace(text[start:]), true
		}
		return text[start : end+1], true
	}

	start := declStart(text, locs[0][0], lookback)
	return firstLines(text[start:], fallback), true
}

// opensSuite reports whether the line containing from ends in ':' with no
// brace after from.
func opensSuite(text string, from int) bool {
	rest := text[from:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	return strings.HasSuffix(rest, ":") && !strings.Contains(rest, "{")
}

// bodyStart returns the index of the '{' opening the declaration that ends at
// from, or -1 if a ';' or end of text comes first.
func bodyStart(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '{':
			return i
		case ';':
			return -1
		}
	}
	return -1
}

// declStart returns the start of the line containing at, clamped to
// lookback bytes before it.
func declStart(text string, at, lookback int) int {
	lineStart := strings.LastIndexByte(text[:at], '\n') + 1
	return max(lineStart, at-lookback)
}

// matchBrace returns the index of the brace that closes the one at open, or
// -1 if text ends first.
func matchBrace(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func firstLines(text string, n int) string {
	lines := strings.SplitN(text, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// ExtractDef returns the first "def <name>(" line, ignoring indentation, plus
// the indented lines that follow it. It stops at the next line starting in
// column zero. Blank lines inside the body are kept; trailing ones are not.
// CRLF line endings are normalised to '\n'.
func ExtractDef(text, name string) (string, bool) {
	re, err := regexp.Compile(`^\s*def\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	if err != nil {
		return "", false
	}
	lines := splitLines(text)
	for i, line := range lines {
		if re.MatchString(line) {
			return indentedBlock(lines, i), true
		}
	}
	return "", false
}

// splitLines splits text on '\n' and drops one trailing '\r' per line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// indentedBlock joins lines[i] with the blank or indented lines after it,
// minus trailing blank lines.
func indentedBlock(lines []string, i int) string {
	end := i + 1
	for end < len(lines) && (strings.TrimSpace(lines[end]) == "" || isIndented(lines[end])) {
		end++
	}
	for end > i+1 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[i:end], "\n")
}

func isIndented(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	return unicode.IsSpace(r)
}

// Extract dispatches on the query kind.
func Extract(text string, q Query, lookback, fallback int) (string, bool) {
	if q.Kind == KindDef {
		return ExtractDef(text, q.Name)
	}
	return ExtractBlock(text, q.Kind, q.Name, lookback, fallback)
}

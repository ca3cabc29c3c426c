// Package snippet cuts bounded, readable excerpts out of matched documents.
package snippet

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Defaults used by Default.
const (
	DefaultWindow = 120
	DefaultMaxLen = 400
)

const ellipsis = "..."

// Default is Extract with the default window and length.
func Default(doc, query string) string {
	return Extract(doc, query, DefaultWindow, DefaultMaxLen)
}

// Extract returns the text around the first case-insensitive occurrence of
// query in doc, with up to window characters on each side. Clipped ends are
// marked with "...". When query does not occur, doc is cut to maxLen
// characters at the last line break that fits and marked if shortened.
func Extract(doc, query string, window, maxLen int) string {
	if window < 0 {
		window = DefaultWindow
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	if loc := find(doc, query); loc != nil {
		start := backRunes(doc, loc[0], window)
		end := forwardRunes(doc, loc[1], window)
		out := strings.TrimSpace(doc[start:end])
		if start > 0 {
			out = ellipsis + out
		}
		if end < len(doc) {
			out += ellipsis
		}
		return out
	}

	cut := forwardRunes(doc, 0, maxLen)
	if cut >= len(doc) {
		return strings.TrimSpace(doc)
	}
	head := doc[:cut]
	if nl := strings.LastIndexByte(head, '\n'); nl > 0 {
		return strings.TrimRight(head[:nl], " \t\r\n") + "\n" + ellipsis
	}
	return strings.TrimRight(head, " \t") + ellipsis
}

// find returns the byte span of the first case-insensitive match, or nil.
func find(doc, query string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(query))
	if err != nil {
		return nil
	}
	return re.FindStringIndex(doc)
}

// backRunes steps n characters back from byte offset i.
func backRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// forwardRunes steps n characters forward from byte offset i.
func forwardRunes(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

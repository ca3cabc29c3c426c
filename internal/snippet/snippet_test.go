package snippet

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Window(t *testing.T) {
	got := Extract("xxxx TARGET yyyy", "TARGET", 2, DefaultMaxLen)
	assert.Equal(t, "...x TARGET y...", got)
}

func TestExtract_WindowWithinBounds(t *testing.T) {
	assert.Equal(t, "a TARGET b", Extract("a TARGET b", "TARGET", 5, DefaultMaxLen))
	assert.Equal(t, "TARGET b...", Extract("TARGET bcdef", "TARGET", 2, DefaultMaxLen))
	assert.Equal(t, "...f TARGET", Extract("abcdef TARGET", "TARGET", 2, DefaultMaxLen))
}

func TestExtract_CaseInsensitive(t *testing.T) {
	got := Extract("func NewLinkedList() {}", "linkedlist", 3, DefaultMaxLen)
	assert.Equal(t, "...NewLinkedList()...", got)
}

func TestExtract_FirstOccurrence(t *testing.T) {
	doc := "one foo two foo three"
	assert.Equal(t, "...e foo t...", Extract(doc, "foo", 2, DefaultMaxLen))
}

func TestExtract_MultibyteWindow(t *testing.T) {
	got := Extract("ééé TARGET ééé", "target", 2, DefaultMaxLen)
	assert.Equal(t, "...é TARGET é...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestExtract_NotFoundShortDoc(t *testing.T) {
	assert.Equal(t, "short doc", Extract("  short doc\n", "missing", 10, 400))
}

func TestExtract_NotFoundCutsAtNewline(t *testing.T) {
	doc := "line one\nline two\nline three"
	got := Extract(doc, "missing", 10, 15)
	assert.Equal(t, "line one\n...", got)
	assert.False(t, strings.Contains(got, "line t"), "no mid-line cut")
}

func TestExtract_NotFoundWithoutNewline(t *testing.T) {
	got := Extract(strings.Repeat("a", 50), "missing", 10, 10)
	assert.Equal(t, strings.Repeat("a", 10)+"...", got)
}

func TestExtract_EmptyQueryTruncates(t *testing.T) {
	doc := strings.Repeat("x\n", 300)
	got := Extract(doc, "", DefaultWindow, DefaultMaxLen)
	assert.True(t, strings.HasSuffix(got, "\n..."))
	assert.LessOrEqual(t, len(got), DefaultMaxLen+4)
}

func TestExtract_Deterministic(t *testing.T) {
	doc := "alpha beta gamma delta"
	assert.Equal(t, Default(doc, "gamma"), Default(doc, "gamma"))
}

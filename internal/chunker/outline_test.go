package chunker_test

import (
	"context"
	"testing"

	"diver/internal/chunker"
	"diver/internal/chunker/languages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutline_Go(t *testing.T) {
	src := `package main

type Node struct {
	Val int
}

func (n *Node) Next() *Node {
	return nil
}

func main() {}
`
	o := chunker.NewOutliner(languages.NewRegistry())
	syms, err := o.Outline(context.Background(), "main.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, syms, 3)

	assert.Equal(t, "Node", syms[0].Name)
	assert.Equal(t, "type_declaration", syms[0].Kind)
	assert.Equal(t, 3, syms[0].StartLine)
	assert.Equal(t, 5, syms[0].EndLine)
	assert.Equal(t, "Next", syms[1].Name)
	assert.Equal(t, "main", syms[2].Name)
}

func TestOutline_PythonKeepsOutermost(t *testing.T) {
	src := "class A:\n    def m(self):\n        pass\n\ndef f():\n    return 1\n"

	o := chunker.NewOutliner(languages.NewRegistry())
	syms, err := o.Outline(context.Background(), "pkg/mod.py", []byte(src))
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "A", syms[0].Name)
	assert.Equal(t, "class_definition", syms[0].Kind)
	assert.Equal(t, "f", syms[1].Name)
}

func TestOutline_UnknownExtension(t *testing.T) {
	o := chunker.NewOutliner(languages.NewRegistry())
	syms, err := o.Outline(context.Background(), "notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Nil(t, syms)
}

func TestRegistry_Lookup(t *testing.T) {
	r := languages.NewRegistry()
	assert.Equal(t, "cpp", r.LanguageName("src/test.CPP"))
	assert.Equal(t, "python", r.LanguageName("a.py"))
	assert.Equal(t, "", r.LanguageName("Makefile"))
	assert.Contains(t, r.Languages(), "java")
}

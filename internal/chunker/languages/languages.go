// Package languages registers the tree-sitter grammars diver can outline.
package languages

import "diver/internal/chunker"

// NewRegistry returns a registry with every bundled grammar.
func NewRegistry() *chunker.Registry {
	r := chunker.NewRegistry()
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterCpp(r)
	RegisterJava(r)
	return r
}

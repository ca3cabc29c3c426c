package languages

import (
	"diver/internal/chunker"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition name: (identifier) @name) @def
			(class_definition name: (identifier) @name) @def
			(decorated_definition definition: (function_definition name: (identifier) @name)) @def
			(decorated_definition definition: (class_definition name: (identifier) @name)) @def
		`,
		Extensions: []string{".py", ".pyi"},
	})
}

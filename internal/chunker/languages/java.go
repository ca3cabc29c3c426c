package languages

import (
	"diver/internal/chunker"

	"github.com/smacker/go-tree-sitter/java"
)

func RegisterJava(r *chunker.Registry) {
	r.Register("java", &chunker.LanguageSpec{
		Language: java.GetLanguage(),
		Query: `
			(class_declaration name: (identifier) @name) @def
			(interface_declaration name: (identifier) @name) @def
			(enum_declaration name: (identifier) @name) @def
			(method_declaration name: (identifier) @name) @def
		`,
		Extensions: []string{".java"},
	})
}

package languages

import (
	"diver/internal/chunker"

	"github.com/smacker/go-tree-sitter/javascript"
)

func RegisterJavaScript(r *chunker.Registry) {
	r.Register("javascript", &chunker.LanguageSpec{
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @def
			(class_declaration name: (identifier) @name) @def
			(method_definition name: (property_identifier) @name) @def
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @def
		`,
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
	})
}

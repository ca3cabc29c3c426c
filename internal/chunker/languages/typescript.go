package languages

import (
	"diver/internal/chunker"

	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func RegisterTypeScript(r *chunker.Registry) {
	r.Register("typescript", &chunker.LanguageSpec{
		Language: typescript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @def
			(class_declaration name: (type_identifier) @name) @def
			(method_definition name: (property_identifier) @name) @def
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @def
			(interface_declaration name: (type_identifier) @name) @def
			(type_alias_declaration name: (type_identifier) @name) @def
		`,
		Extensions: []string{".ts", ".tsx"},
	})
}

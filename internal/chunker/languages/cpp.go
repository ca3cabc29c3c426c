package languages

import (
	"diver/internal/chunker"

	"github.com/smacker/go-tree-sitter/cpp"
)

// RegisterCpp also claims the C extensions; the C++ grammar parses plain C
// declarations well enough for an outline.
func RegisterCpp(r *chunker.Registry) {
	r.Register("cpp", &chunker.LanguageSpec{
		Language: cpp.GetLanguage(),
		Query: `
			(struct_specifier name: (type_identifier) @name body: (field_declaration_list)) @def
			(class_specifier name: (type_identifier) @name body: (field_declaration_list)) @def
			(function_definition declarator: (function_declarator declarator: (identifier) @name)) @def
		`,
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".c", ".h"},
	})
}

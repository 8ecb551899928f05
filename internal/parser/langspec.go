package parser

import "github.com/controlvector/cv-core/internal/model"

// langSpec names the tree-sitter node kinds that matter for a language's
// symbol extraction, grounded in the per-language kind switches the
// teacher's go_visitor.go/python_visitor.go/javascript_visitor.go matched on
// (e.g. Go's "function_declaration"/"method_declaration", Python's
// "function_definition"/"class_definition", JS/TS's "function_declaration"/
// "method_definition"/"class_declaration").
type langSpec struct {
	FunctionKinds    []string
	MethodKinds      []string
	ClassKinds       []string
	InterfaceKinds   []string // node kinds that are always an interface, never a class
	VariableKinds    []string // top-level mutable-declaration node kinds
	ConstantKinds    []string // top-level immutable-declaration node kinds
	CallKinds        []string
	NameKinds        []string // child node kinds that carry a symbol's name
	BodyField        string   // field name of a function/method's body, if any
	ConditionalKinds []string // node kinds that add a cyclomatic-complexity decision point
	ImportKinds      []string
}

var langSpecs = map[model.Language]langSpec{
	model.LanguageGo: {
		FunctionKinds: []string{"function_declaration"},
		MethodKinds:   []string{"method_declaration"},
		ClassKinds:    []string{"type_declaration"},
		VariableKinds: []string{"var_declaration"},
		ConstantKinds: []string{"const_declaration"},
		CallKinds:     []string{"call_expression"},
		NameKinds:     []string{"identifier", "field_identifier"},
		BodyField:     "body",
		ConditionalKinds: []string{
			"if_statement", "for_statement", "expression_case",
			"communication_case", "default_case", "type_case",
			"binary_expression",
		},
		ImportKinds: []string{"import_spec"},
	},
	model.LanguagePython: {
		FunctionKinds: []string{"function_definition"},
		ClassKinds:    []string{"class_definition"},
		CallKinds:     []string{"call"},
		NameKinds:     []string{"identifier"},
		BodyField:     "body",
		ConditionalKinds: []string{
			"if_statement", "for_statement", "while_statement",
			"except_clause", "with_statement", "boolean_operator",
		},
		ImportKinds: []string{"import_statement", "import_from_statement"},
	},
	model.LanguageJavaScript: {
		FunctionKinds: []string{"function_declaration", "function_expression", "arrow_function"},
		MethodKinds:   []string{"method_definition"},
		ClassKinds:    []string{"class_declaration", "class_expression"},
		VariableKinds: []string{"lexical_declaration", "variable_declaration"},
		CallKinds:     []string{"call_expression", "new_expression"},
		NameKinds:     []string{"identifier", "property_identifier"},
		BodyField:     "body",
		ConditionalKinds: []string{
			"if_statement", "for_statement", "for_in_statement",
			"for_of_statement", "while_statement", "do_statement",
			"switch_case", "catch_clause", "binary_expression",
		},
		ImportKinds: []string{"import_statement"},
	},
	model.LanguageJava: {
		FunctionKinds:  []string{},
		MethodKinds:    []string{"method_declaration", "constructor_declaration"},
		ClassKinds:     []string{"class_declaration"},
		InterfaceKinds: []string{"interface_declaration"},
		VariableKinds:  []string{"field_declaration"},
		CallKinds:      []string{"method_invocation", "object_creation_expression"},
		NameKinds:      []string{"identifier"},
		BodyField:      "body",
		ConditionalKinds: []string{
			"if_statement", "for_statement", "enhanced_for_statement",
			"while_statement", "do_statement", "switch_label",
			"catch_clause", "binary_expression",
		},
		ImportKinds: []string{"import_declaration"},
	},
}

// TypeScript shares JavaScript's node kinds (tree-sitter-typescript is a
// superset grammar) but adds its own interface_declaration kind, which JS's
// grammar has no equivalent for.
func specFor(lang model.Language) (langSpec, bool) {
	if lang == model.LanguageTypeScript {
		s, ok := langSpecs[model.LanguageJavaScript]
		if !ok {
			return s, ok
		}
		s.InterfaceKinds = []string{"interface_declaration"}
		return s, true
	}
	s, ok := langSpecs[lang]
	return s, ok
}

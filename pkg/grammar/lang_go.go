// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package grammar

import (
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/semfora/pkg/schema"
)

func goGrammar() *Grammar {
	return &Grammar{
		Language:      schema.LangGo,
		FunctionLike:  NewNodeKindSet("function_declaration", "method_declaration"),
		// struct_type/interface_type carry no "name" field of their own -
		// the name lives on the enclosing type_spec node. The generic
		// walk below can't attribute a name to them, so Go leaves these
		// empty and the Go overlay (pkg/overlay/golang.go) adds the
		// Struct/Interface/Enum-like symbols directly from type_spec,
		// per spec.md §4.3.
		ClassLike:     NewNodeKindSet(),
		InterfaceLike: NewNodeKindSet(),
		EnumLike:      NewNodeKindSet(),
		ControlFlow: map[string]string{
			"if_statement":               "if",
			"for_statement":              "for",
			"expression_switch_statement": "switch",
			"type_switch_statement":      "switch",
			"select_statement":           "select",
		},
		TryLike:    NewNodeKindSet(), // Go has no try; overlay treats defer/recover specially
		VarDecl:    NewNodeKindSet("var_declaration", "const_declaration", "short_var_declaration"),
		Assignment: NewNodeKindSet("assignment_statement"),
		CallLike:   NewNodeKindSet("call_expression"),
		AwaitLike:  NewNodeKindSet(), // no native await; go statements are tracked by the overlay
		ImportLike: NewNodeKindSet("import_spec"),
		DecoratorLike: NewNodeKindSet(), // Go has no decorators

		FieldName:      "name",
		FieldValue:      "value",
		FieldType:       "type",
		FieldBody:       "body",
		FieldParams:     "parameters",
		FieldCondition:  "condition",

		IsExported:     IsGoNodeExported,
		SitterLanguage: golang.GetLanguage,
	}
}

// IsGoNodeExported applies the spec.md §4.1 uppercase-is-export rule: the
// declaration's name field must start with an uppercase Unicode letter.
func IsGoNodeExported(node *sitter.Node, source []byte) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	text := nameNode.Content(source)
	if text == "" {
		return false
	}
	r := []rune(text)[0]
	return unicode.IsUpper(r)
}

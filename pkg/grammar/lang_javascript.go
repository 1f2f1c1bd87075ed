// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package grammar

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/kraklabs/semfora/pkg/schema"
)

func javascriptGrammar() *Grammar {
	return &Grammar{
		Language: schema.LangJavaScript,
		FunctionLike: NewNodeKindSet(
			"function_declaration", "function_expression", "arrow_function",
			"generator_function_declaration", "method_definition",
		),
		ClassLike:     NewNodeKindSet("class_declaration", "class"),
		InterfaceLike: NewNodeKindSet(),
		EnumLike:      NewNodeKindSet(),
		ControlFlow: map[string]string{
			"if_statement":      "if",
			"for_statement":     "for",
			"for_in_statement":  "for",
			"while_statement":   "while",
			"do_statement":      "while",
			"switch_statement":  "switch",
		},
		TryLike:       NewNodeKindSet("try_statement"),
		VarDecl:       NewNodeKindSet("variable_declarator"),
		Assignment:    NewNodeKindSet("assignment_expression"),
		CallLike:      NewNodeKindSet("call_expression"),
		AwaitLike:     NewNodeKindSet("await_expression"),
		ImportLike:    NewNodeKindSet("import_statement"),
		DecoratorLike: NewNodeKindSet("decorator"),

		FieldName:      "name",
		FieldValue:      "value",
		FieldType:       "type",
		FieldBody:       "body",
		FieldParams:     "parameters",
		FieldCondition:  "condition",

		IsExported:     isJSNodeExported,
		SitterLanguage: javascript.GetLanguage,
	}
}

// isJSNodeExported walks up from node looking for an enclosing
// export_statement, the only syntactic marker of public surface in
// JS/TS (no visibility keywords at the top level). Every ancestor is
// checked, so a declaration nested anywhere inside an exported
// declaration (a class member, an inner function) also reports true.
func isJSNodeExported(node *sitter.Node, source []byte) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if strings.HasPrefix(p.Type(), "export_statement") {
			return true
		}
		// Body and program nodes are passed through like any other
		// ancestor; the walk ends only at the root.
		switch p.Type() {
		case "statement_block", "class_body", "program":
			continue
		}
	}
	return false
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package grammar

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/semfora/pkg/schema"
)

// typescriptGrammar builds the TS grammar record. lang selects which
// schema.Language (and thus which concrete tree-sitter grammar - .ts vs
// .tsx) the record serves; the node-kind tables are otherwise identical.
func typescriptGrammar(lang schema.Language) *Grammar {
	g := &Grammar{
		Language: lang,
		FunctionLike: NewNodeKindSet(
			"function_declaration", "function_expression", "arrow_function",
			"generator_function_declaration", "method_definition", "method_signature",
		),
		ClassLike:     NewNodeKindSet("class_declaration", "class"),
		InterfaceLike: NewNodeKindSet("interface_declaration"),
		EnumLike:      NewNodeKindSet("enum_declaration"),
		ControlFlow: map[string]string{
			"if_statement":     "if",
			"for_statement":    "for",
			"for_in_statement": "for",
			"while_statement":  "while",
			"do_statement":     "while",
			"switch_statement": "switch",
		},
		TryLike:       NewNodeKindSet("try_statement"),
		VarDecl:       NewNodeKindSet("variable_declarator"),
		Assignment:    NewNodeKindSet("assignment_expression"),
		CallLike:      NewNodeKindSet("call_expression"),
		AwaitLike:     NewNodeKindSet("await_expression"),
		ImportLike:    NewNodeKindSet("import_statement"),
		DecoratorLike: NewNodeKindSet("decorator"),

		FieldName:     "name",
		FieldValue:     "value",
		FieldType:      "type",
		FieldBody:      "body",
		FieldParams:    "parameters",
		FieldCondition: "condition",

		VisibilityModifiers: []string{"public", "private", "protected"},
	}
	if lang == schema.LangTSX {
		g.SitterLanguage = tsx.GetLanguage
	} else {
		g.SitterLanguage = typescript.GetLanguage
	}
	modifiers := g.VisibilityModifiers
	g.IsExported = func(node *sitter.Node, source []byte) bool {
		return isTSMemberExported(node, source, modifiers)
	}
	return g
}

// isTSMemberExported additionally treats a class member's explicit
// non-public accessibility_modifier (any of modifiers other than
// "public") as non-exported even though the whole file may be under an
// export_statement; falls back to isJSNodeExported for nodes with no
// accessibility_modifier child, so it's safe to use for both top-level
// declarations and class members.
func isTSMemberExported(node *sitter.Node, source []byte, modifiers []string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() != "accessibility_modifier" {
			continue
		}
		text := c.Content(source)
		for _, m := range modifiers {
			if text == m && m != "public" {
				return false
			}
		}
	}
	return isJSNodeExported(node, source)
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package grammar

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/kraklabs/semfora/pkg/schema"
)

func pythonGrammar() *Grammar {
	return &Grammar{
		Language:      schema.LangPython,
		FunctionLike:  NewNodeKindSet("function_definition"),
		ClassLike:     NewNodeKindSet("class_definition"),
		InterfaceLike: NewNodeKindSet(), // Python has no trait/interface node; Protocol classes are class_definition
		EnumLike:      NewNodeKindSet(),
		ControlFlow: map[string]string{
			"if_statement":    "if",
			"for_statement":   "for",
			"while_statement": "while",
			"with_statement":  "with",
			"match_statement": "switch",
		},
		TryLike:       NewNodeKindSet("try_statement"),
		VarDecl:       NewNodeKindSet("assignment"),
		Assignment:    NewNodeKindSet("assignment", "augmented_assignment"),
		CallLike:      NewNodeKindSet("call"),
		AwaitLike:     NewNodeKindSet("await"),
		ImportLike:    NewNodeKindSet("import_statement", "import_from_statement"),
		DecoratorLike: NewNodeKindSet("decorator"),

		FieldName:      "name",
		FieldValue:      "right",
		FieldType:       "return_type",
		FieldBody:       "body",
		FieldParams:     "parameters",
		FieldCondition:  "condition",

		IsExported: isPythonNodeExported,
		SitterLanguage: python.GetLanguage,
	}
}

// isPythonNodeExported treats any name not prefixed with an underscore as
// public, the PEP 8 convention; dunder names (`__init__`) are also public
// since they are part of the object protocol, not hidden implementation.
func isPythonNodeExported(node *sitter.Node, source []byte) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	text := nameNode.Content(source)
	if len(text) >= 2 && text[:2] == "__" && len(text) >= 4 && text[len(text)-2:] == "__" {
		return true
	}
	return len(text) == 0 || text[0] != '_'
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semfora/pkg/schema"
)

// ApplyGo merges Go's type_spec declarations into symbols the generic
// extractor misses (struct_type/interface_type have no "name" field of
// their own - it lives on the enclosing type_spec), per spec.md §4.3, and
// records a best-effort interface-dispatch hint: struct fields whose
// declared type matches an interface name seen in the same file are
// recorded on the struct's BaseClasses, so a call through that field can
// later be attributed to the interface without claiming real type
// resolution (spec.md §9's "Go: merge type declarations" plus SPEC_FULL.md
// supplemented feature 4).
func ApplyGo(sum *schema.SemanticSummary, root *sitter.Node, source []byte) {
	interfaceNames := map[string]bool{}
	type fieldRef struct {
		structName, fieldName, fieldType string
		line                             int
	}
	var fields []fieldRef

	walkTypeDecls(root, func(spec *sitter.Node) {
		name := spec.ChildByFieldName("name")
		typ := spec.ChildByFieldName("type")
		if name == nil || typ == nil {
			return
		}
		symName := strings.TrimSpace(name.Content(source))

		var kind schema.SymbolKind
		switch typ.Type() {
		case "struct_type":
			kind = schema.KindStruct
			collectStructFields(typ, source, symName, func(fieldName, fieldType string, line int) {
				fields = append(fields, fieldRef{symName, fieldName, fieldType, line})
			})
		case "interface_type":
			kind = schema.KindInterface
			interfaceNames[symName] = true
		default:
			return
		}

		sym := schema.SymbolInfo{
			Name:       symName,
			Kind:       kind,
			StartLine:  int(spec.StartPoint().Row) + 1,
			EndLine:    int(spec.EndPoint().Row) + 1,
			IsExported: IsGoNodeExported(spec, source),
		}
		sum.Symbols = append(sum.Symbols, sym)
	})

	if len(interfaceNames) == 0 || len(fields) == 0 {
		return
	}
	for _, f := range fields {
		baseType := strings.TrimPrefix(strings.TrimPrefix(f.fieldType, "*"), "[]")
		if !interfaceNames[baseType] {
			continue
		}
		for i := range sum.Symbols {
			if sum.Symbols[i].Name == f.structName && sum.Symbols[i].Kind == schema.KindStruct {
				sum.Symbols[i].BaseClasses = append(sum.Symbols[i].BaseClasses,
					f.fieldName+":"+baseType)
			}
		}
	}
}

func walkTypeDecls(node *sitter.Node, visit func(spec *sitter.Node)) {
	if node.Type() == "type_spec" {
		visit(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkTypeDecls(node.Child(i), visit)
	}
}

func collectStructFields(structType *sitter.Node, source []byte, structName string, emit func(fieldName, fieldType string, line int)) {
	for i := 0; i < int(structType.ChildCount()); i++ {
		c := structType.Child(i)
		if c.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			fd := c.Child(j)
			if fd.Type() != "field_declaration" {
				continue
			}
			typeNode := fd.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			fieldType := strings.TrimSpace(typeNode.Content(source))
			for k := 0; k < int(fd.ChildCount()); k++ {
				nameNode := fd.Child(k)
				if nameNode.Type() == "field_identifier" {
					emit(strings.TrimSpace(nameNode.Content(source)), fieldType, int(fd.StartPoint().Row)+1)
				}
			}
		}
	}
}

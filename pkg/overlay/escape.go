// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semfora/pkg/schema"
)

// EscapeRefLanguages is the set of languages the escape-reference feature
// applies to (spec.md §8 invariant 7: "only appear on symbols in
// JS/TS/C# files").
var EscapeRefLanguages = map[schema.Language]bool{
	schema.LangJavaScript: true,
	schema.LangTypeScript: true,
	schema.LangTSX:        true,
	schema.LangCSharp:     true,
}

// ApplyEscapeRefs implements spec.md §4.3.1: for every local variable or
// parameter in a function scope, a use in a call argument, a return
// expression, the right-hand side of a member/index write, or a JSX
// attribute value becomes an EscapeRead Call record on the enclosing
// symbol. A name with exactly one definition in the file is additionally
// promoted to a Variable symbol with IsEscapeLocal = true.
//
// Every syntactic position this function recognizes is a read of the
// escaping name (its value is what leaves scope); the EscapeWrite /
// EscapeReadWrite variants in the RefKind enum are reserved for a
// compound-assignment analysis this pass does not attempt - they are
// never emitted here.
func ApplyEscapeRefs(sum *schema.SemanticSummary, root *sitter.Node, source []byte, lang schema.Language, enabled bool) {
	if !enabled || !EscapeRefLanguages[lang] {
		return
	}

	defs := make(map[string][]int) // name -> definition lines, across the whole file
	collectLocalDefs(root, source, defs)

	singlyDefined := make(map[string]bool, len(defs))
	for name, lines := range defs {
		singlyDefined[name] = len(lines) == 1
	}

	var promoted []schema.SymbolInfo
	walkForEscapes(root, source, defs, func(name string, line, col int) {
		call := schema.Call{
			Name:     name,
			RefKind:  schema.RefEscapeRead,
			Location: schema.Location{Line: line, Column: col},
		}
		attachToSymbolContaining(sum, line, call)
		if singlyDefined[name] {
			promoted = append(promoted, schema.SymbolInfo{
				Name: name, Kind: schema.KindVariable,
				StartLine: defs[name][0], EndLine: defs[name][0],
				IsEscapeLocal: true,
			})
		}
	})

	sum.Symbols = append(sum.Symbols, dedupeVariableSymbols(promoted)...)
}

func dedupeVariableSymbols(in []schema.SymbolInfo) []schema.SymbolInfo {
	seen := make(map[string]bool, len(in))
	var out []schema.SymbolInfo
	for _, s := range in {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}

func attachToSymbolContaining(sum *schema.SemanticSummary, line int, call schema.Call) {
	var best *schema.SymbolInfo
	for i := range sum.Symbols {
		s := &sum.Symbols[i]
		if s.Kind == schema.KindVariable {
			continue
		}
		if s.StartLine <= line && line <= s.EndLine {
			if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
				best = s
			}
		}
	}
	key := call.DedupKey()
	if best != nil {
		for _, c := range best.Calls {
			if c.DedupKey() == key {
				return
			}
		}
		best.Calls = append(best.Calls, call)
		return
	}
	for _, c := range sum.Calls {
		if c.DedupKey() == key {
			return
		}
	}
	sum.Calls = append(sum.Calls, call)
}

// collectLocalDefs records, for every identifier that is a variable
// declarator name or a function parameter anywhere in the file, the
// 1-indexed line it was defined on.
func collectLocalDefs(node *sitter.Node, source []byte, defs map[string][]int) {
	switch node.Type() {
	case "variable_declarator":
		if n := node.ChildByFieldName("name"); n != nil && n.Type() == "identifier" {
			name := n.Content(source)
			defs[name] = append(defs[name], int(n.StartPoint().Row)+1)
		}
	case "required_parameter", "optional_parameter":
		if n := node.ChildByFieldName("pattern"); n != nil && n.Type() == "identifier" {
			name := n.Content(source)
			defs[name] = append(defs[name], int(n.StartPoint().Row)+1)
		}
	case "identifier":
		if p := node.Parent(); p != nil && p.Type() == "formal_parameters" {
			name := node.Content(source)
			defs[name] = append(defs[name], int(node.StartPoint().Row)+1)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectLocalDefs(node.Child(i), source, defs)
	}
}

// walkForEscapes visits every identifier node and, if it names a known
// local and sits in one of the four escaping syntactic positions, invokes
// emit(name, line, col).
func walkForEscapes(node *sitter.Node, source []byte, defs map[string][]int, emit func(name string, line, col int)) {
	if node.Type() == "identifier" {
		name := node.Content(source)
		if _, known := defs[name]; known && isEscapingPosition(node) {
			emit(name, int(node.StartPoint().Row)+1, int(node.StartPoint().Column)+1)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkForEscapes(node.Child(i), source, defs, emit)
	}
}

// isEscapingPosition reports whether node sits in one of the four
// escaping syntactic positions from spec.md §4.3.1, and is never the
// callee of a call or a member-expression property name.
func isEscapingPosition(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}

	// Never the callee (`f` in `f(x)`) or a member property (`x` in `y.x`).
	if parent.Type() == "call_expression" && parent.ChildByFieldName("function") == node {
		return false
	}
	if parent.Type() == "member_expression" && parent.ChildByFieldName("property") == node {
		return false
	}

	switch parent.Type() {
	case "arguments":
		return true
	case "return_statement":
		return true
	case "jsx_attribute":
		return parent.ChildByFieldName("value") == node || childIsDescendantOfValue(parent, node)
	}

	if parent.Type() == "assignment_expression" {
		left := parent.ChildByFieldName("left")
		right := parent.ChildByFieldName("right")
		if right == node && left != nil {
			switch left.Type() {
			case "member_expression", "subscript_expression":
				return true
			}
		}
	}
	return false
}

func childIsDescendantOfValue(attr, node *sitter.Node) bool {
	value := attr.ChildByFieldName("value")
	if value == nil {
		return false
	}
	return nodeContains(value, node)
}

func nodeContains(ancestor, node *sitter.Node) bool {
	if ancestor == node {
		return true
	}
	for i := 0; i < int(ancestor.ChildCount()); i++ {
		if nodeContains(ancestor.Child(i), node) {
			return true
		}
	}
	return false
}

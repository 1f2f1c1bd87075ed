// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"log/slog"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semfora/pkg/grammar"
	"github.com/kraklabs/semfora/pkg/schema"
)

// walker holds the mutable state of a single extraction pass. It is not
// reused across files.
type walker struct {
	grammar *grammar.Grammar
	source  []byte
	file    string
	logger  *slog.Logger

	deps       []string
	candidates []*candidate

	fileCalls   []schema.Call
	fileControl []schema.ControlFlowEvent
	fileState   []schema.StateChange

	frameworkEntry schema.FrameworkEntryPoint
	primary        *candidate
}

// candidate is a SymbolInfo still under construction, plus the AST node it
// came from (needed by later passes - decorator scan, async detection).
type candidate struct {
	info schema.SymbolInfo
	node *sitter.Node
}

func (w *walker) line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (w *walker) endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// collectImports walks the whole tree (import declarations are not always
// direct children of the root - e.g. Go wraps them in import_declaration)
// collecting every ImportLike node's text into AddedDependencies.
func (w *walker) collectImports(node *sitter.Node) {
	if w.grammar.ImportLike.Has(node.Type()) {
		text := strings.TrimSpace(node.Content(w.source))
		if text != "" {
			w.deps = append(w.deps, text)
		}
		// Import nodes are leaves for our purposes - don't descend
		// looking for nested calls inside them.
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		w.collectImports(node.Child(i))
	}
}

// collectCandidates is the second AST walk (spec.md §4.2 step 2): records
// every function-like, class-like, interface/trait, enum, and top-level
// variable as a candidate symbol. insideFunction tracks whether we are
// nested inside a function body, so only top-level variables become
// candidates.
func (w *walker) collectCandidates(node *sitter.Node, insideFunctionLike *sitter.Node, depth int) {
	kind, isSymbolNode := w.classify(node)
	var created *candidate
	if isSymbolNode {
		if kind == schema.KindVariable && insideFunctionLike != nil {
			// Not a top-level variable; skip as a candidate (its
			// assignment may still be tracked as a state change by the
			// third walk).
		} else {
			created = w.makeCandidate(node, kind)
			if created != nil {
				w.candidates = append(w.candidates, created)
			}
		}
	}

	nextEnclosing := insideFunctionLike
	if isSymbolNode && kind != schema.KindVariable {
		nextEnclosing = node
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.collectCandidates(node.Child(i), nextEnclosing, depth+1)
	}
}

// classify maps a node to the SymbolKind it represents, if any.
func (w *walker) classify(node *sitter.Node) (schema.SymbolKind, bool) {
	t := node.Type()
	switch {
	case w.grammar.FunctionLike.Has(t):
		if strings.Contains(t, "method") {
			return schema.KindMethod, true
		}
		return schema.KindFunction, true
	case w.grammar.ClassLike.Has(t):
		return schema.KindClass, true
	case w.grammar.InterfaceLike.Has(t):
		return schema.KindInterface, true
	case w.grammar.EnumLike.Has(t):
		return schema.KindEnum, true
	case w.grammar.VarDecl.Has(t):
		return schema.KindVariable, true
	default:
		return "", false
	}
}

func (w *walker) makeCandidate(node *sitter.Node, kind schema.SymbolKind) *candidate {
	name := w.nodeName(node)
	if name == "" {
		return nil
	}
	info := schema.SymbolInfo{
		Name:      name,
		Kind:      kind,
		StartLine: w.line(node),
		EndLine:   w.endLine(node),
	}
	if w.grammar.IsExported != nil {
		info.IsExported = w.grammar.IsExported(node, w.source)
	}
	info.IsAsync = w.isAsync(node)
	info.Decorators = w.decoratorsBefore(node)
	info.Arguments = w.paramNames(node)
	info.ReturnType = w.returnType(node)
	return &candidate{info: info, node: node}
}

// returnType reads the grammar's type-annotation field off node (a Go
// function's result type, a TS return-type annotation, a Python
// function's "-> T" annotation), when the node has one.
func (w *walker) returnType(node *sitter.Node) string {
	if w.grammar.FieldType == "" {
		return ""
	}
	n := node.ChildByFieldName(w.grammar.FieldType)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content(w.source))
}

func (w *walker) nodeName(node *sitter.Node) string {
	if w.grammar.FieldName == "" {
		return ""
	}
	n := node.ChildByFieldName(w.grammar.FieldName)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content(w.source))
}

// isAsync detects an "async" keyword token among node's direct children,
// which is how tree-sitter's JS/TS grammars represent async functions
// (Python represents it the same way on function_definition).
func (w *walker) isAsync(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "async" {
			return true
		}
	}
	return false
}

// decoratorsBefore collects the text of any DecoratorLike previous
// siblings immediately preceding node (Python decorators, TS/JS
// decorators both attach this way).
func (w *walker) decoratorsBefore(node *sitter.Node) []string {
	var out []string
	for s := node.PrevSibling(); s != nil && w.grammar.DecoratorLike.Has(s.Type()); s = s.PrevSibling() {
		out = append([]string{strings.TrimSpace(s.Content(w.source))}, out...)
	}
	// decorated_definition (Python) wraps both decorators and the
	// function/class as children of one parent; check the parent too.
	if parent := node.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		for i := 0; i < int(parent.ChildCount()); i++ {
			c := parent.Child(i)
			if w.grammar.DecoratorLike.Has(c.Type()) {
				out = append(out, strings.TrimSpace(c.Content(w.source)))
			}
		}
	}
	return out
}

func (w *walker) paramNames(node *sitter.Node) []string {
	if w.grammar.FieldParams == "" {
		return nil
	}
	params := node.ChildByFieldName(w.grammar.FieldParams)
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.ChildCount()); i++ {
		c := params.Child(i)
		switch c.Type() {
		case "identifier", "required_parameter", "optional_parameter", "parameter_declaration":
			names = append(names, strings.TrimSpace(c.Content(w.source)))
		}
	}
	return names
}

// mergeDuplicateCandidates merges candidates with identical
// (name, kind, file); the earliest start wins ties (spec.md §4.2 edge
// cases).
func (w *walker) mergeDuplicateCandidates() {
	seen := make(map[string]int, len(w.candidates))
	merged := w.candidates[:0]
	for _, c := range w.candidates {
		key := string(c.info.Kind) + "\x00" + c.info.Name
		if idx, ok := seen[key]; ok {
			if c.info.StartLine < merged[idx].info.StartLine {
				merged[idx] = c
			}
			continue
		}
		seen[key] = len(merged)
		merged = append(merged, c)
	}
	w.candidates = merged
}

// innermostContainer returns the candidate with the smallest span whose
// line range strictly contains line, or nil if the event is file-level.
func (w *walker) innermostContainer(line int) *candidate {
	var best *candidate
	for _, c := range w.candidates {
		if c.info.Kind == schema.KindVariable {
			continue // variables aren't containers
		}
		if c.info.StartLine <= line && line <= c.info.EndLine {
			if best == nil || c.info.Span() < best.info.Span() {
				best = c
			}
		}
	}
	return best
}

func (w *walker) summary() *schema.SemanticSummary {
	sum := &schema.SemanticSummary{
		File:                schema.NormalizeFilePath(w.file),
		AddedDependencies:   w.deps,
		Calls:               w.fileCalls,
		ControlFlow:         w.fileControl,
		StateChanges:        w.fileState,
		FrameworkEntryPoint: w.frameworkEntry,
	}
	for _, c := range w.candidates {
		sum.Symbols = append(sum.Symbols, c.info)
	}
	if w.primary != nil {
		sum.HasPrimarySymbol = true
		sum.PrimarySymbolName = w.primary.info.Name
		sum.PrimarySymbolKind = w.primary.info.Kind
		sum.PrimarySymbolStart = w.primary.info.StartLine
		sum.PrimarySymbolEnd = w.primary.info.EndLine
	}
	return sum
}

// FileStem returns the filename without directory or extension, used by
// primary-symbol scoring's filename-match bonus.
func FileStem(file string) string {
	base := path.Base(file)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

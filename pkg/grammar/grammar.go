// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package grammar is the single place per-language AST surface knowledge
// lives: a table mapping abstract node roles (function, class, call, ...)
// to concrete tree-sitter node-kind strings, plus a visibility predicate
// and a handful of language-specific flags. Adding a language to the
// indexing engine means adding one Grammar record here (plus any overlay
// refinements in pkg/overlay).
package grammar

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semfora/pkg/schema"
)

// NodeKindSet is a small set of AST node-kind strings tested by membership.
type NodeKindSet map[string]struct{}

// NewNodeKindSet builds a NodeKindSet from a list of node-kind strings.
func NewNodeKindSet(kinds ...string) NodeKindSet {
	s := make(NodeKindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether kind is a member of the set.
func (s NodeKindSet) Has(kind string) bool {
	_, ok := s[kind]
	return ok
}

// Grammar is the per-language mapping the generic extractor (pkg/extract)
// walks an AST with. It never does anything itself beyond answering "is
// this node a function" / "what is this node's name field" style
// questions; all tree-walking lives in pkg/extract.
type Grammar struct {
	Language schema.Language

	// Node-kind sets for each abstract role (spec.md §4.1).
	FunctionLike NodeKindSet
	ClassLike    NodeKindSet
	InterfaceLike NodeKindSet
	EnumLike     NodeKindSet
	ControlFlow  map[string]string // node kind -> control-flow event kind ("if", "for", ...)
	TryLike      NodeKindSet
	VarDecl      NodeKindSet
	Assignment   NodeKindSet
	CallLike     NodeKindSet
	AwaitLike    NodeKindSet
	ImportLike   NodeKindSet
	DecoratorLike NodeKindSet

	// Field names used to pull children out of a node (tree-sitter field
	// names, which vary per grammar).
	FieldName      string
	FieldValue     string
	FieldType      string
	FieldBody      string
	FieldParams    string
	FieldCondition string

	// IsExported decides whether a declaration node is part of the
	// public surface. Implementations read source text around the node
	// (e.g. an export keyword, a visibility modifier, or leading-case).
	IsExported func(node *sitter.Node, source []byte) bool

	// VisibilityModifiers lists keyword tokens that grant export status in
	// languages that use modifier keywords instead of leading-case
	// (public/private/protected in TS/C#); consulted by isTSMemberExported.
	VisibilityModifiers []string

	// SitterLanguage is the concrete tree-sitter grammar, or nil for
	// languages handled by a non-tree-sitter overlay (HCL, config, markup).
	SitterLanguage func() *sitter.Language
}

// Registry maps a schema.Language to its Grammar.
type Registry struct {
	grammars map[schema.Language]*Grammar
}

// NewRegistry builds the registry with all statically known grammars
// registered. The set of languages is closed at build time: a single map
// plus lookup, not virtual dispatch, per spec.md §9.
func NewRegistry() *Registry {
	r := &Registry{grammars: make(map[schema.Language]*Grammar)}
	r.register(goGrammar())
	r.register(pythonGrammar())
	r.register(javascriptGrammar())
	r.register(typescriptGrammar(schema.LangTypeScript))
	r.register(typescriptGrammar(schema.LangTSX))
	return r
}

func (r *Registry) register(g *Grammar) {
	r.grammars[g.Language] = g
}

// Lookup returns the Grammar for lang, or (nil, false) if the language has
// no tree-sitter grammar (handled instead by a dedicated overlay such as
// HCL, config, or markup).
func (r *Registry) Lookup(lang schema.Language) (*Grammar, bool) {
	g, ok := r.grammars[lang]
	return g, ok
}

// LanguageForExtension maps a file extension (with leading dot, as from
// filepath.Ext) to the schema.Language it represents. Returns
// schema.LangUnknown for extensions the registry does not know.
func LanguageForExtension(ext string) schema.Language {
	switch strings.ToLower(ext) {
	case ".go":
		return schema.LangGo
	case ".py", ".pyi":
		return schema.LangPython
	case ".js", ".jsx", ".mjs", ".cjs":
		return schema.LangJavaScript
	case ".ts", ".mts", ".cts":
		return schema.LangTypeScript
	case ".tsx":
		return schema.LangTSX
	case ".vue":
		return schema.LangVue
	case ".cs":
		return schema.LangCSharp
	case ".tf", ".tf.json", ".hcl":
		return schema.LangHCL
	case ".json":
		return schema.LangJSON
	case ".yaml", ".yml":
		return schema.LangYAML
	case ".toml":
		return schema.LangTOML
	case ".html", ".htm":
		return schema.LangHTML
	case ".css", ".scss":
		return schema.LangCSS
	case ".md", ".markdown":
		return schema.LangMarkdown
	default:
		return schema.LangUnknown
	}
}

// SupportedExtensions lists every extension the registry recognizes,
// shared with the file watcher's path filter (spec.md §4.10).
func SupportedExtensions() []string {
	return []string{
		".go", ".py", ".pyi",
		".js", ".jsx", ".mjs", ".cjs",
		".ts", ".mts", ".cts", ".tsx", ".vue",
		".cs",
		".tf", ".hcl",
		".json", ".yaml", ".yml", ".toml",
		".html", ".htm", ".css", ".scss",
		".md", ".markdown",
	}
}

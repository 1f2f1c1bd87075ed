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

// Package schema defines the canonical SemanticSummary data model shared by
// the extractor, the shard writer, the cache readers, and the query
// surface. Nothing in this package talks to disk; it is pure data plus the
// hashing and normalization rules that make symbol identity stable.
package schema

import (
	"fmt"
	"strings"
)

// Language is a discriminated tag for a supported source language.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangVue        Language = "vue"
	LangCSharp     Language = "csharp"
	LangHCL        Language = "hcl"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangTOML       Language = "toml"
	LangHTML       Language = "html"
	LangCSS        Language = "css"
	LangMarkdown   Language = "markdown"
	LangUnknown    Language = "unknown"
)

// SymbolKind enumerates the kinds of symbol the extractor can produce.
type SymbolKind string

const (
	KindFunction  SymbolKind = "Function"
	KindMethod    SymbolKind = "Method"
	KindClass     SymbolKind = "Class"
	KindStruct    SymbolKind = "Struct"
	KindEnum      SymbolKind = "Enum"
	KindInterface SymbolKind = "Interface" // covers traits too
	KindModule    SymbolKind = "Module"
	KindVariable  SymbolKind = "Variable"
)

// normalizeKindTable maps language-specific kind labels onto the canonical
// set above. Per spec.md §4.4, this is the single place kind-equality
// comparisons go through.
var normalizeKindTable = map[string]SymbolKind{
	"function":  KindFunction,
	"func":      KindFunction,
	"fn":        KindFunction,
	"method":    KindMethod,
	"class":     KindClass,
	"struct":    KindStruct,
	"enum":      KindEnum,
	"interface": KindInterface,
	"trait":     KindInterface,
	"protocol":  KindInterface,
	"module":    KindModule,
	"namespace": KindModule,
	"variable":  KindVariable,
	"var":       KindVariable,
	"const":     KindVariable,
	"let":       KindVariable,
}

// NormalizeKind maps a language-specific kind label to the canonical
// SymbolKind used for equality comparisons across languages.
func NormalizeKind(s string) SymbolKind {
	if k, ok := normalizeKindTable[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k
	}
	return SymbolKind(s)
}

// BehavioralRisk classifies a symbol's risk, derived from nesting depth,
// try presence, I/O, async, and call count (spec.md §4.2 step 4).
type BehavioralRisk string

const (
	RiskLow    BehavioralRisk = "Low"
	RiskMedium BehavioralRisk = "Medium"
	RiskHigh   BehavioralRisk = "High"
)

// FrameworkEntryPoint tags a symbol (or whole file) as reachable from a
// framework's own dispatch, so it is never treated as dead code regardless
// of static caller count.
type FrameworkEntryPoint string

const (
	EntryNone             FrameworkEntryPoint = ""
	EntryReactComponent   FrameworkEntryPoint = "react_component"
	EntryNextRoute        FrameworkEntryPoint = "next_route"
	EntryExpressRoute     FrameworkEntryPoint = "express_route"
	EntryExpressMiddle    FrameworkEntryPoint = "express_middleware"
	EntryNestController   FrameworkEntryPoint = "nest_controller"
	EntryNestService      FrameworkEntryPoint = "nest_service"
	EntryNestModule       FrameworkEntryPoint = "nest_module"
	EntryVueComponent     FrameworkEntryPoint = "vue_component"
	EntryTestFunction     FrameworkEntryPoint = "test_function"
	EntryHCLResource      FrameworkEntryPoint = "hcl_resource"
)

// RefKind distinguishes plain calls from variable reads/writes and from
// escape references (spec.md §3, Call).
type RefKind string

const (
	RefNone            RefKind = "None"
	RefRead            RefKind = "Read"
	RefWrite           RefKind = "Write"
	RefReadWrite       RefKind = "ReadWrite"
	RefEscapeRead      RefKind = "EscapeRead"
	RefEscapeWrite     RefKind = "EscapeWrite"
	RefEscapeReadWrite RefKind = "EscapeReadWrite"
)

// wireKind is the short wire-form token used in call-graph edge encoding
// (spec.md §6).
var wireKind = map[RefKind]string{
	RefNone:            "",
	RefRead:            "read",
	RefWrite:           "write",
	RefReadWrite:       "readwrite",
	RefEscapeRead:      "escape_read",
	RefEscapeWrite:      "escape_write",
	RefEscapeReadWrite: "escape_readwrite",
}

var wireKindReverse = func() map[string]RefKind {
	m := make(map[string]RefKind, len(wireKind))
	for k, v := range wireKind {
		if v != "" {
			m[v] = k
		}
	}
	return m
}()

// Location is a line/column position within a file.
type Location struct {
	Line   int
	Column int
}

// Call is an edge-like record attached to a symbol (or to a file's
// file-level fallback list).
type Call struct {
	Name      string
	Object    string // receiver, if any
	IsAwaited bool
	InTry     bool
	IsHook    bool
	IsIO      bool
	RefKind   RefKind
	Location  Location
}

// DedupKey returns the key used to deduplicate calls attributed to the
// same symbol: (name, is_awaited) for plain invocations, (name, ref_kind)
// for variable references, per spec.md §3 invariants.
func (c Call) DedupKey() string {
	if c.RefKind == RefNone {
		return fmt.Sprintf("call:%s:%v", c.Name, c.IsAwaited)
	}
	return fmt.Sprintf("ref:%s:%s", c.Name, c.RefKind)
}

// ControlFlowEvent records one branch/loop/try construct for risk scoring.
type ControlFlowEvent struct {
	Kind      string // "if", "for", "while", "switch", "try", ...
	Line      int
	Depth     int    // nesting depth at this event, saturates at a configured max
	Condition string // source text of the branch condition, when the grammar names one
}

// StateChange records a mutation of state observed syntactically (e.g. a
// hook setter call, an assignment to a field).
type StateChange struct {
	Name     string
	Kind     string // "assign", "hook_setter", "field_write", ...
	Line     int
	Value    string // source text of the assigned value, when recoverable
}

// SymbolInfo is one function/method/class/struct/enum/trait/module/variable
// extracted from a file.
type SymbolInfo struct {
	Name             string
	Kind             SymbolKind
	StartLine        int
	EndLine          int
	IsExported       bool
	IsDefaultExport  bool
	IsEscapeLocal    bool
	IsAsync          bool
	Arguments        []string
	Props            []string
	ReturnType       string
	Decorators       []string
	BaseClasses      []string
	Calls            []Call
	ControlFlow      []ControlFlowEvent
	StateChanges     []StateChange
	BehavioralRisk   BehavioralRisk
	FrameworkEntry   FrameworkEntryPoint
	Hash             string // set by the shard writer
}

// Contains reports whether line falls within [StartLine, EndLine].
func (s SymbolInfo) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// Span is the number of lines the symbol covers; used to pick the
// innermost container when several candidates contain the same line.
func (s SymbolInfo) Span() int {
	return s.EndLine - s.StartLine
}

// SemanticSummary is the canonical per-file record produced by an
// extraction run (spec.md §3).
type SemanticSummary struct {
	File                 string
	Language             Language
	Symbols              []SymbolInfo
	AddedDependencies    []string
	StateChanges         []StateChange // file-level fallback
	ControlFlow          []ControlFlowEvent
	Calls                []Call
	FrameworkEntryPoint  FrameworkEntryPoint
	PrimarySymbolName    string
	PrimarySymbolKind    SymbolKind
	PrimarySymbolStart   int
	PrimarySymbolEnd     int
	HasPrimarySymbol     bool
	PublicSurfaceChanged bool
}

// CallGraphEdge is one caller->callee edge in the compact encoding
// `callee_hash[:edge_kind]` (spec.md §3 and §6).
type CallGraphEdge struct {
	CalleeHash string
	Kind       RefKind
}

// Encode renders the edge in its wire form. The edge kind is omitted for
// ordinary calls.
func (e CallGraphEdge) Encode() string {
	tok := wireKind[e.Kind]
	if tok == "" {
		return e.CalleeHash
	}
	return e.CalleeHash + ":" + tok
}

// DecodeCallGraphEdge parses the `callee_hash[:kind]` wire form. A string
// without a colon yields RefKind = RefNone (spec.md §4.4).
func DecodeCallGraphEdge(s string) CallGraphEdge {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return CallGraphEdge{CalleeHash: s, Kind: RefNone}
	}
	hash, tok := s[:idx], s[idx+1:]
	if k, ok := wireKindReverse[tok]; ok {
		return CallGraphEdge{CalleeHash: hash, Kind: k}
	}
	// Not a recognized kind token (e.g. the hash itself contained a colon
	// for some other reason) - treat the whole string as the hash.
	return CallGraphEdge{CalleeHash: s, Kind: RefNone}
}

// IsExternal reports whether a callee hash refers to an external
// (unresolved) call, using the `ext:` prefix convention from spec.md §6.
func IsExternal(calleeHash string) bool {
	return strings.HasPrefix(calleeHash, "ext:")
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sigparse

import "strings"

// NormalizeSignatureTokens renders a symbol's name, argument list, and
// return type into a normalized token sequence for duplicate-detection
// similarity scoring (spec.md §4.13's "weighted edit distance on
// normalized token sequences"). Unlike ParseGoParams, this is not
// Go-specific: arguments are already split by the generic extractor (one
// raw parameter-source string per entry, in whatever syntax the source
// language uses - "name Type" for Go, "name: Type" for TypeScript, "Type
// name" for C#/Java-style declarations), so normalization here works on
// whitespace/punctuation tokens rather than parsing a grammar.
//
// The resulting sequence deliberately drops the symbol's own name: two
// near-identical functions with different names (a common boilerplate
// pattern - "getFoo"/"getBar" wrapping the same body shape) should still
// be comparable on structure.
func NormalizeSignatureTokens(arguments []string, returnType string) []string {
	var tokens []string
	for _, arg := range arguments {
		tokens = append(tokens, normalizeParamToken(arg)...)
	}
	if returnType != "" {
		tokens = append(tokens, "->", normalizeTypeToken(returnType))
	}
	return tokens
}

// normalizeParamToken splits one raw parameter string into a name
// placeholder plus its normalized type, tolerating the "name Type",
// "name: Type", and "Type name" shapes the supported grammars produce.
func normalizeParamToken(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ":", " ")
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return []string{"param", normalizeTypeToken(fields[0])}
	}
	// Heuristically, the type is whichever field looks like a type
	// (capitalized, or a recognized primitive, or carries a type marker);
	// otherwise fall back to the last field, matching Go/TS param order.
	for _, f := range fields {
		if looksLikeType(f) {
			return []string{"param", normalizeTypeToken(f)}
		}
	}
	return []string{"param", normalizeTypeToken(fields[len(fields)-1])}
}

var primitiveTypes = map[string]bool{
	"string": true, "int": true, "int32": true, "int64": true, "float": true,
	"float32": true, "float64": true, "bool": true, "boolean": true, "byte": true,
	"rune": true, "number": true, "any": true, "object": true, "void": true,
	"error": true, "interface{}": true, "str": true, "char": true, "double": true,
	"long": true, "short": true, "var": true, "let": true, "const": true,
}

func looksLikeType(f string) bool {
	stripped := strings.TrimLeft(f, "*[]...")
	if stripped == "" {
		return false
	}
	if primitiveTypes[strings.ToLower(stripped)] {
		return true
	}
	r := []rune(stripped)[0]
	return r >= 'A' && r <= 'Z'
}

// normalizeTypeToken applies NormalizeType's pointer/slice/qualifier
// stripping and additionally folds known-equivalent primitive spellings
// across languages (e.g. TypeScript "number" and Go "float64" both reduce
// to "num"), so a duplicate found across two languages in a polyglot repo
// still scores as similar.
func normalizeTypeToken(t string) string {
	base := NormalizeType(strings.TrimSpace(t))
	lower := strings.ToLower(base)
	switch lower {
	case "int", "int32", "int64", "long", "short":
		return "int"
	case "float", "float32", "float64", "double", "number":
		return "num"
	case "bool", "boolean":
		return "bool"
	case "string", "str":
		return "str"
	case "":
		return "void"
	default:
		return lower
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sigparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSignatureTokens_GoShape(t *testing.T) {
	got := NormalizeSignatureTokens([]string{"s string", "n int"}, "error")
	assert.Equal(t, []string{"param", "str", "param", "int", "->", "error"}, got)
}

func TestNormalizeSignatureTokens_TypeScriptShape(t *testing.T) {
	got := NormalizeSignatureTokens([]string{"name: string", "count: number"}, "boolean")
	assert.Equal(t, []string{"param", "str", "param", "num", "->", "bool"}, got)
}

func TestNormalizeSignatureTokens_CSharpShape(t *testing.T) {
	got := NormalizeSignatureTokens([]string{"string name", "int count"}, "void")
	assert.Equal(t, []string{"param", "str", "param", "int", "->", "void"}, got)
}

func TestNormalizeSignatureTokens_CrossLanguagePrimitivesFold(t *testing.T) {
	goTokens := NormalizeSignatureTokens([]string{"n float64"}, "")
	tsTokens := NormalizeSignatureTokens([]string{"n: number"}, "")
	assert.Equal(t, goTokens, tsTokens, "TS 'number' and Go 'float64' should normalize identically")
}

func TestNormalizeSignatureTokens_NoArguments(t *testing.T) {
	got := NormalizeSignatureTokens(nil, "")
	assert.Empty(t, got)
}

func TestNormalizeSignatureTokens_DropsSymbolName(t *testing.T) {
	// The function never receives a name argument at all; this documents
	// that two differently-named functions with identical shapes produce
	// the same token sequence.
	a := NormalizeSignatureTokens([]string{"x int"}, "int")
	b := NormalizeSignatureTokens([]string{"x int"}, "int")
	assert.Equal(t, a, b)
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package dupdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sig(hash, name, file string, start, end int, args []string, ret string) Signature {
	return Signature{Hash: hash, Name: name, File: file, StartLine: start, EndLine: end, Arguments: args, ReturnType: ret}
}

func TestDetect_ExactDuplicatesClusterTransitively(t *testing.T) {
	sigs := []Signature{
		sig("h1", "ParseA", "a.go", 10, 20, []string{"s string"}, "error"),
		sig("h2", "ParseB", "b.go", 5, 15, []string{"s string"}, "error"),
		sig("h3", "ParseC", "c.go", 1, 11, []string{"s string"}, "error"),
	}
	clusters := Detect(sigs, Options{})
	require.Len(t, clusters, 1)
	assert.Equal(t, "a.go", clusters[0].Primary.File, "earliest (file, line) wins as primary")
	assert.Len(t, clusters[0].Matches, 2)
	for _, m := range clusters[0].Matches {
		assert.Equal(t, Exact, m.Kind)
		assert.Equal(t, 1.0, m.Similarity)
	}
}

func TestDetect_BoilerplateExcludedByDefault(t *testing.T) {
	sigs := []Signature{
		sig("h1", "GetName", "a.go", 1, 3, nil, "string"),
		sig("h2", "GetName", "b.go", 1, 3, nil, "string"),
	}
	assert.Empty(t, Detect(sigs, Options{}))
	assert.NotEmpty(t, Detect(sigs, Options{IncludeBoilerplate: true}))
}

func TestDetect_MinLinesFiltersShortSpans(t *testing.T) {
	sigs := []Signature{
		sig("h1", "DoWork", "a.go", 1, 2, []string{"x int"}, "int"),
		sig("h2", "DoWork", "b.go", 1, 2, []string{"x int"}, "int"),
	}
	assert.Empty(t, Detect(sigs, Options{MinLines: 5}))
}

func TestDetect_NearMatchScoresBelowExact(t *testing.T) {
	sigs := []Signature{
		sig("h1", "Handle", "a.go", 1, 20, []string{"ctx context.Context", "req *Request"}, "error"),
		sig("h2", "Handle", "b.go", 1, 20, []string{"ctx context.Context", "req *Request", "extra bool"}, "error"),
	}
	clusters := Detect(sigs, Options{Threshold: 0.5})
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Matches, 1)
	assert.Equal(t, Near, clusters[0].Matches[0].Kind)
	assert.Less(t, clusters[0].Matches[0].Similarity, 1.0)
}

func TestDetect_NoMatchBelowThreshold(t *testing.T) {
	sigs := []Signature{
		sig("h1", "Foo", "a.go", 1, 20, []string{"x int"}, "int"),
		sig("h2", "Bar", "b.go", 1, 20, []string{"y string", "z []byte", "w error"}, "bool"),
	}
	assert.Empty(t, Detect(sigs, Options{Threshold: 0.95}))
}

func TestIsBoilerplate(t *testing.T) {
	assert.True(t, isBoilerplate(sig("h", "GetName", "a.go", 1, 2, nil, "string")))
	assert.True(t, isBoilerplate(sig("h", "SetName", "a.go", 1, 2, []string{"n string"}, "")))
	assert.True(t, isBoilerplate(sig("h", "IsValid", "a.go", 1, 2, nil, "bool")))
	assert.False(t, isBoilerplate(sig("h", "ComputeHash", "a.go", 1, 2, []string{"data []byte"}, "string")))
	assert.False(t, isBoilerplate(sig("h", "init", "a.go", 1, 2, nil, "")))
}

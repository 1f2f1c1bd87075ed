// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/schema"
	"github.com/kraklabs/semfora/pkg/shard"
)

// buildFixture writes a one-file, two-function module (Handler calls
// Helper) through the real shard writer into a Working-layer cache tree,
// and the matching source file into a repo root, mirroring the teacher's
// *_integration_test.go style of exercising the full write->read path
// instead of hand-built Doc fixtures.
func buildFixture(t *testing.T) (*Engine, string) {
	t.Helper()
	repoRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, "pkg", "foo"), 0o755))
	src := "package foo\n\nfunc Helper(x int) int {\n\treturn x + 1\n}\n\nfunc Handler(x int) int {\n\treturn Helper(x)\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "pkg", "foo", "a.go"), []byte(src), 0o644))

	helper := schema.SymbolInfo{
		Name: "Helper", Kind: schema.KindFunction, StartLine: 3, EndLine: 5,
		IsExported: true, ReturnType: "int",
	}
	handler := schema.SymbolInfo{
		Name: "Handler", Kind: schema.KindFunction, StartLine: 7, EndLine: 9,
		IsExported: true, ReturnType: "int",
		Calls: []schema.Call{{Name: "Helper", Location: schema.Location{Line: 8}}},
	}
	summary := &schema.SemanticSummary{
		File: "pkg/foo/a.go", Language: schema.LangGo,
		Symbols: []schema.SymbolInfo{helper, handler},
	}

	set := shard.Build([]*schema.SemanticSummary{summary}, 0)

	dir := cache.ForRepo(repoRoot)
	root := filepath.Join(dir.Root, "working")
	require.NoError(t, shard.Write(root, set))

	return New(dir, repoRoot), repoRoot
}

func TestOverview_CountsFilesAndSymbols(t *testing.T) {
	e, _ := buildFixture(t)
	res, err := e.Overview(OverviewOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, 2, res.SymbolCount)
}

func TestModule_ReturnsWorkingLayerShard(t *testing.T) {
	e, _ := buildFixture(t)
	doc, k, err := e.Module("", "pkg.foo")
	require.NoError(t, err)
	assert.Equal(t, "working", string(k))
	name, ok := doc.Scalar("name")
	require.True(t, ok)
	assert.Equal(t, "pkg.foo", name)
}

func TestFileSymbols_ListsBothFunctions(t *testing.T) {
	e, _ := buildFixture(t)
	entries, err := e.FileSymbols("", "pkg/foo/a.go", FileSymbolFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := []string{entries[0].Name, entries[1].Name}
	assert.ElementsMatch(t, []string{"Helper", "Handler"}, names)
}

func TestSymbolAtLine_FindsContainingFunction(t *testing.T) {
	e, _ := buildFixture(t)
	entry, err := e.SymbolAtLine("", "pkg/foo/a.go", 4)
	require.NoError(t, err)
	assert.Equal(t, "Helper", entry.Name)
}

func TestSymbolAtLine_NoContainingSymbolErrors(t *testing.T) {
	e, _ := buildFixture(t)
	_, err := e.SymbolAtLine("", "pkg/foo/a.go", 6)
	assert.Error(t, err)
}

func TestSource_ReadsRequestedRangeWithContext(t *testing.T) {
	e, _ := buildFixture(t)
	res, err := e.Source("pkg/foo/a.go", 3, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lines[0].Number)
	assert.False(t, res.Lines[0].InRange)
	assert.True(t, res.Lines[1].InRange)
}

func TestCallGraph_HandlerCallsHelper(t *testing.T) {
	e, _ := buildFixture(t)
	edges, _, err := e.CallGraph(CallGraphOptions{Layer: "working"})
	require.NoError(t, err)
	require.NotEmpty(t, edges)
	var found bool
	for _, ed := range edges {
		if ed.CallerName == "Handler" && ed.CalleeName == "Helper" {
			found = true
		}
	}
	assert.True(t, found, "expected Handler -> Helper edge, got %+v", edges)
}

func TestCallers_FindsHandlerAsCallerOfHelper(t *testing.T) {
	e, _ := buildFixture(t)
	entries, err := e.FileSymbols("working", "pkg/foo/a.go", FileSymbolFilter{})
	require.NoError(t, err)
	var helperHash string
	for _, en := range entries {
		if en.Name == "Helper" {
			helperHash = en.Hash
		}
	}
	require.NotEmpty(t, helperHash)

	hits, err := e.Callers("working", helperHash, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Handler", hits[0].Name)
}

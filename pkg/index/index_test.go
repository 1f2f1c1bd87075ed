// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/pipeline"
	"github.com/kraklabs/semfora/pkg/schema"
	"github.com/kraklabs/semfora/pkg/shard"
)

// seedLayer writes a two-file Working layer directly through the shard
// writer, the same fixture shape pkg/query's integration tests use, so
// RunIncremental's merge logic can be exercised without a real repo walk.
func seedLayer(t *testing.T, dir *cache.Dir) {
	t.Helper()
	a := &schema.SemanticSummary{
		File: "pkg/foo/a.go",
		Symbols: []schema.SymbolInfo{
			{Name: "A", Kind: schema.KindFunction, StartLine: 1, EndLine: 3},
		},
	}
	b := &schema.SemanticSummary{
		File: "pkg/foo/b.go",
		Symbols: []schema.SymbolInfo{
			{Name: "B", Kind: schema.KindFunction, StartLine: 1, EndLine: 3},
		},
	}
	set := shard.Build([]*schema.SemanticSummary{a, b}, 0)
	root := filepath.Join(dir.Root, string(layer.Working))
	require.NoError(t, shard.Write(root, set))
}

func TestRunIncremental_RemovesDeletedFileButKeepsOthers(t *testing.T) {
	repoRoot := t.TempDir()
	dir := cache.ForRepo(repoRoot)
	seedLayer(t, dir)

	// a.go no longer exists in the working tree; RunIncremental must drop
	// its symbols while leaving b.go's shard entry untouched (spec.md §8
	// invariant 5: files outside changedPaths are never touched, and a
	// changed path that now 404s is a deletion, not a skip).
	res, err := RunIncremental(context.Background(), repoRoot, dir, layer.Working,
		[]string{"pkg/foo/a.go"}, SHAInfo{}, pipeline.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "incremental", res.Strategy)

	names, err := dir.ListModules(string(layer.Working))
	require.NoError(t, err)
	require.Len(t, names, 1)

	doc, err := dir.LoadModule(string(layer.Working), names[0])
	require.NoError(t, err)
	files, _ := doc.Array("files")
	assert.Equal(t, []string{"pkg/foo/b.go"}, files)
}

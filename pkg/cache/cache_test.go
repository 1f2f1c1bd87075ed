// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForRepo_DeterministicForSamePath(t *testing.T) {
	dir := t.TempDir()
	a := ForRepo(dir)
	b := ForRepo(dir)
	assert.Equal(t, a.Root, b.Root)
}

func TestForRepo_DifferentPathsDifferentRoots(t *testing.T) {
	a := ForRepo(t.TempDir())
	b := ForRepo(t.TempDir())
	assert.NotEqual(t, a.Root, b.Root)
}

func TestPathHelpers_NestUnderLayerRoot(t *testing.T) {
	d := &Dir{Root: "/cache/root"}
	assert.Equal(t, filepath.Join("/cache/root", "base", "modules", "pkg_foo.toon"), d.ModulePath("base", "pkg_foo"))
	assert.Equal(t, filepath.Join("/cache/root", "working", "symbols", "abc.toon"), d.SymbolPath("working", "abc"))
	assert.Equal(t, filepath.Join("/cache/root", "branch", "graphs", "call_graph.toon"), d.CallGraphPath("branch"))
	assert.Equal(t, filepath.Join("/cache/root", "base", "signatures.jsonl"), d.SignaturesPath("base"))
}

func TestMeta_StaleOnVersionMismatchOrNil(t *testing.T) {
	assert.True(t, (*Meta)(nil).Stale())
	assert.True(t, (&Meta{SchemaVersion: SchemaVersion - 1}).Stale())
	assert.False(t, (&Meta{SchemaVersion: SchemaVersion}).Stale())
}

func TestExists_FalseUntilMetaWritten(t *testing.T) {
	d := &Dir{Root: t.TempDir()}
	assert.False(t, d.Exists())

	require.NoError(t, os.WriteFile(filepath.Join(d.Root, "meta.json"), []byte("{}"), 0o644))
	assert.True(t, d.Exists())
}

func TestListModules_EmptyWhenLayerDirMissing(t *testing.T) {
	d := &Dir{Root: t.TempDir()}
	names, err := d.ListModules("base")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListModules_StripsToonSuffix(t *testing.T) {
	d := &Dir{Root: t.TempDir()}
	modDir := filepath.Join(d.Root, "base", "modules")
	require.NoError(t, os.MkdirAll(modDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "pkg_foo.toon"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modDir, "pkg_bar.toon"), []byte(""), 0o644))

	names, err := d.ListModules("base")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pkg_foo", "pkg_bar"}, names)
}

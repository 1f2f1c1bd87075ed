// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocRoundTrip_ScalarArrayTable(t *testing.T) {
	doc := NewDoc("module")
	doc.Version = "1"
	doc.SetScalar("name", "pkg/query")
	doc.SetArray("files", []string{"query.go", "source.go", "trace.go"})
	doc.SetTable("symbols", Table{
		Columns: []string{"hash", "name", "kind"},
		Rows: [][]string{
			{"abc123", "Overview", "function"},
			{"def456", "Engine", "struct"},
		},
	})

	encoded := doc.Encode()
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, "module", decoded.Type)
	assert.Equal(t, "1", decoded.Version)

	name, ok := decoded.Scalar("name")
	require.True(t, ok)
	assert.Equal(t, "pkg/query", name)

	files, ok := decoded.Array("files")
	require.True(t, ok)
	assert.Equal(t, []string{"query.go", "source.go", "trace.go"}, files)

	table, ok := decoded.TableField("symbols")
	require.True(t, ok)
	assert.Equal(t, []string{"hash", "name", "kind"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Overview", table.Rows[0][1])
}

func TestDocRoundTrip_ScalarWithSpecialCharacters(t *testing.T) {
	doc := NewDoc("symbol")
	doc.SetScalar("signature", `func(s string, n int) (bool, error)`)
	doc.SetScalar("empty", "")

	decoded, err := Decode(doc.Encode())
	require.NoError(t, err)

	sig, ok := decoded.Scalar("signature")
	require.True(t, ok)
	assert.Equal(t, `func(s string, n int) (bool, error)`, sig)

	empty, ok := decoded.Scalar("empty")
	require.True(t, ok)
	assert.Equal(t, "", empty)
}

func TestDecode_MissingFieldReturnsNotOK(t *testing.T) {
	doc := NewDoc("module")
	doc.SetScalar("name", "x")
	decoded, err := Decode(doc.Encode())
	require.NoError(t, err)

	_, ok := decoded.Scalar("nonexistent")
	assert.False(t, ok)
	_, ok = decoded.Array("nonexistent")
	assert.False(t, ok)
	_, ok = decoded.TableField("nonexistent")
	assert.False(t, ok)
}

func TestDecode_AcceptsLegacyShortFieldNamesOnRead(t *testing.T) {
	const legacy = "_type: symbol\nh: abc123\ns: Overview\n"
	decoded, err := Decode(legacy)
	require.NoError(t, err)

	hash, ok := decoded.Scalar("hash")
	require.True(t, ok)
	assert.Equal(t, "abc123", hash)

	name, ok := decoded.Scalar("symbol")
	require.True(t, ok)
	assert.Equal(t, "Overview", name)

	// Re-encoding must upgrade to the long form, never emit "h"/"s" again.
	assert.Contains(t, decoded.Encode(), "hash: abc123")
	assert.Contains(t, decoded.Encode(), "symbol: Overview")
}

func TestDecode_JSONFallback(t *testing.T) {
	const jsonDoc = `{"_type": "module", "version": "1", "name": "pkg/foo"}`
	decoded, err := Decode(jsonDoc)
	require.NoError(t, err)
	assert.Equal(t, "module", decoded.Type)
	name, ok := decoded.Scalar("name")
	require.True(t, ok)
	assert.Equal(t, "pkg/foo", name)
}

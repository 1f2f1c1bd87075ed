// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache implements the on-disk cache directory contract of
// spec.md §4.6: locating the per-repo cache root, tracking shard
// staleness, and reading the shard tree written by pkg/shard back out for
// the query surface.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/semfora/pkg/schema"
	"github.com/kraklabs/semfora/pkg/shard"
)

// SchemaVersion is bumped whenever the shard encoding changes in a way
// that makes previously written shards unreadable; CacheMeta staleness
// (spec.md §4.6) compares against this.
const SchemaVersion = 1

// LayerMeta is the per-layer bookkeeping block meta.json carries for one
// of Base/Branch/Working (spec.md §4.7's LayerMeta, persisted).
type LayerMeta struct {
	IndexedSHA     string    `json:"indexed_sha"`
	MergeBaseSHA   string    `json:"merge_base_sha,omitempty"`
	IndexedAt      time.Time `json:"indexed_at"`
	StrippingDepth int       `json:"stripping_depth"`
	FileCount      int       `json:"file_count"`
	SymbolCount    int       `json:"symbol_count"`
	Strategy       string    `json:"strategy,omitempty"`
}

// Meta is the staleness record persisted as meta.json alongside the shard
// tree (spec.md §4.6 and §3's "Lifecycle").
type Meta struct {
	RepoHash      string               `json:"repo_hash"`
	SchemaVersion int                  `json:"schema_version"`
	IndexedAt     time.Time            `json:"indexed_at"`
	Layers        map[string]LayerMeta `json:"layers"`
}

// Stale reports whether m is missing or was written with a schema version
// other than the one this binary uses, older or newer (spec.md §4.6, "the whole meta is
// stale if the schema version differs from the runtime's").
func (m *Meta) Stale() bool {
	return m == nil || m.SchemaVersion != SchemaVersion
}

// Dir is one repo's cache root, anchored under XDG_CACHE_HOME (or
// $HOME/.cache, falling back to $TMPDIR) as `<root>/semfora/<repo_hash>`.
type Dir struct {
	Root string
}

// repoHash is the FNV-1a 64-bit digest, rendered as lowercase hex, over
// `git remote get-url origin` when available, else the repo's canonical
// absolute path (spec.md §4.6, "Repo hash").
func repoHash(repoPath string) string {
	if out, err := exec.Command("git", "-C", repoPath, "remote", "get-url", "origin").Output(); err == nil {
		url := strings.TrimSpace(string(out))
		if url != "" {
			return fmt.Sprintf("%016x", schema.FNV1a64([]byte(url)))
		}
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}
	return fmt.Sprintf("%016x", schema.FNV1a64([]byte(abs)))
}

// cacheBase resolves the base cache directory: $XDG_CACHE_HOME if set,
// else $HOME/.cache, else $TMPDIR, per spec.md §4.6.
func cacheBase() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache")
	}
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		return tmp
	}
	return os.TempDir()
}

// ForRepo returns the Dir for repoPath, creating no directories yet.
func ForRepo(repoPath string) *Dir {
	return &Dir{Root: filepath.Join(cacheBase(), "semfora", repoHash(repoPath))}
}

// Exists reports whether this repo's cache root already has a shard tree.
func (d *Dir) Exists() bool {
	_, err := os.Stat(filepath.Join(d.Root, "meta.json"))
	return err == nil
}

func (d *Dir) layerRoot(layer string) string { return filepath.Join(d.Root, layer) }

// RepoOverviewPath returns the path to a layer's repo_overview.toon.
func (d *Dir) RepoOverviewPath(layer string) string {
	return filepath.Join(d.layerRoot(layer), "repo_overview.toon")
}

// ModulePath returns the path to a layer's module shard file.
func (d *Dir) ModulePath(layer, sanitizedName string) string {
	return filepath.Join(d.layerRoot(layer), "modules", sanitizedName+".toon")
}

// SymbolPath returns the path to a layer's symbol detail shard.
func (d *Dir) SymbolPath(layer, hash string) string {
	return filepath.Join(d.layerRoot(layer), "symbols", hash+".toon")
}

// CallGraphPath returns the path to a layer's call graph shard.
func (d *Dir) CallGraphPath(layer string) string {
	return filepath.Join(d.layerRoot(layer), "graphs", "call_graph.toon")
}

// SignaturesPath returns the path to a layer's signatures.jsonl, the
// duplicate-detector's input (spec.md §4.13).
func (d *Dir) SignaturesPath(layer string) string {
	return filepath.Join(d.layerRoot(layer), "signatures.jsonl")
}

// ListModules lists the sanitized module shard names present in a layer.
func (d *Dir) ListModules(layer string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.layerRoot(layer), "modules"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache.ListModules: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toon") {
			names = append(names, strings.TrimSuffix(e.Name(), ".toon"))
		}
	}
	return names, nil
}

// ListSymbols lists the symbol hashes with a detail shard present in a
// layer.
func (d *Dir) ListSymbols(layer string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.layerRoot(layer), "symbols"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache.ListSymbols: %w", err)
	}
	var hashes []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toon") {
			hashes = append(hashes, strings.TrimSuffix(e.Name(), ".toon"))
		}
	}
	return hashes, nil
}

// LoadModule reads and decodes a layer's module shard.
func (d *Dir) LoadModule(layer, sanitizedName string) (*shard.Doc, error) {
	return loadDoc(d.ModulePath(layer, sanitizedName))
}

// LoadSymbol reads and decodes a layer's symbol detail shard.
func (d *Dir) LoadSymbol(layer, hash string) (*shard.Doc, error) {
	return loadDoc(d.SymbolPath(layer, hash))
}

// LoadCallGraph reads and decodes a layer's call graph shard.
func (d *Dir) LoadCallGraph(layer string) (*shard.Doc, error) {
	return loadDoc(d.CallGraphPath(layer))
}

// LoadAllSymbolEntries reads every module shard in a layer and returns the
// flattened `symbols` table rows across all of them, for queries that scan
// the whole repo (e.g. file-symbols, search fallback).
func (d *Dir) LoadAllSymbolEntries(layer string) ([]shard.Table, error) {
	names, err := d.ListModules(layer)
	if err != nil {
		return nil, err
	}
	var tables []shard.Table
	for _, name := range names {
		doc, err := d.LoadModule(layer, name)
		if err != nil {
			return nil, err
		}
		if t, ok := doc.TableField("symbols"); ok {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

func loadDoc(path string) (*shard.Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return shard.Decode(string(data))
}

// LoadMeta reads the cache root's meta.json. A missing file returns a
// fresh, schema-current Meta rather than an error, since the first index
// run for a repo has nothing to load yet.
func (d *Dir) LoadMeta() (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(d.Root, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Meta{SchemaVersion: SchemaVersion, Layers: make(map[string]LayerMeta)}, nil
		}
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cache.LoadMeta: %w", err)
	}
	if m.Layers == nil {
		m.Layers = make(map[string]LayerMeta)
	}
	return &m, nil
}

// SetLayerMeta records lm for layerName and stamps the document's overall
// IndexedAt, for callers that load-modify-SaveMeta around one layer update
// at a time.
func (m *Meta) SetLayerMeta(layerName string, lm LayerMeta) {
	if m.Layers == nil {
		m.Layers = make(map[string]LayerMeta)
	}
	m.Layers[layerName] = lm
	m.IndexedAt = lm.IndexedAt
	m.SchemaVersion = SchemaVersion
}

// SaveMeta atomically writes meta.json.
func (d *Dir) SaveMeta(m *Meta) error {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(d.Root, "meta.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(d.Root, "meta.json"))
}

// Clear removes the entire cache root for this repo (spec.md §4.6
// "clear"), used by the `reset` operation.
func (d *Dir) Clear() error {
	return os.RemoveAll(d.Root)
}

// OpenRegistry opens (creating if absent) the module_registry.sqlite
// database at this cache root, using the pure-Go modernc.org/sqlite
// driver (see DESIGN.md for why this replaces a CGO-backed embedded
// store).
func (d *Dir) OpenRegistry() (*sql.DB, error) {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(d.Root, "module_registry.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("cache.OpenRegistry: %w", err)
	}
	if err := ensureRegistrySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureRegistrySchema(db *sql.DB) error {
	const schemaSQL = `
CREATE TABLE IF NOT EXISTS modules (
	full_path  TEXT PRIMARY KEY,
	short_name TEXT UNIQUE NOT NULL,
	file_path  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS registry_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	_, err := db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("cache.ensureRegistrySchema: %w", err)
	}
	return nil
}

// UpsertModule records (or updates) a module's full path, conflict-resolved
// short name, and representative file path in the registry.
func UpsertModule(db *sql.DB, fullPath, shortName, filePath string) error {
	_, err := db.Exec(
		`INSERT INTO modules(full_path, short_name, file_path) VALUES (?, ?, ?)
		 ON CONFLICT(full_path) DO UPDATE SET short_name = excluded.short_name, file_path = excluded.file_path`,
		fullPath, shortName, filePath,
	)
	return err
}

// LookupByShortName resolves a short module name back to its full path.
func LookupByShortName(db *sql.DB, shortName string) (fullPath string, ok bool, err error) {
	row := db.QueryRow(`SELECT full_path FROM modules WHERE short_name = ?`, shortName)
	err = row.Scan(&fullPath)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return fullPath, true, nil
}

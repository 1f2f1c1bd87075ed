// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package query implements the read-only query surface of spec.md §4.12:
// overview, module, symbol, source, file-symbols, callers, callgraph, trace,
// duplicates and search. It is the single implementation the MCP and CLI
// frontends are meant to share - grounded in the shape (if not the storage
// engine) of the teacher's pkg/tools query handlers, rewritten against the
// TOON shard cache instead of a CozoDB Datalog store.
package query

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/schema"
	"github.com/kraklabs/semfora/pkg/shard"

	ierrors "github.com/kraklabs/semfora/internal/errors"
)

// logQuery emits a structured debug line tagged with a fresh request
// correlation id, so a single query can be traced across the CLI and any
// future frontend sharing this Engine (spec.md §4.12's query surface is
// meant to be frontend-agnostic).
func logQuery(op string, attrs ...any) string {
	id := uuid.NewString()
	args := append([]any{"request_id", id}, attrs...)
	slog.Debug("query."+op, args...)
	return id
}

// layerOrder is the read-side composition rule of spec.md §4.7: Working
// overrides Branch overrides Base, so a query tries layers in that order
// and answers from the first one that has the requested data.
var layerOrder = []layer.Kind{layer.Working, layer.Branch, layer.Base}

// Engine answers queries against one repo's cache directory.
type Engine struct {
	Dir      *cache.Dir
	RepoRoot string
}

// New builds an Engine over an already-resolved cache directory.
func New(dir *cache.Dir, repoRoot string) *Engine {
	return &Engine{Dir: dir, RepoRoot: repoRoot}
}

// testModulePatterns are the name-pattern infixes spec.md §4.12 names for
// detecting test modules in the Overview query.
var testModulePatterns = []string{
	"test", "tests", "spec", "mock", "fixture", "e2e", "integration", "unit", ".test.", ".spec.",
}

// isTestModule reports whether a module or file name looks like test code,
// by substring match against testModulePatterns (case-insensitive).
func isTestModule(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range testModulePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ModuleSummary is one row of the Overview response.
type ModuleSummary struct {
	Name        string
	FileCount   int
	SymbolCount int
	IsTest      bool
}

// OverviewResult is the response to the Overview query.
type OverviewResult struct {
	Modules        []ModuleSummary
	FileCount      int
	SymbolCount    int
	FrameworkEntries int
	FilteredCount  int // test modules excluded
	TruncatedCount int // modules dropped by MaxCount
}

// OverviewOptions configures the Overview query.
type OverviewOptions struct {
	ModuleFilter   string // substring filter on module name; empty means all
	MaxCount       int    // 0 means unlimited
	ExcludeTests   bool
}

// Overview aggregates per-module file/symbol counts from the first layer
// (in Working/Branch/Base order) that has any modules at all.
func (e *Engine) Overview(opts OverviewOptions) (*OverviewResult, error) {
	logQuery("overview", "module_filter", opts.ModuleFilter)
	activeLayer, names, err := e.firstNonEmptyLayer()
	if err != nil {
		return nil, err
	}
	res := &OverviewResult{}
	if activeLayer == "" {
		return res, nil
	}

	type acc struct {
		files, symbols int
		isTest         bool
	}
	byName := make(map[string]*acc)
	order := make([]string, 0, len(names))

	for _, name := range names {
		if opts.ModuleFilter != "" && !strings.Contains(name, opts.ModuleFilter) {
			continue
		}
		doc, err := e.Dir.LoadModule(string(activeLayer), name)
		if err != nil {
			return nil, ierrors.NewQueryError("overview: load module "+name, err)
		}
		files, _ := doc.Array("files")
		table, _ := doc.TableField("symbols")

		a := &acc{files: len(files), symbols: len(table.Rows), isTest: isTestModule(name)}
		byName[name] = a
		order = append(order, name)
	}
	sort.Strings(order)

	filtered := 0
	for _, name := range order {
		a := byName[name]
		if opts.ExcludeTests && a.isTest {
			filtered++
			continue
		}
		res.Modules = append(res.Modules, ModuleSummary{
			Name: name, FileCount: a.files, SymbolCount: a.symbols, IsTest: a.isTest,
		})
		res.FileCount += a.files
		res.SymbolCount += a.symbols
	}
	res.FilteredCount = filtered

	if opts.MaxCount > 0 && len(res.Modules) > opts.MaxCount {
		res.TruncatedCount = len(res.Modules) - opts.MaxCount
		res.Modules = res.Modules[:opts.MaxCount]
	}
	return res, nil
}

// firstNonEmptyLayer returns the highest-precedence layer that has at least
// one module shard, along with the module names it lists.
func (e *Engine) firstNonEmptyLayer() (layer.Kind, []string, error) {
	for _, k := range layerOrder {
		names, err := e.Dir.ListModules(string(k))
		if err != nil {
			return "", nil, ierrors.NewQueryError("list modules in layer "+string(k), err)
		}
		if len(names) > 0 {
			return k, names, nil
		}
	}
	return "", nil, nil
}

// Module returns a layer's module shard parsed into a structured value. If
// layerName is empty, the highest-precedence layer that has this module
// wins.
func (e *Engine) Module(layerName, name string) (*shard.Doc, layer.Kind, error) {
	logQuery("module", "layer", layerName, "name", name)
	if layerName != "" {
		doc, err := e.Dir.LoadModule(layerName, name)
		if err != nil {
			return nil, layer.Kind(layerName), ierrors.NewFileNotFound(name, err)
		}
		return doc, layer.Kind(layerName), nil
	}
	for _, k := range layerOrder {
		doc, err := e.Dir.LoadModule(string(k), name)
		if err == nil {
			return doc, k, nil
		}
	}
	return nil, "", ierrors.NewFileNotFound(name, nil)
}

// SymbolByHash is one resolved hit from SymbolsByHash.
type SymbolByHash struct {
	Hash string
	Doc  *shard.Doc
	Layer layer.Kind
}

// SymbolsByHash resolves a batch of hashes (surrounding whitespace and
// empty entries are ignored) against the
// symbol detail shards, composing layers in precedence order, per
// spec.md §4.12's "Symbol by hash (batch)".
func (e *Engine) SymbolsByHash(hashes []string) (found []SymbolByHash, notFound []string) {
	logQuery("symbols_by_hash", "count", len(hashes))
	for _, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		ok := false
		for _, k := range layerOrder {
			doc, err := e.Dir.LoadSymbol(string(k), h)
			if err == nil {
				found = append(found, SymbolByHash{Hash: h, Doc: doc, Layer: k})
				ok = true
				break
			}
		}
		if !ok {
			notFound = append(notFound, h)
		}
	}
	return found, notFound
}

// FileSymbolEntry is one row from a module shard's symbol table, resolved
// to the file it belongs to.
type FileSymbolEntry struct {
	Hash          string
	Name          string
	Kind          schema.SymbolKind
	File          string
	StartLine     int
	EndLine       int
	Exported      bool
	Risk          schema.BehavioralRisk
	Entry         schema.FrameworkEntryPoint
	IsEscapeLocal bool
}

// SymbolAtLine returns the unique symbol in file whose [start, end] range
// contains line, per spec.md §4.12's "Symbol by file+line": file matches by
// suffix so callers may pass a relative or partial path.
func (e *Engine) SymbolAtLine(layerName, file string, line int) (*FileSymbolEntry, error) {
	logQuery("symbol_at_line", "file", file, "line", line)
	entries, err := e.fileSymbols(layerName, file, FileSymbolFilter{})
	if err != nil {
		return nil, err
	}
	var best *FileSymbolEntry
	bestSpan := -1
	for i := range entries {
		s := entries[i]
		if line < s.StartLine || line > s.EndLine {
			continue
		}
		span := s.EndLine - s.StartLine
		if best == nil || span < bestSpan {
			best = &entries[i]
			bestSpan = span
		}
	}
	if best == nil {
		return nil, ierrors.NewQueryError(fmt.Sprintf("no symbol contains %s:%d", file, line), nil)
	}
	return best, nil
}

// FileSymbolFilter narrows the File symbols query per spec.md §4.12.
type FileSymbolFilter struct {
	Kind             schema.SymbolKind // empty means any
	Risk             schema.BehavioralRisk
	IncludeMethods   bool
	ExcludeMethods   bool
	IncludeEscapeRefs bool
	ExcludeEscapeRefs bool
}

// FileSymbols returns every symbol in file (matched by path suffix),
// subject to filter, searching layers in precedence order and returning
// the first layer that has the file at all.
func (e *Engine) FileSymbols(layerName, file string, filter FileSymbolFilter) ([]FileSymbolEntry, error) {
	logQuery("file_symbols", "file", file, "kind", string(filter.Kind))
	return e.fileSymbols(layerName, file, filter)
}

func (e *Engine) fileSymbols(layerName, file string, filter FileSymbolFilter) ([]FileSymbolEntry, error) {
	layers := layerOrder
	if layerName != "" {
		layers = []layer.Kind{layer.Kind(layerName)}
	}
	for _, k := range layers {
		tables, err := e.Dir.LoadAllSymbolEntries(string(k))
		if err != nil {
			return nil, ierrors.NewQueryError("file symbols: "+string(k), err)
		}
		var out []FileSymbolEntry
		matched := false
		for _, t := range tables {
			idx := colIndex(t.Columns)
			for _, row := range t.Rows {
				rowFile := row[idx["file"]]
				if !strings.HasSuffix(rowFile, file) {
					continue
				}
				matched = true
				entry := rowToEntry(row, idx)
				if !passesFilter(entry, filter) {
					continue
				}
				out = append(out, entry)
			}
		}
		if matched {
			sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
			return out, nil
		}
	}
	return nil, nil
}

func passesFilter(e FileSymbolEntry, f FileSymbolFilter) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Risk != "" && e.Risk != f.Risk {
		return false
	}
	if f.ExcludeMethods && e.Kind == schema.KindMethod {
		return false
	}
	if f.IncludeMethods && e.Kind != schema.KindMethod {
		return false
	}
	if f.ExcludeEscapeRefs && e.IsEscapeLocal {
		return false
	}
	if f.IncludeEscapeRefs && !e.IsEscapeLocal {
		return false
	}
	return true
}

func rowToEntry(row []string, idx map[string]int) FileSymbolEntry {
	get := func(k string) string {
		if i, ok := idx[k]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	start, _ := strconv.Atoi(get("start_line"))
	end, _ := strconv.Atoi(get("end_line"))
	return FileSymbolEntry{
		Hash:          get("hash"),
		Name:          get("name"),
		Kind:          schema.SymbolKind(get("kind")),
		File:          get("file"),
		StartLine:     start,
		EndLine:       end,
		Exported:      get("exported") == "true",
		Risk:          schema.BehavioralRisk(get("risk")),
		Entry:         schema.FrameworkEntryPoint(get("entry")),
		IsEscapeLocal: get("is_escape_local") == "true",
	}
}

func colIndex(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}

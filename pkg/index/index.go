// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index is the bulk-indexing orchestrator: it walks a repository
// working tree, runs pkg/pipeline over every eligible file on a
// work-stealing worker pool (spec.md §5), and hands the resulting batch of
// schema.SemanticSummary values to pkg/shard + pkg/cache to become an
// on-disk layer. It is also the entry point incremental updates go
// through (spec.md §4.2's "per-file errors ... caller skips it and moves
// on" failure semantics apply equally to a one-file incremental run as to
// a full repository walk).
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/pipeline"
	"github.com/kraklabs/semfora/pkg/schema"
	"github.com/kraklabs/semfora/pkg/shard"
	"github.com/kraklabs/semfora/pkg/watcher"
)

// MaxFileSize is the default per-file size ceiling the walk applies before
// handing a file to the pipeline; oversized generated files (minified
// bundles, lockfiles mislabeled with a supported extension) are skipped
// rather than blocking a worker on a pathological parse.
const MaxFileSize = 5 << 20 // 5 MiB

// Result is what a Run call reports back to its caller for logging and for
// pkg/cache.AppendIndexLog (SPEC_FULL.md §C.1).
type Result struct {
	Layer          layer.Kind
	Strategy       string
	FilesWalked    int
	FilesIndexed   int
	FilesSkipped   int
	ModuleCount    int
	SymbolCount    int
	StrippingDepth int
	Duration       time.Duration
}

// SHAInfo is the git-state stamp a layer update records into meta.json's
// per-layer block (spec.md §3, "Each layer records indexed_sha ... or
// base/merge-base SHA"). The Working layer has no meaningful SHA and
// passes the zero value.
type SHAInfo struct {
	IndexedSHA   string
	MergeBaseSHA string
}

// defaultConcurrency is the number of parallel extraction workers runFiles
// allows: the value of SEMFORA_INDEX_CONCURRENCY when it parses as a
// positive integer, otherwise 8. The indexing.concurrency field of
// project.yaml is not consulted.
func defaultConcurrency() int {
	n := 0
	if v := os.Getenv("SEMFORA_INDEX_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &n)
	}
	if n <= 0 {
		return 8
	}
	return n
}

// Run performs a full walk of repoRoot, extracting every eligible file and
// writing a complete shard tree for layer kind into dir. It is the
// FullRebuild path of spec.md §4.8 and the initial indexing pass for any
// layer.
func Run(ctx context.Context, repoRoot string, dir *cache.Dir, kind layer.Kind, sha SHAInfo, opts pipeline.Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := walkRepo(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("index.Run: walk: %w", err)
	}
	return runFiles(ctx, repoRoot, dir, kind, files, sha, opts, logger)
}

// RunIncremental re-extracts exactly the given repo-relative paths and
// merges them into the existing shard tree for layer kind - the Working
// layer's response to a file watcher batch, or a Branch layer's response
// to a small git diff (spec.md §4.8 "Incremental(files)").
//
// Per spec.md §8 invariant 5, symbols for files outside changedPaths are
// left untouched: this is achieved by reading back every module shard
// currently on disk, replacing only the summaries for touched files, and
// rewriting the full shard set from that merged collection - the shard
// writer has no notion of a partial module rewrite, so correctness comes
// from recomputing the full Set from the full merged summary list, not
// from trying to patch individual shard files.
func RunIncremental(ctx context.Context, repoRoot string, dir *cache.Dir, kind layer.Kind, changedPaths []string, sha SHAInfo, opts pipeline.Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	existing, err := loadExistingSummaries(dir, string(kind))
	if err != nil {
		logger.Warn("index.RunIncremental: loading existing shards failed, falling back to full rebuild", "layer", kind, "error", err)
		return Run(ctx, repoRoot, dir, kind, sha, opts, logger)
	}

	p := pipeline.New(logger, opts)
	merged := make(map[string]*schema.SemanticSummary, len(existing))
	for _, s := range existing {
		merged[s.File] = s
	}

	var indexed, skipped int32
	for _, rel := range changedPaths {
		norm := schema.NormalizeFilePath(rel)
		abs := filepath.Join(repoRoot, filepath.FromSlash(norm))
		content, err := os.ReadFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				delete(merged, norm)
				continue
			}
			logger.Warn("index.RunIncremental: read failed, skipping file", "file", norm, "error", err)
			skipped++
			continue
		}
		sum, err := p.ExtractFile(ctx, norm, content)
		if err != nil {
			logger.Warn("index.RunIncremental: extraction failed, retaining previous state", "file", norm, "error", err)
			skipped++
			continue
		}
		merged[norm] = sum
		indexed++
	}

	summaries := make([]*schema.SemanticSummary, 0, len(merged))
	for _, s := range merged {
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].File < summaries[j].File })

	res, err := writeLayer(dir, kind, summaries, sha, "incremental")
	if err != nil {
		return nil, err
	}
	res.Strategy = "incremental"
	res.FilesWalked = len(changedPaths)
	res.FilesIndexed = int(indexed)
	res.FilesSkipped = int(skipped)
	res.Duration = time.Since(start)
	return res, nil
}

func runFiles(ctx context.Context, repoRoot string, dir *cache.Dir, kind layer.Kind, files []string, sha SHAInfo, opts pipeline.Options, logger *slog.Logger) (*Result, error) {
	start := time.Now()
	p := pipeline.New(logger, opts)

	type slot struct {
		sum *schema.SemanticSummary
		ok  bool
	}
	slots := make([]slot, len(files))

	var indexed, skipped int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency())
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			abs := filepath.Join(repoRoot, filepath.FromSlash(rel))
			content, err := os.ReadFile(abs)
			if err != nil {
				logger.Warn("index.Run: read failed, skipping file", "file", rel, "error", err)
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			if int64(len(content)) > MaxFileSize {
				logger.Warn("index.Run: file exceeds size ceiling, skipping", "file", rel, "size", len(content))
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			sum, err := p.ExtractFile(gctx, rel, content)
			if err != nil {
				logger.Warn("index.Run: extraction failed, skipping file", "file", rel, "error", err)
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			slots[i] = slot{sum: sum, ok: true}
			atomic.AddInt32(&indexed, 1)
			return nil
		})
	}
	// Per spec.md §4.2's failure semantics, a per-file error never aborts the
	// batch; g.Wait only returns non-nil for a context cancellation, which
	// does abort the remaining in-flight work.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index.Run: %w", err)
	}

	summaries := make([]*schema.SemanticSummary, 0, len(files))
	for _, s := range slots {
		if s.ok {
			summaries = append(summaries, s.sum)
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].File < summaries[j].File })

	res, err := writeLayer(dir, kind, summaries, sha, "full_rebuild")
	if err != nil {
		return nil, err
	}
	res.Strategy = "full_rebuild"
	res.FilesWalked = len(files)
	res.FilesIndexed = int(indexed)
	res.FilesSkipped = int(skipped)
	res.Duration = time.Since(start)
	return res, nil
}

// writeLayer assembles and persists the shard Set for summaries, updates
// the module registry and meta.json, and returns the common part of a
// Result.
func writeLayer(dir *cache.Dir, kind layer.Kind, summaries []*schema.SemanticSummary, sha SHAInfo, strategy string) (*Result, error) {
	paths := make([]string, len(summaries))
	for i, s := range summaries {
		paths[i] = s.File
	}
	depth := schema.ChooseStrippingDepth(paths)

	set := shard.Build(summaries, depth)
	root := filepath.Join(dir.Root, string(kind))
	if err := shard.Write(root, set); err != nil {
		return nil, fmt.Errorf("index.writeLayer: %w", err)
	}

	if err := updateRegistry(dir, summaries, depth); err != nil {
		return nil, fmt.Errorf("index.writeLayer: registry: %w", err)
	}

	symbolCount := 0
	for _, s := range summaries {
		symbolCount += len(s.Symbols)
	}

	meta, err := dir.LoadMeta()
	if err != nil {
		return nil, fmt.Errorf("index.writeLayer: meta: %w", err)
	}
	now := time.Now()
	meta.SetLayerMeta(string(kind), cache.LayerMeta{
		IndexedSHA:     sha.IndexedSHA,
		MergeBaseSHA:   sha.MergeBaseSHA,
		IndexedAt:      now,
		StrippingDepth: depth,
		FileCount:      len(summaries),
		SymbolCount:    symbolCount,
		Strategy:       strategy,
	})
	if err := dir.SaveMeta(meta); err != nil {
		return nil, fmt.Errorf("index.writeLayer: save meta: %w", err)
	}

	return &Result{
		Layer:          kind,
		ModuleCount:    len(set.Modules),
		SymbolCount:    symbolCount,
		StrippingDepth: depth,
	}, nil
}

func updateRegistry(dir *cache.Dir, summaries []*schema.SemanticSummary, depth int) error {
	db, err := dir.OpenRegistry()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, s := range summaries {
		shortName := schema.ModuleNameForDepth(s.File, depth)
		if err := cache.UpsertModule(db, filepath.Dir(s.File), orRoot(shortName), s.File); err != nil {
			return err
		}
	}
	return nil
}

func orRoot(s string) string {
	if s == "" {
		return "root"
	}
	return s
}

// walkRepo lists every repo-relative file path eligible for extraction:
// directories rejected by watcher.PathAllowed are pruned entirely, and
// files are kept only when their extension is one pipeline.SupportedExtensions
// knows about (spec.md §4.10's path-filtering rules apply equally to the
// initial bulk walk, not just the live watcher).
func walkRepo(root string) ([]string, error) {
	exts := make(map[string]bool)
	for _, e := range pipeline.SupportedExtensions() {
		exts[e] = true
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		norm := filepath.ToSlash(rel)
		if info.IsDir() {
			if !watcher.PathAllowed(norm) {
				return filepath.SkipDir
			}
			return nil
		}
		if !watcher.PathAllowed(norm) {
			return nil
		}
		if !exts[filepath.Ext(norm)] {
			return nil
		}
		files = append(files, norm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// loadExistingSummaries reconstructs a lightweight summary set (enough to
// be merged and re-shredded) from a layer's current module shards. It
// reads back exactly the columns the shard writer itself produces, so it
// is the inverse of shard.Build's module-shard encoding, not a general
// shard reader.
func loadExistingSummaries(dir *cache.Dir, layerName string) ([]*schema.SemanticSummary, error) {
	names, err := dir.ListModules(layerName)
	if err != nil {
		return nil, err
	}
	byFile := make(map[string]*schema.SemanticSummary)
	for _, name := range names {
		doc, err := dir.LoadModule(layerName, name)
		if err != nil {
			return nil, err
		}
		fileList, _ := doc.Array("files")
		for _, f := range fileList {
			if _, ok := byFile[f]; !ok {
				byFile[f] = &schema.SemanticSummary{File: f}
			}
		}
		table, ok := doc.TableField("symbols")
		if !ok {
			continue
		}
		idx := columnIndex(table.Columns)
		for _, row := range table.Rows {
			file := row[idx["file"]]
			sum, ok := byFile[file]
			if !ok {
				sum = &schema.SemanticSummary{File: file}
				byFile[file] = sum
			}
			sum.Symbols = append(sum.Symbols, rowToSymbol(row, idx))
		}
	}
	out := make([]*schema.SemanticSummary, 0, len(byFile))
	for _, s := range byFile {
		out = append(out, s)
	}
	return out, nil
}

func rowToSymbol(row []string, idx map[string]int) schema.SymbolInfo {
	get := func(k string) string {
		if i, ok := idx[k]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	s := schema.SymbolInfo{
		Hash:      get("hash"),
		Name:      get("name"),
		Kind:      schema.SymbolKind(get("kind")),
		BehavioralRisk: schema.BehavioralRisk(get("risk")),
		FrameworkEntry: schema.FrameworkEntryPoint(get("entry")),
	}
	fmt.Sscanf(get("start_line"), "%d", &s.StartLine)
	fmt.Sscanf(get("end_line"), "%d", &s.EndLine)
	s.IsExported = get("exported") == "true"
	s.IsEscapeLocal = get("is_escape_local") == "true"
	return s
}

func columnIndex(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}

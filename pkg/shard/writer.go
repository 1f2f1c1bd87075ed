// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/semfora/pkg/schema"
)

// Set is the full on-disk shard tree for one layer of one repo (spec.md §3,
// "Shard layout on disk"): a repo overview, one shard per module, one
// detail shard per rich symbol, three graph shards, and a line-oriented
// signature dump for duplicate detection.
type Set struct {
	RepoOverview string            // repo_overview.toon contents
	Modules      map[string]string // modules/<sanitized>.toon contents, keyed by sanitized filename
	Symbols      map[string]string // symbols/<hash>.toon contents, keyed by hash
	CallGraph    string            // graphs/call_graph.toon
	ImportGraph  string            // graphs/import_graph.toon
	ModuleGraph  string            // graphs/module_graph.toon
	Signatures   []string          // one JSON line per function/method symbol
}

// isRich reports whether a symbol carries enough behavioral detail (any
// calls, control flow, state changes or base classes) to earn its own
// symbols/<hash>.toon detail shard;
// trivial variables and empty stubs are described fully within their
// module shard's row instead.
func isRich(s schema.SymbolInfo) bool {
	return len(s.Calls) > 0 || len(s.ControlFlow) > 0 || len(s.StateChanges) > 0 || len(s.BaseClasses) > 0
}

// Build assembles a Set from a batch of extracted summaries, following the
// eight-step shard writer protocol of spec.md §4.5. strippingDepth should
// come from schema.ChooseStrippingDepth over the same file-path set.
func Build(summaries []*schema.SemanticSummary, strippingDepth int) *Set {
	set := &Set{
		Modules: make(map[string]string),
		Symbols: make(map[string]string),
	}

	// Step 1: assign each symbol its content hash and each file its module.
	type moduleBucket struct {
		name    string
		files   []*schema.SemanticSummary
	}
	buckets := make(map[string]*moduleBucket)
	for _, sum := range summaries {
		for i := range sum.Symbols {
			s := &sum.Symbols[i]
			s.Hash = schema.SymbolHash(sum.File, s.Name, s.Kind, s.StartLine)
		}
		modName := schema.ModuleNameForDepth(sum.File, strippingDepth)
		b, ok := buckets[modName]
		if !ok {
			b = &moduleBucket{name: modName}
			buckets[modName] = b
		}
		b.files = append(b.files, sum)
	}

	moduleNames := make([]string, 0, len(buckets))
	for name := range buckets {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)

	// Step 2: write one shard per module.
	for _, name := range moduleNames {
		b := buckets[name]
		sort.Slice(b.files, func(i, j int) bool { return b.files[i].File < b.files[j].File })
		set.Modules[moduleFilename(name)] = encodeModuleShard(name, b.files)
	}

	// Step 3: write one detail shard per rich symbol.
	for _, sum := range summaries {
		for _, s := range sum.Symbols {
			if isRich(s) {
				set.Symbols[s.Hash] = encodeSymbolShard(sum.File, s)
			}
		}
	}

	// Step 4-6: aggregate the three graph shards.
	set.CallGraph = encodeCallGraph(summaries)
	set.ImportGraph = encodeImportGraph(summaries)
	set.ModuleGraph = encodeModuleGraph(summaries, strippingDepth)

	// Step 7: repo overview.
	set.RepoOverview = encodeRepoOverview(moduleNames, summaries)

	// Step 8 (signatures.jsonl) feeds pkg/dupdetect; built here so every
	// shard write happens from one pass over the summaries.
	set.Signatures = encodeSignatureLines(summaries)

	return set
}

func moduleFilename(name string) string {
	if name == "" {
		name = "root"
	}
	return schema.SanitizeFilename(name) + ".toon"
}

func encodeModuleShard(name string, files []*schema.SemanticSummary) string {
	d := NewDoc("module")
	d.Version = "1"
	d.SetScalar("name", orRoot(name))
	fileNames := make([]string, len(files))
	for i, f := range files {
		fileNames[i] = f.File
	}
	d.SetArray("files", fileNames)

	cols := []string{"hash", "name", "kind", "file", "start_line", "end_line", "exported", "risk", "entry", "is_escape_local"}
	var rows [][]string
	for _, f := range files {
		for _, s := range f.Symbols {
			rows = append(rows, []string{
				s.Hash, s.Name, string(s.Kind), f.File,
				strconv.Itoa(s.StartLine), strconv.Itoa(s.EndLine),
				strconv.FormatBool(s.IsExported), string(s.BehavioralRisk), string(s.FrameworkEntry),
				strconv.FormatBool(s.IsEscapeLocal),
			})
		}
	}
	d.SetTable("symbols", Table{Columns: cols, Rows: rows})
	return d.Encode()
}

func encodeSymbolShard(file string, s schema.SymbolInfo) string {
	d := NewDoc("symbol")
	d.Version = "1"
	d.SetScalar("hash", s.Hash)
	d.SetScalar("name", s.Name)
	d.SetScalar("kind", string(s.Kind))
	d.SetScalar("file", file)
	d.SetScalar("start_line", strconv.Itoa(s.StartLine))
	d.SetScalar("end_line", strconv.Itoa(s.EndLine))
	d.SetScalar("is_exported", strconv.FormatBool(s.IsExported))
	d.SetScalar("is_async", strconv.FormatBool(s.IsAsync))
	d.SetScalar("return_type", s.ReturnType)
	d.SetScalar("behavioral_risk", string(s.BehavioralRisk))
	d.SetScalar("framework_entry", string(s.FrameworkEntry))
	if len(s.Arguments) > 0 {
		d.SetArray("arguments", s.Arguments)
	}
	if len(s.Decorators) > 0 {
		d.SetArray("decorators", s.Decorators)
	}
	if len(s.BaseClasses) > 0 {
		d.SetArray("base_classes", s.BaseClasses)
	}
	if len(s.Calls) > 0 {
		cols := []string{"name", "object", "awaited", "in_try", "ref_kind", "line"}
		rows := make([][]string, len(s.Calls))
		for i, c := range s.Calls {
			rows[i] = []string{c.Name, c.Object, strconv.FormatBool(c.IsAwaited), strconv.FormatBool(c.InTry), string(c.RefKind), strconv.Itoa(c.Location.Line)}
		}
		d.SetTable("calls", Table{Columns: cols, Rows: rows})
	}
	if len(s.ControlFlow) > 0 {
		cols := []string{"kind", "line", "depth"}
		rows := make([][]string, len(s.ControlFlow))
		for i, c := range s.ControlFlow {
			rows[i] = []string{c.Kind, strconv.Itoa(c.Line), strconv.Itoa(c.Depth)}
		}
		d.SetTable("control_flow", Table{Columns: cols, Rows: rows})
	}
	if len(s.StateChanges) > 0 {
		cols := []string{"name", "kind", "line"}
		rows := make([][]string, len(s.StateChanges))
		for i, c := range s.StateChanges {
			rows[i] = []string{c.Name, c.Kind, strconv.Itoa(c.Line)}
		}
		d.SetTable("state_changes", Table{Columns: cols, Rows: rows})
	}
	return d.Encode()
}

// encodeCallGraph aggregates every symbol's Calls into one forward
// adjacency table keyed by caller hash (one row per caller, not one per
// edge); the reverse map is built at query time by pkg/query.
// Unresolved callees keep the literal "ext:<name>" token (spec.md §6); a
// symbol-name -> hash index is built first so in-repo calls resolve.
func encodeCallGraph(summaries []*schema.SemanticSummary) string {
	byName := make(map[string][]string) // unqualified symbol name -> hashes
	for _, sum := range summaries {
		for _, s := range sum.Symbols {
			byName[s.Name] = append(byName[s.Name], s.Hash)
		}
	}

	d := NewDoc("call_graph")
	d.Version = "1"
	cols := []string{"caller_hash", "edges"}
	var rows [][]string
	for _, sum := range summaries {
		for _, s := range sum.Symbols {
			if len(s.Calls) == 0 {
				continue
			}
			edgeSet := make(map[string]struct{})
			var edges []string
			for _, c := range s.Calls {
				callee := "ext:" + c.Name
				if hashes, ok := byName[c.Name]; ok && len(hashes) > 0 {
					callee = hashes[0]
				}
				edge := schema.CallGraphEdge{CalleeHash: callee, Kind: c.RefKind}.Encode()
				if _, dup := edgeSet[edge]; dup {
					continue
				}
				edgeSet[edge] = struct{}{}
				edges = append(edges, edge)
			}
			if len(edges) == 0 {
				continue
			}
			sort.Strings(edges)
			rows = append(rows, []string{s.Hash, strings.Join(edges, "|")})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	d.SetTable("edges", Table{Columns: cols, Rows: rows})
	return d.Encode()
}

func encodeImportGraph(summaries []*schema.SemanticSummary) string {
	d := NewDoc("import_graph")
	d.Version = "1"
	cols := []string{"file", "imports"}
	var rows [][]string
	for _, sum := range summaries {
		if len(sum.AddedDependencies) == 0 {
			continue
		}
		deps := append([]string(nil), sum.AddedDependencies...)
		sort.Strings(deps)
		rows = append(rows, []string{sum.File, strings.Join(deps, "|")})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	d.SetTable("edges", Table{Columns: cols, Rows: rows})
	return d.Encode()
}

func encodeModuleGraph(summaries []*schema.SemanticSummary, depth int) string {
	fileToModule := make(map[string]string)
	for _, sum := range summaries {
		fileToModule[sum.File] = schema.ModuleNameForDepth(sum.File, depth)
	}
	edgeSet := make(map[string]map[string]struct{})
	for _, sum := range summaries {
		from := fileToModule[sum.File]
		for _, dep := range sum.AddedDependencies {
			// Only in-repo dependencies resolve to a module edge; external
			// package imports never appear in fileToModule.
			for f, m := range fileToModule {
				if strings.HasSuffix(dep, f) || strings.Contains(f, dep) {
					if m == from {
						continue
					}
					if edgeSet[from] == nil {
						edgeSet[from] = make(map[string]struct{})
					}
					edgeSet[from][m] = struct{}{}
				}
			}
		}
	}

	d := NewDoc("module_graph")
	d.Version = "1"
	cols := []string{"module", "depends_on"}
	var rows [][]string
	froms := make([]string, 0, len(edgeSet))
	for f := range edgeSet {
		froms = append(froms, f)
	}
	sort.Strings(froms)
	for _, f := range froms {
		targets := make([]string, 0, len(edgeSet[f]))
		for t := range edgeSet[f] {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		rows = append(rows, []string{orRoot(f), strings.Join(targets, "|")})
	}
	d.SetTable("edges", Table{Columns: cols, Rows: rows})
	return d.Encode()
}

func encodeRepoOverview(moduleNames []string, summaries []*schema.SemanticSummary) string {
	d := NewDoc("repo_overview")
	d.Version = "1"
	d.SetScalar("file_count", strconv.Itoa(len(summaries)))
	d.SetScalar("module_count", strconv.Itoa(len(moduleNames)))

	symbolCount := 0
	entryCount := 0
	for _, sum := range summaries {
		symbolCount += len(sum.Symbols)
		for _, s := range sum.Symbols {
			if s.FrameworkEntry != schema.EntryNone {
				entryCount++
			}
		}
	}
	d.SetScalar("symbol_count", strconv.Itoa(symbolCount))
	d.SetScalar("framework_entry_count", strconv.Itoa(entryCount))

	names := make([]string, len(moduleNames))
	for i, n := range moduleNames {
		names[i] = orRoot(n)
	}
	d.SetArray("modules", names)
	return d.Encode()
}

// encodeSignatureLines renders one JSONL line per function/method symbol
// for pkg/dupdetect to consume without re-walking every module shard.
func encodeSignatureLines(summaries []*schema.SemanticSummary) []string {
	var lines []string
	for _, sum := range summaries {
		for _, s := range sum.Symbols {
			if s.Kind != schema.KindFunction && s.Kind != schema.KindMethod {
				continue
			}
			lines = append(lines, fmt.Sprintf(
				`{"hash":%q,"name":%q,"file":%q,"start_line":%d,"end_line":%d,"arguments":%q,"return_type":%q}`,
				s.Hash, s.Name, sum.File, s.StartLine, s.EndLine, strings.Join(s.Arguments, ","), s.ReturnType,
			))
		}
	}
	return lines
}

func orRoot(name string) string {
	if name == "" {
		return "root"
	}
	return name
}

// Write persists the Set to disk under root, using an atomic
// write-to-temp-then-rename for every file (spec.md §4.5, "all writes are
// atomic: write to a temp file, then rename into place").
func Write(root string, set *Set) error {
	dirs := []string{root, filepath.Join(root, "modules"), filepath.Join(root, "symbols"), filepath.Join(root, "graphs"), filepath.Join(root, "diffs")}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("shard.Write: mkdir %s: %w", dir, err)
		}
	}

	if err := atomicWrite(filepath.Join(root, "repo_overview.toon"), set.RepoOverview); err != nil {
		return err
	}
	for name, content := range set.Modules {
		if err := atomicWrite(filepath.Join(root, "modules", name), content); err != nil {
			return err
		}
	}
	for hash, content := range set.Symbols {
		if err := atomicWrite(filepath.Join(root, "symbols", hash+".toon"), content); err != nil {
			return err
		}
	}
	if err := atomicWrite(filepath.Join(root, "graphs", "call_graph.toon"), set.CallGraph); err != nil {
		return err
	}
	if err := atomicWrite(filepath.Join(root, "graphs", "import_graph.toon"), set.ImportGraph); err != nil {
		return err
	}
	if err := atomicWrite(filepath.Join(root, "graphs", "module_graph.toon"), set.ModuleGraph); err != nil {
		return err
	}
	if len(set.Signatures) > 0 {
		if err := atomicWrite(filepath.Join(root, "signatures.jsonl"), strings.Join(set.Signatures, "\n")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func atomicWrite(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("shard.Write: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("shard.Write: rename %s: %w", tmp, err)
	}
	return nil
}

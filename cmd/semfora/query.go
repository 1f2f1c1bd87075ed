// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/dupdetect"
	"github.com/kraklabs/semfora/pkg/query"
	"github.com/kraklabs/semfora/pkg/schema"
)

// runQuery dispatches `semfora query <op> [flags]` to pkg/query, per
// spec.md §4.12's operation list. This is a text-only rendition; the
// same pkg/query.Engine backs any richer frontend (spec.md §1's non-goal
// on output formatting keeps this one deliberately plain).
func runQuery(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: semfora query <overview|module|symbol|source|file-symbols|callers|callgraph|trace|duplicates|search> [flags]")
	}
	op, rest := args[0], args[1:]

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	dir := cache.ForRepo(repoRoot)
	if !dir.Exists() {
		return fmt.Errorf("no index found for %s; run `semfora index`", repoRoot)
	}
	eng := query.New(dir, repoRoot)

	switch op {
	case "overview":
		return queryOverview(eng, rest)
	case "module":
		return queryModule(eng, rest)
	case "symbol":
		return querySymbol(eng, rest)
	case "source":
		return querySource(eng, rest)
	case "file-symbols":
		return queryFileSymbols(eng, rest)
	case "callers":
		return queryCallers(eng, rest)
	case "callgraph":
		return queryCallGraph(eng, rest)
	case "trace":
		return queryTrace(eng, rest)
	case "duplicates":
		return queryDuplicates(dir, rest)
	case "search":
		return querySearch(dir, repoRoot, rest)
	default:
		return fmt.Errorf("query: unknown operation %q", op)
	}
}

func queryOverview(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query overview", pflag.ContinueOnError)
	filter := flag.String("filter", "", "substring filter on module name")
	max := flag.Int("max", 0, "maximum modules to list (0 = unlimited)")
	excludeTests := flag.Bool("exclude-tests", false, "exclude modules that look like test code")
	if err := flag.Parse(args); err != nil {
		return err
	}
	res, err := eng.Overview(query.OverviewOptions{ModuleFilter: *filter, MaxCount: *max, ExcludeTests: *excludeTests})
	if err != nil {
		return err
	}
	fmt.Printf("%d modules, %d files, %d symbols (%d filtered, %d truncated)\n",
		len(res.Modules), res.FileCount, res.SymbolCount, res.FilteredCount, res.TruncatedCount)
	for _, m := range res.Modules {
		test := ""
		if m.IsTest {
			test = " [test]"
		}
		fmt.Printf("  %-40s files=%-4d symbols=%-5d%s\n", m.Name, m.FileCount, m.SymbolCount, test)
	}
	return nil
}

func queryModule(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query module", pflag.ContinueOnError)
	layerName := flag.String("layer", "", "restrict to one layer (base, branch, working)")
	if err := flag.Parse(args); err != nil {
		return err
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: semfora query module <name> [--layer=...]")
	}
	doc, layerHit, err := eng.Module(*layerName, flag.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("layer=%s\n%s\n", layerHit, doc.Encode())
	return nil
}

func querySymbol(eng *query.Engine, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: semfora query symbol <hash>[,<hash>...]")
	}
	hashes := strings.Split(args[0], ",")
	found, notFound := eng.SymbolsByHash(hashes)
	for _, f := range found {
		fmt.Printf("layer=%s hash=%s\n%s\n", f.Layer, f.Hash, f.Doc.Encode())
	}
	for _, h := range notFound {
		fmt.Printf("not found: %s\n", h)
	}
	return nil
}

func querySource(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query source", pflag.ContinueOnError)
	file := flag.String("file", "", "file path (mutually exclusive with --hash)")
	start := flag.Int("start", 1, "start line (with --file)")
	end := flag.Int("end", 1, "end line (with --file)")
	hash := flag.String("hash", "", "symbol hash (mutually exclusive with --file)")
	context := flag.Int("context", 3, "lines of context on each side")
	if err := flag.Parse(args); err != nil {
		return err
	}

	var res *query.SourceResult
	var err error
	switch {
	case *hash != "":
		res, err = eng.SourceForSymbol(*hash, *context)
	case *file != "":
		res, err = eng.Source(*file, *start, *end, *context)
	default:
		return fmt.Errorf("query source needs --hash or --file")
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", res.File)
	for _, l := range res.Lines {
		marker := "  "
		if l.InRange {
			marker = "> "
		}
		fmt.Printf("%s%5d %s\n", marker, l.Number, l.Text)
	}
	return nil
}

func queryFileSymbols(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query file-symbols", pflag.ContinueOnError)
	layerName := flag.String("layer", "", "restrict to one layer")
	line := flag.Int("line", 0, "return only the symbol containing this line")
	kind := flag.String("kind", "", "filter by symbol kind")
	risk := flag.String("risk", "", "filter by behavioral risk")
	excludeMethods := flag.Bool("exclude-methods", false, "exclude methods")
	includeMethods := flag.Bool("include-methods", false, "restrict to methods only")
	excludeEscapeRefs := flag.Bool("exclude-escape-refs", false, "exclude escape-local ref variables")
	includeEscapeRefs := flag.Bool("include-escape-refs", false, "restrict to escape-local ref variables only")
	if err := flag.Parse(args); err != nil {
		return err
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: semfora query file-symbols <file> [flags]")
	}
	file := flag.Arg(0)

	if *line > 0 {
		entry, err := eng.SymbolAtLine(*layerName, file, *line)
		if err != nil {
			return err
		}
		printSymbolEntry(*entry)
		return nil
	}

	filter := query.FileSymbolFilter{
		ExcludeMethods:    *excludeMethods,
		IncludeMethods:    *includeMethods,
		ExcludeEscapeRefs: *excludeEscapeRefs,
		IncludeEscapeRefs: *includeEscapeRefs,
	}
	if *kind != "" {
		filter.Kind = schema.SymbolKind(*kind)
	}
	if *risk != "" {
		filter.Risk = schema.BehavioralRisk(*risk)
	}
	entries, err := eng.FileSymbols(*layerName, file, filter)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printSymbolEntry(e)
	}
	return nil
}

func queryCallers(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query callers", pflag.ContinueOnError)
	layerName := flag.String("layer", "", "restrict to one layer")
	depth := flag.Int("depth", 1, "traversal depth (capped at 3)")
	limit := flag.Int("limit", 0, "maximum hits (0 = unlimited)")
	if err := flag.Parse(args); err != nil {
		return err
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: semfora query callers <hash> [flags]")
	}
	hits, err := eng.Callers(*layerName, flag.Arg(0), *depth, *limit)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("  depth=%d %s %s\n", h.Depth, h.Hash, h.Name)
	}
	return nil
}

func queryCallGraph(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query callgraph", pflag.ContinueOnError)
	layerName := flag.String("layer", "", "restrict to one layer")
	filter := flag.String("filter", "", "substring filter on caller or callee name")
	limit := flag.Int("limit", 100, "maximum edges to print")
	offset := flag.Int("offset", 0, "pagination offset")
	stats := flag.Bool("stats", false, "print aggregate statistics instead of edges")
	topN := flag.Int("top", 10, "top-N callers by fanout (with --stats)")
	if err := flag.Parse(args); err != nil {
		return err
	}
	edges, cgStats, err := eng.CallGraph(query.CallGraphOptions{
		Layer: *layerName, ModuleFilter: *filter, Limit: *limit, Offset: *offset, StatsOnly: *stats, TopN: *topN,
	})
	if err != nil {
		return err
	}
	if cgStats != nil {
		fmt.Printf("total_edges=%d avg_fanout=%.2f\n", cgStats.TotalEdges, cgStats.AvgFanout)
		for _, c := range cgStats.TopCallers {
			fmt.Printf("  %-6d %s %s\n", c.Fanout, c.Hash, c.Name)
		}
		return nil
	}
	for _, e := range edges {
		callee := e.CalleeName
		if e.External {
			callee = "(external) " + e.CalleeHash
		}
		fmt.Printf("  %s --[%s]--> %s\n", e.CallerName, e.Kind, callee)
	}
	return nil
}

func queryTrace(eng *query.Engine, args []string) error {
	flag := pflag.NewFlagSet("query trace", pflag.ContinueOnError)
	layerName := flag.String("layer", "", "restrict to one layer")
	direction := flag.String("direction", "outgoing", "incoming, outgoing, or both")
	depth := flag.Int("depth", 2, "traversal depth")
	includeEscape := flag.Bool("include-escape-refs", false, "include escape-ref edges")
	includeExternal := flag.Bool("include-external", false, "include external/unresolved callees")
	if err := flag.Parse(args); err != nil {
		return err
	}
	if flag.NArg() == 0 {
		return fmt.Errorf("usage: semfora query trace <hash>[,<hash>...] [flags]")
	}
	res, err := eng.Trace(query.TraceOptions{
		Layer: *layerName, Roots: strings.Split(flag.Arg(0), ","),
		Direction: query.Direction(*direction), Depth: *depth,
		IncludeEscapeRefs: *includeEscape, IncludeExternal: *includeExternal,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d nodes, %d edges, max_depth=%d\n", res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.MaxDepthReached)
	for _, n := range res.Nodes {
		fmt.Printf("  depth=%d %s %s\n", n.Depth, n.Hash, n.Name)
	}
	for _, e := range res.Edges {
		fmt.Printf("  %s --[%s]--> %s\n", e.From, e.Kind, e.To)
	}
	return nil
}

func queryDuplicates(dir *cache.Dir, args []string) error {
	flag := pflag.NewFlagSet("query duplicates", pflag.ContinueOnError)
	layerName := flag.String("layer", "working", "layer whose signatures.jsonl to scan")
	threshold := flag.Float64("threshold", 0, "minimum similarity (0 = default 0.85)")
	filter := flag.String("filter", "", "substring filter on name or file")
	minLines := flag.Int("min-lines", 0, "minimum symbol span to consider")
	includeBoilerplate := flag.Bool("include-boilerplate", false, "disable boilerplate exclusion")
	limit := flag.Int("limit", 50, "maximum clusters to print")
	offset := flag.Int("offset", 0, "pagination offset")
	sortBy := flag.String("sort", "similarity", "similarity, primary_size, or duplicate_count")
	if err := flag.Parse(args); err != nil {
		return err
	}

	sigs, err := dupdetect.Load(dir.SignaturesPath(*layerName))
	if err != nil {
		return err
	}
	clusters := dupdetect.Detect(sigs, dupdetect.Options{
		Threshold: *threshold, TargetFilter: *filter, MinLines: *minLines,
		SortByField: dupdetect.SortBy(*sortBy), IncludeBoilerplate: *includeBoilerplate,
		Limit: *limit, Offset: *offset,
	})
	if len(clusters) == 0 {
		fmt.Println("no duplicate clusters found")
		return nil
	}
	for _, c := range clusters {
		fmt.Printf("primary: %s (%s:%d-%d)\n", c.Primary.Name, c.Primary.File, c.Primary.StartLine, c.Primary.EndLine)
		for _, m := range c.Matches {
			fmt.Printf("  [%s %.2f] %s (%s:%d-%d)\n", m.Kind, m.Similarity, m.Signature.Name, m.Signature.File, m.Signature.StartLine, m.Signature.EndLine)
		}
	}
	return nil
}

func querySearch(dir *cache.Dir, repoRoot string, args []string) error {
	flag := pflag.NewFlagSet("query search", pflag.ContinueOnError)
	layerName := flag.String("layer", "working", "layer to search")
	limit := flag.Int("limit", 50, "maximum hits")
	if err := flag.Parse(args); err != nil {
		return err
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: semfora query search <pattern> [flags]")
	}
	matches, err := dir.SearchSymbolsWithFallback(context.Background(), *layerName, repoRoot, flag.Arg(0), *limit)
	if err != nil {
		return err
	}
	for _, m := range matches {
		tag := ""
		if m.FromGrep {
			tag = " [grep]"
		}
		fmt.Printf("  %s:%d %s (%s)%s\n", m.File, m.StartLine, m.Name, m.Kind, tag)
	}
	return nil
}

func printSymbolEntry(e query.FileSymbolEntry) {
	fmt.Printf("  %s:%d-%d %-8s %-30s risk=%s hash=%s\n", e.File, e.StartLine, e.EndLine, e.Kind, e.Name, e.Risk, e.Hash)
}

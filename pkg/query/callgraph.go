// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"sort"
	"strings"

	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/schema"

	ierrors "github.com/kraklabs/semfora/internal/errors"
)

// edgeList is the forward adjacency read out of one layer's call_graph.toon:
// caller hash -> outgoing edges.
type edgeList map[string][]schema.CallGraphEdge

// loadCallGraph reads and decodes the call-graph edges table for a layer,
// composing Working/Branch/Base per the precedence rule when layerName is
// empty (spec.md §4.7, §9 "two adjacency maps").
func (e *Engine) loadCallGraph(layerName string) (edgeList, error) {
	layers := layerOrder
	if layerName != "" {
		layers = []layer.Kind{layer.Kind(layerName)}
	}
	merged := make(edgeList)
	// Precedence-respecting merge: iterate lowest to highest precedence so a
	// later (higher-precedence) layer's entries for the same caller hash
	// overwrite an earlier one's, matching layer.MergeCallGraph's contract.
	ordered := make([]layer.Kind, len(layers))
	for i := range layers {
		ordered[len(layers)-1-i] = layers[i]
	}
	for _, k := range ordered {
		doc, err := e.Dir.LoadCallGraph(string(k))
		if err != nil {
			continue
		}
		table, ok := doc.TableField("edges")
		if !ok {
			continue
		}
		idx := colIndex(table.Columns)
		for _, row := range table.Rows {
			caller := row[idx["caller_hash"]]
			raw := row[idx["edges"]]
			var edges []schema.CallGraphEdge
			for _, tok := range strings.Split(raw, "|") {
				if tok == "" {
					continue
				}
				edges = append(edges, schema.DecodeCallGraphEdge(tok))
			}
			merged[caller] = edges
		}
	}
	return merged, nil
}

// CallerHit is one entry in the Callers query's response.
type CallerHit struct {
	Hash  string
	Name  string
	Depth int
}

// Callers performs a BFS over the reverse call graph from hash out to
// depth (capped at 3 per spec.md §4.12), excluding ext: callees, and
// returns (hash, name, depth) triples in BFS order.
func (e *Engine) Callers(layerName, hash string, depth, limit int) ([]CallerHit, error) {
	logQuery("callers", "hash", hash, "depth", depth)
	if depth > 3 {
		depth = 3
	}
	if depth < 1 {
		depth = 1
	}
	fwd, err := e.loadCallGraph(layerName)
	if err != nil {
		return nil, err
	}
	reverse := make(map[string][]string) // callee -> callers
	for caller, edges := range fwd {
		for _, ed := range edges {
			if schema.IsExternal(ed.CalleeHash) {
				continue
			}
			reverse[ed.CalleeHash] = append(reverse[ed.CalleeHash], caller)
		}
	}

	names, err := e.hashToName(layerName)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{hash: true}
	var out []CallerHit
	frontier := []string{hash}
	for d := 1; d <= depth; d++ {
		var next []string
		for _, h := range frontier {
			for _, caller := range reverse[h] {
				if visited[caller] {
					continue
				}
				visited[caller] = true
				out = append(out, CallerHit{Hash: caller, Name: names[caller], Depth: d})
				next = append(next, caller)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return out, nil
}

// hashToName builds a hash -> symbol name index across a layer (or the
// composed layers when layerName is empty), for resolving display names in
// Callers/Callgraph/Trace responses.
func (e *Engine) hashToName(layerName string) (map[string]string, error) {
	layers := layerOrder
	if layerName != "" {
		layers = []layer.Kind{layer.Kind(layerName)}
	}
	names := make(map[string]string)
	for _, k := range layers {
		tables, err := e.Dir.LoadAllSymbolEntries(string(k))
		if err != nil {
			return nil, ierrors.NewQueryError("hash index: "+string(k), err)
		}
		for _, t := range tables {
			idx := colIndex(t.Columns)
			for _, row := range t.Rows {
				h := row[idx["hash"]]
				if _, ok := names[h]; !ok {
					names[h] = row[idx["name"]]
				}
			}
		}
	}
	return names, nil
}

// CallGraphEdgeView is one display-resolved edge in a paged Callgraph
// response.
type CallGraphEdgeView struct {
	CallerHash, CallerName string
	CalleeHash, CalleeName string
	Kind                   schema.RefKind
	External               bool
}

// CallGraphStats is the aggregate form of the Callgraph query.
type CallGraphStats struct {
	TotalEdges  int
	AvgFanout   float64
	TopCallers  []CallerFanout
}

// CallerFanout is one row of CallGraphStats' top-N-by-fanout list.
type CallerFanout struct {
	Hash, Name string
	Fanout     int
}

// CallGraphOptions configures the Callgraph query.
type CallGraphOptions struct {
	Layer        string
	ModuleFilter string // matches caller or callee name substring
	Limit        int
	Offset       int
	StatsOnly    bool
	TopN         int // for StatsOnly
}

// CallGraph returns either a paged, display-resolved edge list or aggregate
// statistics, per spec.md §4.12.
func (e *Engine) CallGraph(opts CallGraphOptions) ([]CallGraphEdgeView, *CallGraphStats, error) {
	logQuery("call_graph", "layer", opts.Layer, "stats_only", opts.StatsOnly)
	fwd, err := e.loadCallGraph(opts.Layer)
	if err != nil {
		return nil, nil, err
	}
	names, err := e.hashToName(opts.Layer)
	if err != nil {
		return nil, nil, err
	}

	var all []CallGraphEdgeView
	callers := make([]string, 0, len(fwd))
	for c := range fwd {
		callers = append(callers, c)
	}
	sort.Strings(callers)
	for _, c := range callers {
		for _, ed := range fwd[c] {
			view := CallGraphEdgeView{
				CallerHash: c, CallerName: names[c],
				CalleeHash: ed.CalleeHash, Kind: ed.Kind,
				External: schema.IsExternal(ed.CalleeHash),
			}
			if !view.External {
				view.CalleeName = names[ed.CalleeHash]
			}
			if opts.ModuleFilter != "" &&
				!strings.Contains(view.CallerName, opts.ModuleFilter) &&
				!strings.Contains(view.CalleeName, opts.ModuleFilter) {
				continue
			}
			all = append(all, view)
		}
	}

	if opts.StatsOnly {
		stats := &CallGraphStats{TotalEdges: len(all)}
		fanout := make(map[string]int)
		for _, v := range all {
			fanout[v.CallerHash]++
		}
		if len(fanout) > 0 {
			stats.AvgFanout = float64(len(all)) / float64(len(fanout))
		}
		var rows []CallerFanout
		for h, n := range fanout {
			rows = append(rows, CallerFanout{Hash: h, Name: names[h], Fanout: n})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Fanout > rows[j].Fanout })
		top := opts.TopN
		if top <= 0 || top > len(rows) {
			top = len(rows)
		}
		stats.TopCallers = rows[:top]
		return nil, stats, nil
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return all[start:end], nil, nil
}

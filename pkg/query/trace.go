// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import "github.com/kraklabs/semfora/pkg/schema"

// Direction selects which adjacency a Trace follows.
type Direction string

const (
	DirIncoming Direction = "incoming"
	DirOutgoing Direction = "outgoing"
	DirBoth     Direction = "both"
)

// TraceOptions configures the Trace query.
type TraceOptions struct {
	Layer              string
	Roots              []string
	Direction          Direction
	Depth              int
	IncludeEscapeRefs  bool
	IncludeExternal    bool
}

// TraceNode is one node discovered by a Trace.
type TraceNode struct {
	Hash  string
	Name  string
	Depth int
}

// TraceEdge is one edge discovered by a Trace.
type TraceEdge struct {
	From, To string
	Kind     schema.RefKind
}

// TraceResult is the response to the Trace query.
type TraceResult struct {
	Nodes []TraceNode
	Edges []TraceEdge
	Stats TraceStats
}

// TraceStats summarizes a trace's shape.
type TraceStats struct {
	NodeCount, EdgeCount, MaxDepthReached int
}

// Trace performs a generic graph traversal from roots, following outgoing
// edges, incoming edges, or both, to depth, per spec.md §4.12. It is the
// general-purpose counterpart Callers specializes (incoming-only, capped
// at depth 3).
func (e *Engine) Trace(opts TraceOptions) (*TraceResult, error) {
	logQuery("trace", "roots", len(opts.Roots), "direction", opts.Direction, "depth", opts.Depth)
	if opts.Depth <= 0 {
		opts.Depth = 1
	}
	fwd, err := e.loadCallGraph(opts.Layer)
	if err != nil {
		return nil, err
	}
	rev := make(edgeList)
	for caller, edges := range fwd {
		for _, ed := range edges {
			rev[ed.CalleeHash] = append(rev[ed.CalleeHash], schema.CallGraphEdge{CalleeHash: caller, Kind: ed.Kind})
		}
	}
	names, err := e.hashToName(opts.Layer)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	var result TraceResult
	seenEdge := make(map[string]bool)

	frontier := make([]string, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		if !visited[r] {
			visited[r] = true
			frontier = append(frontier, r)
			result.Nodes = append(result.Nodes, TraceNode{Hash: r, Name: names[r], Depth: 0})
		}
	}

	for d := 1; d <= opts.Depth && len(frontier) > 0; d++ {
		var next []string
		for _, h := range frontier {
			neighbors := e.neighborsFor(h, fwd, rev, opts.Direction, opts.IncludeExternal, opts.IncludeEscapeRefs)
			for _, ed := range neighbors {
				ekey := h + ">" + ed.CalleeHash
				if !seenEdge[ekey] {
					seenEdge[ekey] = true
					result.Edges = append(result.Edges, TraceEdge{From: h, To: ed.CalleeHash, Kind: ed.Kind})
				}
				if !visited[ed.CalleeHash] {
					visited[ed.CalleeHash] = true
					result.Nodes = append(result.Nodes, TraceNode{Hash: ed.CalleeHash, Name: names[ed.CalleeHash], Depth: d})
					next = append(next, ed.CalleeHash)
				}
			}
		}
		frontier = next
		if len(next) > 0 {
			result.Stats.MaxDepthReached = d
		}
	}

	result.Stats.NodeCount = len(result.Nodes)
	result.Stats.EdgeCount = len(result.Edges)
	return &result, nil
}

func (e *Engine) neighborsFor(hash string, fwd, rev edgeList, dir Direction, includeExternal, includeEscape bool) []schema.CallGraphEdge {
	var out []schema.CallGraphEdge
	if dir == DirOutgoing || dir == DirBoth {
		out = append(out, filterEdges(fwd[hash], includeExternal, includeEscape)...)
	}
	if dir == DirIncoming || dir == DirBoth {
		out = append(out, filterEdges(rev[hash], includeExternal, includeEscape)...)
	}
	return out
}

func filterEdges(edges []schema.CallGraphEdge, includeExternal, includeEscape bool) []schema.CallGraphEdge {
	var out []schema.CallGraphEdge
	for _, ed := range edges {
		if schema.IsExternal(ed.CalleeHash) && !includeExternal {
			continue
		}
		if isEscapeKind(ed.Kind) && !includeEscape {
			continue
		}
		out = append(out, ed)
	}
	return out
}

func isEscapeKind(k schema.RefKind) bool {
	switch k {
	case schema.RefEscapeRead, schema.RefEscapeWrite, schema.RefEscapeReadWrite:
		return true
	default:
		return false
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package layer implements the three-layer overlay model of spec.md §4.7:
// a repo's index is split into a Base layer (origin/main), a Branch layer
// (the merge-base..HEAD delta), and a Working layer (uncommitted changes),
// composed per-file so the most specific layer that has touched a file
// wins.
package layer

import "github.com/kraklabs/semfora/pkg/schema"

// Kind names one of the three layers, in increasing order of precedence.
type Kind string

const (
	Base    Kind = "base"
	Branch  Kind = "branch"
	Working Kind = "working"
)

// precedence ranks a Kind for the composition rule: Working overrides
// Branch overrides Base.
var precedence = map[Kind]int{Base: 0, Branch: 1, Working: 2}

// Meta is the per-layer bookkeeping record spec.md §4.7 calls LayerMeta:
// the commit this layer was built against, whether it is stale, and which
// files it has a shard for.
type Meta struct {
	Kind      Kind
	SHA       string
	Stale     bool
	HasFile   map[string]bool
}

// NewMeta starts an empty Meta for kind.
func NewMeta(kind Kind) *Meta {
	return &Meta{Kind: kind, HasFile: make(map[string]bool)}
}

// Set composes the three layers' metadata and exposes the single
// owning-layer decision for each file.
type Set struct {
	Base    *Meta
	Branch  *Meta
	Working *Meta
}

// NewSet builds an empty three-layer Set.
func NewSet() *Set {
	return &Set{Base: NewMeta(Base), Branch: NewMeta(Branch), Working: NewMeta(Working)}
}

func (s *Set) meta(kind Kind) *Meta {
	switch kind {
	case Branch:
		return s.Branch
	case Working:
		return s.Working
	default:
		return s.Base
	}
}

// MarkFile records that kind's shard tree has an entry for file.
func (s *Set) MarkFile(kind Kind, file string) {
	s.meta(kind).HasFile[file] = true
}

// OwningLayer returns the layer that should serve reads for file, per the
// composition rule: Working overrides Branch overrides Base. It returns
// ("", false) when no layer has touched the file.
func (s *Set) OwningLayer(file string) (Kind, bool) {
	candidates := []Kind{Base, Branch, Working}
	best := Kind("")
	bestRank := -1
	for _, k := range candidates {
		if !s.meta(k).HasFile[file] {
			continue
		}
		if r := precedence[k]; r > bestRank {
			bestRank = r
			best = k
		}
	}
	if bestRank < 0 {
		return "", false
	}
	return best, true
}

// MergeCallGraph composes the three layers' call graph edges for a query
// that spans layers: for each caller hash, the highest-precedence layer
// that defines edges for it wins outright (no edge-level merge), matching
// the per-file composition rule applied at symbol granularity.
func MergeCallGraph(base, branch, working map[string][]schema.CallGraphEdge) map[string][]schema.CallGraphEdge {
	merged := make(map[string][]schema.CallGraphEdge, len(base))
	for h, e := range base {
		merged[h] = e
	}
	for h, e := range branch {
		merged[h] = e
	}
	for h, e := range working {
		merged[h] = e
	}
	return merged
}

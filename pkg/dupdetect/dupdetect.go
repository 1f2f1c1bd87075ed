// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dupdetect implements the duplicate-detection query of spec.md
// §4.13: it loads the shard writer's signatures.jsonl, scores pairs of
// function signatures by similarity, excludes known boilerplate shapes,
// and clusters the survivors around a primary.
package dupdetect

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kraklabs/semfora/pkg/schema"
	"github.com/kraklabs/semfora/pkg/sigparse"

	ierrors "github.com/kraklabs/semfora/internal/errors"
)

// Signature is one decoded row of signatures.jsonl.
type Signature struct {
	Hash       string
	Name       string
	File       string
	StartLine  int
	EndLine    int
	Arguments  []string
	ReturnType string

	tokens      []string
	contentHash string
}

// Load reads and decodes a layer's signatures.jsonl, tolerating a missing
// file (an unindexed or symbol-free layer has nothing to report).
func Load(path string) ([]Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ierrors.NewIOError("dupdetect: open "+path, err)
	}
	defer f.Close()

	var out []Signature
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var raw struct {
			Hash       string `json:"hash"`
			Name       string `json:"name"`
			File       string `json:"file"`
			StartLine  int    `json:"start_line"`
			EndLine    int    `json:"end_line"`
			Arguments  string `json:"arguments"`
			ReturnType string `json:"return_type"`
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		var args []string
		if raw.Arguments != "" {
			args = strings.Split(raw.Arguments, ",")
		}
		out = append(out, Signature{
			Hash: raw.Hash, Name: raw.Name, File: raw.File,
			StartLine: raw.StartLine, EndLine: raw.EndLine,
			Arguments: args, ReturnType: raw.ReturnType,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, ierrors.NewIOError("dupdetect: scan "+path, err)
	}
	return out, nil
}

func (s *Signature) prepare() {
	if s.tokens != nil {
		return
	}
	s.tokens = sigparse.NormalizeSignatureTokens(s.Arguments, s.ReturnType)
	s.contentHash = fmt.Sprintf("%016x", schema.FNV1a64([]byte(strings.Join(s.tokens, "|"))))
}

// MatchKind distinguishes an exact (hash-equal) duplicate from a near
// (similarity-scored) one.
type MatchKind string

const (
	Exact MatchKind = "Exact"
	Near  MatchKind = "Near"
)

// Match is one signature grouped under a Cluster's primary.
type Match struct {
	Signature  Signature
	Similarity float64
	Kind       MatchKind
}

// Cluster is a primary function and the signatures found similar to it,
// per spec.md §4.13's "group by primary function" rule.
type Cluster struct {
	Primary Signature
	Matches []Match
}

// MaxSimilarity is the highest score among a cluster's matches, used for
// the "max similarity" sort criterion.
func (c Cluster) MaxSimilarity() float64 {
	max := 0.0
	for _, m := range c.Matches {
		if m.Similarity > max {
			max = m.Similarity
		}
	}
	return max
}

// SortBy selects the ordering criterion for Detect's cluster list.
type SortBy string

const (
	SortBySimilarity      SortBy = "similarity"
	SortByPrimarySize     SortBy = "primary_size"
	SortByDuplicateCount  SortBy = "duplicate_count"
)

// Options configures Detect.
type Options struct {
	Threshold          float64 // minimum similarity to report; 0 means the default 0.85
	TargetFilter        string  // substring filter on name or file
	MinLines            int     // minimum symbol span to consider
	SortByField         SortBy
	IncludeBoilerplate  bool // disables the default-on boilerplate exclusion
	Limit, Offset       int
}

// pairCap bounds the O(n^2) near-match comparison pass; repos with more
// eligible signatures than this are compared only within buckets of equal
// normalized-token count, so signatures of different token lengths are
// never near-matched in that case. Exact matches are not affected (those
// are always found via the hash-equality pass regardless of bucket size).
const pairCap = 4000

// Detect scores and clusters signatures: exact content-hash equality
// (score 1.0), then, for the rest, the larger of a shingled Jaccard score
// and a unit-cost token edit similarity (see similarity). Edits are not
// weighted, and neither score is clamped to a fixed band, so a near match
// can score anywhere in [threshold, 1.0]. Exact matches are transitive by construction; near
// matches are reported as pairs relative to a chosen primary, not
// transitively closed, per the stated invariant.
func Detect(sigs []Signature, opts Options) []Cluster {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.85
	}

	filtered := make([]Signature, 0, len(sigs))
	for _, s := range sigs {
		if opts.MinLines > 0 && (s.EndLine-s.StartLine+1) < opts.MinLines {
			continue
		}
		if opts.TargetFilter != "" && !strings.Contains(s.File, opts.TargetFilter) && !strings.Contains(s.Name, opts.TargetFilter) {
			continue
		}
		if !opts.IncludeBoilerplate && isBoilerplate(s) {
			continue
		}
		s.prepare()
		filtered = append(filtered, s)
	}

	clusters := exactClusters(filtered)
	clustered := make(map[string]bool)
	for _, c := range clusters {
		clustered[c.Primary.Hash] = true
		for _, m := range c.Matches {
			clustered[m.Signature.Hash] = true
		}
	}

	var remaining []Signature
	for _, s := range filtered {
		if !clustered[s.Hash] {
			remaining = append(remaining, s)
		}
	}
	clusters = append(clusters, nearClusters(remaining, threshold)...)

	sortClusters(clusters, opts.SortByField)

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(clusters) {
		start = len(clusters)
	}
	end := len(clusters)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return clusters[start:end]
}

// exactClusters groups signatures with an identical content hash. Per the
// spec's transitivity invariant, every signature sharing a content hash
// joins the same cluster, keyed by its earliest (file, line) member.
func exactClusters(sigs []Signature) []Cluster {
	byHash := make(map[string][]Signature)
	for _, s := range sigs {
		byHash[s.contentHash] = append(byHash[s.contentHash], s)
	}
	var clusters []Cluster
	for _, group := range byHash {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].File != group[j].File {
				return group[i].File < group[j].File
			}
			return group[i].StartLine < group[j].StartLine
		})
		primary := group[0]
		var matches []Match
		for _, s := range group[1:] {
			matches = append(matches, Match{Signature: s, Similarity: 1.0, Kind: Exact})
		}
		clusters = append(clusters, Cluster{Primary: primary, Matches: matches})
	}
	return clusters
}

// nearClusters pairs up signatures whose shingled-Jaccard/edit-distance
// score clears threshold. Matches are reported non-transitively: each
// survives as a (primary, match) pair, not folded into a transitive group.
func nearClusters(sigs []Signature, threshold float64) []Cluster {
	buckets := bucketByPrefix(sigs)
	primaryOf := make(map[string]*Cluster)
	var order []string

	for _, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				score := similarity(a, b)
				if score < threshold {
					continue
				}
				primaryHash := a.Hash
				if b.File < a.File || (b.File == a.File && b.StartLine < a.StartLine) {
					a, b = b, a
					primaryHash = a.Hash
				}
				c, ok := primaryOf[primaryHash]
				if !ok {
					c = &Cluster{Primary: a}
					primaryOf[primaryHash] = c
					order = append(order, primaryHash)
				}
				c.Matches = append(c.Matches, Match{Signature: b, Similarity: score, Kind: Near})
			}
		}
	}

	out := make([]Cluster, 0, len(order))
	for _, h := range order {
		out = append(out, *primaryOf[h])
	}
	return out
}

// bucketByPrefix groups signatures by their normalized-token count,
// bounding the near-match comparison to same-length pairs when the
// candidate set exceeds pairCap; at or below pairCap it returns one bucket.
func bucketByPrefix(sigs []Signature) [][]Signature {
	if len(sigs) <= pairCap {
		return [][]Signature{sigs}
	}
	byKey := make(map[string][]Signature)
	for _, s := range sigs {
		key := fmt.Sprintf("%d", len(s.tokens))
		byKey[key] = append(byKey[key], s)
	}
	out := make([][]Signature, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, b)
	}
	return out
}

func sortClusters(clusters []Cluster, by SortBy) {
	switch by {
	case SortByPrimarySize:
		sort.SliceStable(clusters, func(i, j int) bool {
			return clusters[i].Primary.EndLine-clusters[i].Primary.StartLine > clusters[j].Primary.EndLine-clusters[j].Primary.StartLine
		})
	case SortByDuplicateCount:
		sort.SliceStable(clusters, func(i, j int) bool { return len(clusters[i].Matches) > len(clusters[j].Matches) })
	default:
		sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].MaxSimilarity() > clusters[j].MaxSimilarity() })
	}
}

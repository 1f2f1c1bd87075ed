// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package drift implements the drift detector of spec.md §4.8: given a
// layer's current git state and a changed-file count, it picks the
// cheapest update strategy that is still correct.
package drift

import "fmt"

// Strategy is the chosen remediation for a layer's drift, ordered from
// cheapest to most expensive. The ordering itself is the monotonicity
// invariant spec.md §4.8 and §8 invariant 6 require: strategy must never
// decrease as drift size increases.
type Strategy int

const (
	NoAction Strategy = iota
	Incremental
	Rebase
	FullRebuild
)

func (s Strategy) String() string {
	switch s {
	case NoAction:
		return "no_action"
	case Incremental:
		return "incremental"
	case Rebase:
		return "rebase"
	case FullRebuild:
		return "full_rebuild"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Input is the drift measurement handed to Decide.
type Input struct {
	// FilesChanged is the count of files that differ between the layer's
	// recorded indexed_sha and its current target (working tree, HEAD, or
	// origin/main tip, depending which layer is being evaluated).
	FilesChanged int
	// TotalFiles is the repository's total eligible file count, used to
	// compute the 30% Rebase/FullRebuild threshold. A value of 0 is treated
	// as 1 to avoid a divide-by-zero; in practice an empty repo also has
	// FilesChanged == 0, which short-circuits to NoAction first.
	TotalFiles int
	// TipMismatch is set for the Base layer when origin/main's tip SHA
	// differs from the Base layer's indexed_sha - unconditionally a
	// FullRebuild per spec.md §4.11, regardless of how few files changed.
	TipMismatch bool
	// MergeBaseChanged is set for the Branch layer when the current merge
	// base with origin/main differs from the one recorded at last index -
	// a rebase of the overlay is required even if the file diff is small.
	MergeBaseChanged bool
}

// Thresholds are the tunable boundaries between strategies; the defaults
// below mirror spec.md §4.8's exact drift table.
type Thresholds struct {
	// IncrementalMaxFiles is the exclusive upper bound on the changed-file
	// count Incremental handles one file at a time; a count equal to it
	// escalates (spec.md §4.8: "< 10 files changed -> Incremental").
	IncrementalMaxFiles int
	// RebaseMaxFraction is the exclusive upper bound on the changed-file
	// fraction of the repo Rebase reconciles; a fraction equal to it
	// escalates to FullRebuild (spec.md §4.8: "< 30% of repo files changed -> Rebase").
	RebaseMaxFraction float64
}

// DefaultThresholds are spec.md §4.8's stated numbers.
var DefaultThresholds = Thresholds{IncrementalMaxFiles: 10, RebaseMaxFraction: 0.30}

// Decide picks the cheapest correct strategy for in, per spec.md §4.8's
// drift table:
//
//	0 files changed                 -> NoAction
//	Base layer, tip mismatch        -> FullRebuild (unconditional)
//	Branch layer, merge-base change -> Rebase (unconditional floor)
//	< IncrementalMaxFiles files     -> Incremental
//	< RebaseMaxFraction of repo     -> Rebase
//	otherwise                       -> FullRebuild
//
// This table is monotone in FilesChanged: holding TotalFiles and the two
// flags fixed, increasing FilesChanged never returns a weaker Strategy.
func Decide(in Input, t Thresholds) Strategy {
	if in.TipMismatch {
		return FullRebuild
	}
	if in.FilesChanged == 0 {
		return NoAction
	}

	total := in.TotalFiles
	if total <= 0 {
		total = 1
	}
	fraction := float64(in.FilesChanged) / float64(total)

	floor := NoAction
	if in.MergeBaseChanged {
		floor = Rebase
	}

	var chosen Strategy
	switch {
	case in.FilesChanged < t.IncrementalMaxFiles:
		chosen = Incremental
	case fraction < t.RebaseMaxFraction:
		chosen = Rebase
	default:
		chosen = FullRebuild
	}
	if floor > chosen {
		return floor
	}
	return chosen
}

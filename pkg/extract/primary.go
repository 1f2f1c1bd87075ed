// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"strings"

	"github.com/kraklabs/semfora/pkg/schema"
)

// typeLikeKinds score +30 in primary-symbol selection (spec.md §4.2 step 5).
var typeLikeKinds = map[schema.SymbolKind]bool{
	schema.KindClass:     true,
	schema.KindStruct:    true,
	schema.KindEnum:      true,
	schema.KindInterface: true,
}

// helperKinds score +10; everything else not type-like scores +20.
var helperKinds = map[schema.SymbolKind]bool{
	schema.KindVariable: true,
}

// selectPrimary scores every candidate and records the winner as the
// file's primary symbol (spec.md §4.2 step 5). A file with no
// positive-scoring candidate has no primary symbol.
func (w *walker) selectPrimary() {
	stem := strings.ToLower(FileStem(w.file))

	var best *candidate
	bestScore := 0
	for _, c := range w.candidates {
		s := PrimaryScore(c.info, stem)
		if best == nil || s > bestScore {
			best, bestScore = c, s
		}
	}
	if best == nil || bestScore <= 0 {
		return
	}
	w.primary = best
}

// PrimaryScore computes a candidate's primary-symbol score per spec.md
// §4.2 step 5, including the +25 bonus for a symbol that carries any
// decorator.
func PrimaryScore(s schema.SymbolInfo, lowerFileStem string) int {
	score := 0
	if s.IsExported {
		score += 50
	}
	switch {
	case typeLikeKinds[s.Kind]:
		score += 30
	case helperKinds[s.Kind]:
		score += 10
	default:
		score += 20
	}
	if strings.ToLower(s.Name) == lowerFileStem {
		score += 40
	}
	if len(s.Decorators) > 0 {
		score += 25
	}
	return score
}

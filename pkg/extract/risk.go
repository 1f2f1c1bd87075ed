// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import "github.com/kraklabs/semfora/pkg/schema"

// computeRisk derives each candidate's BehavioralRisk from nesting depth,
// try presence, number of calls, is_async, and presence of I/O calls
// (spec.md §4.2 step 4). The source's own risk-scoring function was not
// present in the retrieved original_source slice (see DESIGN.md); this
// weighted-sum table is built to satisfy the one hard requirement spec.md
// states explicitly - monotone in each input - rather than invented
// thresholds dressed up as ported ones.
func (w *walker) computeRisk() {
	for _, c := range w.candidates {
		c.info.BehavioralRisk = riskFor(c.info)
	}
}

func riskFor(s schema.SymbolInfo) schema.BehavioralRisk {
	score := 0

	maxDepth := 0
	hasTry := false
	for _, ev := range s.ControlFlow {
		if ev.Depth > maxDepth {
			maxDepth = ev.Depth
		}
		if ev.Kind == "try" {
			hasTry = true
		}
	}
	score += maxDepth * 2

	if hasTry {
		score += 3
	}
	if s.IsAsync {
		score += 2
	}

	ioCalls := 0
	for _, c := range s.Calls {
		if c.IsIO {
			ioCalls++
		}
	}
	score += ioCalls * 3
	score += len(s.Calls)

	switch {
	case score >= 15:
		return schema.RiskHigh
	case score >= 6:
		return schema.RiskMedium
	default:
		return schema.RiskLow
	}
}

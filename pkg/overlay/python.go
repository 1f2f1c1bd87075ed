// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"strings"

	"github.com/kraklabs/semfora/pkg/schema"
)

// ApplyPython tags test functions as framework entry points (so they are
// never classified as dead code regardless of static caller count, per
// spec.md §4.3) and propagates decorator presence into behavioral risk,
// mirroring the original indexer's detectors/python.rs.
func ApplyPython(sum *schema.SemanticSummary) {
	isTestFile := isPythonTestPath(sum.File)
	for i := range sum.Symbols {
		s := &sum.Symbols[i]
		nameIsTest := strings.HasPrefix(s.Name, "test_") || strings.HasPrefix(s.Name, "Test")
		hasPytestDecorator := false
		for _, d := range s.Decorators {
			dl := strings.ToLower(d)
			if strings.Contains(dl, "pytest") || strings.Contains(dl, "unittest") {
				hasPytestDecorator = true
				break
			}
		}
		if (isTestFile && nameIsTest) || hasPytestDecorator {
			s.FrameworkEntry = schema.EntryTestFunction
		}
		if len(s.Decorators) > 0 && s.BehavioralRisk == schema.RiskLow {
			s.BehavioralRisk = schema.RiskMedium
		}
	}
}

func isPythonTestPath(file string) bool {
	lower := strings.ToLower(file)
	return strings.Contains(lower, "test_") || strings.Contains(lower, "/tests/") ||
		strings.Contains(lower, "_test.py") || strings.HasPrefix(lower, "tests/")
}

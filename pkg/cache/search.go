// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// SymbolMatch is one hit from SearchSymbols or its ripgrep fallback.
type SymbolMatch struct {
	Hash      string
	Name      string
	Kind      string
	File      string
	StartLine int
	FromGrep  bool // true when this hit came from the ripgrep fallback, not the shard index
}

// SearchSymbols scans every module shard's symbol table in a layer for
// names matching pattern (case-insensitive regex), per spec.md §4.12's
// search operation.
func (d *Dir) SearchSymbols(layer, pattern string, limit int) ([]SymbolMatch, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	tables, err := d.LoadAllSymbolEntries(layer)
	if err != nil {
		return nil, err
	}

	var matches []SymbolMatch
	for _, t := range tables {
		idx := columnIndex(t.Columns)
		for _, row := range t.Rows {
			name := row[idx["name"]]
			if !re.MatchString(name) {
				continue
			}
			start, _ := strconv.Atoi(row[idx["start_line"]])
			matches = append(matches, SymbolMatch{
				Hash: row[idx["hash"]], Name: name, Kind: row[idx["kind"]],
				File: row[idx["file"]], StartLine: start,
			})
			if limit > 0 && len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

func columnIndex(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}

// SearchSymbolsWithFallback runs SearchSymbols and, if it returns nothing
// (e.g. the pattern targets dynamically built names the static extractor
// never captured as a symbol), falls back to a `rg` text search over the
// repo working tree so the caller always gets something actionable
// (spec.md §4.12, "ripgrep fallback contract").
func (d *Dir) SearchSymbolsWithFallback(ctx context.Context, layer, repoRoot, pattern string, limit int) ([]SymbolMatch, error) {
	matches, err := d.SearchSymbols(layer, pattern, limit)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}
	return ripgrepFallback(ctx, repoRoot, pattern, limit)
}

// ripgrepFallback shells out to `rg --line-number --no-heading` and maps
// "<file>:<line>:<text>" hits into SymbolMatch values with no hash (the
// hash field is meaningless for a line that isn't a known symbol).
func ripgrepFallback(ctx context.Context, repoRoot, pattern string, limit int) ([]SymbolMatch, error) {
	args := []string{"--line-number", "--no-heading", "--max-count", "1", "-i"}
	if limit > 0 {
		args = append(args, "-m", strconv.Itoa(limit))
	}
	args = append(args, pattern, repoRoot)

	out, err := exec.CommandContext(ctx, "rg", args...).Output()
	if err != nil {
		// rg exits 1 when there are no matches; that is not an error here.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}

	var matches []SymbolMatch
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		lineNo, _ := strconv.Atoi(parts[1])
		matches = append(matches, SymbolMatch{
			Name: strings.TrimSpace(parts[2]), File: parts[0], StartLine: lineNo, FromGrep: true,
		})
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

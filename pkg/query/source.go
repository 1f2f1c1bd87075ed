// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	ierrors "github.com/kraklabs/semfora/internal/errors"
)

// SourceLine is one line of a Source query's response.
type SourceLine struct {
	Number  int
	Text    string
	InRange bool
}

// SourceResult is the response to the Source query.
type SourceResult struct {
	File  string
	Lines []SourceLine
}

// Source reads file from the working tree, returning the [start, end]
// range expanded by context lines on each side, with the original range
// marked (spec.md §4.12's "Source" query). The core only ever reads inside
// the repository root (spec.md §6).
func (e *Engine) Source(file string, start, end, context int) (*SourceResult, error) {
	logQuery("source", "file", file, "start", start, "end", end)
	abs := filepath.Join(e.RepoRoot, filepath.FromSlash(file))
	if rel, err := filepath.Rel(e.RepoRoot, abs); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, ierrors.NewFileNotFound(file, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, ierrors.NewFileNotFound(file, err)
	}
	defer f.Close()

	if context < 0 {
		context = 0
	}
	lo := start - context
	if lo < 1 {
		lo = 1
	}
	hi := end + context

	var lines []SourceLine
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if n < lo {
			continue
		}
		if hi > 0 && n > hi {
			break
		}
		lines = append(lines, SourceLine{
			Number:  n,
			Text:    sc.Text(),
			InRange: n >= start && n <= end,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, ierrors.NewIOError("read source "+file, err)
	}
	return &SourceResult{File: file, Lines: lines}, nil
}

// SourceForSymbol resolves hash to its file+range (searching symbol detail
// shards, falling back to module shard rows for non-rich symbols) and
// reads its source with surrounding context.
func (e *Engine) SourceForSymbol(hash string, context int) (*SourceResult, error) {
	logQuery("source_for_symbol", "hash", hash)
	found, notFound := e.SymbolsByHash([]string{hash})
	if len(notFound) > 0 {
		entry, err := e.findSymbolRowByHash(hash)
		if err != nil {
			return nil, err
		}
		return e.Source(entry.File, entry.StartLine, entry.EndLine, context)
	}
	doc := found[0].Doc
	file, _ := doc.Scalar("file")
	startS, _ := doc.Scalar("start_line")
	endS, _ := doc.Scalar("end_line")
	start, end := atoiOr(startS, 1), atoiOr(endS, 1)
	return e.Source(file, start, end, context)
}

func (e *Engine) findSymbolRowByHash(hash string) (*FileSymbolEntry, error) {
	for _, k := range layerOrder {
		tables, err := e.Dir.LoadAllSymbolEntries(string(k))
		if err != nil {
			continue
		}
		for _, t := range tables {
			idx := colIndex(t.Columns)
			for _, row := range t.Rows {
				if row[idx["hash"]] == hash {
					entry := rowToEntry(row, idx)
					return &entry, nil
				}
			}
		}
	}
	return nil, ierrors.NewQueryError("symbol not found: "+hash, nil)
}

func atoiOr(s string, def int) int {
	n := def
	for _, c := range s {
		if c < '0' || c > '9' {
			return def
		}
	}
	if s == "" {
		return def
	}
	n = 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package schema

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// FNV-1a 64-bit constants, fixed so hashes stay stable across
// implementations (spec.md §4.4).
const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// FNV1a64 computes the 64-bit FNV-1a digest of data.
func FNV1a64(data []byte) uint64 {
	h := fnvOffset64
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}

// NormalizeFilePath folds OS-specific separators to '/', preserves case,
// and strips a leading "./" (spec.md §3, Symbol identity and hashing).
func NormalizeFilePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	for strings.HasPrefix(p, "/") {
		p = p[1:]
	}
	return p
}

// SymbolHash computes a symbol's content-addressed hash: an FNV-1a 64-bit
// digest over (normalized_file, symbol_name, kind_normalized, start_line),
// rendered as lowercase hex (spec.md §3).
func SymbolHash(file, name string, kind SymbolKind, startLine int) string {
	normFile := NormalizeFilePath(file)
	normKind := NormalizeKind(string(kind))
	key := fmt.Sprintf("%s\x00%s\x00%s\x00%d", normFile, name, normKind, startLine)
	return fmt.Sprintf("%016x", FNV1a64([]byte(key)))
}

// ModuleNameForDepth derives the short module name for a file path by
// stripping the leading d path components, per the conflict-aware
// stripping algorithm in spec.md §3.
func ModuleNameForDepth(filePath string, d int) string {
	norm := NormalizeFilePath(filePath)
	dir := path.Dir(norm)
	if dir == "." {
		return ""
	}
	parts := strings.Split(dir, "/")
	if d >= len(parts) {
		return strings.Join(parts, ".")
	}
	return strings.Join(parts[d:], ".")
}

// ChooseStrippingDepth finds the smallest path-prefix depth d such that,
// after stripping d leading components from every file path's directory,
// all resulting module names are unique. It returns d = 0 when the
// directories are already unique, and returns the maximum depth that still
// has conflicts if uniqueness can never be achieved (all files share a
// directory) — callers should treat that case as "irreducible conflict",
// which can only occur when two files live in the exact same directory,
// an impossibility this function does not attempt to resolve since module
// names are directory-level, not file-level.
func ChooseStrippingDepth(filePaths []string) int {
	maxDepth := 0
	for _, fp := range filePaths {
		norm := NormalizeFilePath(fp)
		dir := path.Dir(norm)
		if dir == "." {
			continue
		}
		n := len(strings.Split(dir, "/"))
		if n > maxDepth {
			maxDepth = n
		}
	}

	for d := 0; d <= maxDepth; d++ {
		seen := make(map[string]struct{}, len(filePaths))
		unique := true
		for _, fp := range filePaths {
			name := ModuleNameForDepth(fp, d)
			if _, ok := seen[name]; ok {
				unique = false
				break
			}
			seen[name] = struct{}{}
		}
		if unique {
			return d
		}
	}
	return maxDepth
}

// SanitizeFilename replaces any character outside [A-Za-z0-9._-] with '_',
// per spec.md §3's shard-filename rule.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// SortedModuleNames returns the distinct module names present in a set of
// file paths at stripping depth d, sorted for deterministic iteration.
func SortedModuleNames(filePaths []string, d int) []string {
	seen := make(map[string]struct{})
	for _, fp := range filePaths {
		seen[ModuleNameForDepth(fp, d)] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

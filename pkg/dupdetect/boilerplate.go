// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package dupdetect

import "strings"

// boilerplatePrefixes and boilerplateSuffixes name the function shapes
// spec.md §4.13 calls out by example ("setters/getters, trivial
// constructors, single-return wrappers"). No such table was present in
// the retrieved corpus (see DESIGN.md); this is authored fresh against
// the signature-level data signatures.jsonl actually carries - name shape
// and argument/return-type arity, since full function bodies aren't part
// of that shard.
var boilerplatePrefixes = []string{"get", "set", "is", "has", "new"}

// isBoilerplate reports whether s looks like one of the excluded trivial
// shapes: a zero-argument get/is/has function, a one-argument set
// function, or a new-prefixed constructor-style function with zero or one
// argument. Return types are not consulted.
func isBoilerplate(s Signature) bool {
	lower := strings.ToLower(s.Name)
	for _, p := range boilerplatePrefixes {
		if !strings.HasPrefix(lower, p) {
			continue
		}
		switch p {
		case "get", "is", "has":
			if len(s.Arguments) == 0 {
				return true
			}
		case "set":
			if len(s.Arguments) == 1 {
				return true
			}
		case "new":
			if len(s.Arguments) <= 1 {
				return true
			}
		}
	}
	return false
}

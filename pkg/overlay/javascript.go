// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package overlay implements the per-language refinement passes that run
// after the generic extractor (spec.md §4.3): framework entry-point
// tagging, decorator handling, Go type-spec merging, and scope-escape
// reference tracking. Each overlay takes the SemanticSummary the generic
// extractor already produced (plus, where it needs raw syntax the
// summary doesn't carry, the parsed tree and source bytes) and refines it
// in place.
package overlay

import (
	"strings"

	"github.com/kraklabs/semfora/pkg/schema"
)

// jsFrameworks records which frameworks detectJSFrameworks found, using
// the import-based detection table the original indexer used
// (detectors/javascript/frameworks/mod.rs): a dependency name or prefix
// maps to the framework it implies.
type jsFrameworks struct {
	react, next, express, angular, vue, nest bool
}

func detectJSFrameworks(sum *schema.SemanticSummary) jsFrameworks {
	var f jsFrameworks
	for _, dep := range sum.AddedDependencies {
		d := strings.ToLower(dep)
		switch {
		case dep == "React" || d == "react" || strings.HasPrefix(d, "react-"):
			f.react = true
		case strings.HasPrefix(d, "next/") || d == "next":
			f.next, f.react = true, true
		case d == "express" || dep == "Router":
			f.express = true
		case strings.HasPrefix(d, "@angular/") || dep == "Component" || dep == "Injectable":
			f.angular = true
		case strings.HasPrefix(d, "@nestjs/"):
			f.nest = true
		case d == "vue" || strings.HasPrefix(d, "vue-") || strings.HasPrefix(d, "@vue/"):
			f.vue = true
		}
	}
	return f
}

// jsStateHookNames are React/Vue state-wrapper calls whose result is
// treated as a StateChange in addition to being a plain Call, per
// spec.md §4.3's "Extract hook usage and state-wrapper calls as
// additional state changes".
var jsStateHookNames = map[string]bool{
	"useState": true, "useReducer": true, "useRef": true,
	"ref": true, "reactive": true, "computed": true,
}

// ApplyJavaScript runs the JS/TS/Vue-inner-script overlay: framework
// detection, hook/state-wrapper extraction, and framework-entry tagging
// by file path and decorator convention (spec.md §4.3).
func ApplyJavaScript(sum *schema.SemanticSummary, isTSX bool) {
	fw := detectJSFrameworks(sum)
	lowerFile := strings.ToLower(sum.File)

	tagRouteOrComponentFile(sum, fw, lowerFile)

	for i := range sum.Symbols {
		s := &sum.Symbols[i]
		tagHookCalls(s)
		tagSymbolFrameworkEntry(s, fw, lowerFile)
	}
}

// tagHookCalls promotes calls to known state hooks into StateChanges too
// (the call itself is left in place - a hook call is a perfectly good
// Call record as well as a state-change signal).
func tagHookCalls(s *schema.SymbolInfo) {
	for _, c := range s.Calls {
		if jsStateHookNames[c.Name] {
			s.StateChanges = append(s.StateChanges, schema.StateChange{
				Name: c.Name, Kind: "hook_setter", Line: c.Location.Line,
			})
		}
	}
}

// tagRouteOrComponentFile tags the whole-file FrameworkEntryPoint when the
// path itself is conventionally a framework entry (Next.js app-router
// page/layout/route files, a NestJS module file, ...).
func tagRouteOrComponentFile(sum *schema.SemanticSummary, fw jsFrameworks, lowerFile string) {
	switch {
	case fw.next && (strings.HasSuffix(lowerFile, "/page.tsx") || strings.HasSuffix(lowerFile, "/page.ts") ||
		strings.HasSuffix(lowerFile, "/route.ts") || strings.HasSuffix(lowerFile, "/layout.tsx")):
		sum.FrameworkEntryPoint = schema.EntryNextRoute
	case fw.nest && strings.HasSuffix(lowerFile, ".module.ts"):
		sum.FrameworkEntryPoint = schema.EntryNestModule
	}
}

func tagSymbolFrameworkEntry(s *schema.SymbolInfo, fw jsFrameworks, lowerFile string) {
	switch {
	case fw.nest && hasDecorator(s, "@controller"):
		s.FrameworkEntry = schema.EntryNestController
	case fw.nest && hasDecorator(s, "@injectable"):
		s.FrameworkEntry = schema.EntryNestService
	case fw.express && (strings.HasSuffix(lowerFile, "middleware.ts") || strings.HasSuffix(lowerFile, "middleware.js")):
		s.FrameworkEntry = schema.EntryExpressMiddle
	case fw.express && isExpressRouteHandler(s):
		s.FrameworkEntry = schema.EntryExpressRoute
	case fw.react && s.Kind == schema.KindFunction && s.IsExported && isPascalCase(s.Name):
		s.FrameworkEntry = schema.EntryReactComponent
	case fw.vue && s.Kind == schema.KindFunction && s.Name == "setup":
		s.FrameworkEntry = schema.EntryVueComponent
	}
}

func hasDecorator(s *schema.SymbolInfo, prefixLower string) bool {
	for _, d := range s.Decorators {
		if strings.HasPrefix(strings.ToLower(d), prefixLower) {
			return true
		}
	}
	return false
}

// isExpressRouteHandler recognizes `app.get(...)`/`router.post(...)`
// style registrations by looking at the calls a symbol itself makes:
// the method name must be an HTTP verb (or use/all) and the receiver app,
// router, or a name ending in "router". File-level calls in sum.Calls are
// not examined.
func isExpressRouteHandler(s *schema.SymbolInfo) bool {
	for _, c := range s.Calls {
		switch c.Name {
		case "get", "post", "put", "delete", "patch", "use", "all":
			if c.Object == "app" || c.Object == "router" || strings.HasSuffix(strings.ToLower(c.Object), "router") {
				return true
			}
		}
	}
	return false
}

func isPascalCase(name string) bool {
	if name == "" {
		return false
	}
	r := []rune(name)[0]
	return r >= 'A' && r <= 'Z'
}

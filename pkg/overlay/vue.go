// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"regexp"

	"github.com/kraklabs/semfora/pkg/schema"
)

// vueScriptBlock matches the first <script> block of a Vue single-file
// component, capturing its attribute text (where vueLangAttr looks for
// lang="ts") and its body text. <script setup> is not distinguished.
var vueScriptBlock = regexp.MustCompile(`(?s)<script([^>]*)>(.*?)</script>`)
var vueLangAttr = regexp.MustCompile(`lang\s*=\s*["']([a-zA-Z]+)["']`)

// SliceVueScript extracts the <script> block from a .vue single-file
// component, per spec.md §4.3: "Parse .vue single-file components by
// slicing out the <script> block, reparsing with the chosen inner
// language grammar, and running JS/TS extraction on it." It returns the
// inner source, the language to reparse it as, and the number of newlines
// in the file before the block body starts, which is the amount to add to
// the inner source's 1-indexed line numbers (so caller symbols can be
// shifted back into the .vue file's coordinate space).
func SliceVueScript(content []byte) (inner []byte, lang schema.Language, lineOffset int, ok bool) {
	loc := vueScriptBlock.FindSubmatchIndex(content)
	if loc == nil {
		return nil, schema.LangUnknown, 0, false
	}
	attrs := content[loc[2]:loc[3]]
	body := content[loc[4]:loc[5]]

	lang = schema.LangJavaScript
	if m := vueLangAttr.FindSubmatch(attrs); m != nil {
		switch string(m[1]) {
		case "ts", "typescript":
			lang = schema.LangTypeScript
		}
	}

	lineOffset = countNewlines(content[:loc[4]])
	return body, lang, lineOffset, true
}

func countNewlines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

// ShiftLines rewrites every line number in sum by offset, used after
// reparsing a Vue <script> block in isolation so its symbols point back
// into the original .vue file.
func ShiftLines(sum *schema.SemanticSummary, offset int) {
	shiftSymbol := func(s *schema.SymbolInfo) {
		s.StartLine += offset
		s.EndLine += offset
		for i := range s.Calls {
			s.Calls[i].Location.Line += offset
		}
		for i := range s.ControlFlow {
			s.ControlFlow[i].Line += offset
		}
		for i := range s.StateChanges {
			s.StateChanges[i].Line += offset
		}
	}
	for i := range sum.Symbols {
		shiftSymbol(&sum.Symbols[i])
	}
	for i := range sum.Calls {
		sum.Calls[i].Location.Line += offset
	}
	for i := range sum.ControlFlow {
		sum.ControlFlow[i].Line += offset
	}
	for i := range sum.StateChanges {
		sum.StateChanges[i].Line += offset
	}
	sum.PrimarySymbolStart += offset
	sum.PrimarySymbolEnd += offset
	sum.Language = schema.LangVue
}

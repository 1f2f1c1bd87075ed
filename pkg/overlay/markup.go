// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"

	"github.com/kraklabs/semfora/internal/errors"
	"github.com/kraklabs/semfora/pkg/schema"
)

// ExtractHTML is the dedicated overlay extractor for HTML files: every
// element carrying an "id" attribute becomes a lightweight structural
// symbol, named "tag#id" (spec.md §4.3, "extract structural symbols").
func ExtractHTML(file string, content []byte) (*schema.SemanticSummary, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, errors.NewParseFailure(file, err)
	}
	sum := &schema.SemanticSummary{File: schema.NormalizeFilePath(file), Language: schema.LangHTML}

	lineOf := newLineIndex(content)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val != "" {
					sum.Symbols = append(sum.Symbols, schema.SymbolInfo{
						Name:      n.Data + "#" + a.Val,
						Kind:      schema.KindVariable,
						StartLine: lineOf.lineForOffset(0), // html.Node carries no byte offset; best-effort
						EndLine:   lineOf.lineForOffset(0),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(sum.Symbols) > 0 {
		sum.HasPrimarySymbol = true
		sum.PrimarySymbolName = sum.Symbols[0].Name
		sum.PrimarySymbolKind = schema.KindVariable
	}
	return sum, nil
}

// ExtractCSS is the dedicated overlay extractor for CSS/SCSS. No CSS
// parsing library is used; selector lines are
// recognized with a line-oriented scan for a rule-opening `{`, which is
// sufficient for "structural symbol" extraction without claiming to be a
// real CSS parser.
func ExtractCSS(file string, content []byte) (*schema.SemanticSummary, error) {
	sum := &schema.SemanticSummary{File: schema.NormalizeFilePath(file), Language: schema.LangCSS}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") || strings.HasPrefix(text, "/*") {
			continue
		}
		if strings.HasSuffix(text, "{") {
			selector := strings.TrimSpace(strings.TrimSuffix(text, "{"))
			if selector == "" {
				continue
			}
			sum.Symbols = append(sum.Symbols, schema.SymbolInfo{
				Name: selector, Kind: schema.KindVariable, StartLine: line, EndLine: line,
			})
		}
	}
	if len(sum.Symbols) > 0 {
		sum.HasPrimarySymbol = true
		sum.PrimarySymbolName = sum.Symbols[0].Name
		sum.PrimarySymbolKind = schema.KindVariable
		sum.PrimarySymbolStart = sum.Symbols[0].StartLine
		sum.PrimarySymbolEnd = sum.Symbols[0].StartLine
	}
	return sum, nil
}

// ExtractMarkdown is the dedicated overlay extractor for Markdown files:
// each heading becomes a section symbol, using goldmark's own AST walker
// (spec.md §4.3).
func ExtractMarkdown(file string, content []byte) (*schema.SemanticSummary, error) {
	md := goldmark.New()
	reader := text.NewReader(content)
	root := md.Parser().Parse(reader)

	sum := &schema.SemanticSummary{File: schema.NormalizeFilePath(file), Language: schema.LangMarkdown}
	lineOf := newLineIndex(content)

	var sections []*schema.SymbolInfo
	err := gast.Walk(root, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		heading, ok := n.(*gast.Heading)
		if !ok {
			return gast.WalkContinue, nil
		}
		var title strings.Builder
		for c := heading.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*gast.Text); ok {
				title.Write(t.Value(content))
			}
		}
		startLine := lineOf.lineForOffset(0)
		if lines := heading.Lines(); lines.Len() > 0 {
			seg := lines.At(0)
			startLine = lineOf.lineForOffset(seg.Start)
		}
		// close the previous open section at this heading's line - 1
		if len(sections) > 0 {
			prev := sections[len(sections)-1]
			if prev.EndLine < startLine-1 {
				prev.EndLine = startLine - 1
			}
		}
		sections = append(sections, &schema.SymbolInfo{
			Name: fmt.Sprintf("h%d %s", heading.Level, strings.TrimSpace(title.String())),
			Kind: schema.KindVariable, StartLine: startLine, EndLine: startLine,
		})
		return gast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.NewExtractionFailure(file, "markdown ast walk", err)
	}

	totalLines := lineOf.totalLines()
	for _, s := range sections {
		if s.EndLine < s.StartLine {
			s.EndLine = totalLines
		}
		sum.Symbols = append(sum.Symbols, *s)
	}
	if len(sum.Symbols) > 0 {
		sum.HasPrimarySymbol = true
		sum.PrimarySymbolName = sum.Symbols[0].Name
		sum.PrimarySymbolKind = schema.KindVariable
		sum.PrimarySymbolStart = sum.Symbols[0].StartLine
		sum.PrimarySymbolEnd = sum.Symbols[0].EndLine
	}
	return sum, nil
}

// lineIndex maps byte offsets to 1-indexed line numbers.
type lineIndex struct {
	offsets []int // offsets[i] = byte offset where line i+1 starts
}

func newLineIndex(content []byte) *lineIndex {
	idx := &lineIndex{offsets: []int{0}}
	for i, b := range content {
		if b == '\n' {
			idx.offsets = append(idx.offsets, i+1)
		}
	}
	return idx
}

func (idx *lineIndex) lineForOffset(off int) int {
	lo, hi := 0, len(idx.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if idx.offsets[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func (idx *lineIndex) totalLines() int {
	return len(idx.offsets)
}

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

// Package pipeline wires the generic extractor (pkg/extract) and the
// language overlays (pkg/overlay) together into the one per-file
// operation the rest of the engine calls: source bytes in, a fully
// overlaid schema.SemanticSummary out. This is the "parser -> generic
// extractor + language overlay -> SemanticSummary" arrow of spec.md §2's
// data-flow diagram.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/kraklabs/semfora/internal/errors"
	"github.com/kraklabs/semfora/pkg/extract"
	"github.com/kraklabs/semfora/pkg/grammar"
	"github.com/kraklabs/semfora/pkg/overlay"
	"github.com/kraklabs/semfora/pkg/schema"
)

// Options tunes optional extraction features.
type Options struct {
	// EnableEscapeRefs turns on spec.md §4.3.1's scope-escape reference
	// tracking for JS/TS/C# files.
	EnableEscapeRefs bool
}

// Pipeline dispatches a file to the right extraction path by language.
type Pipeline struct {
	registry  *grammar.Registry
	extractor *extract.Extractor
	logger    *slog.Logger
	opts      Options
}

// New builds a Pipeline. A nil logger falls back to slog.Default().
func New(logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	reg := grammar.NewRegistry()
	return &Pipeline{
		registry:  reg,
		extractor: extract.New(reg, logger),
		logger:    logger,
		opts:      opts,
	}
}

// ExtractFile runs the full parser -> extractor -> overlay chain for one
// file and returns its SemanticSummary. Per spec.md §4.2's failure
// semantics, any error is confined to this file: callers should log it
// (when verbose) and skip the file, never abort the batch.
func (p *Pipeline) ExtractFile(ctx context.Context, relPath string, content []byte) (*schema.SemanticSummary, error) {
	lang := grammar.LanguageForExtension(filepath.Ext(relPath))

	switch lang {
	case schema.LangUnknown:
		return nil, errors.NewUnsupportedLanguage(relPath)
	case schema.LangHCL:
		return overlay.ExtractHCL(relPath, content)
	case schema.LangJSON, schema.LangYAML, schema.LangTOML:
		return overlay.ExtractConfig(relPath, content, lang)
	case schema.LangHTML:
		return overlay.ExtractHTML(relPath, content)
	case schema.LangCSS:
		return overlay.ExtractCSS(relPath, content)
	case schema.LangMarkdown:
		return overlay.ExtractMarkdown(relPath, content)
	case schema.LangVue:
		return p.extractVue(ctx, relPath, content)
	default:
		return p.extractViaGrammar(ctx, relPath, content, lang)
	}
}

func (p *Pipeline) extractViaGrammar(ctx context.Context, relPath string, content []byte, lang schema.Language) (*schema.SemanticSummary, error) {
	sum, root, err := p.extractor.ExtractWithAST(ctx, relPath, content, lang)
	if err != nil {
		return nil, err
	}
	sum.Language = lang

	switch lang {
	case schema.LangGo:
		overlay.ApplyGo(sum, root, content)
	case schema.LangPython:
		overlay.ApplyPython(sum)
	case schema.LangJavaScript, schema.LangTypeScript, schema.LangTSX:
		overlay.ApplyJavaScript(sum, lang == schema.LangTSX)
		overlay.ApplyEscapeRefs(sum, root, content, lang, p.opts.EnableEscapeRefs)
	}
	return sum, nil
}

// extractVue slices the <script> block out of a .vue SFC, reparses it
// with the inner language's grammar, runs the normal JS/TS overlay chain,
// then shifts every line number back into the .vue file's coordinates
// (spec.md §4.3).
func (p *Pipeline) extractVue(ctx context.Context, relPath string, content []byte) (*schema.SemanticSummary, error) {
	inner, innerLang, offset, ok := overlay.SliceVueScript(content)
	if !ok {
		return &schema.SemanticSummary{File: schema.NormalizeFilePath(relPath), Language: schema.LangVue}, nil
	}
	sum, err := p.extractViaGrammar(ctx, relPath, inner, innerLang)
	if err != nil {
		return nil, err
	}
	overlay.ShiftLines(sum, offset)
	sum.File = schema.NormalizeFilePath(relPath)
	return sum, nil
}

// SupportedExtensions exposes the registry's known extensions plus the
// overlay-only formats (HCL, config, markup, Vue), for the file watcher's
// path filter (spec.md §4.10).
func SupportedExtensions() []string {
	return grammar.SupportedExtensions()
}

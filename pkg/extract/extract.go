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

// Package extract implements the generic extractor (spec.md §4.2): given a
// parsed tree-sitter AST and a pkg/grammar.Grammar, it walks the tree three
// times (imports, candidate symbols, attributed events) and produces a
// schema.SemanticSummary. It knows nothing about any specific language's
// semantics beyond what the Grammar table tells it; that knowledge lives in
// pkg/overlay post-passes.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semfora/internal/errors"
	"github.com/kraklabs/semfora/pkg/grammar"
	"github.com/kraklabs/semfora/pkg/schema"
)

// MaxNestingDepth is the saturation point for control-flow nesting depth
// (spec.md §8, "deeply nested control flow ... saturates at a configurable
// max without affecting correctness of other fields").
const MaxNestingDepth = 100

// Extractor walks ASTs with a grammar.Registry to produce SemanticSummary
// values. It is safe for concurrent use: each call to Extract obtains its
// own parser from a per-language pool (tree-sitter parsers are not
// thread-safe, mirroring the teacher's TreeSitterParser pool design).
type Extractor struct {
	logger   *slog.Logger
	registry *grammar.Registry

	poolsMu sync.Mutex
	pools   map[schema.Language]*sync.Pool
}

// New constructs an Extractor over registry. A nil logger falls back to
// slog.Default().
func New(registry *grammar.Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger:   logger,
		registry: registry,
		pools:    make(map[schema.Language]*sync.Pool),
	}
}

func (e *Extractor) poolFor(g *grammar.Grammar) *sync.Pool {
	e.poolsMu.Lock()
	defer e.poolsMu.Unlock()
	if p, ok := e.pools[g.Language]; ok {
		return p
	}
	p := &sync.Pool{New: func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(g.SitterLanguage())
		return parser
	}}
	e.pools[g.Language] = p
	return p
}

// Extract parses content as lang and returns a populated SemanticSummary.
// A parse failure is confined to this file (spec.md §4.2 "Failure
// semantics"): it is returned as an *errors.Error of KindParseFailure,
// never a panic, and the caller is expected to skip the file and continue.
func (e *Extractor) Extract(ctx context.Context, file string, content []byte, lang schema.Language) (*schema.SemanticSummary, error) {
	sum, _, err := e.ExtractWithAST(ctx, file, content, lang)
	return sum, err
}

// ExtractWithAST is the same as Extract but additionally returns the root
// AST node, for callers (pkg/pipeline) that need to run a further
// language overlay requiring raw syntax the summary doesn't carry - the
// Go type_spec merge and the JS/TS escape-reference pass both need this.
func (e *Extractor) ExtractWithAST(ctx context.Context, file string, content []byte, lang schema.Language) (*schema.SemanticSummary, *sitter.Node, error) {
	g, ok := e.registry.Lookup(lang)
	if !ok {
		return nil, nil, errors.NewUnsupportedLanguage(file)
	}

	pool := e.poolFor(g)
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, nil, errors.NewParseFailure(file, err)
	}
	if tree == nil {
		return nil, nil, errors.NewParseFailure(file, fmt.Errorf("empty parse tree"))
	}
	root := tree.RootNode()

	w := &walker{grammar: g, source: content, file: file, logger: e.logger}
	w.collectImports(root)
	w.collectCandidates(root, nil, 0)
	w.mergeDuplicateCandidates()
	w.collectEvents(root, 0, false)
	w.computeRisk()
	w.selectPrimary()

	return w.summary(), root, nil
}

// SupportsLanguage reports whether the registry has a tree-sitter grammar
// for lang; languages without one (HCL, config formats, markup) are
// handled by dedicated overlay extractors instead (pkg/overlay).
func (e *Extractor) SupportsLanguage(lang schema.Language) bool {
	_, ok := e.registry.Lookup(lang)
	return ok
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"encoding/json"
	"fmt"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/semfora/internal/errors"
	"github.com/kraklabs/semfora/pkg/schema"
)

// configDependencyKeys are top-level keys whose entries represent a
// dependency the generic extractor's import pass has no way to see,
// because the file isn't source code (spec.md §4.3: "extract meaningful
// keys as dependencies (e.g. dependencies, scripts, image)").
var configDependencyKeys = []string{"dependencies", "devDependencies", "peerDependencies", "require"}

// ExtractConfig is the dedicated overlay extractor for JSON/YAML/TOML
// config files. Like HCL, these have no tree-sitter grammar in
// pkg/grammar, so extraction runs standalone rather than as a post-pass.
func ExtractConfig(file string, content []byte, lang schema.Language) (*schema.SemanticSummary, error) {
	var doc map[string]any
	var err error
	switch lang {
	case schema.LangJSON:
		err = json.Unmarshal(content, &doc)
	case schema.LangYAML:
		err = yaml.Unmarshal(content, &doc)
	case schema.LangTOML:
		err = toml.Unmarshal(content, &doc)
	default:
		return nil, errors.NewUnsupportedLanguage(file)
	}
	if err != nil {
		return nil, errors.NewParseFailure(file, err)
	}

	sum := &schema.SemanticSummary{File: schema.NormalizeFilePath(file), Language: lang}
	if doc == nil {
		return sum, nil
	}

	for _, key := range configDependencyKeys {
		entries, ok := doc[key].(map[string]any)
		if !ok {
			continue
		}
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			version := fmt.Sprintf("%v", entries[name])
			sum.AddedDependencies = append(sum.AddedDependencies, name+"@"+version)
		}
	}

	if scripts, ok := doc["scripts"].(map[string]any); ok {
		names := sortedKeys(scripts)
		for _, name := range names {
			sum.StateChanges = append(sum.StateChanges, schema.StateChange{Name: name, Kind: "script", Line: 1})
		}
		sum.Symbols = append(sum.Symbols, schema.SymbolInfo{
			Name: fmt.Sprintf("scripts (%d entries)", len(scripts)), Kind: schema.KindVariable,
			StartLine: 1, EndLine: 1,
		})
	}

	if image, ok := doc["image"].(string); ok {
		sum.AddedDependencies = append(sum.AddedDependencies, "image:"+image)
	}

	keys := sortedKeys(doc)
	for _, k := range keys {
		sum.Symbols = append(sum.Symbols, schema.SymbolInfo{
			Name: k, Kind: schema.KindVariable, StartLine: 1, EndLine: 1,
		})
	}
	if len(sum.Symbols) > 0 {
		sum.HasPrimarySymbol = true
		sum.PrimarySymbolName = sum.Symbols[0].Name
		sum.PrimarySymbolKind = schema.KindVariable
		sum.PrimarySymbolStart = 1
		sum.PrimarySymbolEnd = 1
	}
	return sum, nil
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

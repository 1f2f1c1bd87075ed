// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"

	"github.com/kraklabs/semfora/internal/errors"
	"github.com/kraklabs/semfora/pkg/schema"
)

// hclSymbolKinds is the fixed set of top-level block keywords HCL/Terraform
// treats as symbols (spec.md §4.3: "resource, data, module, variable,
// output, locals, provider, terraform").
var hclSymbolKinds = map[string]bool{
	"resource": true, "data": true, "module": true, "variable": true,
	"output": true, "locals": true, "provider": true, "terraform": true,
}

// ExtractHCL is the dedicated overlay extractor for HCL files (spec.md
// §4.3): it has no tree-sitter grammar in pkg/grammar, so it runs
// standalone rather than as a post-pass over a generic-extractor summary,
// parsing with hashicorp/hcl's own AST (the teacher's config-loading
// dependency, reused here for its natural domain: HCL itself).
func ExtractHCL(file string, content []byte) (*schema.SemanticSummary, error) {
	root, err := hcl.ParseBytes(content)
	if err != nil {
		return nil, errors.NewParseFailure(file, err)
	}

	sum := &schema.SemanticSummary{
		File:     schema.NormalizeFilePath(file),
		Language: schema.LangHCL,
	}

	list, ok := root.Node.(*ast.ObjectList)
	if !ok {
		return sum, nil
	}
	for _, item := range list.Items {
		addHCLBlockSymbol(sum, item)
	}
	if len(sum.Symbols) > 0 {
		first := sum.Symbols[0]
		sum.HasPrimarySymbol = true
		sum.PrimarySymbolName = first.Name
		sum.PrimarySymbolKind = first.Kind
		sum.PrimarySymbolStart = first.StartLine
		sum.PrimarySymbolEnd = first.EndLine
		sum.PublicSurfaceChanged = true
	}
	return sum, nil
}

func addHCLBlockSymbol(sum *schema.SemanticSummary, item *ast.ObjectItem) {
	if len(item.Keys) == 0 {
		return
	}
	blockType := item.Keys[0].Token.Value().(string)
	if !hclSymbolKinds[blockType] {
		return
	}
	var labels []string
	for _, k := range item.Keys[1:] {
		if s, ok := k.Token.Value().(string); ok {
			labels = append(labels, s)
		}
	}

	name := hclBlockName(blockType, labels)
	startLine := item.Keys[0].Pos().Line
	endLine := startLine
	if ot, ok := item.Val.(*ast.ObjectType); ok && ot.Rbrace.Line > startLine {
		endLine = ot.Rbrace.Line
	}

	sym := schema.SymbolInfo{
		Name:      name,
		Kind:      schema.KindModule,
		StartLine: startLine,
		EndLine:   endLine,
	}
	if blockType == "resource" || blockType == "data" {
		sym.FrameworkEntry = schema.EntryHCLResource
	}
	sum.Symbols = append(sum.Symbols, sym)

	if ot, ok := item.Val.(*ast.ObjectType); ok && ot.List != nil {
		for _, nested := range ot.List.Items {
			addHCLAttributeStateChange(sum, name, nested)
		}
	}
}

// hclBlockName follows Terraform's own addressing convention: resource
// addresses drop the "resource" keyword ("type.name"), data addresses
// keep the "data" keyword ("data.type.name"), and single-label blocks use
// their conventional short prefix.
func hclBlockName(blockType string, labels []string) string {
	switch blockType {
	case "resource":
		if len(labels) >= 2 {
			return labels[0] + "." + labels[1]
		}
	case "data":
		if len(labels) >= 2 {
			return "data." + labels[0] + "." + labels[1]
		}
	case "module":
		if len(labels) >= 1 {
			return "module." + labels[0]
		}
	case "variable":
		if len(labels) >= 1 {
			return "var." + labels[0]
		}
	case "output":
		if len(labels) >= 1 {
			return "output." + labels[0]
		}
	case "provider":
		if len(labels) >= 1 {
			return "provider." + labels[0]
		}
	}
	parts := append([]string{blockType}, labels...)
	return strings.Join(parts, ".")
}

// addHCLAttributeStateChange records each attribute assignment inside a
// block body as a StateChange on the file level, attributed by name so a
// duplicate-detection or drift pass can see which blocks touch which
// keys (spec.md §4.3, "attributes as state changes" in the source this
// was distilled from).
func addHCLAttributeStateChange(sum *schema.SemanticSummary, blockName string, item *ast.ObjectItem) {
	if len(item.Keys) == 0 {
		return
	}
	attr := item.Keys[0].Token.Value()
	attrName, ok := attr.(string)
	if !ok {
		return
	}
	sum.StateChanges = append(sum.StateChanges, schema.StateChange{
		Name: blockName + "." + attrName,
		Kind: "hcl_attribute",
		Line: item.Keys[0].Pos().Line,
	})
}

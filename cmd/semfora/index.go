// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/internal/config"
	"github.com/kraklabs/semfora/internal/ui"
	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/gitpoll"
	"github.com/kraklabs/semfora/pkg/index"
	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/pipeline"
)

// layerArg parses the --layer flag's accepted values, defaulting to all
// three (a first `semfora index` with no arguments builds the whole
// three-layer cache per spec.md §3's lifecycle).
func layerArg(s string) ([]layer.Kind, error) {
	switch s {
	case "", "all":
		return []layer.Kind{layer.Base, layer.Branch, layer.Working}, nil
	case "base":
		return []layer.Kind{layer.Base}, nil
	case "branch":
		return []layer.Kind{layer.Branch}, nil
	case "working":
		return []layer.Kind{layer.Working}, nil
	default:
		return nil, fmt.Errorf("index: unknown --layer %q (want base, branch, working, or all)", s)
	}
}

func runIndex(ctx context.Context, args []string, logger *slog.Logger) error {
	flag := pflag.NewFlagSet("index", pflag.ContinueOnError)
	layerName := flag.String("layer", "all", "which layer(s) to build: base, branch, working, or all")
	if err := flag.Parse(args); err != nil {
		return err
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return err
	}
	kinds, err := layerArg(*layerName)
	if err != nil {
		return err
	}

	dir := cache.ForRepo(repoRoot)
	opts := pipeline.Options{EnableEscapeRefs: cfg.Indexing.EnableEscapeRefs}

	for _, kind := range kinds {
		sha := shaInfoFor(ctx, repoRoot, kind)

		bar := progressbar.Default(-1, fmt.Sprintf("indexing %s", kind))
		res, err := index.Run(ctx, repoRoot, dir, kind, sha, opts, logger)
		_ = bar.Finish()
		if err != nil {
			return err
		}
		ui.OK(os.Stdout, "%s: %d files, %d symbols, %d skipped (%s)",
			kind, res.FilesIndexed, res.SymbolCount, res.FilesSkipped, res.Duration)
		dir.AppendIndexLog(fmt.Sprintf("manual index layer=%s files=%d symbols=%d duration=%s",
			kind, res.FilesIndexed, res.SymbolCount, res.Duration))
	}
	return nil
}

// shaInfoFor stamps a layer update with the git state it corresponds to,
// read once via pkg/gitpoll's subprocess helpers; the Working layer has no
// meaningful SHA (spec.md §3) and gets the zero value.
func shaInfoFor(ctx context.Context, repoRoot string, kind layer.Kind) index.SHAInfo {
	if kind == layer.Working {
		return index.SHAInfo{}
	}
	st, err := gitpoll.ReadGitState(ctx, repoRoot)
	if err != nil {
		return index.SHAInfo{}
	}
	if kind == layer.Base {
		return index.SHAInfo{IndexedSHA: st.OriginSHA}
	}
	return index.SHAInfo{IndexedSHA: st.HeadSHA, MergeBaseSHA: st.MergeBaseSHA}
}

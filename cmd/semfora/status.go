// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/internal/ui"
	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/layer"
)

func runStatus(args []string) error {
	flag := pflag.NewFlagSet("status", pflag.ContinueOnError)
	logLines := flag.Int("log-lines", 10, "number of recent index.log lines to show")
	if err := flag.Parse(args); err != nil {
		return err
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	dir := cache.ForRepo(repoRoot)
	if !dir.Exists() {
		ui.Warn(os.Stdout, "no index found for %s; run `semfora index`", repoRoot)
		return nil
	}

	meta, err := dir.LoadMeta()
	if err != nil {
		return err
	}
	if meta.Stale() {
		ui.Warn(os.Stdout, "cache schema is out of date; run `semfora reset && semfora index`")
	}

	for _, kind := range []layer.Kind{layer.Base, layer.Branch, layer.Working} {
		lm, ok := meta.Layers[string(kind)]
		if !ok {
			ui.Dim(os.Stdout, "%-8s not indexed", kind)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-8s sha=%s files=%d symbols=%d strategy=%s indexed_at=%s\n",
			kind, shortSHA(lm.IndexedSHA), lm.FileCount, lm.SymbolCount, lm.Strategy,
			lm.IndexedAt.Format("2006-01-02 15:04:05"))
	}

	lines, err := dir.ReadIndexLog(*logLines)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		fmt.Fprintln(os.Stdout, "\nrecent activity:")
		for _, l := range lines {
			fmt.Fprintln(os.Stdout, " ", l)
		}
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	if sha == "" {
		return "-"
	}
	return sha
}

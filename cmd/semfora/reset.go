// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/internal/ui"
	"github.com/kraklabs/semfora/pkg/cache"
)

// runReset implements SPEC_FULL.md §C.2: delete the on-disk cache for this
// repo so the next `semfora index` starts from a clean FullRebuild. It
// refuses to run without confirmation unless --yes is passed, since the
// cache root is not recoverable once removed.
func runReset(args []string) error {
	flag := pflag.NewFlagSet("reset", pflag.ContinueOnError)
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	if err := flag.Parse(args); err != nil {
		return err
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	dir := cache.ForRepo(repoRoot)
	if !dir.Exists() {
		ui.Dim(os.Stdout, "nothing to reset: no cache at %s", dir.Root)
		return nil
	}

	if !*yes {
		fmt.Fprintf(os.Stdout, "this will delete %s. continue? [y/N] ", dir.Root)
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			ui.Dim(os.Stdout, "aborted")
			return nil
		}
	}

	if err := dir.Clear(); err != nil {
		return err
	}
	ui.OK(os.Stdout, "removed %s", dir.Root)
	return nil
}

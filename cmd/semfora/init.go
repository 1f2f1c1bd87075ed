// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/internal/config"
	"github.com/kraklabs/semfora/internal/ui"
)

func runInit(args []string) error {
	flag := pflag.NewFlagSet("init", pflag.ContinueOnError)
	force := flag.Bool("force", false, "overwrite an existing .semfora/project.yaml")
	if err := flag.Parse(args); err != nil {
		return err
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	if config.Exists(repoRoot) && !*force {
		ui.Warn(os.Stdout, "%s already exists; pass --force to overwrite", config.Path(repoRoot))
		return nil
	}

	if err := config.Write(repoRoot, config.Default()); err != nil {
		return err
	}
	ui.OK(os.Stdout, "wrote %s", config.Path(repoRoot))
	fmt.Fprintln(os.Stdout, "run `semfora index` to build the initial index.")
	return nil
}

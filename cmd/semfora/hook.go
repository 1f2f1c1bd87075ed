// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"

	"github.com/kraklabs/semfora/pkg/gitpoll"
)

// runInstallHook implements SPEC_FULL.md §C.3: print, never install, a
// post-commit hook script.
func runInstallHook(args []string) error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	gitpoll.SuggestHookInstall(os.Stdout, repoRoot)
	return nil
}

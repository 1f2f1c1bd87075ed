// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gitpoll

import (
	"fmt"
	"io"
)

// postCommitHookScript is the suggested hook body: a detached background
// reindex, so `git commit` itself never blocks on it.
const postCommitHookScript = `#!/bin/sh
# Installed manually - semfora never writes into .git/hooks itself
# (spec.md §6: "never modifies the working tree").
nohup semfora index --layer=branch >/dev/null 2>&1 &
`

// SuggestHookInstall prints the post-commit hook script a user could
// install to trigger a background Branch reindex after every commit. It
// never touches .git/hooks itself (SPEC_FULL.md §C.3): installing a git
// hook automatically would be a filesystem side effect outside the
// repository's cache root, which spec.md §6 reserves for the core.
func SuggestHookInstall(w io.Writer, repoRoot string) {
	fmt.Fprintf(w, "To trigger a background reindex after every commit, save this as\n%s/.git/hooks/post-commit and make it executable:\n\n%s\n", repoRoot, postCommitHookScript)
}

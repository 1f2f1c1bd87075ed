// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import ierrors "github.com/kraklabs/semfora/internal/errors"

// exitCodeFor maps a returned error to the process exit code spec.md §6
// defines, falling back to 1 for anything not constructed through
// internal/errors.
func exitCodeFor(err error) int {
	var ie *ierrors.Error
	if e, ok := err.(*ierrors.Error); ok {
		ie = e
	}
	if ie == nil {
		return 1
	}
	return ie.Kind.ExitCode()
}

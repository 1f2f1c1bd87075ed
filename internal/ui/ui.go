// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui holds the handful of colored-status helpers cmd/semfora uses
// for its terminal output. Formatting/output-format selection beyond this
// is out of scope (spec.md §1); this package exists only so the thin CLI
// harness has somewhere to put its color calls, grounded in the teacher's
// own fatih/color + go-isatty choice rather than a stdlib fmt-only
// rendition.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

// InitColors disables color output when noColor is set, NO_COLOR is in
// the environment, or stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// OK prints a green-checked status line to w.
func OK(w io.Writer, format string, args ...interface{}) {
	fmt.Fprint(w, okColor.Sprint("✓ "))
	fmt.Fprintf(w, format+"\n", args...)
}

// Warn prints a yellow-flagged status line to w.
func Warn(w io.Writer, format string, args ...interface{}) {
	fmt.Fprint(w, warnColor.Sprint("! "))
	fmt.Fprintf(w, format+"\n", args...)
}

// Err prints a red-flagged status line to w.
func Err(w io.Writer, format string, args ...interface{}) {
	fmt.Fprint(w, errColor.Sprint("✗ "))
	fmt.Fprintf(w, format+"\n", args...)
}

// Dim prints a dimmed, low-priority status line to w.
func Dim(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, dimColor.Sprintf(format, args...))
}

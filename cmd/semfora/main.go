// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command semfora is the thin CLI frontend over the indexing engine: it
// parses global flags, dispatches to one subcommand, and prints results
// via internal/ui. Output-format selection (JSON vs. table, pagination
// chrome) beyond what's here is out of scope (spec.md §1's non-goals);
// this mirrors the teacher's cmd/cie/main.go flag layout and dispatch
// switch, narrowed to this engine's own subcommand set.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/internal/ui"
)

// GlobalFlags are the flags valid before the subcommand name, parsed with
// interspersed args disabled so a subcommand's own flags aren't mistaken
// for globals.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

var globalFlags GlobalFlags

func logInfo(format string, args ...interface{}) {
	if !globalFlags.Quiet {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	}
}

func logDebug(format string, args ...interface{}) {
	if globalFlags.Verbose > 0 {
		fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
	}
}

func logError(format string, args ...interface{}) {
	ui.Err(os.Stderr, format, args...)
}

func main() {
	flag := pflag.NewFlagSet("semfora", pflag.ContinueOnError)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `semfora - semantic code index engine

Usage:
  semfora <command> [flags]

Commands:
  init           write a .semfora/project.yaml with the default config
  index          run a full index of the Base/Branch/Working layers
  watch          run the Working-layer file watcher and git poller
  status         print layer staleness and the recent index log
  reset          delete the on-disk cache for this repo (spec.md §4.8.1)
  query          run a read-only query against the index
  install-hook   print a post-commit hook a user can install manually
  completion     print a shell completion script

Global flags:
`)
		flag.PrintDefaults()
	}

	flag.BoolVar(&globalFlags.JSON, "json", false, "emit machine-readable JSON instead of text")
	flag.BoolVar(&globalFlags.NoColor, "no-color", false, "disable colored output")
	flag.CountVarP(&globalFlags.Verbose, "verbose", "v", "increase log verbosity (repeatable)")
	flag.BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "suppress non-error output")
	flag.SetInterspersed(false)

	if err := flag.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	ui.InitColors(globalFlags.NoColor)

	var level slog.Level
	switch {
	case globalFlags.Verbose >= 2:
		level = slog.LevelDebug
	case globalFlags.Verbose == 1:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "init":
		err = runInit(rest)
	case "index":
		err = runIndex(ctx, rest, logger)
	case "watch":
		err = runWatch(ctx, rest, logger)
	case "status":
		err = runStatus(rest)
	case "reset":
		err = runReset(rest)
	case "query":
		err = runQuery(rest)
	case "install-hook":
		err = runInstallHook(rest)
	case "completion":
		err = runCompletion(rest)
	case "help", "-h", "--help":
		flag.Usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "semfora: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		logError("%v", err)
		os.Exit(exitCodeFor(err))
	}
}

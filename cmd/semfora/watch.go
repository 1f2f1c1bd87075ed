// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/kraklabs/semfora/internal/config"
	"github.com/kraklabs/semfora/internal/ui"
	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/gitpoll"
	"github.com/kraklabs/semfora/pkg/index"
	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/pipeline"
	"github.com/kraklabs/semfora/pkg/serverstate"
	"github.com/kraklabs/semfora/pkg/watcher"
)

// runWatch keeps the Working layer fresh from filesystem events and the
// Base/Branch layers fresh from the git poller, both running until ctx is
// canceled (spec.md §4.10 and §4.11 combined into one long-lived process).
func runWatch(ctx context.Context, args []string, logger *slog.Logger) error {
	flag := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	noGitPoll := flag.Bool("no-git-poll", false, "disable the Base/Branch git poller, watch Working only")
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

	dir := cache.ForRepo(repoRoot)
	state := serverstate.New(prometheus.DefaultRegisterer)
	opts := pipeline.Options{EnableEscapeRefs: cfg.Indexing.EnableEscapeRefs}

	w, err := watcher.New(repoRoot, logger)
	if err != nil {
		return err
	}
	defer w.Close()
	w.SetIntervals(
		time.Duration(cfg.Watcher.DebounceMillis)*time.Millisecond,
		time.Duration(cfg.Watcher.CooldownSeconds)*time.Second,
	)
	if err := w.AddTree(); err != nil {
		return err
	}

	ui.OK(os.Stdout, "watching %s", repoRoot)

	go w.Run(ctx, func(changed []string) {
		if !state.SetRunning(true) {
			return
		}
		defer state.SetRunning(false)

		res, err := index.RunIncremental(ctx, repoRoot, dir, layer.Working, changed, index.SHAInfo{}, opts, logger)
		if err != nil {
			logger.Warn("watch: incremental reindex failed", "error", err)
			return
		}
		state.UpdateLayer(layer.Working, "incremental")
		dir.AppendIndexLog(fmt.Sprintf("watch layer=working files=%d symbols=%d duration=%s",
			res.FilesIndexed, res.SymbolCount, res.Duration))
	})

	if !*noGitPoll {
		pollerOpts := gitpoll.DefaultOptions()
		if cfg.Poller.BaseIntervalSeconds > 0 {
			pollerOpts.BaseInterval = time.Duration(cfg.Poller.BaseIntervalSeconds) * time.Second
		}
		if cfg.Poller.BranchIntervalSeconds > 0 {
			pollerOpts.BranchInterval = time.Duration(cfg.Poller.BranchIntervalSeconds) * time.Second
		}
		pollerOpts.AutoUpdate = cfg.Poller.AutoUpdate
		pollerOpts.PipelineOpts = opts
		poller := gitpoll.New(repoRoot, dir, state, pollerOpts, logger)
		go poller.RunBoth(ctx)
		defer poller.Stop()
	}

	<-ctx.Done()
	ui.Dim(os.Stdout, "stopping")
	return nil
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gitpoll implements the git poller of spec.md §4.11: two
// independent background loops (Base, default 5s; Branch, default 1s)
// that read git state the filesystem watcher cannot see - a moved
// origin/main tip, a rebased branch, a changed merge base - and drive
// drift-based layer updates through pkg/drift and pkg/index. Grounded in
// the teacher's pkg/tools/git.go subprocess-running shape, generalized
// from a one-shot query helper into a polling background loop.
package gitpoll

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kraklabs/semfora/pkg/cache"
	"github.com/kraklabs/semfora/pkg/drift"
	"github.com/kraklabs/semfora/pkg/index"
	"github.com/kraklabs/semfora/pkg/layer"
	"github.com/kraklabs/semfora/pkg/pipeline"
	"github.com/kraklabs/semfora/pkg/serverstate"

	ierrors "github.com/kraklabs/semfora/internal/errors"
)

// DefaultBaseInterval and DefaultBranchInterval are spec.md §4.11's stated
// default poll periods.
const (
	DefaultBaseInterval   = 5 * time.Second
	DefaultBranchInterval = 1 * time.Second
)

// GitState is one tick's snapshot of the repository's git position
// (spec.md §4.11, "HEAD sha, origin/main sha, current branch, merge base").
type GitState struct {
	HeadSHA      string
	OriginSHA    string
	Branch       string
	MergeBaseSHA string
}

func runGit(ctx context.Context, repoRoot string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return "", ierrors.NewGitError(strings.Join(args, " "), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ReadGitState reads the four fields of a GitState via git subprocesses.
// A repository with no upstream origin/main (e.g. a fresh local clone
// without a configured remote) leaves OriginSHA empty rather than failing
// the whole read, since only the Base loop needs it.
func ReadGitState(ctx context.Context, repoRoot string) (GitState, error) {
	var st GitState
	head, err := runGit(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return st, err
	}
	st.HeadSHA = head

	branch, err := runGit(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return st, err
	}
	st.Branch = branch

	if origin, err := runGit(ctx, repoRoot, "rev-parse", "origin/main"); err == nil {
		st.OriginSHA = origin
	}

	if mb, err := runGit(ctx, repoRoot, "merge-base", "HEAD", "origin/main"); err == nil {
		st.MergeBaseSHA = mb
	}

	return st, nil
}

// changedFiles runs `git diff --name-only` between two refs, returning nil
// when the two refs are equal or either is empty (nothing indexed yet).
func changedFiles(ctx context.Context, repoRoot, fromSHA, toSHA string) ([]string, error) {
	if fromSHA == "" || toSHA == "" || fromSHA == toSHA {
		return nil, nil
	}
	out, err := runGit(ctx, repoRoot, "diff", "--name-only", fromSHA, toSHA)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func repoFileCount(ctx context.Context, repoRoot string) int {
	out, err := runGit(ctx, repoRoot, "ls-files")
	if err != nil || out == "" {
		return 0
	}
	return len(strings.Split(out, "\n"))
}

// Options configures a Poller.
type Options struct {
	BaseInterval   time.Duration
	BranchInterval time.Duration
	AutoUpdate     bool // spec.md §4.11: "if auto-update is enabled (default)"
	Thresholds     drift.Thresholds
	PipelineOpts   pipeline.Options
}

// DefaultOptions returns AutoUpdate-enabled defaults at the spec's stated
// poll intervals.
func DefaultOptions() Options {
	return Options{
		BaseInterval:   DefaultBaseInterval,
		BranchInterval: DefaultBranchInterval,
		AutoUpdate:     true,
		Thresholds:     drift.DefaultThresholds,
	}
}

// Poller owns the two independent background polling loops for one repo.
type Poller struct {
	repoRoot string
	dir      *cache.Dir
	state    *serverstate.State
	opts     Options
	logger   *slog.Logger

	running atomic.Bool
}

// New builds a Poller. Call Run in a goroutine for each loop (or use
// RunBoth to start both).
func New(repoRoot string, dir *cache.Dir, state *serverstate.State, opts Options, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{repoRoot: repoRoot, dir: dir, state: state, opts: opts, logger: logger}
	p.running.Store(true)
	return p
}

// Stop flips the atomic running flag; both loops exit within one interval
// of their own tick, per spec.md §4.11's cancellation contract.
func (p *Poller) Stop() { p.running.Store(false) }

// RunBoth starts the Base and Branch loops as goroutines and blocks until
// ctx is canceled or Stop is called.
func (p *Poller) RunBoth(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() { p.runLoop(ctx, layer.Base, p.opts.BaseInterval, p.tickBase); done <- struct{}{} }()
	go func() { p.runLoop(ctx, layer.Branch, p.opts.BranchInterval, p.tickBranch); done <- struct{}{} }()
	<-done
	<-done
}

func (p *Poller) runLoop(ctx context.Context, kind layer.Kind, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		interval = DefaultBaseInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !p.running.Load() {
				return
			}
			tick(ctx)
		}
	}
}

func (p *Poller) tickBase(ctx context.Context) {
	st, err := ReadGitState(ctx, p.repoRoot)
	if err != nil {
		p.logger.Warn("gitpoll: base tick: read git state failed", "error", err)
		return
	}
	if st.OriginSHA == "" {
		return // no origin/main configured; nothing to compare against
	}
	meta, err := p.dir.LoadMeta()
	if err != nil {
		p.logger.Warn("gitpoll: base tick: load meta failed", "error", err)
		return
	}
	lm := meta.Layers[string(layer.Base)]
	tipMismatch := lm.IndexedSHA != "" && lm.IndexedSHA != st.OriginSHA

	in := drift.Input{TipMismatch: tipMismatch}
	if !tipMismatch {
		return
	}
	p.state.MarkLayerStale(layer.Base, true)
	if !p.opts.AutoUpdate {
		return
	}
	strategy := drift.Decide(in, p.opts.Thresholds)
	p.reindex(ctx, layer.Base, strategy, index.SHAInfo{IndexedSHA: st.OriginSHA}, nil)
}

func (p *Poller) tickBranch(ctx context.Context) {
	st, err := ReadGitState(ctx, p.repoRoot)
	if err != nil {
		p.logger.Warn("gitpoll: branch tick: read git state failed", "error", err)
		return
	}
	meta, err := p.dir.LoadMeta()
	if err != nil {
		p.logger.Warn("gitpoll: branch tick: load meta failed", "error", err)
		return
	}
	lm := meta.Layers[string(layer.Branch)]
	if lm.IndexedSHA == st.HeadSHA {
		return // branch is fresh
	}
	p.state.MarkLayerStale(layer.Branch, true)
	if !p.opts.AutoUpdate {
		return
	}

	mergeBaseChanged := lm.MergeBaseSHA != "" && lm.MergeBaseSHA != st.MergeBaseSHA
	files, err := changedFiles(ctx, p.repoRoot, lm.IndexedSHA, st.HeadSHA)
	if err != nil {
		p.logger.Warn("gitpoll: branch tick: diff failed", "error", err)
		return
	}
	total := repoFileCount(ctx, p.repoRoot)

	in := drift.Input{
		FilesChanged:     len(files),
		TotalFiles:       total,
		MergeBaseChanged: mergeBaseChanged,
	}
	strategy := drift.Decide(in, p.opts.Thresholds)
	sha := index.SHAInfo{IndexedSHA: st.HeadSHA, MergeBaseSHA: st.MergeBaseSHA}
	p.reindex(ctx, layer.Branch, strategy, sha, files)
}

// reindex drives the actual layer update for a chosen strategy, via
// pkg/index, using SetRunning as a non-blocking try-lock so an in-flight
// watcher-triggered reindex is never clobbered by a poller tick.
func (p *Poller) reindex(ctx context.Context, kind layer.Kind, strategy drift.Strategy, sha index.SHAInfo, files []string) {
	if strategy == drift.NoAction {
		return
	}
	if !p.state.SetRunning(true) {
		p.logger.Debug("gitpoll: reindex already in progress, skipping tick", "layer", kind)
		return
	}
	defer p.state.SetRunning(false)

	var (
		res *index.Result
		err error
	)
	switch strategy {
	case drift.Incremental:
		res, err = index.RunIncremental(ctx, p.repoRoot, p.dir, kind, files, sha, p.opts.PipelineOpts, p.logger)
	default: // Rebase and FullRebuild both resolve to a full layer rebuild here;
		// a true incremental Base-reuse Rebase needs a second overlay layer
		// beyond this engine's three fixed layers and is not modeled.
		res, err = index.Run(ctx, p.repoRoot, p.dir, kind, sha, p.opts.PipelineOpts, p.logger)
	}
	if err != nil {
		p.logger.Warn("gitpoll: reindex failed", "layer", kind, "strategy", strategy, "error", err)
		return
	}
	p.state.UpdateLayer(kind, strategy.String())
	p.dir.AppendIndexLog(fmt.Sprintf("gitpoll %s strategy=%s files=%d symbols=%d duration=%s",
		kind, strategy, res.FilesIndexed, res.SymbolCount, res.Duration))
}

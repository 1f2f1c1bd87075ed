// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watcher implements the Working-layer file watcher of spec.md
// §4.10: an fsnotify tree watch with a 100ms debounce and a 3s per-file
// cooldown, grounded in the teacher's cmd/cie/watch.go recursive-walk and
// debounce-timer shape but re-tuned to the spec's own constants.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is the quiet period after the last observed event before a
// batch is delivered (spec.md §4.10).
const Debounce = 100 * time.Millisecond

// Cooldown is the minimum interval between two deliveries for the same
// file; events for a cooling-down file are dropped (spec.md §4.10).
const Cooldown = 3 * time.Second

// cooldownGCInterval is how often stale cooldown entries are purged,
// fixed at 2x Cooldown per spec.md §4.10.
const cooldownGCInterval = 2 * Cooldown

// skipDirNames are directory basenames never watched, regardless of
// depth, per spec.md §4.10's path filtering rules.
var skipDirNames = map[string]bool{
	"node_modules": true, "target": true, ".git": true,
	"dist": true, "build": true, "__pycache__": true, ".venv": true, "venv": true,
}

// PathAllowed reports whether relPath should be considered for watching,
// per spec.md §4.10: reject any dot-prefixed path component except
// ".github", and reject any path containing one of the hard-coded skip
// substrings.
func PathAllowed(relPath string) bool {
	norm := filepath.ToSlash(relPath)
	for _, skip := range []string{"/node_modules/", "/target/", "/.git/", "/dist/", "/build/", "/__pycache__/", "/.venv/", "/venv/"} {
		if strings.Contains("/"+norm+"/", skip) {
			return false
		}
	}
	for _, part := range strings.Split(norm, "/") {
		if part == "" || part == "." {
			continue
		}
		if strings.HasPrefix(part, ".") && part != ".github" {
			return false
		}
	}
	return true
}

// Watcher debounces fsnotify events under one repo root and delivers
// batches of changed, cooldown-eligible relative paths.
type Watcher struct {
	root   string
	logger *slog.Logger
	fsw    *fsnotify.Watcher

	debounce time.Duration
	cooldown time.Duration

	mu        sync.Mutex
	lastEvent map[string]time.Time // relPath -> last time it was delivered
}

// New creates a Watcher rooted at root, using the spec's default debounce
// and cooldown. Call AddTree once before Run.
func New(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root: root, logger: logger, fsw: fsw,
		debounce: Debounce, cooldown: Cooldown,
		lastEvent: make(map[string]time.Time),
	}, nil
}

// SetIntervals overrides the debounce/cooldown durations, for a
// project.yaml that tunes them away from spec.md §4.10's defaults. Zero
// values leave the corresponding interval unchanged.
func (w *Watcher) SetIntervals(debounce, cooldown time.Duration) {
	if debounce > 0 {
		w.debounce = debounce
	}
	if cooldown > 0 {
		w.cooldown = cooldown
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

// AddTree recursively registers every allowed directory under the root
// with fsnotify, mirroring the teacher's addDirs closure in
// cmd/cie/watch.go but driven by PathAllowed instead of a fixed skip map.
func (w *Watcher) AddTree() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if rel != "." && !PathAllowed(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil && !os.IsPermission(err) {
			w.logger.Warn("watcher: failed to add directory", "path", path, "error", err)
		}
		return nil
	})
}

// Run drives the debounce/cooldown event loop until ctx is canceled,
// calling onBatch with the set of relative paths that changed since the
// last debounce fired. It blocks; callers should run it in a goroutine.
func (w *Watcher) Run(ctx context.Context, onBatch func(changed []string)) {
	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

	gc := time.NewTicker(cooldownGCInterval)
	defer gc.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, relErr := filepath.Rel(w.root, ev.Name)
			if relErr != nil || !PathAllowed(rel) {
				continue
			}
			pending[rel] = struct{}{}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", "error", err)
		case <-timerCh:
			timerCh = nil
			changed := w.filterCooldown(pending)
			pending = make(map[string]struct{})
			if len(changed) > 0 {
				onBatch(changed)
			}
		case <-gc.C:
			w.gcCooldowns()
		}
	}
}

// filterCooldown drops paths still within their cooldown window
// (w.cooldown, 3s unless SetIntervals changed it) and
// records the delivery time for the rest.
func (w *Watcher) filterCooldown(pending map[string]struct{}) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	var out []string
	for rel := range pending {
		if last, ok := w.lastEvent[rel]; ok && now.Sub(last) < w.cooldown {
			continue
		}
		w.lastEvent[rel] = now
		out = append(out, rel)
	}
	return out
}

func (w *Watcher) gcCooldowns() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	for rel, last := range w.lastEvent {
		if now.Sub(last) >= cooldownGCInterval {
			delete(w.lastEvent, rel)
		}
	}
}

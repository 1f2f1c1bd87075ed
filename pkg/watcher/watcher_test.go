// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPathAllowed_RejectsHiddenAndSkippedDirs(t *testing.T) {
	assert.False(t, PathAllowed("node_modules/pkg/index.js"))
	assert.False(t, PathAllowed(".git/HEAD"))
	assert.False(t, PathAllowed("vendor/.venv/lib/x.py"))
	assert.False(t, PathAllowed(".hidden/file.go"))
	assert.True(t, PathAllowed("src/main.go"))
	assert.True(t, PathAllowed(".github/workflows/ci.yml"), ".github is the one dotted exception")
}

func TestSetIntervals_OverridesDefaults(t *testing.T) {
	w := &Watcher{debounce: Debounce, cooldown: Cooldown, lastEvent: make(map[string]time.Time)}
	w.SetIntervals(50*time.Millisecond, 10*time.Second)
	assert.Equal(t, 50*time.Millisecond, w.debounce)
	assert.Equal(t, 10*time.Second, w.cooldown)
}

func TestSetIntervals_ZeroLeavesIntervalUnchanged(t *testing.T) {
	w := &Watcher{debounce: Debounce, cooldown: Cooldown, lastEvent: make(map[string]time.Time)}
	w.SetIntervals(0, 0)
	assert.Equal(t, Debounce, w.debounce)
	assert.Equal(t, Cooldown, w.cooldown)
}

func TestFilterCooldown_DropsRecentlyDeliveredFile(t *testing.T) {
	w := &Watcher{cooldown: time.Hour, lastEvent: make(map[string]time.Time)}

	first := w.filterCooldown(map[string]struct{}{"a.go": {}})
	assert.Equal(t, []string{"a.go"}, first)

	second := w.filterCooldown(map[string]struct{}{"a.go": {}})
	assert.Empty(t, second, "still within cooldown window")
}

func TestFilterCooldown_AllowsAfterCooldownElapses(t *testing.T) {
	w := &Watcher{cooldown: time.Millisecond, lastEvent: make(map[string]time.Time)}
	w.filterCooldown(map[string]struct{}{"a.go": {}})
	time.Sleep(5 * time.Millisecond)
	again := w.filterCooldown(map[string]struct{}{"a.go": {}})
	assert.Equal(t, []string{"a.go"}, again)
}

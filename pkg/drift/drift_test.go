// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_NoFilesChanged(t *testing.T) {
	got := Decide(Input{FilesChanged: 0, TotalFiles: 100}, DefaultThresholds)
	assert.Equal(t, NoAction, got)
}

func TestDecide_TipMismatchIsUnconditionalFullRebuild(t *testing.T) {
	got := Decide(Input{FilesChanged: 1, TotalFiles: 1000, TipMismatch: true}, DefaultThresholds)
	assert.Equal(t, FullRebuild, got)
}

func TestDecide_SmallChangeIsIncremental(t *testing.T) {
	got := Decide(Input{FilesChanged: 3, TotalFiles: 100}, DefaultThresholds)
	assert.Equal(t, Incremental, got)
}

func TestDecide_ModerateChangeIsRebase(t *testing.T) {
	got := Decide(Input{FilesChanged: 20, TotalFiles: 100}, DefaultThresholds)
	assert.Equal(t, Rebase, got)
}

func TestDecide_LargeChangeIsFullRebuild(t *testing.T) {
	got := Decide(Input{FilesChanged: 80, TotalFiles: 100}, DefaultThresholds)
	assert.Equal(t, FullRebuild, got)
}

func TestDecide_MergeBaseChangeFloorsAtRebase(t *testing.T) {
	got := Decide(Input{FilesChanged: 1, TotalFiles: 1000, MergeBaseChanged: true}, DefaultThresholds)
	assert.Equal(t, Rebase, got)
}

func TestDecide_MergeBaseFloorNeverWeakensAnAlreadyStrongerStrategy(t *testing.T) {
	got := Decide(Input{FilesChanged: 80, TotalFiles: 100, MergeBaseChanged: true}, DefaultThresholds)
	assert.Equal(t, FullRebuild, got)
}

// TestDecide_Monotone checks spec.md §8 invariant 6: holding TotalFiles and
// the two flags fixed, increasing FilesChanged never returns a weaker
// Strategy.
func TestDecide_Monotone(t *testing.T) {
	const total = 200
	prev := NoAction
	for files := 0; files <= total; files++ {
		got := Decide(Input{FilesChanged: files, TotalFiles: total}, DefaultThresholds)
		assert.GreaterOrEqual(t, int(got), int(prev), "strategy regressed at FilesChanged=%d", files)
		prev = got
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "no_action", NoAction.String())
	assert.Equal(t, "incremental", Incremental.String())
	assert.Equal(t, "rebase", Rebase.String())
	assert.Equal(t, "full_rebuild", FullRebuild.String())
}

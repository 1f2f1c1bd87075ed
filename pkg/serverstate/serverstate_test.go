// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package serverstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/semfora/pkg/layer"
)

func TestSetRunning_TryLockSemantics(t *testing.T) {
	s := New(nil)

	assert.True(t, s.SetRunning(true), "first claim succeeds")
	assert.False(t, s.SetRunning(true), "second concurrent claim fails")
	assert.True(t, s.SetRunning(false), "release always succeeds")
	assert.True(t, s.SetRunning(true), "claim succeeds again after release")
}

func TestMarkLayerStale_ReflectedInStatus(t *testing.T) {
	s := New(nil)
	s.MarkLayerStale(layer.Branch, true)

	st := s.Status()
	assert.Contains(t, st.StaleLayers, layer.Branch)
	assert.NotContains(t, st.StaleLayers, layer.Base)
}

func TestUpdateLayer_ClearsStale(t *testing.T) {
	s := New(nil)
	s.MarkLayerStale(layer.Working, true)
	s.UpdateLayer(layer.Working, "incremental")

	st := s.Status()
	assert.NotContains(t, st.StaleLayers, layer.Working)
}

func TestStatus_RunningReflectsSetRunning(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Status().Running)
	s.SetRunning(true)
	assert.True(t, s.Status().Running)
}

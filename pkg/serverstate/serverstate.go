// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package serverstate holds the one piece of shared mutable state a running
// semfora process has: which layers are stale, whether a reindex is in
// progress, and the Prometheus gauges that expose both (spec.md §4.9). The
// concurrency contract is a single sync.RWMutex: any number of concurrent
// readers (query operations), one writer at a time (layer updates, the
// watcher, the git poller) - mirroring the locking the teacher's MCP server
// uses around its CozoDB handle in cmd/cie/index.go.
package serverstate

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/semfora/pkg/layer"
)

// State is the process-wide index owner. Zero value is not usable; build
// one with New.
type State struct {
	mu sync.RWMutex

	layers  *layer.Set
	running bool
	started time.Time
	stale   map[layer.Kind]bool

	staleGauge   *prometheus.GaugeVec
	runningGauge prometheus.Gauge
	updateTotal  *prometheus.CounterVec
}

// New builds a State and registers its gauges against reg. Passing nil
// skips registration (used by tests that don't want a global registry
// touched).
func New(reg prometheus.Registerer) *State {
	s := &State{
		layers: layer.NewSet(),
		stale:  make(map[layer.Kind]bool),
		staleGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "semfora_layer_stale",
			Help: "1 if the layer is marked stale, 0 otherwise.",
		}, []string{"layer"}),
		runningGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semfora_reindex_running",
			Help: "1 while a reindex is in progress, 0 otherwise.",
		}),
		updateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "semfora_layer_updates_total",
			Help: "Count of completed layer updates, by layer and strategy.",
		}, []string{"layer", "strategy"}),
	}
	if reg != nil {
		reg.MustRegister(s.staleGauge, s.runningGauge, s.updateTotal)
	}
	for _, k := range []layer.Kind{layer.Base, layer.Branch, layer.Working} {
		s.staleGauge.WithLabelValues(string(k)).Set(0)
	}
	return s
}

// Read runs fn with a read lock held, for query operations that need a
// consistent snapshot of layer ownership without blocking other readers.
func (s *State) Read(fn func(layers *layer.Set)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.layers)
}

// MarkLayerStale flags kind as stale, e.g. when the git poller observes
// the target SHA has moved past what was last indexed.
func (s *State) MarkLayerStale(kind layer.Kind, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := 0.0
	if stale {
		v = 1.0
	}
	s.stale[kind] = stale
	s.staleGauge.WithLabelValues(string(kind)).Set(v)
}

// UpdateLayer records that kind finished a reindex using strategy, marking
// it no longer stale.
func (s *State) UpdateLayer(kind layer.Kind, strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale[kind] = false
	s.staleGauge.WithLabelValues(string(kind)).Set(0)
	s.updateTotal.WithLabelValues(string(kind), strategy).Inc()
}

// SetRunning flips the in-progress flag. It returns false without changing
// state if a reindex is already running and running is true, so callers
// (the watcher, the git poller) can use it as a non-blocking try-lock.
func (s *State) SetRunning(running bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if running && s.running {
		return false
	}
	s.running = running
	if running {
		s.started = time.Now()
	}
	if running {
		s.runningGauge.Set(1)
	} else {
		s.runningGauge.Set(0)
	}
	return true
}

// Status is the read-only snapshot returned by Status().
type Status struct {
	Running     bool
	StartedAt   time.Time
	StaleLayers []layer.Kind
}

// Status reports whether a reindex is running and which layers are stale,
// for the CLI's `status` subcommand and health checks.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Running: s.running, StartedAt: s.started}
	for _, k := range []layer.Kind{layer.Base, layer.Branch, layer.Working} {
		if s.stale[k] {
			st.StaleLayers = append(st.StaleLayers, k)
		}
	}
	return st
}

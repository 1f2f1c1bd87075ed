// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and writes .semfora/project.yaml, the per-repo
// configuration file cmd/semfora's subcommands read, grounded in the
// teacher's cmd/cie/config.go shape (version-stamped YAML via
// gopkg.in/yaml.v3) but narrowed to the fields this engine's spec
// actually needs: engine tuning knobs and the poller/watcher intervals,
// not an embedding-provider or LLM section this engine has no use for.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ierrors "github.com/kraklabs/semfora/internal/errors"
)

const (
	DirName     = ".semfora"
	FileName    = "project.yaml"
	fileVersion = "1"
)

// Config is the parsed form of .semfora/project.yaml.
type Config struct {
	Version  string         `yaml:"version"`
	Indexing IndexingConfig `yaml:"indexing"`
	Poller   PollerConfig   `yaml:"poller"`
	Watcher  WatcherConfig  `yaml:"watcher"`
}

// IndexingConfig holds engine tuning knobs (spec.md §5's concurrency
// model, §4.2's escape-ref feature flag).
type IndexingConfig struct {
	Concurrency      int  `yaml:"concurrency,omitempty"`
	EnableEscapeRefs bool `yaml:"enable_escape_refs"`
}

// PollerConfig holds the git poller's two interval knobs (spec.md §4.11).
type PollerConfig struct {
	BaseIntervalSeconds   int  `yaml:"base_interval_seconds,omitempty"`
	BranchIntervalSeconds int  `yaml:"branch_interval_seconds,omitempty"`
	AutoUpdate            bool `yaml:"auto_update"`
}

// WatcherConfig holds the file watcher's debounce/cooldown overrides
// (spec.md §4.10); zero values mean "use the package default".
type WatcherConfig struct {
	DebounceMillis int `yaml:"debounce_millis,omitempty"`
	CooldownSeconds int `yaml:"cooldown_seconds,omitempty"`
}

// Default returns a Config with every knob at its spec-mandated default.
func Default() *Config {
	return &Config{
		Version: fileVersion,
		Indexing: IndexingConfig{
			EnableEscapeRefs: true,
		},
		Poller: PollerConfig{
			BaseIntervalSeconds:   5,
			BranchIntervalSeconds: 1,
			AutoUpdate:            true,
		},
	}
}

// Path returns the .semfora/project.yaml path for a repo root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, DirName, FileName)
}

// Load reads and parses a repo's project.yaml. A missing file is not an
// error; callers get the spec defaults so `semfora index` works without
// requiring `semfora init` first.
func Load(repoRoot string) (*Config, error) {
	data, err := os.ReadFile(Path(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, ierrors.NewIOError("config.Load", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ierrors.NewQueryError("config.Load: parse "+Path(repoRoot), err)
	}
	return cfg, nil
}

// Write creates .semfora/ if needed and writes cfg as YAML.
func Write(repoRoot string, cfg *Config) error {
	dir := filepath.Join(repoRoot, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ierrors.NewIOError("config.Write: mkdir", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ierrors.NewIOError("config.Write: marshal", err)
	}
	if err := os.WriteFile(Path(repoRoot), data, 0o644); err != nil {
		return ierrors.NewIOError("config.Write", err)
	}
	return nil
}

// Exists reports whether a repo already has a project.yaml.
func Exists(repoRoot string) bool {
	_, err := os.Stat(Path(repoRoot))
	return err == nil
}

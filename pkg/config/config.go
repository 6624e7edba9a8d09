// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads and validates the campaign configuration file
// (spec.md §6), a declarative TOML document parsed with BurntSushi/toml.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rosa-project/rosa/pkg/adapter"
	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/oracle"
	"github.com/rosa-project/rosa/pkg/rosaerr"
)

// SeedConditions is the phase-1 termination disjunction (spec.md §6): any
// field that is set and satisfied ends seed collection.
type SeedConditions struct {
	Seconds        int     `toml:"seconds"`
	EdgeCoverage   float64 `toml:"edge_coverage"`
	SyscallCoverage float64 `toml:"syscall_coverage"`
}

// FuzzerConfig is one entry of the "fuzzers" list (spec.md §6).
type FuzzerConfig struct {
	Name         string            `toml:"name"`
	Cmd          []string          `toml:"cmd"`
	Env          map[string]string `toml:"env"`
	TestInputDir string            `toml:"test_input_dir"`
	TraceDumpDir string            `toml:"trace_dump_dir"`
	CrashesDir   string            `toml:"crashes_dir"`
	Backend      string            `toml:"backend"`
}

// Config is the parsed and defaulted campaign configuration (spec.md §6);
// field names mirror the TOML keys one-to-one.
type Config struct {
	OutputDir        string `toml:"output_dir"`
	Resume           bool   `toml:"resume"`
	WaitForFuzzers   bool   `toml:"wait_for_fuzzers"`

	SeedConditions SeedConditions `toml:"seed_conditions"`

	ClusterFormationCriterion string `toml:"cluster_formation_criterion"`
	ClusterSelectionCriterion string `toml:"cluster_selection_criterion"`
	OracleCriterion           string `toml:"oracle_criterion"`

	ClusterFormationDistanceMetric string `toml:"cluster_formation_distance_metric"`
	ClusterSelectionDistanceMetric string `toml:"cluster_selection_distance_metric"`
	OracleDistanceMetric           string `toml:"oracle_distance_metric"`

	ClusterFormationEdgeTolerance    int `toml:"cluster_formation_edge_tolerance"`
	ClusterFormationSyscallTolerance int `toml:"cluster_formation_syscall_tolerance"`

	Oracle string `toml:"oracle"`

	PollIntervalMS int `toml:"poll_interval_ms"`

	Fuzzers []FuzzerConfig `toml:"fuzzers"`
}

// Defaults, spec.md §6 and §9 Open Question (b).
const (
	DefaultClusterFormationCriterion = distance.EdgesOnly
	DefaultClusterSelectionCriterion = distance.EdgesAndSyscalls
	DefaultOracleCriterion           = distance.SyscallsOnly
	DefaultDistanceMetric            = distance.Hamming
	DefaultOracle                    = string(oracle.CompMinMaxName)
	DefaultPollIntervalMS            = 250
)

// applyDefaults fills in every key spec.md §6 documents a default for,
// when the loaded TOML left it at its zero value.
func applyDefaults(c *Config) {
	if c.ClusterFormationCriterion == "" {
		c.ClusterFormationCriterion = string(DefaultClusterFormationCriterion)
	}
	if c.ClusterSelectionCriterion == "" {
		c.ClusterSelectionCriterion = string(DefaultClusterSelectionCriterion)
	}
	if c.OracleCriterion == "" {
		c.OracleCriterion = string(DefaultOracleCriterion)
	}
	if c.ClusterFormationDistanceMetric == "" {
		c.ClusterFormationDistanceMetric = string(DefaultDistanceMetric)
	}
	if c.ClusterSelectionDistanceMetric == "" {
		c.ClusterSelectionDistanceMetric = string(DefaultDistanceMetric)
	}
	if c.OracleDistanceMetric == "" {
		c.OracleDistanceMetric = string(DefaultDistanceMetric)
	}
	if c.Oracle == "" {
		c.Oracle = DefaultOracle
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = DefaultPollIntervalMS
	}
}

// Load parses and validates the TOML file at path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse %v: %v", rosaerr.ErrConfig, path, err)
	}
	applyDefaults(&c)
	if err := Validate(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every constraint spec.md §6 and §5 document, returning
// a rosaerr.ErrConfig-wrapped error describing the first violation found.
// Load calls it after applying defaults.
func Validate(c Config) error {
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", rosaerr.ErrConfig)
	}
	if !c.Resume {
		if _, err := os.Stat(c.OutputDir); err == nil {
			return fmt.Errorf("%w: output_dir %q already exists", rosaerr.ErrConfig, c.OutputDir)
		}
	}

	if c.SeedConditions.Seconds <= 0 && c.SeedConditions.EdgeCoverage <= 0 && c.SeedConditions.SyscallCoverage <= 0 {
		return fmt.Errorf("%w: at least one seed_conditions field must be set", rosaerr.ErrConfig)
	}
	if c.SeedConditions.EdgeCoverage < 0 || c.SeedConditions.EdgeCoverage > 1 {
		return fmt.Errorf("%w: seed_conditions.edge_coverage must be in [0,1]", rosaerr.ErrConfig)
	}
	if c.SeedConditions.SyscallCoverage < 0 || c.SeedConditions.SyscallCoverage > 1 {
		return fmt.Errorf("%w: seed_conditions.syscall_coverage must be in [0,1]", rosaerr.ErrConfig)
	}

	for _, name := range []string{c.ClusterFormationCriterion, c.ClusterSelectionCriterion, c.OracleCriterion} {
		if _, err := distance.ParseCriterion(name); err != nil {
			return fmt.Errorf("%w: %v", rosaerr.ErrConfig, err)
		}
	}
	for _, name := range []string{c.ClusterFormationDistanceMetric, c.ClusterSelectionDistanceMetric, c.OracleDistanceMetric} {
		if name != string(distance.Hamming) {
			return fmt.Errorf("%w: unknown distance metric %q", rosaerr.ErrConfig, name)
		}
	}
	if c.Oracle != string(oracle.CompMinMaxName) {
		return fmt.Errorf("%w: unknown oracle %q", rosaerr.ErrConfig, c.Oracle)
	}
	if c.ClusterFormationEdgeTolerance < 0 {
		return fmt.Errorf("%w: cluster_formation_edge_tolerance must be >= 0", rosaerr.ErrConfig)
	}
	if c.ClusterFormationSyscallTolerance < 0 {
		return fmt.Errorf("%w: cluster_formation_syscall_tolerance must be >= 0", rosaerr.ErrConfig)
	}

	if len(c.Fuzzers) == 0 {
		return fmt.Errorf("%w: at least one fuzzer must be configured", rosaerr.ErrConfig)
	}
	mains := 0
	names := map[string]bool{}
	for _, f := range c.Fuzzers {
		if f.Name == "" {
			return fmt.Errorf("%w: fuzzer with empty name", rosaerr.ErrConfig)
		}
		if names[f.Name] {
			return fmt.Errorf("%w: duplicate fuzzer name %q", rosaerr.ErrConfig, f.Name)
		}
		names[f.Name] = true
		if f.Name == adapter.MainName {
			mains++
		}
		if len(f.Cmd) == 0 {
			return fmt.Errorf("%w: fuzzer %q has an empty cmd", rosaerr.ErrConfig, f.Name)
		}
	}
	if mains != 1 {
		return fmt.Errorf("%w: exactly one fuzzer must be named %q, found %d", rosaerr.ErrConfig, adapter.MainName, mains)
	}
	return nil
}

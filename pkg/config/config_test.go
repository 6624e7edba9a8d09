// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosa-project/rosa/pkg/rosaerr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func minimalValidTOML(outputDir string) string {
	return `
output_dir = "` + outputDir + `"

[seed_conditions]
seconds = 60

[[fuzzers]]
name = "main"
cmd = ["afl-fuzz", "-i", "in", "-o", "out"]
test_input_dir = "in"
trace_dump_dir = "traces"
crashes_dir = "out/crashes"
backend = "afl++"
`
}

func TestLoadAppliesDefaults(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "campaign")
	path := writeConfig(t, minimalValidTOML(outDir))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, string(DefaultClusterFormationCriterion), c.ClusterFormationCriterion)
	assert.Equal(t, string(DefaultClusterSelectionCriterion), c.ClusterSelectionCriterion)
	assert.Equal(t, string(DefaultOracleCriterion), c.OracleCriterion)
	assert.Equal(t, string(DefaultDistanceMetric), c.ClusterFormationDistanceMetric)
	assert.Equal(t, DefaultOracle, c.Oracle)
	assert.Equal(t, DefaultPollIntervalMS, c.PollIntervalMS)
}

func TestLoadRejectsExistingOutputDir(t *testing.T) {
	outDir := t.TempDir() // already exists
	path := writeConfig(t, minimalValidTOML(outDir))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, rosaerr.ErrConfig)
}

func TestLoadAllowsExistingOutputDirWhenResuming(t *testing.T) {
	outDir := t.TempDir()
	path := writeConfig(t, "resume = true\n"+minimalValidTOML(outDir))

	_, err := Load(path)
	require.NoError(t, err)
}

func TestValidateRequiresExactlyOneMainFuzzer(t *testing.T) {
	c := Config{
		OutputDir:      filepath.Join(t.TempDir(), "out"),
		SeedConditions: SeedConditions{Seconds: 10},
		Fuzzers: []FuzzerConfig{
			{Name: "secondary", Cmd: []string{"x"}},
		},
	}
	applyDefaults(&c)
	err := Validate(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, rosaerr.ErrConfig)
}

func TestValidateRequiresSeedCondition(t *testing.T) {
	c := Config{
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Fuzzers:   []FuzzerConfig{{Name: "main", Cmd: []string{"x"}}},
	}
	applyDefaults(&c)
	err := Validate(c)
	require.Error(t, err)
}

func TestValidateRejectsUnknownCriterion(t *testing.T) {
	c := Config{
		OutputDir:                  filepath.Join(t.TempDir(), "out"),
		SeedConditions:             SeedConditions{Seconds: 10},
		ClusterFormationCriterion:  "bogus",
		Fuzzers:                    []FuzzerConfig{{Name: "main", Cmd: []string{"x"}}},
	}
	applyDefaults(&c)
	c.ClusterFormationCriterion = "bogus" // applyDefaults only fills empty strings
	err := Validate(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, rosaerr.ErrConfig)
}

func TestValidateRejectsDuplicateFuzzerNames(t *testing.T) {
	c := Config{
		OutputDir:      filepath.Join(t.TempDir(), "out"),
		SeedConditions: SeedConditions{Seconds: 10},
		Fuzzers: []FuzzerConfig{
			{Name: "main", Cmd: []string{"x"}},
			{Name: "main", Cmd: []string{"y"}},
		},
	}
	applyDefaults(&c)
	err := Validate(c)
	require.Error(t, err)
}

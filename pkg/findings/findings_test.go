// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package findings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosa-project/rosa/pkg/cluster"
	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/oracle"
	"github.com/rosa-project/rosa/pkg/trace"
)

func newPair(t *testing.T, uid string, edges, syscalls []byte) trace.Pair {
	t.Helper()
	return trace.Pair{
		UID:        uid,
		InputBytes: []byte("x"),
		Trace:      trace.Trace{Edges: edges, Syscalls: syscalls},
		FuzzerName: "main",
		InputName:  uid,
	}
}

func TestNewWriterCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)
	assert.NotNil(t, w)

	for _, sub := range []string{"backdoors", "clusters", "decisions", "logs", "traces"} {
		fi, err := os.Stat(filepath.Join(root, sub))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
	_, err = os.Stat(filepath.Join(root, "README.txt"))
	require.NoError(t, err)
}

func TestWriteTraceRoundTrips(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	p := newPair(t, "pair1", []byte{1, 0, 1}, []byte{0, 1})
	path, err := w.WriteTrace(p)
	require.NoError(t, err)

	tr, err := trace.Parse(mustRead(t, path))
	require.NoError(t, err)
	assert.Equal(t, p.Trace.Edges, tr.Edges)
	assert.Equal(t, p.Trace.Syscalls, tr.Syscalls)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestWriteClusterListsMembersInOrder(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	seeds := []trace.Pair{
		newPair(t, "a", []byte{1, 0}, []byte{0}),
		newPair(t, "b", []byte{1, 0}, []byte{0}),
	}
	c, err := cluster.Build(seeds, cluster.Config{
		Criterion:        distance.EdgesOnly,
		Metric:           distance.Hamming,
		EdgeTolerance:    0,
		SyscallTolerance: 0,
	})
	require.NoError(t, err)
	require.Len(t, c, 1)

	require.NoError(t, w.WriteCluster(c[0]))
	data := mustRead(t, filepath.Join(root, "clusters", c[0].UID))
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestWriteDecisionAndFingerprint(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	d := oracle.Decision{
		PairUID:          "pairX",
		ClusterUID:       "cluster_000000",
		IsBackdoor:       true,
		Reason:           distance.ReasonSyscalls,
		SyscallsOnlyInTrace: []int{4},
	}
	require.NoError(t, w.WriteDecision(d))

	data := mustRead(t, filepath.Join(root, "decisions", "pairX.toml"))
	assert.Contains(t, string(data), "pair_uid")
	assert.Contains(t, string(data), "pairX")

	fp1 := Fingerprint(d)
	fp2 := Fingerprint(d)
	assert.Equal(t, fp1, fp2)

	other := d
	other.SyscallsOnlyInTrace = []int{5}
	assert.NotEqual(t, fp1, Fingerprint(other))
}

func TestRecordBackdoorLinksUnderFingerprintGroup(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	p := newPair(t, "pairX", []byte{1, 0, 1}, []byte{0, 1, 1})
	tracePath, err := w.WriteTrace(p)
	require.NoError(t, err)

	d := oracle.Decision{
		PairUID:          "pairX",
		ClusterUID:       "cluster_000000",
		IsBackdoor:       true,
		Reason:           distance.ReasonEdges,
		EdgesOnlyInTrace: []int{2},
	}
	require.NoError(t, w.RecordBackdoor(d, tracePath))

	groupDir := filepath.Join(root, "backdoors", Fingerprint(d)+"_"+d.ClusterUID)
	fi, err := os.Stat(filepath.Join(groupDir, "pairX"))
	require.NoError(t, err)
	assert.False(t, fi.IsDir())
}

func TestAppendStatsRowWritesHeaderOnce(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	require.NoError(t, w.AppendStatsRow(StatsRow{Seconds: 1, TotalTraces: 1}))
	require.NoError(t, w.AppendStatsRow(StatsRow{Seconds: 2, TotalTraces: 2}))

	data := mustRead(t, filepath.Join(root, "stats.csv"))
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, statsHeader, lines[0]+"\n")
}

func TestAppendStatsRowRecordsSeedEndCause(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	require.NoError(t, w.AppendStatsRow(StatsRow{Seconds: 1, TotalTraces: 1}))
	require.NoError(t, w.AppendStatsRow(StatsRow{Seconds: 2, TotalTraces: 2, Cause: "edge_coverage"}))

	data := mustRead(t, filepath.Join(root, "stats.csv"))
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], ","))
	assert.True(t, strings.HasSuffix(lines[2], ",edge_coverage"))
}

func TestCopyConfig(t *testing.T) {
	root := filepath.Join(t.TempDir(), "campaign")
	w, err := NewWriter(root)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "rosa.toml")
	require.NoError(t, os.WriteFile(src, []byte("output_dir = \"x\"\n"), 0o644))
	require.NoError(t, w.CopyConfig(src))

	data := mustRead(t, filepath.Join(root, "config.toml"))
	assert.Contains(t, string(data), "output_dir")
}

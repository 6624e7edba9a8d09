// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
package cluster

import (
	"testing"

	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(uid string, edges, syscalls []byte) trace.Pair {
	return trace.Pair{
		UID:   uid,
		Trace: trace.Trace{Edges: edges, Syscalls: syscalls},
	}
}

func baseConfig() Config {
	return Config{
		Criterion: distance.EdgesOnly,
		Metric:    distance.Hamming,
	}
}

// Scenario 1 of spec.md §8: five pairs with identical edge and syscall
// existentials form a single cluster.
func TestBuildSingleClusterDeterminism(t *testing.T) {
	seeds := []trace.Pair{
		pair("p0", []byte{1, 0, 1, 0}, []byte{0, 1}),
		pair("p1", []byte{1, 0, 1, 0}, []byte{0, 1}),
		pair("p2", []byte{1, 0, 1, 0}, []byte{0, 1}),
		pair("p3", []byte{1, 0, 1, 0}, []byte{0, 1}),
		pair("p4", []byte{1, 0, 1, 0}, []byte{0, 1}),
	}
	clusters, err := Build(seeds, baseConfig())
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "cluster_000000", clusters[0].UID)
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, clusters[0].MemberUIDs())
}

// Scenario 2 of spec.md §8: two distinct edge-vector families split into
// two clusters, in arrival order.
func TestBuildTwoFamilies(t *testing.T) {
	seeds := []trace.Pair{
		pair("a1", []byte{1, 0, 1, 0}, nil),
		pair("a2", []byte{1, 0, 1, 0}, nil),
		pair("b1", []byte{0, 1, 0, 1}, nil),
		pair("a3", []byte{1, 0, 1, 0}, nil),
		pair("b2", []byte{0, 1, 0, 1}, nil),
	}
	cfg := baseConfig()
	cfg.Metric = distance.Hamming

	clusters, err := Build(seeds, cfg)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"a1", "a2", "a3"}, clusters[0].MemberUIDs())
	assert.Equal(t, []string{"b1", "b2"}, clusters[1].MemberUIDs())
}

func TestBuildSingletonCluster(t *testing.T) {
	seeds := []trace.Pair{pair("only", []byte{1, 1}, nil)}
	clusters, err := Build(seeds, baseConfig())
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	maxD, err := clusters[0].MaxPairwiseDistance(distance.EdgesOnly, distance.Hamming)
	require.NoError(t, err)
	assert.Equal(t, 0, maxD, "singleton cluster has max(D_c) = 0 by convention")
}

func TestBuildAllZeroVectorsVacuousMatch(t *testing.T) {
	seeds := []trace.Pair{
		pair("z0", []byte{0, 0, 0}, []byte{0, 0}),
		pair("z1", []byte{0, 0, 0}, []byte{0, 0}),
		pair("z2", []byte{0, 0, 0}, []byte{0, 0}),
	}
	clusters, err := Build(seeds, baseConfig())
	require.NoError(t, err)
	require.Len(t, clusters, 1)
}

func TestBuildIncompatibleLengthsIsError(t *testing.T) {
	seeds := []trace.Pair{
		pair("p0", []byte{1, 0}, nil),
		pair("p1", []byte{1, 0, 1}, nil),
	}
	_, err := Build(seeds, baseConfig())
	require.Error(t, err)
}

func TestPairwiseDistancesCached(t *testing.T) {
	seeds := []trace.Pair{
		pair("p0", []byte{1, 0}, nil),
		pair("p1", []byte{0, 1}, nil),
	}
	cfg := baseConfig()
	cfg.EdgeTolerance = 2
	clusters, err := Build(seeds, cfg)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	d1, err := clusters[0].PairwiseDistances(distance.EdgesOnly, distance.Hamming)
	require.NoError(t, err)
	d2, err := clusters[0].PairwiseDistances(distance.EdgesOnly, distance.Hamming)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Equal(t, []int{2}, d1)
}

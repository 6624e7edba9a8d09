// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package oracle

import (
	"github.com/rosa-project/rosa/pkg/cluster"
	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/trace"
)

// CompMinMax is the core oracle of spec.md §4.5: a pair is flagged as a
// backdoor iff the minimum distance from its trace to any cluster member
// exceeds the maximum pairwise distance already observed within the
// cluster.
type CompMinMax struct{}

var _ Oracle = CompMinMax{}

// Decide implements spec.md §4.5's CompMinMax test. It assumes pair is not
// itself a cluster seed; seed pairs are given the fixed "seed" decision by
// the campaign controller directly (spec.md §4.5's "A flagged seed pair
// carries reason seed and is never reported as a backdoor"), without
// consulting the oracle at all.
func (CompMinMax) Decide(pair trace.Pair, c *cluster.Cluster, criterion distance.Criterion, metric distance.Metric) (Decision, error) {
	nearestIdx := -1
	minValue := 0
	var minReason distance.Reason
	for i, member := range c.Members {
		value, reason, err := cluster.Evaluate(criterion, metric, pair.Trace, member.Trace)
		if err != nil {
			return Decision{}, err
		}
		// Ties broken by member insertion order (spec.md §4.5): only a
		// strictly smaller value displaces the current nearest member.
		if nearestIdx == -1 || value < minValue {
			nearestIdx = i
			minValue = value
			minReason = reason
		}
	}

	maxDc, err := c.MaxPairwiseDistance(criterion, metric)
	if err != nil {
		return Decision{}, err
	}

	isBackdoor := minValue > maxDc
	reason := minReason
	if !isBackdoor {
		reason = ""
	}

	nearest := c.Members[nearestIdx]
	edgesInTrace, edgesInCluster := discriminants(pair.Trace.Edges, nearest.Trace.Edges)
	syscallsInTrace, syscallsInCluster := discriminants(pair.Trace.Syscalls, nearest.Trace.Syscalls)
	if !isBackdoor {
		edgesInTrace, edgesInCluster, syscallsInTrace, syscallsInCluster = nil, nil, nil, nil
	}

	return Decision{
		PairUID:               pair.UID,
		ClusterUID:            c.UID,
		IsBackdoor:            isBackdoor,
		Reason:                reason,
		EdgesOnlyInTrace:      edgesInTrace,
		EdgesOnlyInCluster:    edgesInCluster,
		SyscallsOnlyInTrace:   syscallsInTrace,
		SyscallsOnlyInCluster: syscallsInCluster,
	}, nil
}

// discriminants computes the symmetric difference, by index, of the
// existential projections of a and b (spec.md §4.5): indices set in a but
// not b, and indices set in b but not a.
func discriminants(a, b []byte) (onlyInA, onlyInB []int) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		switch {
		case av != 0 && bv == 0:
			onlyInA = append(onlyInA, i)
		case av == 0 && bv != 0:
			onlyInB = append(onlyInB, i)
		}
	}
	return onlyInA, onlyInB
}

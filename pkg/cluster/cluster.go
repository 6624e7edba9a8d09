// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cluster implements the Cluster Builder (spec.md §4.4): greedy,
// order-stable agglomerative clustering of seed pairs, and the Cluster
// type that caches pairwise member distances for the Oracle (spec.md
// §4.5) and for cluster selection (spec.md §4.7).
package cluster

import (
	"fmt"
	"sync"

	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/rosaerr"
	"github.com/rosa-project/rosa/pkg/trace"
)

// Cluster is a non-empty ordered set of seed pairs sharing a behavioral
// family (spec.md §3). Its UID is assigned in creation order and never
// reused. Pairwise member distances are cached lazily per (Criterion,
// DistanceMetric): the formation criterion finalizes the cluster, but
// later queries (selection, oracle) may use a different criterion.
type Cluster struct {
	UID     string
	Members []trace.Pair

	mu    sync.Mutex
	cache map[cacheKey][]int
}

type cacheKey struct {
	criterion distance.Criterion
	metric    distance.Metric
}

func newCluster(uid string, first trace.Pair) *Cluster {
	return &Cluster{
		UID:     uid,
		Members: []trace.Pair{first},
		cache:   map[cacheKey][]int{},
	}
}

// MemberUIDs returns the member pair UIDs in insertion order, the exact
// contents spec.md §8 requires clusters/<uid> to hold (one per line).
func (c *Cluster) MemberUIDs() []string {
	uids := make([]string, len(c.Members))
	for i, p := range c.Members {
		uids[i] = p.UID
	}
	return uids
}

// PairwiseDistances returns D_c, the set of pairwise distances among the
// cluster's members under criterion/metric, computing and caching it on
// first request (spec.md §4.4's "finalize" step, realized lazily since the
// selection/oracle criteria are not known until phase 2 begins).
func (c *Cluster) PairwiseDistances(criterion distance.Criterion, metric distance.Metric) ([]int, error) {
	key := cacheKey{criterion, metric}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var values []int
	for i := 0; i < len(c.Members); i++ {
		for j := i + 1; j < len(c.Members); j++ {
			value, _, err := evaluate(criterion, metric, c.Members[i].Trace, c.Members[j].Trace)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
	}

	c.mu.Lock()
	c.cache[key] = values
	c.mu.Unlock()
	return values, nil
}

// MaxPairwiseDistance is max(D_c), 0 by convention for a singleton cluster
// (spec.md §4.5).
func (c *Cluster) MaxPairwiseDistance(criterion distance.Criterion, metric distance.Metric) (int, error) {
	values, err := c.PairwiseDistances(criterion, metric)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max, nil
}

// evaluate computes a criterion's decision value and reason between two
// traces under the given distance metric, the seam PairwiseDistances, the
// Oracle, and cluster selection call into (spec.md §4.3). Build's
// tolerance test computes the two distances itself and uses
// distance.Matches instead.
func evaluate(criterion distance.Criterion, metric distance.Metric, a, b trace.Trace) (value int, reason distance.Reason, err error) {
	if !trace.CompatibleLengths(a, b) {
		return 0, "", fmt.Errorf("%w: incompatible trace vector lengths", rosaerr.ErrProtocol)
	}
	de, err := distance.Compute(metric, trace.Existential(a.Edges), trace.Existential(b.Edges))
	if err != nil {
		return 0, "", err
	}
	ds, err := distance.Compute(metric, trace.Existential(a.Syscalls), trace.Existential(b.Syscalls))
	if err != nil {
		return 0, "", err
	}
	value, reason = criterion.Evaluate(de, ds)
	return value, reason, nil
}

// Evaluate exposes the package-private evaluate seam for callers outside
// this package (the Oracle) that need the raw (value, reason) pair between
// two traces under a criterion and metric.
func Evaluate(criterion distance.Criterion, metric distance.Metric, a, b trace.Trace) (int, distance.Reason, error) {
	return evaluate(criterion, metric, a, b)
}

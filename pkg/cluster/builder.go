// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cluster

import (
	"fmt"

	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/rosaerr"
	"github.com/rosa-project/rosa/pkg/trace"
)

// Config pins the formation criterion, distance metric, and tolerances
// used to build clusters (spec.md §4.4, configuration keys of spec.md §6).
type Config struct {
	Criterion        distance.Criterion
	Metric           distance.Metric
	EdgeTolerance    int
	SyscallTolerance int
}

// Build partitions seeds, given in arrival order, into clusters using the
// greedy, order-stable algorithm of spec.md §4.4: a pair joins the first
// cluster whose every member matches it under cfg's tolerances, else it
// seeds a new cluster. The result is a pure function of seeds' order and
// cfg, which is what makes the partition deterministic (spec.md §8).
func Build(seeds []trace.Pair, cfg Config) ([]*Cluster, error) {
	var clusters []*Cluster
	for _, p := range seeds {
		assigned := false
		for _, c := range clusters {
			ok, err := matchesAll(c, p, cfg)
			if err != nil {
				return nil, err
			}
			if ok {
				c.Members = append(c.Members, p)
				assigned = true
				break
			}
		}
		if !assigned {
			uid := fmt.Sprintf("cluster_%06d", len(clusters))
			clusters = append(clusters, newCluster(uid, p))
		}
	}
	return clusters, nil
}

// matchesAll reports whether p matches every existing member of c under
// cfg's formation criterion and tolerances (spec.md §4.4 step 2). An
// empty cluster never occurs (clusters are always seeded with one member),
// so a cluster with an all-zero-vector member vacuously matches any other
// all-zero-vector pair, producing the single-cluster edge case of spec.md
// §4.4.
func matchesAll(c *Cluster, p trace.Pair, cfg Config) (bool, error) {
	for _, member := range c.Members {
		if !trace.CompatibleLengths(member.Trace, p.Trace) {
			return false, fmt.Errorf("%w: incompatible trace vector lengths between %s and %s",
				rosaerr.ErrProtocol, member.UID, p.UID)
		}
		de, err := distance.Compute(cfg.Metric, trace.Existential(member.Trace.Edges), trace.Existential(p.Trace.Edges))
		if err != nil {
			return false, err
		}
		ds, err := distance.Compute(cfg.Metric, trace.Existential(member.Trace.Syscalls), trace.Existential(p.Trace.Syscalls))
		if err != nil {
			return false, err
		}
		if !distance.Matches(cfg.Criterion, de, ds, cfg.EdgeTolerance, cfg.SyscallTolerance) {
			return false, nil
		}
	}
	return true, nil
}

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package oracle implements the per-trace backdoor decision (spec.md
// §4.5): the CompMinMax test, and the Decision record spec.md §3 defines.
package oracle

import (
	"github.com/rosa-project/rosa/pkg/cluster"
	"github.com/rosa-project/rosa/pkg/distance"
	"github.com/rosa-project/rosa/pkg/trace"
)

// Decision is the immutable record spec.md §3 defines for a pair analyzed
// in phase 2. pkg/findings writes it once per pair; this repository has no
// simulation/replay mode that rewrites decisions.
type Decision struct {
	PairUID        string
	ClusterUID     string
	IsBackdoor     bool
	Reason         distance.Reason
	EdgesOnlyInTrace     []int
	EdgesOnlyInCluster   []int
	SyscallsOnlyInTrace  []int
	SyscallsOnlyInCluster []int
	OffsetSeconds  float64
}

// Oracle decides whether a pair's trace is anomalous with respect to a
// cluster. It is polymorphic per spec.md §4.5/§9 so future statistical
// variants can be added without touching call sites; the configuration
// vocabulary name ("comp-min-max", spec.md §6) identifies a variant.
type Oracle interface {
	Decide(pair trace.Pair, c *cluster.Cluster, criterion distance.Criterion, metric distance.Metric) (Decision, error)
}

// Name is the configuration vocabulary string identifying an Oracle
// variant (spec.md §6's "oracle" key).
type Name string

// CompMinMaxName is the core oracle's configuration vocabulary name.
const CompMinMaxName Name = "comp-min-max"

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package campaign

import (
	"math/bits"

	"github.com/rosa-project/rosa/pkg/trace"
)

// coverageTracker accumulates the union of every pair's existential
// vectors observed so far, to evaluate the edge_coverage/syscall_coverage
// seed-end conditions of spec.md §4.7 and to report the same fractions in
// each stats.csv row (spec.md §4.8).
type coverageTracker struct {
	edgeTotal    int
	syscallTotal int
	edgeUnion    []byte
	syscallUnion []byte
}

func (c *coverageTracker) observe(t trace.Trace) {
	if c.edgeUnion == nil {
		c.edgeTotal = len(t.Edges)
		c.syscallTotal = len(t.Syscalls)
		c.edgeUnion = make([]byte, (len(t.Edges)+7)/8)
		c.syscallUnion = make([]byte, (len(t.Syscalls)+7)/8)
	}
	orInto(c.edgeUnion, trace.Existential(t.Edges))
	orInto(c.syscallUnion, trace.Existential(t.Syscalls))
}

func orInto(dst, src []byte) {
	for i := range dst {
		if i < len(src) {
			dst[i] |= src[i]
		}
	}
}

func (c *coverageTracker) edgeFraction() float64 {
	if c.edgeTotal == 0 {
		return 0
	}
	return float64(popcount(c.edgeUnion)) / float64(c.edgeTotal)
}

func (c *coverageTracker) syscallFraction() float64 {
	if c.syscallTotal == 0 {
		return 0
	}
	return float64(popcount(c.syscallUnion)) / float64(c.syscallTotal)
}

func popcount(data []byte) int {
	total := 0
	for _, b := range data {
		total += bits.OnesCount8(b)
	}
	return total
}

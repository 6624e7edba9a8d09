// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package distance

import "fmt"

// Criterion combines an edge distance and a syscall distance into a single
// decision value and a deciding "reason" tag (spec.md §4.3). It is a
// string-backed enum whose values are exactly the configuration vocabulary
// strings of spec.md §6.
type Criterion string

const (
	EdgesOnly        Criterion = "edges-only"
	SyscallsOnly     Criterion = "syscalls-only"
	EdgesOrSyscalls  Criterion = "edges-or-syscalls"
	EdgesAndSyscalls Criterion = "edges-and-syscalls"
)

// Reason is the oracle's "reason" tag from spec.md §3/§4.5.
type Reason string

const (
	ReasonSeed             Reason = "seed"
	ReasonEdges            Reason = "edges"
	ReasonSyscalls         Reason = "syscalls"
	ReasonEdgesAndSyscalls Reason = "edges-and-syscalls"
)

// tiebreakScale must exceed any realizable syscall Hamming distance so that
// edges-and-syscalls's (d_e, d_s) lexicographic order survives encoding as
// a single comparable int. The syscall vector length is fixed at 600
// (spec.md §3), so 1<<20 leaves ample headroom.
const tiebreakScale = 1 << 20

// ParseCriterion validates a configuration-file string against the
// vocabulary of spec.md §6.
func ParseCriterion(s string) (Criterion, error) {
	switch Criterion(s) {
	case EdgesOnly, SyscallsOnly, EdgesOrSyscalls, EdgesAndSyscalls:
		return Criterion(s), nil
	default:
		return "", fmt.Errorf("unknown criterion %q", s)
	}
}

// RelevantVectors reports which of the edge/syscall vectors the criterion's
// formula actually consults. Cluster formation's tolerance test (spec.md
// §4.3) bypasses the tolerance of a vector that is not relevant.
func (c Criterion) RelevantVectors() (edges, syscalls bool) {
	switch c {
	case EdgesOnly:
		return true, false
	case SyscallsOnly:
		return false, true
	case EdgesOrSyscalls, EdgesAndSyscalls:
		return true, true
	default:
		return false, false
	}
}

// Evaluate combines an edge distance de and a syscall distance ds into a
// single totally-ordered decision value and the reason that would be
// reported if that value turns out to be the deciding one (spec.md §4.3's
// table). The value is meaningful for ordering (min/max, argmin) within one
// criterion; it is not meant to be compared across criteria.
func (c Criterion) Evaluate(de, ds int) (value int, reason Reason) {
	switch c {
	case EdgesOnly:
		return de, ReasonEdges
	case SyscallsOnly:
		return ds, ReasonSyscalls
	case EdgesOrSyscalls:
		if de <= ds {
			return de, ReasonEdges
		}
		return ds, ReasonSyscalls
	case EdgesAndSyscalls:
		reason := ReasonSyscalls
		if de > 0 {
			reason = ReasonEdgesAndSyscalls
		}
		return de*tiebreakScale + ds, reason
	default:
		return 0, ""
	}
}

// Matches reports whether de/ds are within tolerance under c, per the
// tolerance test of spec.md §4.3: every vector the criterion's formula
// consults must be within its configured tolerance; a vector the formula
// never consults is bypassed (tolerance treated as infinite).
func Matches(c Criterion, de, ds, edgeTolerance, syscallTolerance int) bool {
	edgesRelevant, syscallsRelevant := c.RelevantVectors()
	if edgesRelevant && de > edgeTolerance {
		return false
	}
	if syscallsRelevant && ds > syscallTolerance {
		return false
	}
	return true
}

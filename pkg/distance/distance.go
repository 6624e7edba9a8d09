// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package distance implements the Distance Algebra (spec.md §4.3): the
// Hamming metric over existential byte vectors and the Criterion
// combinator used by both cluster formation and the oracle.
package distance

import (
	"fmt"
	"math/bits"

	"github.com/rosa-project/rosa/pkg/rosaerr"
)

// Metric names a distance function by the configuration vocabulary string
// of spec.md §6 (currently only "hamming").
type Metric string

// Hamming is the only distance metric the core requires.
const Hamming Metric = "hamming"

// Compute dispatches to the named metric. a and b must be equal-length
// packed existential vectors (see pkg/trace.Existential).
func Compute(metric Metric, a, b []byte) (int, error) {
	switch metric {
	case Hamming:
		return HammingDistance(a, b)
	default:
		return 0, fmt.Errorf("%w: unknown distance metric %q", rosaerr.ErrConfig, metric)
	}
}

// HammingDistance counts the indices where the existential projections of
// a and b differ (spec.md §4.3). a and b are packed bit vectors of equal
// byte length; a length mismatch is a Protocol error (spec.md §7).
func HammingDistance(a, b []byte) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector lengths differ (%d vs %d)", rosaerr.ErrProtocol, len(a), len(b))
	}
	total := 0
	for i := range a {
		total += bits.OnesCount8(a[i] ^ b[i])
	}
	return total, nil
}

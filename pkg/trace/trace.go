// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package trace implements the Trace Store (spec.md §4.1): parsing the
// binary .trace file format (spec.md §6), the existential projection, and
// the deduplication fingerprint.
package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/rosa-project/rosa/pkg/rosaerr"
)

// headerLen is the size in bytes of the two u64 LE length fields at the
// start of every .trace file (spec.md §6).
const headerLen = 16

// Trace is a runtime trace: a pair of byte vectors, one observation per
// edge/syscall index, a non-zero byte meaning "observed" (spec.md §3).
// Lengths are preserved as read; all comparisons use the existential
// projection computed on demand by Existential.
type Trace struct {
	Edges    []byte
	Syscalls []byte
}

// Header is the declared-size preamble of a .trace file, parseable without
// reading the (potentially still-being-written) payload, so the Collector
// can probe readiness cheaply (spec.md §4.6).
type Header struct {
	EdgesLen    uint64
	SyscallsLen uint64
}

// TotalLen is the full on-disk size a complete .trace file must have.
func (h Header) TotalLen() int64 {
	return int64(headerLen) + int64(h.EdgesLen) + int64(h.SyscallsLen)
}

// ParseHeader reads the 16-byte header from the front of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerLen {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", rosaerr.ErrBadTraceFormat, len(data))
	}
	return Header{
		EdgesLen:    binary.LittleEndian.Uint64(data[0:8]),
		SyscallsLen: binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

// Parse decodes a complete .trace file's bytes into a Trace.
func Parse(data []byte) (Trace, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return Trace{}, err
	}
	want := h.TotalLen()
	if int64(len(data)) < want {
		return Trace{}, fmt.Errorf("%w: declared %d bytes, got %d",
			rosaerr.ErrBadTraceFormat, want, len(data))
	}
	edgesStart := headerLen
	edgesEnd := edgesStart + int(h.EdgesLen)
	syscallsEnd := edgesEnd + int(h.SyscallsLen)
	return Trace{
		Edges:    data[edgesStart:edgesEnd],
		Syscalls: data[edgesEnd:syscallsEnd],
	}, nil
}

// Existential returns the bit-packed existential projection of vec: bit i
// is 1 iff vec[i] != 0 (spec.md §4.1). Bits are packed 8 per byte, MSB
// first; the packed length is ceil(len(vec)/8).
func Existential(vec []byte) []byte {
	packed := make([]byte, (len(vec)+7)/8)
	for i, b := range vec {
		if b != 0 {
			packed[i/8] |= 1 << uint(7-i%8)
		}
	}
	return packed
}

// Fingerprint is the concatenation of the existential projections of edges
// and syscalls (spec.md §3): two pairs are duplicates iff their
// fingerprints are equal.
func Fingerprint(t Trace) []byte {
	edges := Existential(t.Edges)
	syscalls := Existential(t.Syscalls)
	out := make([]byte, 0, len(edges)+len(syscalls))
	out = append(out, edges...)
	out = append(out, syscalls...)
	return out
}

// CompatibleLengths reports whether a and b can be meaningfully compared:
// their edges and syscalls vectors must each be of equal length. Callers
// (cluster formation, distance evaluation) report a mismatch as a
// Protocol error (spec.md §7); no exemption for a configured fuzzer map
// size is applied.
func CompatibleLengths(a, b Trace) bool {
	return len(a.Edges) == len(b.Edges) && len(a.Syscalls) == len(b.Syscalls)
}

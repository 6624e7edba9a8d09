// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package rosaerr defines the error kinds of spec.md §7 as errors.Is-
// compatible sentinels, wrapped with fmt.Errorf("...: %w", ...) at the
// point of failure.
package rosaerr

import "errors"

// Kind sentinels. Wrap one of these with fmt.Errorf("%w: ...", KindX) or
// fmt.Errorf("...: %w", KindX) so callers can recover the kind with
// errors.Is.
var (
	// ErrConfig marks malformed or inconsistent configuration.
	ErrConfig = errors.New("config error")
	// ErrIO marks a filesystem access failure.
	ErrIO = errors.New("io error")
	// ErrBadTraceFormat marks a .trace file whose header or size is wrong.
	ErrBadTraceFormat = errors.New("bad trace format")
	// ErrAdapter marks a fuzzer adapter that failed to start or died.
	ErrAdapter = errors.New("adapter error")
	// ErrProtocol marks a trace vector length mismatch across pairs.
	ErrProtocol = errors.New("protocol error")
	// ErrInternal marks an invariant violation.
	ErrInternal = errors.New("internal error")
)

// Is reports whether err ultimately wraps kind, a thin wrapper around
// errors.Is kept for readability at call sites that check a Kind sentinel.
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}

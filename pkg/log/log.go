// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log implements the leveled logger used across the campaign
// controller, the collector, and the fuzzer adapters. It is intentionally
// tiny: a single global sink, guarded by a verbosity level, writing to
// standard error.
package log

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	mu          sync.Mutex
	verbosity   atomic.Int32
	cachedStart = time.Now()
)

// SetVerbosity controls which Logf calls are emitted: a call at level L is
// printed iff L <= verbosity.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
}

// Logf prints a leveled message to stderr, prefixed with the elapsed time
// since process start. Level 0 is always-on; higher levels are debug noise.
func Logf(level int, msg string, args ...interface{}) {
	if int32(level) > verbosity.Load() {
		return
	}
	write(fmt.Sprintf(msg, args...))
}

// Errorf logs a warning-level message unconditionally (level 0). It does not
// affect control flow: callers remain responsible for recovering from the
// underlying error, per spec.md §7's "warnings do not abort" rule.
func Errorf(msg string, args ...interface{}) {
	write("ERROR: " + fmt.Sprintf(msg, args...))
}

// Fatalf logs unconditionally and terminates the process with exit code 2,
// the "fatal runtime error" exit code from spec.md §6. It must only be used
// for internal invariant violations the campaign controller cannot recover
// from; ordinary failures should be returned as errors instead.
func Fatalf(msg string, args ...interface{}) {
	write("FATAL: " + fmt.Sprintf(msg, args...))
	os.Exit(2)
}

func write(line string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, "%7.3fs %s\n", time.Since(cachedStart).Seconds(), line)
}

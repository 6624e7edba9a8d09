// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package adapter

import (
	"bytes"
	"io"
	"sync"
)

// outputFanOut is the ring-buffer consumer of a child process output
// stream: a bounded buffer the adapter scans for an abrupt crash banner.
// The verbatim log file copy (spec.md §4.2's redirection to per-instance
// log files) is made by the io.MultiWriter in AFL.Start, not by
// outputFanOut; the file it is constructed with is stored but not written.
type outputFanOut struct {
	mu      sync.Mutex
	file    io.Writer
	ring    bytes.Buffer
	ringCap int
}

func newOutputFanOut(file io.Writer, ringCap int) *outputFanOut {
	return &outputFanOut{file: file, ringCap: ringCap}
}

// Write satisfies io.Writer: it is wrapped in an io.MultiWriter after the
// log file and appends p to the ring buffer only, dropping the oldest
// bytes beyond ringCap. It never returns an error.
func (f *outputFanOut) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.ring.Write(p)
	if excess := f.ring.Len() - f.ringCap; excess > 0 {
		f.ring.Next(excess)
	}
	f.mu.Unlock()
	return len(p), nil
}

// Recent returns a snapshot of the most recently observed output, used to
// shorten main-instance-death detection latency below the status file's
// own staleness window (spec.md §7's "main instance dies" is fatal).
func (f *outputFanOut) Recent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, f.ring.Len())
	copy(out, f.ring.Bytes())
	return out
}

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package collector implements the Collector (spec.md §4.6): polling each
// adapter's watched directories, waiting for trace completeness, loading
// pairs, and deduplicating by existential fingerprint before handing them
// to the campaign controller in deterministic arrival order.
package collector

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rosa-project/rosa/pkg/adapter"
	"github.com/rosa-project/rosa/pkg/log"
	"github.com/rosa-project/rosa/pkg/osutil"
	"github.com/rosa-project/rosa/pkg/trace"
)

// DefaultMaxIncompleteScans bounds Open Question (a) of spec.md §9: how
// many consecutive poll ticks a .trace file may report a declared size
// larger than its on-disk size before the Collector gives up on it. At the
// default 250ms poll interval this is ten seconds.
const DefaultMaxIncompleteScans = 40

type fileKey struct {
	adapterName string
	fileName    string
}

// Collector is single-consumer: one goroutine calls Poll repeatedly, which
// is what makes the resulting arrival order deterministic given identical
// fuzzer output streams (spec.md §4.6, §5).
type Collector struct {
	adapters           []adapter.Fuzzer
	maxIncompleteScans int

	mu               sync.Mutex
	seenFingerprints map[string]bool
	processedFiles   map[fileKey]bool
	incompleteScans  map[fileKey]int
}

// New builds a Collector over adapters, polled in the given (configured)
// order on every tick; that order is part of the deterministic merge.
func New(adapters []adapter.Fuzzer) *Collector {
	return &Collector{
		adapters:           adapters,
		maxIncompleteScans: DefaultMaxIncompleteScans,
		seenFingerprints:   map[string]bool{},
		processedFiles:     map[fileKey]bool{},
		incompleteScans:    map[fileKey]int{},
	}
}

// Poll scans every adapter's test_input_dir once, concurrently across
// adapters (golang.org/x/sync/errgroup), and returns newly accepted,
// deduplicated pairs in the canonical order of spec.md §5: adapters in
// configured order, files within an adapter in sorted (fuzzer-assigned id
// prefix) order.
func (c *Collector) Poll(ctx context.Context) ([]trace.Pair, error) {
	perAdapter := make([][]trace.Pair, len(c.adapters))

	g, _ := errgroup.WithContext(ctx)
	for i, a := range c.adapters {
		i, a := i, a
		g.Go(func() error {
			pairs, err := c.scanAdapter(a)
			if err != nil {
				return err
			}
			perAdapter[i] = pairs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var accepted []trace.Pair
	c.mu.Lock()
	for _, pairs := range perAdapter {
		for _, p := range pairs {
			fp := hex.EncodeToString(trace.Fingerprint(p.Trace))
			if c.seenFingerprints[fp] {
				continue
			}
			c.seenFingerprints[fp] = true
			accepted = append(accepted, p)
		}
	}
	c.mu.Unlock()
	return accepted, nil
}

// scanAdapter lists one adapter's test_input_dir and loads every input
// file whose sibling .trace file is complete and not yet processed. It
// never returns an error for a single bad pair (spec.md §7: "Trace Store
// errors for a single pair are logged and that pair is discarded, never
// fatal"); it returns an error only for a directory listing failure.
func (c *Collector) scanAdapter(a adapter.Fuzzer) ([]trace.Pair, error) {
	entries, err := os.ReadDir(a.TestInputDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", a.TestInputDir(), err)
	}

	var pairs []trace.Pair
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := fileKey{a.Name(), e.Name()}

		c.mu.Lock()
		done := c.processedFiles[key]
		c.mu.Unlock()
		if done {
			continue
		}

		inputPath := filepath.Join(a.TestInputDir(), e.Name())
		tracePath := filepath.Join(a.TraceDumpDir(), e.Name()+".trace")
		if !osutil.IsExist(tracePath) {
			continue // sibling trace not yet written; retry next tick.
		}

		ready, err := traceComplete(tracePath)
		if err != nil {
			// Malformed header: discard permanently, matching the
			// non-fatal-discard rule for single-pair Trace Store errors.
			log.Errorf("[%s] discarding %v: %v", a.Name(), e.Name(), err)
			c.markProcessed(key)
			continue
		}
		if !ready {
			c.mu.Lock()
			c.incompleteScans[key]++
			scans := c.incompleteScans[key]
			c.mu.Unlock()
			if scans >= c.maxIncompleteScans {
				log.Errorf("[%s] giving up on %v after %d incomplete scans", a.Name(), e.Name(), scans)
				c.markProcessed(key)
			}
			continue
		}

		p, err := trace.Load(inputPath, tracePath, a.Name())
		if err != nil {
			log.Errorf("[%s] discarding %v: %v", a.Name(), e.Name(), err)
			c.markProcessed(key)
			continue
		}
		c.markProcessed(key)
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func (c *Collector) markProcessed(key fileKey) {
	c.mu.Lock()
	c.processedFiles[key] = true
	delete(c.incompleteScans, key)
	c.mu.Unlock()
}

// traceComplete reports whether path's on-disk size matches its header's
// declared total size (spec.md §4.6's readiness detection).
func traceComplete(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %v: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := f.Read(buf)
	if n < 16 {
		// Header itself not fully written yet: not an error, just not
		// ready, unless the caller's retry budget is exhausted.
		if err != nil {
			return false, nil
		}
		return false, nil
	}
	header, err := trace.ParseHeader(buf)
	if err != nil {
		return false, err
	}
	size := osutil.FileSize(path)
	return size >= header.TotalLen(), nil
}

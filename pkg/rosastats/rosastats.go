// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package rosastats is a minimal named-counter registry: campaign.go
// creates a small fixed set of named Vals once at startup, updates them
// from its own goroutine, and reads them back when it builds each
// stats.csv row (spec.md §4.8). Vals are safe for concurrent use. It carries no graph-rendering metadata: nothing in this
// system renders a dashboard, so Create takes only a name.
package rosastats

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Val is a single named counter or gauge, safe for concurrent use.
type Val struct {
	name string
	v    atomic.Int64
}

// Name returns the Val's registered name.
func (v *Val) Name() string { return v.name }

// Add atomically adds delta (negative deltas are allowed, for counters
// that can shrink as well as grow).
func (v *Val) Add(delta int64) { v.v.Add(delta) }

// Set atomically overwrites the value, for gauges like coverage
// percentages that are recomputed rather than accumulated.
func (v *Val) Set(value int64) { v.v.Store(value) }

// Value returns the current value.
func (v *Val) Value() int64 { return v.v.Load() }

// Registry is a set of named Vals, created once and shared by every
// goroutine that needs to report a number into stats.csv.
type Registry struct {
	mu   sync.Mutex
	vals map[string]*Val
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{vals: map[string]*Val{}}
}

// Create registers a new Val under name. It panics on a duplicate name:
// these are meant to be called once each at campaign startup, so a
// duplicate is a programming error, not a runtime condition to recover
// from.
func (r *Registry) Create(name string) *Val {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vals[name]; ok {
		panic(fmt.Sprintf("rosastats: duplicate stat %q", name))
	}
	val := &Val{name: name}
	r.vals[name] = val
	return val
}

// Get returns the Val registered under name, or nil if none was created.
func (r *Registry) Get(name string) *Val {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vals[name]
}

// Snapshot returns the current value of every registered Val, keyed by
// name. The Findings Writer uses fixed column names rather than this
// generic map, but it is useful for diagnostics and tests.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.vals))
	for name, val := range r.vals {
		out[name] = val.Value()
	}
	return out
}

// Names returns every registered stat name, sorted, for deterministic
// iteration in logs and tests.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.vals))
	for name := range r.vals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// The five stat names the Campaign Controller creates at startup (spec.md
// §4.8). It reads TotalTraces, BackdoorsUnique and BackdoorsTotal back for
// each stats.csv row; the coverage columns come from its coverage tracker,
// and EdgeCoverage and SyscallCoverage are registered but not updated.
const (
	TotalTraces     = "total_traces"
	BackdoorsUnique = "backdoors_unique"
	BackdoorsTotal  = "backdoors_total"
	EdgeCoverage    = "edge_coverage"
	SyscallCoverage = "syscall_coverage"
)

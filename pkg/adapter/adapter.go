// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package adapter implements the Fuzzer Adapter (spec.md §4.2): spawning a
// fuzzer child process and exposing the filesystem surfaces the Collector
// watches. It is polymorphic over the capability set {status, pid,
// crashes}; the only variant the core ships is AFL++ (spec.md §4.2).
package adapter

import (
	"time"
)

// Status is the adapter's view of its child process, derived from the
// presence and freshness of a fuzzer-written status file (spec.md §4.2).
type Status int

const (
	Starting Status = iota
	Running
	Stopped
)

func (s Status) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Spec is one entry of the configuration file's "fuzzers" list (spec.md
// §6). Exactly one Spec in a campaign must have Name == "main".
type Spec struct {
	Name         string
	Cmd          []string
	Env          map[string]string
	TestInputDir string
	TraceDumpDir string
	CrashesDir   string
	Backend      string
}

// MainName is the reserved name the authoritative instance must carry
// (spec.md §4.2).
const MainName = "main"

// StatusReporter is the capability to report {Starting, Running, Stopped}.
type StatusReporter interface {
	Status() (Status, error)
}

// PidReporter is the capability to report a best-effort process id.
type PidReporter interface {
	Pid() (int, error)
}

// CrashObserver is the capability to report whether crashes were found.
type CrashObserver interface {
	FoundCrashes() (bool, error)
}

// Fuzzer is a running (or about-to-run) fuzzer instance. Every backend
// implements this core surface; StatusReporter/PidReporter/CrashObserver
// are additional capabilities a backend may or may not support, matching
// spec.md §4.2's "polymorphic over the capability set" wording.
type Fuzzer interface {
	Name() string
	Start() error
	Stop() error
	TestInputDir() string
	TraceDumpDir() string
	CrashesDir() string
}

// statusFreshness is how stale a status file may be before the adapter
// considers the child Stopped. It is a small multiple of the default poll
// interval (spec.md §9's 250ms default) so that one missed write doesn't
// flap the status.
const statusFreshness = 5 * time.Second

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package adapter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rosa-project/rosa/pkg/log"
	"github.com/rosa-project/rosa/pkg/rosaerr"
)

// aflBackendName is the configuration vocabulary string for this variant
// (spec.md §4.2's "variants currently {AFL++}").
const aflBackendName = "afl++"

// aflAbortBanner is the marker AFL++ prints to stderr just before it exits
// on an internal fault (a target crash that takes AFL++ itself down, an
// out-of-memory kill, and the like). Status uses it to report Stopped
// immediately instead of waiting out statusFreshness against a
// fuzzer_stats file that may not go stale for several seconds yet.
const aflAbortBanner = "PROGRAM ABORT"

// crashBanner reports whether recent output contains the abort banner and,
// if so, a bounded snippet suitable for a log line: the ring buffer can
// hold up to 64KB, far more than is useful to print in full.
func crashBanner(recent []byte) ([]byte, bool) {
	if !bytes.Contains(recent, []byte(aflAbortBanner)) {
		return nil, false
	}
	return log.Truncate(recent, 64, 256), true
}

// AFL is the AFL++ Fuzzer variant. It implements StatusReporter,
// PidReporter, and CrashObserver: the full capability set spec.md §4.2
// describes, realized by reading AFL++'s own fuzzer_stats file (written
// in the parent of the configured crashes directory, AFL++'s usual
// <out>/crashes layout) and its crashes directory.
type AFL struct {
	spec Spec
	logf string
	loge string

	mu      sync.Mutex
	cmd     *exec.Cmd
	logFile *os.File
	errFile *os.File
	stdout  *outputFanOut
	stderr  *outputFanOut
}

var (
	_ Fuzzer         = (*AFL)(nil)
	_ StatusReporter = (*AFL)(nil)
	_ PidReporter    = (*AFL)(nil)
	_ CrashObserver  = (*AFL)(nil)
)

// NewAFL builds an AFL++ adapter for spec. logDir is the campaign's
// logs/ directory (spec.md §6), where <name>.out and <name>.err are
// created.
func NewAFL(spec Spec, logDir string) *AFL {
	return &AFL{
		spec: spec,
		logf: filepath.Join(logDir, spec.Name+".out"),
		loge: filepath.Join(logDir, spec.Name+".err"),
	}
}

func (a *AFL) Name() string             { return a.spec.Name }
func (a *AFL) TestInputDir() string     { return a.spec.TestInputDir }
func (a *AFL) TraceDumpDir() string     { return a.spec.TraceDumpDir }
func (a *AFL) CrashesDir() string       { return a.spec.CrashesDir }
func (a *AFL) statsFile() string        { return filepath.Join(filepath.Dir(a.spec.CrashesDir), "fuzzer_stats") }

// Start launches the child process non-blocking, redirecting stdout/stderr
// to per-instance log files (spec.md §4.2). Each child runs in its own
// process group so Stop can signal the whole tree AFL++ forks.
func (a *AFL) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.spec.Cmd) == 0 {
		return fmt.Errorf("%w: fuzzer %q has an empty cmd", rosaerr.ErrConfig, a.spec.Name)
	}
	logFile, err := os.Create(a.logf)
	if err != nil {
		return fmt.Errorf("%w: failed to create %v: %v", rosaerr.ErrAdapter, a.logf, err)
	}
	errFile, err := os.Create(a.loge)
	if err != nil {
		logFile.Close()
		return fmt.Errorf("%w: failed to create %v: %v", rosaerr.ErrAdapter, a.loge, err)
	}

	stdout := newOutputFanOut(logFile, 64*1024)
	stderr := newOutputFanOut(errFile, 64*1024)

	cmd := exec.Command(a.spec.Cmd[0], a.spec.Cmd[1:]...)
	cmd.Stdout = io.MultiWriter(logFile, stdout)
	cmd.Stderr = io.MultiWriter(errFile, stderr)
	cmd.Env = os.Environ()
	for k, v := range a.spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		errFile.Close()
		return fmt.Errorf("%w: failed to start fuzzer %q: %v", rosaerr.ErrAdapter, a.spec.Name, err)
	}

	a.cmd, a.logFile, a.errFile, a.stdout, a.stderr = cmd, logFile, errFile, stdout, stderr
	log.Logf(0, "[%s] started pid %d: %v", a.spec.Name, cmd.Process.Pid, a.spec.Cmd)

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Logf(0, "[%s] exited: %v", a.spec.Name, err)
		}
	}()
	return nil
}

// Stop signals the child's entire process group, per spec.md §5's
// "sends termination signals to all fuzzer children".
func (a *AFL) Stop() error {
	a.mu.Lock()
	cmd := a.cmd
	logFile, errFile := a.logFile, a.errFile
	a.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		cmd.Process.Signal(syscall.SIGTERM)
	}
	if logFile != nil {
		logFile.Close()
	}
	if errFile != nil {
		errFile.Close()
	}
	return nil
}

// Status reports {Starting, Running, Stopped} by checking the presence and
// mtime freshness of AFL++'s fuzzer_stats file (spec.md §4.2). It also
// scans the process's recent stdout/stderr for the abort banner AFL++
// prints on its way down, so a crashed main instance is detected as soon
// as it writes that banner rather than waiting for fuzzer_stats to go
// stale (spec.md §7's "main instance dies" is fatal).
func (a *AFL) Status() (Status, error) {
	a.mu.Lock()
	stdout, stderr := a.stdout, a.stderr
	a.mu.Unlock()
	for _, fo := range []*outputFanOut{stderr, stdout} {
		if fo == nil {
			continue
		}
		if banner, found := crashBanner(fo.Recent()); found {
			log.Logf(0, "[%s] detected abort banner:\n%s", a.spec.Name, banner)
			return Stopped, nil
		}
	}

	fi, err := os.Stat(a.statsFile())
	if os.IsNotExist(err) {
		return Starting, nil
	}
	if err != nil {
		return Stopped, fmt.Errorf("%w: failed to stat %v: %v", rosaerr.ErrAdapter, a.statsFile(), err)
	}
	if time.Since(fi.ModTime()) > statusFreshness {
		return Stopped, nil
	}
	return Running, nil
}

// Pid reads AFL++'s own fuzzer_pid line from fuzzer_stats, best-effort
// (spec.md §4.2's "pid() -> integer: best-effort").
func (a *AFL) Pid() (int, error) {
	value, err := readStatsField(a.statsFile(), "fuzzer_pid")
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed fuzzer_pid %q", rosaerr.ErrAdapter, value)
	}
	return pid, nil
}

// FoundCrashes reports whether the crashes directory holds anything beyond
// AFL++'s own placeholder README.txt (spec.md §4.2's "non-empty crash
// directory").
func (a *AFL) FoundCrashes() (bool, error) {
	entries, err := os.ReadDir(a.spec.CrashesDir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to list %v: %v", rosaerr.ErrAdapter, a.spec.CrashesDir, err)
	}
	for _, e := range entries {
		if e.Name() != "README.txt" {
			return true, nil
		}
	}
	return false, nil
}

func readStatsField(path, key string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open %v: %v", rosaerr.ErrAdapter, path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == key {
			return strings.TrimSpace(parts[1]), nil
		}
	}
	return "", fmt.Errorf("%w: %v has no %v field", rosaerr.ErrAdapter, path, key)
}

// New constructs a Fuzzer for the given backend name (spec.md §6's
// "backend" key). AFL++ is the only variant the core ships.
func New(spec Spec, logDir string) (Fuzzer, error) {
	switch spec.Backend {
	case aflBackendName, "":
		return NewAFL(spec, logDir), nil
	default:
		return nil, fmt.Errorf("%w: unknown fuzzer backend %q", rosaerr.ErrConfig, spec.Backend)
	}
}

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package findings implements Finding Persistence (spec.md §4.8): the
// output_dir layout of spec.md §6, atomic TOML/text writes, the rolling
// stats.csv, and the hard-link-or-copy grouping of flagged pairs under
// backdoors/. Every write lands via pkg/osutil.WriteFileAtomic: write to a
// temp file, then rename into place.
package findings

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rosa-project/rosa/pkg/cluster"
	"github.com/rosa-project/rosa/pkg/hash"
	"github.com/rosa-project/rosa/pkg/oracle"
	"github.com/rosa-project/rosa/pkg/osutil"
	"github.com/rosa-project/rosa/pkg/trace"
)

const readmeContents = `This directory is a ROSA campaign's output.

  backdoors/<finding_fingerprint>_<cluster_uid>/<pair_uid>  flagged inputs, grouped
  clusters/<cluster_uid>                                    one seed UID per line
  config.toml                                               effective configuration
  decisions/<pair_uid>.toml                                 one decision per analyzed pair
  logs/<fuzzer_name>.{out,err}                               fuzzer child process output
  stats.csv                                                 campaign progress over time
  traces/<pair_uid>.trace                                   raw ingested pairs
`

const statsHeader = "seconds,total_traces,backdoors_unique,backdoors_total,edge_coverage,syscall_coverage,cause\n"

// Writer owns one campaign's output_dir and every write into it.
type Writer struct {
	root string
}

// NewWriter creates the full directory skeleton under root (spec.md §6)
// and the static README.txt. root must not already exist unless the
// caller is resuming; pkg/config.Validate enforces that before this is
// called.
func NewWriter(root string) (*Writer, error) {
	for _, sub := range []string{"backdoors", "clusters", "decisions", "logs", "traces"} {
		if err := osutil.MkdirAll(filepath.Join(root, sub)); err != nil {
			return nil, fmt.Errorf("failed to create %v: %w", sub, err)
		}
	}
	w := &Writer{root: root}
	if err := osutil.WriteFileAtomic(filepath.Join(root, "README.txt"), []byte(readmeContents), 0o644); err != nil {
		return nil, err
	}
	return w, nil
}

// LogDir is the directory adapters write their per-instance stdout/stderr
// logs into (spec.md §6's logs/<fuzzer_name>.{out,err}).
func (w *Writer) LogDir() string { return filepath.Join(w.root, "logs") }

// CopyConfig copies the configuration file the campaign was loaded from
// into config.toml (spec.md §6's "copy of the effective configuration").
func (w *Writer) CopyConfig(sourcePath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read %v: %w", sourcePath, err)
	}
	return osutil.WriteFileAtomic(filepath.Join(w.root, "config.toml"), data, 0o644)
}

// WriteTrace persists a pair's raw trace bytes under traces/<pair_uid>.trace
// (spec.md §6) and returns the path written, so the caller can later
// hard-link it under backdoors/.
func (w *Writer) WriteTrace(p trace.Pair) (string, error) {
	path := filepath.Join(w.root, "traces", p.UID+".trace")
	if osutil.IsExist(path) {
		return path, nil // dedup: a pair UID is only ever written once.
	}
	if err := osutil.WriteFileAtomic(path, serializeTrace(p.Trace), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// serializeTrace reconstructs the bit-exact .trace format of spec.md §6
// from a parsed Trace.
func serializeTrace(t trace.Trace) []byte {
	buf := make([]byte, 16, 16+len(t.Edges)+len(t.Syscalls))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(t.Edges)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(t.Syscalls)))
	buf = append(buf, t.Edges...)
	buf = append(buf, t.Syscalls...)
	return buf
}

// WriteCluster writes clusters/<uid>, one member pair UID per line in
// insertion order (spec.md §6, §8's "cluster UID matches the contents of
// clusters/<uid>" invariant).
func (w *Writer) WriteCluster(c *cluster.Cluster) error {
	var buf bytes.Buffer
	for _, uid := range c.MemberUIDs() {
		buf.WriteString(uid)
		buf.WriteByte('\n')
	}
	path := filepath.Join(w.root, "clusters", c.UID)
	return osutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// decisionDocument is the TOML shape of decisions/<pair_uid>.toml. Index
// slices are stored as plain integer lists; a seed decision carries none.
type decisionDocument struct {
	PairUID               string `toml:"pair_uid"`
	ClusterUID            string `toml:"cluster_uid"`
	IsBackdoor            bool   `toml:"is_backdoor"`
	Reason                string `toml:"reason"`
	EdgesOnlyInTrace      []int  `toml:"edges_only_in_trace,omitempty"`
	EdgesOnlyInCluster    []int  `toml:"edges_only_in_cluster,omitempty"`
	SyscallsOnlyInTrace   []int  `toml:"syscalls_only_in_trace,omitempty"`
	SyscallsOnlyInCluster []int  `toml:"syscalls_only_in_cluster,omitempty"`
}

// WriteDecision writes decisions/<pair_uid>.toml (spec.md §6). Every
// analyzed pair gets exactly one, per spec.md §8's first invariant.
func (w *Writer) WriteDecision(d oracle.Decision) error {
	doc := decisionDocument{
		PairUID:               d.PairUID,
		ClusterUID:            d.ClusterUID,
		IsBackdoor:            d.IsBackdoor,
		Reason:                string(d.Reason),
		EdgesOnlyInTrace:      d.EdgesOnlyInTrace,
		EdgesOnlyInCluster:    d.EdgesOnlyInCluster,
		SyscallsOnlyInTrace:   d.SyscallsOnlyInTrace,
		SyscallsOnlyInCluster: d.SyscallsOnlyInCluster,
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode decision %v: %w", d.PairUID, err)
	}
	path := filepath.Join(w.root, "decisions", d.PairUID+".toml")
	return osutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// Fingerprint is the finding fingerprint of spec.md §3: a hash of the
// cluster UID and the decision's discriminant index sets, the key used to
// group suspicious inputs under backdoors/.
func Fingerprint(d oracle.Decision) string {
	return hash.String(
		[]byte(d.ClusterUID),
		intsToBytes(d.EdgesOnlyInTrace),
		intsToBytes(d.EdgesOnlyInCluster),
		intsToBytes(d.SyscallsOnlyInTrace),
		intsToBytes(d.SyscallsOnlyInCluster),
	)
}

func intsToBytes(ints []int) []byte {
	parts := make([]string, len(ints))
	for i, v := range ints {
		parts[i] = strconv.Itoa(v)
	}
	return []byte(strings.Join(parts, ","))
}

// RecordBackdoor hard-links (falling back to copying) the pair's trace
// file into backdoors/<finding_fingerprint>_<cluster_uid>/<pair_uid>
// (spec.md §4.8, §6). tracePath is the path returned by a prior WriteTrace
// call for the same pair.
func (w *Writer) RecordBackdoor(d oracle.Decision, tracePath string) error {
	groupDir := filepath.Join(w.root, "backdoors", Fingerprint(d)+"_"+d.ClusterUID)
	if err := osutil.MkdirAll(groupDir); err != nil {
		return fmt.Errorf("failed to create %v: %w", groupDir, err)
	}
	dst := filepath.Join(groupDir, d.PairUID)
	if osutil.IsExist(dst) {
		return nil
	}
	return osutil.LinkOrCopy(tracePath, dst)
}

// StatsRow is one row of stats.csv (spec.md §4.8/§6). Cause is empty for
// every row except the one written at the collecting -> clustering
// transition, where it names which seed-end condition fired (spec.md §8
// scenario 6: "stats.csv row records the cause").
type StatsRow struct {
	Seconds         float64
	TotalTraces     int64
	BackdoorsUnique int64
	BackdoorsTotal  int64
	EdgeCoverage    float64
	SyscallCoverage float64
	Cause           string
}

// AppendStatsRow appends one row to stats.csv, writing the header first if
// the file does not yet exist. Unlike every other write in this package
// this is not a full atomic replace: spec.md §4.8 describes stats.csv as a
// rolling append-only log, and truncating it on every row would defeat
// that purpose.
func (w *Writer) AppendStatsRow(r StatsRow) error {
	path := filepath.Join(w.root, "stats.csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %v: %w", path, err)
	}
	defer f.Close()

	if fi, statErr := f.Stat(); statErr == nil && fi.Size() == 0 {
		if _, err := f.WriteString(statsHeader); err != nil {
			return fmt.Errorf("failed to write stats.csv header: %w", err)
		}
	}
	line := fmt.Sprintf("%.3f,%d,%d,%d,%.6f,%.6f,%s\n",
		r.Seconds, r.TotalTraces, r.BackdoorsUnique, r.BackdoorsTotal, r.EdgeCoverage, r.SyscallCoverage, r.Cause)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append stats.csv row: %w", err)
	}
	return nil
}

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rosa-project/rosa/pkg/hash"
)

// Pair is the immutable (input_bytes, trace, fuzzer_name) triple of
// spec.md §3, identified throughout the system by its UID.
type Pair struct {
	UID        string
	InputBytes []byte
	Trace      Trace
	FuzzerName string
	// InputName is the fuzzer-assigned file name the UID was derived
	// from; kept around so the Collector can recover arrival order from
	// the fuzzer-assigned id prefix (spec.md §5).
	InputName string
}

// UID returns the stable short hash identifying a (fuzzer, input file
// name) pair (spec.md §3). It does not depend on the file contents: two
// fuzzer runs that reuse the same input file name for different content
// are expected to collide by design (spec.md §3).
func UID(fuzzerName, inputName string) string {
	return hash.String([]byte(fuzzerName), []byte(inputName))
}

// Load reads the input file and its sibling .trace file and assembles a
// Pair (spec.md §4.1's "load(input_path, trace_path, fuzzer_name) -> Pair").
func Load(inputPath, tracePath, fuzzerName string) (Pair, error) {
	inputBytes, err := os.ReadFile(inputPath)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to read input %v: %w", inputPath, err)
	}
	traceBytes, err := os.ReadFile(tracePath)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to read trace %v: %w", tracePath, err)
	}
	tr, err := Parse(traceBytes)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to parse trace %v: %w", tracePath, err)
	}
	name := filepath.Base(inputPath)
	return Pair{
		UID:        UID(fuzzerName, name),
		InputBytes: inputBytes,
		Trace:      tr,
		FuzzerName: fuzzerName,
		InputName:  name,
	}, nil
}

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hash provides the stable short hashes used throughout ROSA as
// identifiers: pair UIDs (spec.md §3) and finding fingerprints (spec.md
// §3). It intentionally exposes a single function shape.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortLen is the number of hex characters kept from the full digest.
// 12 hex chars (48 bits) is ample to avoid collisions within one campaign's
// population of pairs and clusters, while keeping UIDs short enough to
// embed in filenames and directory names (spec.md §6).
const shortLen = 12

// String returns a short, stable hex digest of the concatenation of parts,
// each parts[i] separated by a NUL byte so that ("ab", "c") and ("a",
// "bc") never collide.
func String(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:shortLen]
}

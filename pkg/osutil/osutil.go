// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil collects the small filesystem helpers shared by the
// collector, the campaign controller, and finding persistence: existence
// checks, atomic writes, and hard-link-or-copy.
package osutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// IsExist reports whether path exists, regardless of type.
func IsExist(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// MkdirAll creates dir and any missing parents with 0o755 permissions.
func MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// WriteFileAtomic writes data to path by first writing to a sibling temp
// file and renaming it into place, so that no reader ever observes a
// partially written file. This backs every write under output_dir/ per
// spec.md §4.8 and §7 ("atomic rename only on full write").
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file %v: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %v to %v: %w", tmp, path, err)
	}
	return nil
}

// LinkOrCopy hard-links src to dst, falling back to a full copy whenever
// os.Link fails (for example with EXDEV when the two paths don't share a
// filesystem), per the "hard-linked/copied" wording of spec.md §4.8.
func LinkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %v for copy: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %v for copy: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %v to %v: %w", src, dst, err)
	}
	return out.Close()
}

// FileSize returns the on-disk size of path, or -1 if it does not exist.
func FileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return fi.Size()
}

// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.
package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicNoPartialReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decision.toml")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files")
}

func TestIsExist(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsExist(filepath.Join(dir, "missing")))
	path := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, IsExist(path))
}

func TestLinkOrCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, LinkOrCopy(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, int64(-1), FileSize(filepath.Join(dir, "missing")))
	path := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o644))
	assert.Equal(t, int64(5), FileSize(path))
}

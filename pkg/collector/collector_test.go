// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package collector

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosa-project/rosa/pkg/adapter"
)

// fakeAdapter is a minimal adapter.Fuzzer stand-in backed by plain
// directories, so the Collector can be exercised without spawning any
// real fuzzer process.
type fakeAdapter struct {
	name     string
	queueDir string
	traceDir string
	crashDir string
}

var _ adapter.Fuzzer = (*fakeAdapter)(nil)

func newFakeAdapter(t *testing.T, name string) *fakeAdapter {
	t.Helper()
	root := t.TempDir()
	a := &fakeAdapter{
		name:     name,
		queueDir: filepath.Join(root, "queue"),
		traceDir: filepath.Join(root, "traces"),
		crashDir: filepath.Join(root, "crashes"),
	}
	require.NoError(t, os.MkdirAll(a.queueDir, 0o755))
	require.NoError(t, os.MkdirAll(a.traceDir, 0o755))
	require.NoError(t, os.MkdirAll(a.crashDir, 0o755))
	return a
}

func (a *fakeAdapter) Name() string         { return a.name }
func (a *fakeAdapter) TestInputDir() string { return a.queueDir }
func (a *fakeAdapter) TraceDumpDir() string { return a.traceDir }
func (a *fakeAdapter) CrashesDir() string   { return a.crashDir }
func (a *fakeAdapter) Start() error         { return nil }
func (a *fakeAdapter) Stop() error          { return nil }

func encodeTrace(edges, syscalls []byte) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(edges)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(syscalls)))
	buf = append(buf, edges...)
	buf = append(buf, syscalls...)
	return buf
}

func writePair(t *testing.T, a *fakeAdapter, name string, edges, syscalls []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(a.queueDir, name), []byte("input-"+name), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(a.traceDir, name+".trace"), encodeTrace(edges, syscalls), 0o644))
}

func writeIncompleteTrace(t *testing.T, a *fakeAdapter, name string, declaredEdges int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(a.queueDir, name), []byte("input-"+name), 0o644))
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(declaredEdges))
	require.NoError(t, os.WriteFile(filepath.Join(a.traceDir, name+".trace"), buf, 0o644))
}

func TestCollectorEmitsNewCompletePairs(t *testing.T) {
	a := newFakeAdapter(t, "main")
	writePair(t, a, "id:000000", []byte{1, 0, 1}, []byte{0, 1})
	writePair(t, a, "id:000001", []byte{0, 0, 1}, []byte{1, 1})

	c := New([]adapter.Fuzzer{a})
	pairs, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "id:000000", pairs[0].InputName)
	assert.Equal(t, "id:000001", pairs[1].InputName)
}

func TestCollectorDeduplicatesByFingerprint(t *testing.T) {
	a := newFakeAdapter(t, "main")
	writePair(t, a, "id:000000", []byte{1, 0, 1}, []byte{0, 1})
	writePair(t, a, "id:000001", []byte{1, 0, 5}, []byte{9, 1}) // same existential projection

	c := New([]adapter.Fuzzer{a})
	pairs, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "id:000000", pairs[0].InputName)
}

func TestCollectorDoesNotReemitAcrossPolls(t *testing.T) {
	a := newFakeAdapter(t, "main")
	writePair(t, a, "id:000000", []byte{1, 0, 1}, []byte{0, 1})

	c := New([]adapter.Fuzzer{a})
	first, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestCollectorWaitsForMissingTraceFile(t *testing.T) {
	a := newFakeAdapter(t, "main")
	require.NoError(t, os.WriteFile(filepath.Join(a.queueDir, "id:000000"), []byte("input"), 0o644))

	c := New([]adapter.Fuzzer{a})
	pairs, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pairs)

	writePair(t, a, "id:000000", []byte{1}, []byte{1})
	pairs, err = c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
}

func TestCollectorRetriesIncompleteTraceThenGivesUp(t *testing.T) {
	a := newFakeAdapter(t, "main")
	writeIncompleteTrace(t, a, "id:000000", 10_000_000) // declares far more than is on disk

	c := New([]adapter.Fuzzer{a})
	c.maxIncompleteScans = 3

	for i := 0; i < 3; i++ {
		pairs, err := c.Poll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, pairs)
	}

	c.mu.Lock()
	processed := c.processedFiles[fileKey{"main", "id:000000"}]
	c.mu.Unlock()
	assert.True(t, processed, "collector should give up after maxIncompleteScans")
}

func TestCollectorMergesAdaptersInConfiguredOrder(t *testing.T) {
	main := newFakeAdapter(t, "main")
	secondary := newFakeAdapter(t, "secondary")
	writePair(t, main, "id:000000", []byte{1, 0}, []byte{0})
	writePair(t, secondary, "id:000000", []byte{0, 1}, []byte{1})

	c := New([]adapter.Fuzzer{main, secondary})
	pairs, err := c.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "main", pairs[0].FuzzerName)
	assert.Equal(t, "secondary", pairs[1].FuzzerName)
}

package opqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileCacheRoundTrip(t *testing.T) {
	cache, err := NewFileCache(filepath.Join(t.TempDir(), "pending"))
	require.NoError(t, err)

	_, ok, err := cache.Get("pendingops:sess-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set("pendingops:sess-1", []byte(`{"pending":[]}`)))
	data, ok, err := cache.Get("pendingops:sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"pending":[]}`, string(data))

	require.NoError(t, cache.Set("pendingops:sess-1", []byte(`{"pending":[{"id":"op-1"}]}`)))
	data, _, err = cache.Get("pendingops:sess-1")
	require.NoError(t, err)
	require.Contains(t, string(data), "op-1")

	require.NoError(t, cache.Remove("pendingops:sess-1"))
	_, ok, err = cache.Get("pendingops:sess-1")
	require.NoError(t, err)
	require.False(t, ok)

	// Removing a missing key is fine.
	require.NoError(t, cache.Remove("pendingops:sess-1"))
}

func TestFileCacheLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pending")
	cache, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Set("key", []byte("value")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestQueueRecoversThroughFileCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pending")
	cache, err := NewFileCache(dir)
	require.NoError(t, err)

	// First bind goes down with undelivered work.
	broken := newFakeSender()
	broken.failsLeft["op-1"] = -1
	cfg := fastConfig("sess-fc", broken, cache)
	cfg.MaxRetries = 10
	q, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(testOp("op-1")))
	require.Eventually(t, func() bool { return broken.attemptCount("op-1") >= 1 }, 3*time.Second, time.Millisecond)
	require.NoError(t, q.Close())

	// Second bind, fresh process as far as the queue is concerned.
	healthy := newFakeSender()
	q2, err := New(fastConfig("sess-fc", healthy, cache))
	require.NoError(t, err)
	defer q2.Close()

	require.Eventually(t, drained(q2), 3*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, healthy.successCount("op-1"))
}

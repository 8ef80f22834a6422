package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesWatchedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yml")
	other := filepath.Join(dir, "trackflow.db")
	require.NoError(t, os.WriteFile(cfg, []byte("version: 2\n"), 0o600))

	var calls atomic.Int32
	w, err := New([]string{cfg}, func() { calls.Add(1) }, WithDelay(100*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, nil)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load(), "unwatched files are ignored")

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(cfg, []byte("version: 2\n"), 0o600))
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load(), "a burst of writes triggers one callback")
}

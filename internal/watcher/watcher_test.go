package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("headEnds: []\n"), 0o644))

	var calls atomic.Int32
	w := New(path, func(context.Context) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop()).WithDebounce(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("headEnds: []\n"), 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope", "seed.yaml"), func(context.Context) error { return nil }, zerolog.Nop())
	assert.Error(t, w.Watch(context.Background()))
}

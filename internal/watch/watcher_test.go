package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_DebouncesBurst(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	var calls atomic.Int32
	w, err := New(dir, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 100*time.Millisecond, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "A1.png"), []byte{byte(i)}, 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, w.Runs())
}

func TestWatcher_FollowsNewFolders(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w, err := New(dir, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 50*time.Millisecond, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	sub := filepath.Join(dir, "photos")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "A2.png"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w, err := New(dir, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 50*time.Millisecond, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".~lock.students.xlsx#"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestWatcher_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(t.TempDir(), func(ctx context.Context) error { return nil }, 0, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	w.Stop()
}

func TestWatcher_MissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), func(ctx context.Context) error { return nil }, 0, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}

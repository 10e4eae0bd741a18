package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher runs w in the background and waits until it is watching.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w.ready = make(chan struct{})
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	select {
	case <-w.ready:
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}
}

func TestWatcherCallsOnChange(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, &Watcher{
		Dirs:     []string{dir},
		Debounce: 20 * time.Millisecond,
		OnChange: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.go"), []byte("package p\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, &Watcher{
		Dirs:     []string{dir},
		Debounce: 300 * time.Millisecond,
		OnChange: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "state.go")
		require.NoError(t, os.WriteFile(name, []byte("package p\n// "+string(rune('a'+i))+"\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a burst regenerates once")
}

func TestWatcherIgnoresOutputAndUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "p_cell.go")
	var calls atomic.Int32
	startWatcher(t, &Watcher{
		Dirs:     []string{dir},
		Debounce: 20 * time.Millisecond,
		Ignore:   ignoreOutput(output),
		OnChange: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	require.NoError(t, os.WriteFile(output, []byte("package p\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p_test.go"), []byte("package p\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte("record: {}\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherRelevant(t *testing.T) {
	w := &Watcher{Ignore: ignoreOutput("/src/p_cell.go")}

	tests := []struct {
		name string
		want bool
	}{
		{"/src/state.go", true},
		{"/src/schemas/a.cue", true},
		{"/src/.cellgen.yaml", true},
		{"/src/state_test.go", false},
		{"/src/p_cell.go", false},
		{"/src/README.md", false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.name), func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(fsnotify.Event{Name: tt.name, Op: fsnotify.Write}))
		})
	}

	assert.False(t, w.relevant(fsnotify.Event{Name: "/src/state.go", Op: fsnotify.Chmod}))
}

func TestWatcherMissingDir(t *testing.T) {
	w := &Watcher{
		Dirs:     []string{filepath.Join(t.TempDir(), "missing")},
		Debounce: time.Millisecond,
		OnChange: func(context.Context) error { return nil },
	}
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch directory")
}

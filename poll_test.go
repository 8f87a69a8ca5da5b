package pathwatch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollOptions() Options {
	opts := Options{
		ForcePolling:    true,
		PollInterval:    50 * time.Millisecond,
		DisableDebounce: true,
	}
	return opts
}

// waitEvent blocks until an event arrives or the timeout elapses.
func waitEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return e
	case <-time.After(timeout):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

// assertQuiet asserts that no event arrives within d.
func assertQuiet(t *testing.T, ch <-chan Event, d time.Duration) {
	t.Helper()
	select {
	case e, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %v", e)
		}
	case <-time.After(d):
	}
}

func TestPollBackend_AddModifyRemoveCycle(t *testing.T) {
	w, err := New(testLogger(), pollOptions())
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup
	require.True(t, w.UsesPolling())

	tmpDir := t.TempDir()
	events, _, err := w.Watch(tmpDir, nil)
	require.NoError(t, err)

	testFile := filepath.Join(tmpDir, "a.txt")

	// Create: exactly one Added.
	require.NoError(t, os.WriteFile(testFile, []byte("v1"), 0o644))
	e := waitEvent(t, events, 2*time.Second)
	assert.Equal(t, EventAdded, e.Type)
	assert.Equal(t, testFile, e.Path)
	assert.False(t, e.IsDir)

	// Modify: the size change alone makes the stamp differ.
	require.NoError(t, os.WriteFile(testFile, []byte("version two"), 0o644))
	e = waitEvent(t, events, 2*time.Second)
	assert.Equal(t, EventModified, e.Type)
	assert.Equal(t, testFile, e.Path)

	// Remove: exactly one Removed, then silence.
	require.NoError(t, os.Remove(testFile))
	e = waitEvent(t, events, 2*time.Second)
	assert.Equal(t, EventRemoved, e.Type)
	assert.Equal(t, testFile, e.Path)

	assertQuiet(t, events, 200*time.Millisecond)
}

func TestPollBackend_ShallowIgnoresSubtree(t *testing.T) {
	w, err := New(testLogger(), pollOptions())
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	events, _, err := w.Watch(tmpDir, nil)
	require.NoError(t, err)

	// A change below a direct child must not be reported.
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "deep.txt"), []byte("x"), 0o644))
	assertQuiet(t, events, 400*time.Millisecond)

	// A direct child still is.
	topFile := filepath.Join(tmpDir, "top.txt")
	require.NoError(t, os.WriteFile(topFile, []byte("x"), 0o644))
	e := waitEvent(t, events, 2*time.Second)
	assert.Equal(t, EventAdded, e.Type)
	assert.Equal(t, topFile, e.Path)
}

func TestPollBackend_RecursiveSeesSubtree(t *testing.T) {
	w, err := New(testLogger(), pollOptions())
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	events, _, err := w.WatchRecursive(tmpDir, nil)
	require.NoError(t, err)

	deepFile := filepath.Join(subDir, "deep.txt")
	require.NoError(t, os.WriteFile(deepFile, []byte("x"), 0o644))

	e := waitEvent(t, events, 2*time.Second)
	assert.Equal(t, EventAdded, e.Type)
	assert.Equal(t, deepFile, e.Path)
}

func TestPollBackend_PredicateFiltersDelivery(t *testing.T) {
	w, err := New(testLogger(), pollOptions())
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	onlyLogs := func(e Event) bool {
		return filepath.Ext(e.Path) == ".log"
	}

	events, _, err := w.Watch(tmpDir, onlyLogs)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "data.bin"), []byte("x"), 0o644))
	logFile := filepath.Join(tmpDir, "app.log")
	require.NoError(t, os.WriteFile(logFile, []byte("x"), 0o644))

	e := waitEvent(t, events, 2*time.Second)
	assert.Equal(t, logFile, e.Path)
	assertQuiet(t, events, 200*time.Millisecond)
}

func TestPollBackend_HandleStopIsolated(t *testing.T) {
	w, err := New(testLogger(), pollOptions())
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	dirA := t.TempDir()
	dirB := t.TempDir()

	eventsA, handleA, err := w.Watch(dirA, nil)
	require.NoError(t, err)
	eventsB, _, err := w.Watch(dirB, nil)
	require.NoError(t, err)

	// Stopping one watch closes its channel and leaves the sibling alive.
	handleA.Stop()

	select {
	case _, ok := <-eventsA:
		assert.False(t, ok, "stopped watch should close its channel")
	case <-time.After(2 * time.Second):
		t.Fatal("stopped watch never closed its channel")
	}

	fileB := filepath.Join(dirB, "b.txt")
	require.NoError(t, os.WriteFile(fileB, []byte("x"), 0o644))
	e := waitEvent(t, eventsB, 2*time.Second)
	assert.Equal(t, fileB, e.Path)
}

func TestPollBackend_WatchRacingCloseLeavesNoOrphans(t *testing.T) {
	// A watch racing Close must either fail with ErrWatcherStopped or
	// register fully, in which case Close still cancels it and its channel
	// closes.
	b := newPollBackend(testLogger(), pollOptions())
	tmpDir := t.TempDir()

	const n = 8
	sinks := make(chan chan Event, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink := make(chan Event, eventBufferSize)
			_, err := b.Watch(tmpDir, nil, sink)
			if err != nil {
				assert.ErrorIs(t, err, ErrWatcherStopped)
				return
			}
			sinks <- sink
		}()
	}

	require.NoError(t, b.Close())
	wg.Wait()
	close(sinks)

	for sink := range sinks {
		select {
		case _, ok := <-sink:
			assert.False(t, ok, "registered watch left open after close")
		case <-time.After(2 * time.Second):
			t.Fatal("registered watch never closed its channel")
		}
	}
}

func TestPollBackend_WatchMissingDirFails(t *testing.T) {
	w, err := New(testLogger(), pollOptions())
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	_, _, err = w.Watch(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	assert.Error(t, err)

	// The failed call must not poison the backend.
	okDir := t.TempDir()
	_, _, err = w.Watch(okDir, nil)
	assert.NoError(t, err)
}

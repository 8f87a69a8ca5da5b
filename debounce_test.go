package pathwatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_SuppressesWithinWindow(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDebouncer(100 * time.Millisecond)

	first := Event{Type: EventModified, Path: "/a/f.txt", Time: t0}
	second := Event{Type: EventModified, Path: "/a/f.txt", Time: t0.Add(50 * time.Millisecond)}

	assert.True(t, d.admit(first))
	assert.False(t, d.admit(second))
}

func TestDebouncer_EmitsAtOrPastWindow(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDebouncer(100 * time.Millisecond)

	assert.True(t, d.admit(Event{Path: "/a/f.txt", Time: t0}))
	assert.True(t, d.admit(Event{Path: "/a/f.txt", Time: t0.Add(100 * time.Millisecond)}))
}

func TestDebouncer_DifferentPathNotSuppressed(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDebouncer(100 * time.Millisecond)

	assert.True(t, d.admit(Event{Path: "/a/f.txt", Time: t0}))
	assert.True(t, d.admit(Event{Path: "/a/g.txt", Time: t0.Add(10 * time.Millisecond)}))
}

func TestDebouncer_EmittedEventBecomesBaseline(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDebouncer(100 * time.Millisecond)

	assert.True(t, d.admit(Event{Path: "/a/f.txt", Time: t0}))
	// Suppressed events must not move the baseline.
	assert.False(t, d.admit(Event{Path: "/a/f.txt", Time: t0.Add(60 * time.Millisecond)}))
	// 120ms after the first (emitted) event, not 60ms after the suppressed one.
	assert.True(t, d.admit(Event{Path: "/a/f.txt", Time: t0.Add(120 * time.Millisecond)}))
	// And the baseline rebases again on each emission.
	assert.False(t, d.admit(Event{Path: "/a/f.txt", Time: t0.Add(180 * time.Millisecond)}))
}

func TestDebouncer_DisabledAdmitsEverything(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDebouncer(0)

	for i := 0; i < 5; i++ {
		assert.True(t, d.admit(Event{Path: "/a/f.txt", Time: t0.Add(time.Duration(i) * time.Millisecond)}))
	}
}

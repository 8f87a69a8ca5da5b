package pathwatch

import "time"

// debouncer suppresses duplicate event reports within a time window.
// Native mechanisms coalesce writes and can report the same logical change
// several times in quick succession; the debouncer collapses those into
// one emission.
//
// A debouncer belongs to exactly one watch and is only touched by that
// watch's single event-producing goroutine, so it needs no lock.
type debouncer struct {
	window time.Duration
	last   Event
	primed bool
}

// newDebouncer creates a debouncer. A window of zero (or less) disables
// suppression entirely.
func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// admit reports whether e should be emitted. A candidate is suppressed iff
// debouncing is enabled, it refers to the same path as the last emitted
// event, and less than the window has elapsed since that emission. An
// admitted event becomes the new baseline.
func (d *debouncer) admit(e Event) bool {
	if d.window <= 0 {
		return true
	}
	if d.primed && e.Path == d.last.Path && e.Time.Sub(d.last.Time) < d.window {
		return false
	}
	d.last = e
	d.primed = true
	return true
}

package pathwatch

import (
	"errors"
	"sync"
)

// ErrBackendUnavailable is returned by a backend constructor when the
// mechanism it relies on does not exist or does not work on the current
// host. It is an expected outcome, not a failure: New falls back to the
// polling backend and never surfaces it to the caller.
var ErrBackendUnavailable = errors.New("watch backend unavailable on this platform")

// ErrWatcherStopped is returned by watch operations invoked after the
// watcher (or backend) has been stopped.
var ErrWatcherStopped = errors.New("watcher already stopped")

// Backend is the capability contract every watch backend satisfies, the
// polling engine included. A backend owns the resources of all watches
// registered through it and tears every one of them down on Close.
//
// Watch observes only the direct children of path: a change inside a
// subdirectory must not be reported. WatchRecursive observes the whole
// subtree. Both deliver events through sink, filtered by pred, and close
// sink once the watch stops. A failure to acquire resources for one watch
// leaves other watches on the same backend untouched.
type Backend interface {
	Watch(path string, pred Predicate, sink chan<- Event) (*Handle, error)
	WatchRecursive(path string, pred Predicate, sink chan<- Event) (*Handle, error)

	// Close stops every still-running watch and releases backend
	// resources. Idempotent. Close only cancels further event delivery;
	// it does not wait for in-flight actions dispatched downstream.
	Close() error

	// UsesPolling reports whether this backend derives events from
	// periodic scans. The watcher uses it to decide whether OS-specific
	// debounce defaults apply.
	UsesPolling() bool
}

// Handle identifies one registered watch and allows stopping it without
// affecting the rest of the backend's watches.
type Handle struct {
	id   string
	stop func()
	once sync.Once
}

// ID returns the watch identifier.
func (h *Handle) ID() string {
	return h.id
}

// Stop cancels this watch. Safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(h.stop)
}

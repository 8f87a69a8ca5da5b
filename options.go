package pathwatch

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// eventBufferSize is the capacity of the channels handed to watch callers.
const eventBufferSize = 100

// Options configures watcher behavior. Options are immutable once a watch
// has started; changing them later has no effect on running watches.
type Options struct {
	// IgnorePatterns are basename globs that suppress events and skip
	// directories during scans.
	IgnorePatterns []string

	// DebounceWindow is the interval below which a repeated event for the
	// same path is suppressed. Zero selects a platform default for native
	// backends and disables debouncing for the polling backend.
	DebounceWindow time.Duration

	// PollInterval is the sleep between polling scans (default 1s).
	PollInterval time.Duration

	// DisableDebounce turns off debouncing regardless of DebounceWindow.
	DisableDebounce bool

	// ForcePolling skips the native backend probe entirely.
	ForcePolling bool

	// IgnoreHidden suppresses events for dot-files and dot-directories.
	IgnoreHidden bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = 1 * time.Second
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"Thumbs.db",
		}
		// Also default to ignoring hidden files when no custom config
		// provided. Explicit patterns (even an empty slice) leave the
		// caller's IgnoreHidden choice alone.
		o.IgnoreHidden = true
	}
}

// withDebounce returns a copy of the options with the debounce window
// resolved to an effective value.
func (o Options) withDebounce(window time.Duration) Options {
	o.DebounceWindow = window
	return o
}

// effectiveDebounce resolves the debounce window for the selected backend.
// Polling already spaces events by the poll interval, so it gets no default
// window; native backends get a platform default to counter event
// coalescing at the OS level.
func (o Options) effectiveDebounce(usesPolling bool) time.Duration {
	if o.DisableDebounce {
		return 0
	}
	if o.DebounceWindow > 0 {
		return o.DebounceWindow
	}
	if usesPolling {
		return 0
	}
	return osDebounceDefault()
}

// osDebounceDefault returns the default debounce window for native backends
// on the current platform.
func osDebounceDefault() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		// FSEvents coalesces aggressively and reports late.
		return 100 * time.Millisecond
	case "windows":
		return 50 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// shouldIgnore checks if a path matches ignore patterns.
func (o *Options) shouldIgnore(path string) bool {
	// Check if hidden and we're ignoring hidden files.
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	// Check against ignore patterns.
	base := filepath.Base(filepath.Clean(path))
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}

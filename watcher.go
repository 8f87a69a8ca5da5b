package pathwatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Watcher is the single entry point for registering watches. It owns
// exactly one backend: the native one when the host supports it, the
// polling engine otherwise. Callers never see which is active except
// through UsesPolling.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	backend Backend
	closed  atomic.Bool
}

// New creates a watcher. It probes for a native backend first and falls
// back to polling when the probe fails; backend unavailability is an
// expected outcome and never surfaces as an error here.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	var backend Backend
	if !opts.ForcePolling {
		native, err := newNativeBackend(logger, opts.withDebounce(opts.effectiveDebounce(false)))
		if err == nil {
			backend = native
			logger.Info("using native watch backend")
		} else if errors.Is(err, ErrBackendUnavailable) {
			logger.Info("native watch backend unavailable, falling back to polling", "reason", err)
		} else {
			logger.Warn("native watch backend failed, falling back to polling", "error", err)
		}
	}
	if backend == nil {
		backend = newPollBackend(logger, opts.withDebounce(opts.effectiveDebounce(true)))
		logger.Info("using polling watch backend", "interval", opts.PollInterval)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		backend: backend,
	}, nil
}

// Watch monitors the direct children of path and returns a channel of
// events accepted by pred. Changes inside subdirectories are not reported.
func (w *Watcher) Watch(path string, pred Predicate) (<-chan Event, *Handle, error) {
	if w.closed.Load() {
		return nil, nil, ErrWatcherStopped
	}
	sink := make(chan Event, eventBufferSize)
	h, err := w.backend.Watch(path, pred, sink)
	if err != nil {
		return nil, nil, err
	}
	return sink, h, nil
}

// WatchRecursive monitors the whole subtree rooted at path and returns a
// channel of events accepted by pred.
func (w *Watcher) WatchRecursive(path string, pred Predicate) (<-chan Event, *Handle, error) {
	if w.closed.Load() {
		return nil, nil, ErrWatcherStopped
	}
	sink := make(chan Event, eventBufferSize)
	h, err := w.backend.WatchRecursive(path, pred, sink)
	if err != nil {
		return nil, nil, err
	}
	return sink, h, nil
}

// OnChange monitors the direct children of path and invokes action once
// per accepted event. Actions for the same path run strictly in arrival
// order and never overlap; actions for distinct paths run concurrently.
func (w *Watcher) OnChange(path string, pred Predicate, action Action) (*Handle, error) {
	return w.onChange(path, pred, action, false)
}

// OnChangeRecursive is OnChange over the whole subtree rooted at path.
func (w *Watcher) OnChangeRecursive(path string, pred Predicate, action Action) (*Handle, error) {
	return w.onChange(path, pred, action, true)
}

func (w *Watcher) onChange(path string, pred Predicate, action Action, recursive bool) (*Handle, error) {
	if w.closed.Load() {
		return nil, ErrWatcherStopped
	}

	sink := make(chan Event, eventBufferSize)
	var h *Handle
	var err error
	if recursive {
		h, err = w.backend.WatchRecursive(path, pred, sink)
	} else {
		h, err = w.backend.Watch(path, pred, sink)
	}
	if err != nil {
		return nil, err
	}

	d := newDispatcher(w.logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.run(ctx, sink, action)
	}()

	// Wrap the backend handle so Stop also winds the coordinator down. The
	// cancellation comes first so a stuck action cannot pin the coordinator
	// behind a queued same-path event. In-flight actions are not awaited;
	// they only hold their own path's lock.
	inner := h
	return &Handle{
		id: inner.id,
		stop: func() {
			cancel()
			inner.Stop()
			<-done
		},
	}, nil
}

// UsesPolling reports whether the active backend derives events from
// periodic scans rather than OS notifications.
func (w *Watcher) UsesPolling() bool {
	return w.backend.UsesPolling()
}

// Stop shuts down the active backend, cancelling event production for
// every outstanding watch. Watch calls made after Stop fail fast with
// ErrWatcherStopped. Safe to call more than once.
func (w *Watcher) Stop() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	return w.backend.Close()
}

// With runs fn with a freshly created watcher and guarantees Stop on every
// exit path, normal return or panic.
func With(logger *slog.Logger, opts Options, fn func(*Watcher) error) error {
	w, err := New(logger, opts)
	if err != nil {
		return err
	}
	defer w.Stop() //nolint:errcheck // Best-effort cleanup on panic paths
	return fn(w)
}

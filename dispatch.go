package pathwatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

// Action is a caller-supplied callback invoked once per delivered event.
// A returned error is logged, not retried; the action runs at most once
// per event.
type Action func(Event) error

// dispatcher turns a raw event channel into one action invocation per
// event with a per-path mutual-exclusion guarantee: for a fixed path, at
// most one action runs at any instant and actions run in event arrival
// order. Actions for distinct paths run concurrently and are never
// serialized against each other.
type dispatcher struct {
	logger *slog.Logger

	// locks grows monotonically: once a path's lock exists it is never
	// removed, so the serialization guarantee holds for the life of the
	// watch and repeat lookups need no extra synchronization.
	locks *xsync.MapOf[string, *semaphore.Weighted]

	wg sync.WaitGroup
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		locks:  xsync.NewMapOf[string, *semaphore.Weighted](),
	}
}

// run is the coordinator loop. It blocks on the channel, acquires the
// event path's lock, then hands the action to a worker and immediately
// moves on to the next event: the coordinator never waits for an action
// to finish, only for the same path's previous action to release.
// Returns when the channel closes or ctx is cancelled.
func (d *dispatcher) run(ctx context.Context, events <-chan Event, action Action) {
	for e := range events {
		lock, _ := d.locks.LoadOrStore(e.Path, semaphore.NewWeighted(1))

		// Blocks until the previous action for this path releases. The
		// context lets Stop pull the coordinator out from behind a stuck
		// action; remaining buffered events are dropped, in-flight actions
		// keep running to completion.
		if err := lock.Acquire(ctx, 1); err != nil {
			return
		}

		d.wg.Add(1)
		go func(e Event, lock *semaphore.Weighted) {
			defer d.wg.Done()
			defer lock.Release(1)
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("action panicked", "path", e.Path, "panic", r)
				}
			}()

			if err := action(e); err != nil {
				d.logger.Warn("action failed", "path", e.Path, "type", e.Type, "error", err)
			}
		}(e, lock)
	}
}

// drain waits for in-flight actions to finish. Stopping a watch does not
// drain; callers needing a full drain do so through the handle returned
// by the callback entry points.
func (d *dispatcher) drain() {
	d.wg.Wait()
}

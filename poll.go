package pathwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/pathwatch/pathwatch/internal/pathwalk"
)

// pollBackend implements Backend by periodically re-scanning each watched
// tree and diffing modification snapshots. It works everywhere, at the
// cost of latency bounded by the poll interval: changes that occur and
// revert between two scans are invisible by construction.
type pollBackend struct {
	logger  *slog.Logger
	opts    Options
	watches *xsync.MapOf[string, *pollWatch]
	wg      sync.WaitGroup
	closed  chan struct{}
	once    sync.Once

	// mu serializes watch registration against Close: a racing watch either
	// registers fully (and is cancelled by Close) or fails fast.
	mu sync.Mutex
}

// pollWatch is one registered polling watch.
type pollWatch struct {
	root      string // canonical, trailing separator
	recursive bool
	pred      Predicate
	sink      chan<- Event
	cancel    context.CancelFunc
}

// newPollBackend creates the polling backend. Unlike native backends it is
// usable on every host, so construction cannot fail.
func newPollBackend(logger *slog.Logger, opts Options) *pollBackend {
	return &pollBackend{
		logger:  logger,
		opts:    opts,
		watches: xsync.NewMapOf[string, *pollWatch](),
		closed:  make(chan struct{}),
	}
}

// Watch registers a shallow watch on the direct children of path.
func (b *pollBackend) Watch(path string, pred Predicate, sink chan<- Event) (*Handle, error) {
	return b.watch(path, pred, sink, false)
}

// WatchRecursive registers a watch on the whole subtree rooted at path.
func (b *pollBackend) WatchRecursive(path string, pred Predicate, sink chan<- Event) (*Handle, error) {
	return b.watch(path, pred, sink, true)
}

func (b *pollBackend) watch(path string, pred Predicate, sink chan<- Event, recursive bool) (*Handle, error) {
	select {
	case <-b.closed:
		return nil, ErrWatcherStopped
	default:
	}

	root, err := pathwalk.CanonicalDir(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &pollWatch{
		root:      root,
		recursive: recursive,
		pred:      pred,
		sink:      sink,
		cancel:    cancel,
	}

	// Baseline before the caller regains control, so anything that changes
	// after registration shows up in the first diff.
	baseline, err := takeSnapshot(root, recursive, &b.opts)
	if err != nil {
		b.logger.Warn("initial scan failed", "path", root, "error", err)
		baseline = snapshot{}
	}

	b.mu.Lock()
	select {
	case <-b.closed:
		b.mu.Unlock()
		cancel()
		return nil, ErrWatcherStopped
	default:
	}

	id := uuid.NewString()
	b.watches.Store(id, w)

	b.wg.Add(1)
	go b.run(ctx, w, baseline)
	b.mu.Unlock()

	b.logger.Debug("polling watch started", "path", root, "recursive", recursive, "interval", b.opts.PollInterval)

	return &Handle{
		id: id,
		stop: func() {
			cancel()
			b.watches.Delete(id)
		},
	}, nil
}

// run is the polling loop for one watch. Each cycle sleeps the poll
// interval, takes a fresh snapshot, diffs it against the previous one and
// emits Added, then Modified, then Removed events. The loop only exits
// when the watch is cancelled; a failed scan is logged and skipped so a
// single bad cycle never kills an otherwise-healthy watch.
func (b *pollBackend) run(ctx context.Context, w *pollWatch, prev snapshot) {
	defer b.wg.Done()
	defer close(w.sink)

	deb := newDebouncer(b.opts.DebounceWindow)
	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		// Cancellation is checked at the top of every cycle.
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := takeSnapshot(w.root, w.recursive, &b.opts)
		if err != nil {
			b.logger.Warn("scan failed, skipping cycle", "path", w.root, "error", err)
			continue
		}

		created, modified, deleted := diffSnapshots(prev, next)
		now := time.Now()

		for _, p := range created {
			stamp := next[p]
			b.emit(ctx, w, deb, Event{
				Type:    EventAdded,
				Path:    p,
				Size:    stamp.size,
				ModTime: stamp.modTime,
				Time:    now,
			})
		}
		for _, p := range modified {
			stamp := next[p]
			b.emit(ctx, w, deb, Event{
				Type:    EventModified,
				Path:    p,
				Size:    stamp.size,
				ModTime: stamp.modTime,
				Time:    now,
			})
		}
		for _, p := range deleted {
			b.emit(ctx, w, deb, Event{
				Type: EventRemoved,
				Path: p,
				Time: now,
			})
		}

		prev = next
	}
}

// emit pushes an event through the watch's predicate and debouncer.
func (b *pollBackend) emit(ctx context.Context, w *pollWatch, deb *debouncer, e Event) {
	if !w.pred.matches(e) {
		return
	}
	if !deb.admit(e) {
		return
	}
	select {
	case w.sink <- e:
	case <-ctx.Done():
	}
}

// Close stops every remaining watch. Idempotent.
func (b *pollBackend) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		close(b.closed)
		b.watches.Range(func(id string, w *pollWatch) bool {
			w.cancel()
			b.watches.Delete(id)
			return true
		})
		b.mu.Unlock()
		b.wg.Wait()
	})
	return nil
}

// UsesPolling reports true: events here are derived from periodic scans.
func (b *pollBackend) UsesPolling() bool {
	return true
}

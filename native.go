package pathwatch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/pathwatch/pathwatch/internal/pathwalk"
)

// nativeBackend implements Backend on top of the OS notification mechanism
// that fsnotify exposes (inotify, kqueue, ReadDirectoryChangesW, ...).
// Availability is decided by a runtime probe, not build tags, so there is
// exactly one code path regardless of target platform.
type nativeBackend struct {
	logger  *slog.Logger
	opts    Options
	watches *xsync.MapOf[string, *nativeWatch]
	wg      sync.WaitGroup
	closed  chan struct{}
	once    sync.Once

	// mu serializes watch registration against Close: a racing watch either
	// registers fully (and is cancelled by Close) or fails fast.
	mu sync.Mutex
}

// nativeWatch is one registered native watch. It owns its own fsnotify
// watcher so stopping it cannot disturb sibling watches.
type nativeWatch struct {
	root      string // canonical, trailing separator
	recursive bool
	pred      Predicate
	sink      chan<- Event
	fsw       *fsnotify.Watcher
	cancel    context.CancelFunc
	deb       *debouncer

	// dirs tracks watched directories so removals can be classified.
	// Touched only by the initial walk and then the pump goroutine.
	dirs map[string]bool
}

// newNativeBackend probes whether the host supports native notifications
// by constructing a real watcher. An unusable host yields
// ErrBackendUnavailable, which the caller treats as "fall back", never as
// a failure.
func newNativeBackend(logger *slog.Logger, opts Options) (*nativeBackend, error) {
	probe, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := probe.Close(); err != nil {
		logger.Debug("failed to close probe watcher", "error", err)
	}

	return &nativeBackend{
		logger:  logger,
		opts:    opts,
		watches: xsync.NewMapOf[string, *nativeWatch](),
		closed:  make(chan struct{}),
	}, nil
}

// Watch registers a shallow watch on the direct children of path.
func (b *nativeBackend) Watch(path string, pred Predicate, sink chan<- Event) (*Handle, error) {
	return b.watch(path, pred, sink, false)
}

// WatchRecursive registers a watch on the whole subtree rooted at path.
func (b *nativeBackend) WatchRecursive(path string, pred Predicate, sink chan<- Event) (*Handle, error) {
	return b.watch(path, pred, sink, true)
}

func (b *nativeBackend) watch(path string, pred Predicate, sink chan<- Event, recursive bool) (*Handle, error) {
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

	// A failure here is local to this watch; sibling watches keep running.
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &nativeWatch{
		root:      root,
		recursive: recursive,
		pred:      pred,
		sink:      sink,
		fsw:       fsw,
		deb:       newDebouncer(b.opts.DebounceWindow),
		dirs:      make(map[string]bool),
	}

	if recursive {
		err = b.addDirTree(w, filepath.Clean(root))
	} else if err = w.addDir(filepath.Clean(root)); err == nil {
		// Existing child directories are not watched themselves, but their
		// removal must still be classified as a directory event.
		err = b.recordChildDirs(w, filepath.Clean(root))
	}
	if err != nil {
		fsw.Close() //nolint:errcheck // Watch never started
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	b.mu.Lock()
	select {
	case <-b.closed:
		b.mu.Unlock()
		cancel()
		fsw.Close() //nolint:errcheck // Watch never started
		return nil, ErrWatcherStopped
	default:
	}

	id := uuid.NewString()
	b.watches.Store(id, w)

	b.wg.Add(1)
	go b.pump(ctx, w)
	b.mu.Unlock()

	b.logger.Debug("native watch started", "path", root, "recursive", recursive)

	return &Handle{
		id: id,
		stop: func() {
			cancel()
			w.fsw.Close() //nolint:errcheck // Pump drains the closed channels
			b.watches.Delete(id)
		},
	}, nil
}

// addDir watches a single directory.
func (w *nativeWatch) addDir(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to add watch for %s: %w", dir, err)
	}
	w.dirs[dir] = true
	return nil
}

// addDirTree watches dir and every directory below it.
func (b *nativeBackend) addDirTree(w *nativeWatch, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil // continue walking
		}
		if b.opts.shouldIgnore(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.addDir(p); err != nil {
			b.logger.Error("failed to add watch", "path", p, "error", err)
		}
		return nil
	})
}

// recordChildDirs notes the direct child directories of a shallow watch in
// w.dirs without watching them.
func (b *nativeBackend) recordChildDirs(w *nativeWatch, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if !entry.IsDir() || b.opts.shouldIgnore(p) {
			continue
		}
		w.dirs[p] = true
	}
	return nil
}

// pump translates raw fsnotify events into the normalized vocabulary.
func (b *nativeBackend) pump(ctx context.Context, w *nativeWatch) {
	defer b.wg.Done()
	defer close(w.sink)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			b.handleEvent(ctx, w, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// A transient error must not kill the watch.
			b.logger.Warn("native watch error", "path", w.root, "error", err)
		}
	}
}

// handleEvent normalizes one fsnotify event.
func (b *nativeBackend) handleEvent(ctx context.Context, w *nativeWatch, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	if b.opts.shouldIgnore(path) {
		return
	}
	if !w.inScope(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			// Vanished before we could stat it; the removal will follow.
			b.logger.Debug("failed to stat created path", "path", path, "error", err)
			return
		}
		if info.IsDir() {
			if w.recursive {
				if err := b.addDirTree(w, path); err != nil {
					b.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			} else {
				w.dirs[path] = true
			}
			b.emit(ctx, w, Event{
				Type:    EventAdded,
				Path:    dirPath(path),
				IsDir:   true,
				ModTime: info.ModTime(),
				Time:    time.Now(),
			})
			return
		}
		b.emit(ctx, w, Event{
			Type:    EventAdded,
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Time:    time.Now(),
			Inode:   getInode(info.Sys()),
		})

	case ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		b.emit(ctx, w, Event{
			Type:    EventModified,
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Time:    time.Now(),
			Inode:   getInode(info.Sys()),
		})

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.dirs[path] {
			delete(w.dirs, path)
			b.emit(ctx, w, Event{
				Type:  EventRemoved,
				Path:  dirPath(path),
				IsDir: true,
				Time:  time.Now(),
			})
			return
		}
		b.emit(ctx, w, Event{
			Type: EventRemoved,
			Path: path,
			Time: time.Now(),
		})
	}
}

// inScope reports whether path falls inside this watch's scope: direct
// children only for shallow watches, the whole subtree for recursive ones.
// The watched root itself is always in scope so its own removal is reported.
func (w *nativeWatch) inScope(path string) bool {
	if dirPath(path) == w.root {
		return true
	}
	if w.recursive {
		return strings.HasPrefix(path, w.root)
	}
	return dirPath(filepath.Dir(path)) == w.root
}

// emit pushes an event through the watch's predicate and debouncer.
func (b *nativeBackend) emit(ctx context.Context, w *nativeWatch, e Event) {
	if !w.pred.matches(e) {
		return
	}
	if !w.deb.admit(e) {
		return
	}
	select {
	case w.sink <- e:
	case <-ctx.Done():
	}
}

// Close stops every remaining watch. Idempotent.
func (b *nativeBackend) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		close(b.closed)
		b.watches.Range(func(id string, w *nativeWatch) bool {
			w.cancel()
			w.fsw.Close() //nolint:errcheck // Already tearing down
			b.watches.Delete(id)
			return true
		})
		b.mu.Unlock()
		b.wg.Wait()
	})
	return nil
}

// UsesPolling reports false: events come straight from the OS.
func (b *nativeBackend) UsesPolling() bool {
	return false
}

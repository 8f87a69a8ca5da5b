package pathwatch

import (
	"slices"
	"time"

	"github.com/pathwatch/pathwatch/internal/pathwalk"
)

// fileStamp is the last-known state of one file inside a snapshot.
type fileStamp struct {
	size    int64
	modTime time.Time
}

// snapshot maps file paths to their last-known modification state. A
// snapshot is immutable once built; each poll cycle replaces it wholesale.
type snapshot map[string]fileStamp

// takeSnapshot scans root and stamps every regular file it finds. Ignored
// paths never enter the snapshot, so they can never produce diff events.
func takeSnapshot(root string, recursive bool, opts *Options) (snapshot, error) {
	files, err := pathwalk.List(root, recursive)
	if err != nil {
		return nil, err
	}

	snap := make(snapshot, len(files))
	for _, f := range files {
		if opts.shouldIgnore(f.Path) {
			continue
		}
		snap[f.Path] = fileStamp{size: f.Size, modTime: f.ModTime}
	}
	return snap, nil
}

// diffSnapshots partitions the keys of two snapshots into created,
// modified and deleted sets. The sets are disjoint: a path counted as
// created is never also counted as modified. Results are sorted so
// emission order is deterministic.
//
// A file deleted and recreated with an unchanged stamp between two
// snapshots is indistinguishable from no change at all. That coarseness
// is inherent to polling and accepted; the differ does not hash content.
func diffSnapshots(prev, next snapshot) (created, modified, deleted []string) {
	for path, stamp := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			created = append(created, path)
		case old.size != stamp.size || !old.modTime.Equal(stamp.modTime):
			modified = append(modified, path)
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			deleted = append(deleted, path)
		}
	}

	slices.Sort(created)
	slices.Sort(modified)
	slices.Sort(deleted)
	return created, modified, deleted
}

package pathwatch

import (
	"path/filepath"
	"strings"
	"time"
)

// EventType represents the type of file system event
type EventType int

const (
	// EventAdded is emitted when a path appears under a watched root
	EventAdded EventType = iota
	// EventModified is emitted when an existing path changes
	EventModified
	// EventRemoved is emitted when a path disappears
	EventRemoved
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a normalized file system event. Every backend emits the
// same vocabulary regardless of the underlying mechanism.
type Event struct {
	// Type is the kind of event (added, modified, removed)
	Type EventType

	// Path is the absolute path the event refers to. Directory paths carry
	// a trailing separator, file paths never do.
	Path string

	// IsDir reports whether the path denotes a directory
	IsDir bool

	// Size is the file size in bytes at detection time (0 for removals)
	Size int64

	// ModTime is the file's last modification time (zero for removals)
	ModTime time.Time

	// Time is when the backend detected the change
	Time time.Time

	// Inode is the file's inode number (for tracking file identity)
	Inode uint64
}

// String returns a compact representation for logging.
func (e Event) String() string {
	return e.Type.String() + " " + e.Path
}

// Predicate filters events before delivery. A backend invokes the
// caller-supplied sink or action only for events the predicate accepts.
// A nil Predicate accepts everything.
type Predicate func(Event) bool

// matches applies a possibly-nil predicate.
func (p Predicate) matches(e Event) bool {
	return p == nil || p(e)
}

// dirPath marks p as a directory path by appending the OS separator.
func dirPath(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

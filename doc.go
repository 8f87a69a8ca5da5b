// Package pathwatch is a cross-platform file system change notification
// library. Callers register interest in a directory, shallow or recursive,
// and receive a stream of normalized added/modified/removed events.
//
// A Watcher owns exactly one backend. At creation it probes the native OS
// notification mechanism and falls back to a generic polling engine when
// the probe fails, so the same code path serves every platform. Events can
// be consumed from a channel or dispatched to a callback with a per-path
// serialization guarantee: at most one action per path is in flight at any
// instant, and same-path actions run in arrival order.
//
// The library does not guarantee delivery of every individual OS-level
// event (debouncing and coalescing can merge them), promises no ordering
// between unrelated paths, and does not persist watch state across
// process restarts.
package pathwatch

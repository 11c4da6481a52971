// Package progress carries run and phase milestones from the orchestrator to
// pluggable sinks. Events are batched on a background goroutine so emitting
// never gates phase progress.
package progress

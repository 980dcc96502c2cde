// Package scheduler drives a build session: it walks the build plan,
// dispatches ready targets to a bounded worker pool, and owns every
// target's build result.
//
// The dispatch loop is the single writer of result state. Workers are
// pure functions from a dispatched target to a completion message:
// they fingerprint the target, consult the incremental cache, and run
// the executor, reporting back over a completion channel. A target is
// dispatched only after all of its dependencies reached a terminal
// result; a failed dependency fast-fails its dependents without ever
// invoking the executor.
//
// Cancellation stops dispatch of new targets, and workers refuse jobs
// that were queued but not yet started. In-flight work runs on a
// detached context and is awaited to completion so no external process
// is abandoned mid-write; targets that never started are marked
// skipped-cancelled.
package scheduler

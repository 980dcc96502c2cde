package model

import "github.com/vk/fabr/internal/qname"

// Status is the terminal state of one target within a build session.
type Status int

const (
	// StatusSuccess means the executor produced the target's artifacts.
	StatusSuccess Status = iota
	// StatusFailed means a compile or link step failed, the target
	// timed out, or a dependency failed (fast-failure propagation).
	StatusFailed
	// StatusCached means the incremental cache proved the existing
	// artifacts current and the executor was never invoked.
	StatusCached
	// StatusCancelled means the session was stopped before the target
	// was dispatched.
	StatusCancelled
)

// Succeeded reports whether the status allows dependents to proceed.
func (s Status) Succeeded() bool {
	return s == StatusSuccess || s == StatusCached
}

// String returns the summary spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCached:
		return "skipped-cached"
	case StatusCancelled:
		return "skipped-cancelled"
	default:
		return "unknown"
	}
}

// Artifact is one output of a built target, together with the interface
// information a dependent needs to consume it.
type Artifact struct {
	// Path is the artifact file: a `.a` archive for libraries, the
	// executable for binaries.
	Path string `json:"path"`
	// IncludeDir is the staged header directory of a library artifact,
	// added to dependents' compile include paths. Empty for binaries.
	IncludeDir string `json:"include_dir,omitempty"`
	// ExportFlags are the declaring library's exported compile flags.
	ExportFlags []string `json:"export_flags,omitempty"`
}

// Result is the per-target record of one build session. It is created
// by the scheduler when the target is dispatched and is immutable once
// the target reaches a terminal state.
type Result struct {
	Name        qname.Name
	Status      Status
	Fingerprint string
	Artifacts   []Artifact
	// Diagnostic carries the verbatim toolchain output for failures,
	// or the name of the failed dependency for fast-failed targets.
	Diagnostic string
}

// ExecOutcome is what the executor reports back for one target.
type ExecOutcome struct {
	Artifacts  []Artifact
	Diagnostic string
	// Err is nil on success, otherwise a CompileError, LinkError or
	// TimeoutError describing the first failing step.
	Err error
}

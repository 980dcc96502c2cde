// Package model defines the rule model shared by the registry, graph
// builder, scheduler and executor: targets, build artifacts and
// per-target build results.
package model

import "github.com/vk/fabr/internal/qname"

// Kind distinguishes the two target variants of the rule vocabulary.
type Kind int

const (
	// Library is an archived collection of compiled objects plus the
	// headers it exposes to dependents.
	Library Kind = iota
	// Binary is a linked executable.
	Binary
)

// String returns the rule-file spelling of the kind.
func (k Kind) String() string {
	switch k {
	case Library:
		return "library"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Target is a single named build unit as declared in a rule file.
// Targets are immutable once registered.
type Target struct {
	// Name is the globally unique qualified name.
	Name qname.Name
	// Kind selects the library or binary rule variant.
	Kind Kind
	// Dir is the absolute path of the declaring package directory.
	// Source and header paths are relative to it.
	Dir string
	// Sources are the source files to compile, in declaration order.
	Sources []string
	// Headers are the interface headers a library stages into its
	// artifact for dependents. Always empty for binaries.
	Headers []string
	// Dependencies are the qualified names of targets this target
	// links against, in declaration order.
	Dependencies []qname.Name
	// Flags are compiler flags applied to this target's own compile
	// and link steps, passed through uninterpreted.
	Flags []string
	// ExportFlags are compiler flags a library contributes to the
	// compile steps of its direct dependents. Propagation is explicit:
	// plain Flags never leak across targets.
	ExportFlags []string
}

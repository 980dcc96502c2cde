// Package registry holds every target declared for a build session,
// keyed by qualified name. Registration is append-only and validates
// each declaration as it arrives; an invalid rule aborts registry
// construction before any build action runs.
package registry

// Package dag builds the dependency graph over registered targets and
// derives the deterministic execution plan the scheduler follows.
//
// The graph is constructed once per session, after the registry is
// complete. Construction resolves every dependency reference, rejects
// unknown references and cycles, and computes a topological plan whose
// ties are broken by declaration order so plans are reproducible across
// runs of an unchanged rule set.
package dag

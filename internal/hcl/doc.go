// Package hcl is the rule-declaration loader: it discovers BUILD.hcl
// files under the workspace root and translates their library and
// binary blocks into the agnostic rule model. The schema is fixed; rule
// files carry no behavior beyond declarative attributes, which may
// reference the read-only `workspace` and `package` variables.
package hcl

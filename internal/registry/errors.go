package registry

import (
	"fmt"

	"github.com/vk/fabr/internal/qname"
)

// DuplicateTargetError reports a second declaration of an already
// registered qualified name.
type DuplicateTargetError struct {
	Name qname.Name
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %q is already declared", e.Name)
}

// InvalidRuleError reports a declaration that violates the rule schema.
type InvalidRuleError struct {
	Name   qname.Name
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Name, e.Reason)
}

// UnknownTargetError reports a lookup of a name that was never
// registered. WantedBy is set when the lookup resolved a dependency
// reference of another target.
type UnknownTargetError struct {
	Name     qname.Name
	WantedBy qname.Name
}

func (e *UnknownTargetError) Error() string {
	if !e.WantedBy.IsZero() {
		return fmt.Sprintf("target %q depends on unknown target %q", e.WantedBy, e.Name)
	}
	return fmt.Sprintf("unknown target %q", e.Name)
}

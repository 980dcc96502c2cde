package executor

import (
	"fmt"

	"github.com/vk/fabr/internal/qname"
)

// CompileError reports a failed compile step. Output carries the
// toolchain's combined output verbatim.
type CompileError struct {
	Target qname.Name
	Source string
	Output string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling %s of %q failed", e.Source, e.Target)
}

// LinkError reports a failed archive or link step.
type LinkError struct {
	Target qname.Name
	Output string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("linking %q failed", e.Target)
}

// TimeoutError reports that a target exceeded its wall-clock limit.
type TimeoutError struct {
	Target qname.Name
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("target %q exceeded its wall-clock limit", e.Target)
}

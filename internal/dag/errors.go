package dag

import (
	"strings"

	"github.com/vk/fabr/internal/qname"
)

// CyclicDependencyError reports a dependency cycle. Cycle holds the
// ordered qualified names along the cycle, with the entry node repeated
// at the end.
type CyclicDependencyError struct {
	Cycle []qname.Name
}

func (e *CyclicDependencyError) Error() string {
	names := make([]string, 0, len(e.Cycle))
	for _, n := range e.Cycle {
		names = append(names, n.String())
	}
	return "dependency cycle: " + strings.Join(names, " -> ")
}

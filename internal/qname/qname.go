// Package qname provides the structured qualified-name type used to
// address build targets across packages. The canonical string form is
// `path/to/pkg:name`; a reference with an empty package part (`:name`)
// is relative to the package that declares it.
package qname

import (
	"fmt"
	"regexp"
	"strings"
)

// Name is the structured representation of a target's unique identifier.
type Name struct {
	// Package is the slash-separated package path, relative to the
	// workspace root. Empty only in unresolved relative references.
	Package string
	// Local is the target's name within its package.
	Local string
}

// segmentRegex validates a single path or name segment.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]*$`)

// String serializes the Name into its canonical `package:name` form.
func (n Name) String() string {
	return n.Package + ":" + n.Local
}

// IsZero reports whether the Name is the empty value.
func (n Name) IsZero() bool {
	return n.Package == "" && n.Local == ""
}

// Parse creates a Name from its canonical string representation. The
// package part must be present; use ParseRelative for references that
// may omit it.
func Parse(raw string) (Name, error) {
	n, err := parse(raw)
	if err != nil {
		return Name{}, err
	}
	if n.Package == "" {
		return Name{}, fmt.Errorf("qualified name %q is missing its package part", raw)
	}
	return n, nil
}

// ParseRelative parses a dependency reference as written in a rule file.
// A reference without a package part (`:name` or a bare `name`) resolves
// to the declaring package.
func ParseRelative(raw, declaringPkg string) (Name, error) {
	n, err := parse(raw)
	if err != nil {
		return Name{}, err
	}
	if n.Package == "" {
		if declaringPkg == "" {
			return Name{}, fmt.Errorf("relative reference %q used outside a package", raw)
		}
		n.Package = declaringPkg
	}
	return n, nil
}

func parse(raw string) (Name, error) {
	if raw == "" {
		return Name{}, fmt.Errorf("qualified name cannot be empty")
	}

	pkg, local := "", raw
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		pkg, local = raw[:i], raw[i+1:]
	}

	if local == "" {
		return Name{}, fmt.Errorf("qualified name %q has an empty target part", raw)
	}
	if !segmentRegex.MatchString(local) {
		return Name{}, fmt.Errorf("invalid target name %q", local)
	}
	for _, seg := range strings.Split(pkg, "/") {
		if pkg == "" {
			break
		}
		if seg == "" {
			return Name{}, fmt.Errorf("package path in %q contains an empty segment", raw)
		}
		if !segmentRegex.MatchString(seg) {
			return Name{}, fmt.Errorf("invalid package segment %q", seg)
		}
	}

	return Name{Package: pkg, Local: local}, nil
}

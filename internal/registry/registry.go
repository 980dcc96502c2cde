package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
)

// Registry is the append-only store of declared targets for one build
// session. There is no removal operation: to redeclare, rebuild the
// registry from scratch.
type Registry struct {
	targets map[qname.Name]*model.Target
	order   []qname.Name
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		targets: make(map[qname.Name]*model.Target),
	}
}

// Register validates the target and adds it to the registry. It returns
// a DuplicateTargetError when the qualified name is already taken and an
// InvalidRuleError when the declaration violates the rule schema.
func (r *Registry) Register(t *model.Target) error {
	if t.Name.IsZero() {
		return &InvalidRuleError{Name: t.Name, Reason: "target has no qualified name"}
	}
	if _, ok := r.targets[t.Name]; ok {
		return &DuplicateTargetError{Name: t.Name}
	}
	if err := validate(t); err != nil {
		return err
	}

	r.targets[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the target registered under the given name, or an
// UnknownTargetError.
func (r *Registry) Lookup(n qname.Name) (*model.Target, error) {
	t, ok := r.targets[n]
	if !ok {
		return nil, &UnknownTargetError{Name: n}
	}
	return t, nil
}

// Targets returns all registered targets in declaration order. The
// returned slice is a copy; the targets themselves are shared and must
// not be mutated.
func (r *Registry) Targets() []*model.Target {
	out := make([]*model.Target, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.targets[n])
	}
	return out
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	return len(r.order)
}

func validate(t *model.Target) error {
	invalid := func(format string, args ...any) error {
		return &InvalidRuleError{Name: t.Name, Reason: fmt.Sprintf(format, args...)}
	}

	if len(t.Sources) == 0 {
		// Header-only libraries are disallowed: every target must
		// produce at least one compiled object.
		return invalid("%s declares no sources", t.Kind)
	}
	if t.Kind == model.Binary && len(t.Headers) > 0 {
		return invalid("binary declares headers")
	}
	for _, dep := range t.Dependencies {
		if dep == t.Name {
			return invalid("target depends on itself")
		}
	}

	for _, src := range t.Sources {
		if err := statInPackage(t.Dir, src); err != nil {
			return invalid("source %s: %v", src, err)
		}
	}
	for _, hdr := range t.Headers {
		if err := statInPackage(t.Dir, hdr); err != nil {
			return invalid("header %s: %v", hdr, err)
		}
	}
	return nil
}

// statInPackage checks that rel names an existing file inside the
// declaring package directory.
func statInPackage(dir, rel string) error {
	if filepath.IsAbs(rel) {
		return fmt.Errorf("absolute path not allowed")
	}
	info, err := os.Stat(filepath.Join(dir, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist")
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory")
	}
	return nil
}

package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fabr/internal/ctxlog"
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
)

// RuleFileName is the per-package rule file discovered by the loader.
const RuleFileName = "BUILD.hcl"

// fileRoot decodes the two block kinds a rule file may contain.
type fileRoot struct {
	Libraries []*libraryBlock `hcl:"library,block"`
	Binaries  []*binaryBlock  `hcl:"binary,block"`
}

type libraryBlock struct {
	Name         string   `hcl:"name,label"`
	Sources      []string `hcl:"sources"`
	Headers      []string `hcl:"headers,optional"`
	Deps         []string `hcl:"deps,optional"`
	Cflags       []string `hcl:"cflags,optional"`
	ExportCflags []string `hcl:"export_cflags,optional"`
}

type binaryBlock struct {
	Name    string   `hcl:"name,label"`
	Sources []string `hcl:"sources"`
	Deps    []string `hcl:"deps,optional"`
	Cflags  []string `hcl:"cflags,optional"`
}

// Loader reads rule files from a workspace.
type Loader struct{}

// NewLoader creates a rule-file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load walks the workspace root, parses every BUILD.hcl, and returns
// the declared targets in file-walk, then in-file declaration order.
// The package name of each target is its directory path relative to the
// root.
func (l *Loader) Load(ctx context.Context, root string) ([]*model.Target, error) {
	logger := ctxlog.FromContext(ctx)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ruleFiles, err := findRuleFiles(absRoot)
	if err != nil {
		return nil, err
	}
	logger.Debug("discovered rule files", "count", len(ruleFiles))

	parser := hclparse.NewParser()
	var targets []*model.Target
	for _, file := range ruleFiles {
		pkg, err := packageName(absRoot, file)
		if err != nil {
			return nil, err
		}

		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", file, diags)
		}

		var decoded fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, evalContext(absRoot, pkg), &decoded); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %w", file, diags)
		}

		pkgDir := filepath.Dir(file)
		for _, lib := range decoded.Libraries {
			t, err := l.translateLibrary(lib, pkg, pkgDir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			targets = append(targets, t)
		}
		for _, bin := range decoded.Binaries {
			t, err := l.translateBinary(bin, pkg, pkgDir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			targets = append(targets, t)
		}
	}

	logger.Debug("rule loading complete", "targets", len(targets))
	return targets, nil
}

func (l *Loader) translateLibrary(b *libraryBlock, pkg, dir string) (*model.Target, error) {
	name, deps, err := resolveNames(b.Name, b.Deps, pkg)
	if err != nil {
		return nil, err
	}
	return &model.Target{
		Name:         name,
		Kind:         model.Library,
		Dir:          dir,
		Sources:      b.Sources,
		Headers:      b.Headers,
		Dependencies: deps,
		Flags:        b.Cflags,
		ExportFlags:  b.ExportCflags,
	}, nil
}

func (l *Loader) translateBinary(b *binaryBlock, pkg, dir string) (*model.Target, error) {
	name, deps, err := resolveNames(b.Name, b.Deps, pkg)
	if err != nil {
		return nil, err
	}
	return &model.Target{
		Name:         name,
		Kind:         model.Binary,
		Dir:          dir,
		Sources:      b.Sources,
		Dependencies: deps,
		Flags:        b.Cflags,
	}, nil
}

func resolveNames(local string, rawDeps []string, pkg string) (qname.Name, []qname.Name, error) {
	name, err := qname.ParseRelative(":"+local, pkg)
	if err != nil {
		return qname.Name{}, nil, fmt.Errorf("target %q: %w", local, err)
	}
	deps := make([]qname.Name, 0, len(rawDeps))
	for _, raw := range rawDeps {
		dep, err := qname.ParseRelative(raw, pkg)
		if err != nil {
			return qname.Name{}, nil, fmt.Errorf("target %q: dependency %q: %w", local, raw, err)
		}
		deps = append(deps, dep)
	}
	return name, deps, nil
}

// evalContext exposes the read-only variables rule-file expressions may
// reference.
func evalContext(root, pkg string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"workspace": cty.ObjectVal(map[string]cty.Value{
				"root": cty.StringVal(root),
			}),
			"package": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(pkg),
			}),
		},
	}
}

// findRuleFiles walks the root collecting BUILD.hcl files, skipping
// hidden directories.
func findRuleFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == RuleFileName {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace %s: %w", root, err)
	}
	return files, nil
}

// packageName derives the package of a rule file from its location.
func packageName(root, file string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Dir(file))
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", fmt.Errorf("%s: rule files must live inside a package directory, not the workspace root", file)
	}
	return filepath.ToSlash(rel), nil
}

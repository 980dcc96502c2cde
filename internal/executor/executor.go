// Package executor turns one target's rule into concrete external
// toolchain actions: compile every source to an object, then archive
// objects into a library or link them into a binary. Failures are
// contained to the executing target; diagnostics carry the toolchain
// output verbatim.
package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vk/fabr/internal/ctxlog"
	"github.com/vk/fabr/internal/model"
)

// fingerprintDirLen is how much of the fingerprint keys the artifact
// directory. Enough to avoid collisions in practice while keeping paths
// readable.
const fingerprintDirLen = 16

// Executor builds single targets. It is stateless apart from its
// configuration and safe for concurrent use by scheduler workers:
// artifact directories are partitioned by qualified name, so concurrent
// targets never write the same path.
type Executor struct {
	outRoot   string
	toolchain Toolchain
	runner    CommandRunner
}

// New creates an Executor writing artifacts under outRoot.
func New(outRoot string, tc Toolchain, runner CommandRunner) *Executor {
	return &Executor{outRoot: outRoot, toolchain: tc, runner: runner}
}

// Execute builds one target. depArtifacts are the artifacts of the
// target's transitive library dependencies, in dependency order. The
// returned outcome carries either the produced artifacts or a typed
// error plus the captured diagnostic.
func (e *Executor) Execute(ctx context.Context, t *model.Target, depArtifacts []model.Artifact, fingerprint string) model.ExecOutcome {
	logger := ctxlog.FromContext(ctx).With("target", t.Name.String())
	logger.Info("building target", "kind", t.Kind.String())

	dir := e.targetDir(t, fingerprint)
	objDir := filepath.Join(dir, "obj")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return model.ExecOutcome{Err: err, Diagnostic: err.Error()}
	}

	objs, outcome := e.compileSources(ctx, t, depArtifacts, objDir)
	if outcome != nil {
		return *outcome
	}

	switch t.Kind {
	case model.Library:
		return e.archiveLibrary(ctx, t, dir, objs)
	case model.Binary:
		return e.linkBinary(ctx, t, dir, objs, depArtifacts)
	default:
		err := errors.New("unknown target kind")
		return model.ExecOutcome{Err: err, Diagnostic: err.Error()}
	}
}

// compileSources compiles every source of the target to an object file.
// Compiles within one target are order-independent and run in parallel;
// on failure the first failing source in declaration order wins, and no
// archive or link step runs.
func (e *Executor) compileSources(ctx context.Context, t *model.Target, depArtifacts []model.Artifact, objDir string) ([]string, *model.ExecOutcome) {
	flags := compileFlags(t, depArtifacts)
	includes := includeDirs(t, depArtifacts)

	type compileFailure struct {
		index int
		err   *CompileError
	}

	objs := make([]string, len(t.Sources))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []compileFailure
	)

	for i, src := range t.Sources {
		obj := filepath.Join(objDir, objectName(src))
		objs[i] = obj

		wg.Add(1)
		go func(index int, src, obj string) {
			defer wg.Done()
			inv := e.toolchain.Compile(filepath.Join(t.Dir, src), obj, flags, includes)
			output, err := e.runner.Run(ctx, inv)
			if err != nil {
				mu.Lock()
				failures = append(failures, compileFailure{
					index: index,
					err:   &CompileError{Target: t.Name, Source: src, Output: string(output)},
				})
				mu.Unlock()
			}
		}(i, src, obj)
	}
	wg.Wait()

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
		first := failures[0].err
		if timedOut(ctx) {
			terr := &TimeoutError{Target: t.Name}
			return nil, &model.ExecOutcome{Err: terr, Diagnostic: terr.Error()}
		}
		return nil, &model.ExecOutcome{Err: first, Diagnostic: first.Output}
	}
	return objs, nil
}

// archiveLibrary archives the objects and stages the library's headers
// next to the archive so dependents can consume them as the propagated
// interface of the artifact.
func (e *Executor) archiveLibrary(ctx context.Context, t *model.Target, dir string, objs []string) model.ExecOutcome {
	archive := filepath.Join(dir, "lib"+t.Name.Local+".a")
	inv := e.toolchain.Archive(archive, objs)
	if output, err := e.runner.Run(ctx, inv); err != nil {
		return e.linkFailure(ctx, t, output)
	}

	// Only libraries with headers stage an include dir; an empty
	// IncludeDir keeps dependents from getting a -I to a path that was
	// never created.
	var includeDir string
	if len(t.Headers) > 0 {
		includeDir = filepath.Join(dir, "include")
		for _, hdr := range t.Headers {
			if err := copyFile(filepath.Join(t.Dir, hdr), filepath.Join(includeDir, hdr)); err != nil {
				return model.ExecOutcome{Err: err, Diagnostic: err.Error()}
			}
		}
	}

	return model.ExecOutcome{Artifacts: []model.Artifact{{
		Path:        archive,
		IncludeDir:  includeDir,
		ExportFlags: t.ExportFlags,
	}}}
}

// linkBinary links the binary's own objects against its dependency
// archives, in dependency order.
func (e *Executor) linkBinary(ctx context.Context, t *model.Target, dir string, objs []string, depArtifacts []model.Artifact) model.ExecOutcome {
	libs := make([]string, 0, len(depArtifacts))
	for _, a := range depArtifacts {
		libs = append(libs, a.Path)
	}

	binary := filepath.Join(dir, t.Name.Local)
	inv := e.toolchain.Link(binary, objs, libs, t.Flags)
	if output, err := e.runner.Run(ctx, inv); err != nil {
		return e.linkFailure(ctx, t, output)
	}

	return model.ExecOutcome{Artifacts: []model.Artifact{{Path: binary}}}
}

func (e *Executor) linkFailure(ctx context.Context, t *model.Target, output []byte) model.ExecOutcome {
	if timedOut(ctx) {
		terr := &TimeoutError{Target: t.Name}
		return model.ExecOutcome{Err: terr, Diagnostic: terr.Error()}
	}
	lerr := &LinkError{Target: t.Name, Output: string(output)}
	return model.ExecOutcome{Err: lerr, Diagnostic: lerr.Output}
}

// targetDir is the deterministic artifact location: partitioned by
// qualified name, keyed by fingerprint.
func (e *Executor) targetDir(t *model.Target, fingerprint string) string {
	fp := fingerprint
	if len(fp) > fingerprintDirLen {
		fp = fp[:fingerprintDirLen]
	}
	return filepath.Join(e.outRoot, filepath.FromSlash(t.Name.Package), t.Name.Local, fp)
}

// compileFlags concatenates the exported flags of dependencies, in
// dependency order, with the target's own flags. Plain dependency flags
// never propagate.
func compileFlags(t *model.Target, depArtifacts []model.Artifact) []string {
	var flags []string
	for _, a := range depArtifacts {
		flags = append(flags, a.ExportFlags...)
	}
	return append(flags, t.Flags...)
}

func includeDirs(t *model.Target, depArtifacts []model.Artifact) []string {
	dirs := []string{t.Dir}
	for _, a := range depArtifacts {
		if a.IncludeDir != "" {
			dirs = append(dirs, a.IncludeDir)
		}
	}
	return dirs
}

// objectName flattens a possibly nested source path into a unique
// object file name.
func objectName(src string) string {
	flat := strings.NewReplacer("/", "_", "\\", "_").Replace(src)
	return strings.TrimSuffix(flat, filepath.Ext(flat)) + ".o"
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

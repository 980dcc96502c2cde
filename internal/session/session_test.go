package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fabr/internal/executor"
	"github.com/vk/fabr/internal/hcl"
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/testutil"
)

// scriptRunner stands in for the external toolchain: it creates the
// declared output file of every invocation and can fail selectively.
type scriptRunner struct {
	mu          sync.Mutex
	invocations []executor.Invocation
	fail        map[string]string
}

func (r *scriptRunner) Run(_ context.Context, inv executor.Invocation) ([]byte, error) {
	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()

	joined := strings.Join(inv.Args, " ")
	for needle, diag := range r.fail {
		if strings.Contains(joined, needle) {
			return []byte(diag), errors.New("exit status 1")
		}
	}
	for i, arg := range inv.Args {
		if (arg == "-o" || arg == "rcs") && i+1 < len(inv.Args) {
			_ = os.MkdirAll(filepath.Dir(inv.Args[i+1]), 0o755)
			_ = os.WriteFile(inv.Args[i+1], []byte("artifact"), 0o644)
		}
	}
	return nil, nil
}

func (r *scriptRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invocations)
}

const sparseRules = `
library "sparse" {
  sources = ["sparse_matrix.cc"]
  headers = ["sparse_matrix.h"]
}

binary "mtest" {
  sources = ["sparse_matrix_test.cc"]
  cflags  = ["-fexceptions"]
  deps    = [":sparse"]
}
`

func sparseWorkspace(t *testing.T) string {
	return testutil.Workspace(t, map[string]string{
		"fastlib/sparse/BUILD.hcl":             sparseRules,
		"fastlib/sparse/sparse_matrix.cc":      "int sparse() { return 0; }\n",
		"fastlib/sparse/sparse_matrix.h":       "int sparse();\n",
		"fastlib/sparse/sparse_matrix_test.cc": "int main() { return 0; }\n",
	})
}

func newSession(t *testing.T, root string, runner executor.CommandRunner) *Session {
	t.Helper()
	ctx := context.Background()

	targets, err := hcl.NewLoader().Load(ctx, filepath.Join(root, "fastlib"))
	require.NoError(t, err)

	s, err := New(ctx, targets, Options{
		OutDir:   filepath.Join(root, "out"),
		CacheDir: filepath.Join(root, "cache"),
		Workers:  2,
		Runner:   runner,
	})
	require.NoError(t, err)
	return s
}

func TestSessionBuildAndRebuild(t *testing.T) {
	root := sparseWorkspace(t)
	ctx := context.Background()

	runner := &scriptRunner{}
	s := newSession(t, root, runner)

	plan := s.Plan()
	require.Len(t, plan, 2)
	assert.Equal(t, "sparse:sparse", plan[0].Name().String())
	assert.Equal(t, "sparse:mtest", plan[1].Name().String())

	results := s.Run(ctx)
	require.Len(t, results, 2)
	assert.Equal(t, model.StatusSuccess, results["sparse:sparse"].Status)
	assert.Equal(t, model.StatusSuccess, results["sparse:mtest"].Status)
	firstInvocations := runner.count()
	assert.Greater(t, firstInvocations, 0)

	// Second session over the unchanged workspace: everything cached,
	// no toolchain invocations.
	rerun := newSession(t, root, runner)
	results = rerun.Run(ctx)
	assert.Equal(t, model.StatusCached, results["sparse:sparse"].Status)
	assert.Equal(t, model.StatusCached, results["sparse:mtest"].Status)
	assert.Equal(t, firstInvocations, runner.count())

	// Touching the library source invalidates the library and,
	// transitively, the binary.
	testutil.WriteFile(t, root, "fastlib/sparse/sparse_matrix.cc", "int sparse() { return 2 + 2; }\n")
	again := newSession(t, root, runner)
	results = again.Run(ctx)
	assert.Equal(t, model.StatusSuccess, results["sparse:sparse"].Status)
	assert.Equal(t, model.StatusSuccess, results["sparse:mtest"].Status)
	assert.Greater(t, runner.count(), firstInvocations)
}

func TestSessionCompileFailureFastFailsDependent(t *testing.T) {
	root := sparseWorkspace(t)
	runner := &scriptRunner{fail: map[string]string{
		"sparse_matrix.cc": "sparse_matrix.cc:1: error: expected ';'",
	}}
	s := newSession(t, root, runner)

	results := s.Run(context.Background())
	assert.Equal(t, model.StatusFailed, results["sparse:sparse"].Status)
	assert.Contains(t, results["sparse:sparse"].Diagnostic, "expected ';'")
	assert.Equal(t, model.StatusFailed, results["sparse:mtest"].Status)
	assert.Contains(t, results["sparse:mtest"].Diagnostic, `dependency "sparse:sparse" failed`)
}

func TestSessionRejectsInvalidConfiguration(t *testing.T) {
	root := sparseWorkspace(t)
	ctx := context.Background()

	targets, err := hcl.NewLoader().Load(ctx, filepath.Join(root, "fastlib"))
	require.NoError(t, err)
	// A second declaration of the same qualified name.
	dup := *targets[0]
	targets = append(targets, &dup)

	_, err = New(ctx, targets, Options{
		OutDir:   filepath.Join(root, "out"),
		CacheDir: filepath.Join(root, "cache"),
	})
	assert.ErrorContains(t, err, "already declared")
}

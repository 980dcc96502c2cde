package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fabr/internal/executor"
	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
	"github.com/vk/fabr/internal/summary"
	"github.com/vk/fabr/internal/testutil"
)

// fakeLoader returns a canned rule set without touching HCL.
type fakeLoader struct {
	targets []*model.Target
	err     error
}

func (l *fakeLoader) Load(_ context.Context, _ string) ([]*model.Target, error) {
	return l.targets, l.err
}

// stubRunner fakes the toolchain: it creates the declared output file of
// every invocation and can fail selectively by argument substring.
type stubRunner struct {
	fail map[string]string
}

func (r *stubRunner) Run(_ context.Context, inv executor.Invocation) ([]byte, error) {
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

func testConfig(t *testing.T, root string) *Config {
	t.Helper()
	cfg, err := NewConfig(Config{
		WorkspaceRoot: root,
		OutDir:        filepath.Join(root, "out"),
		CacheDir:      filepath.Join(root, "cache"),
		WorkerCount:   2,
		LogFormat:     "text",
		LogLevel:      "error",
	})
	require.NoError(t, err)
	return cfg
}

func sparseTargets(root string) []*model.Target {
	dir := filepath.Join(root, "fastlib", "sparse")
	sparse := &model.Target{
		Name:    qname.Name{Package: "fastlib/sparse", Local: "sparse"},
		Kind:    model.Library,
		Dir:     dir,
		Sources: []string{"sparse_matrix.cc"},
		Headers: []string{"sparse_matrix.h"},
	}
	mtest := &model.Target{
		Name:         qname.Name{Package: "fastlib/sparse", Local: "mtest"},
		Kind:         model.Binary,
		Dir:          dir,
		Sources:      []string{"sparse_matrix_test.cc"},
		Dependencies: []qname.Name{sparse.Name},
	}
	return []*model.Target{sparse, mtest}
}

func sparseWorkspace(t *testing.T) string {
	return testutil.Workspace(t, map[string]string{
		"fastlib/sparse/sparse_matrix.cc":      "int sparse() { return 0; }\n",
		"fastlib/sparse/sparse_matrix.h":       "int sparse();\n",
		"fastlib/sparse/sparse_matrix_test.cc": "int main() { return 0; }\n",
	})
}

func TestRunWritesSummary(t *testing.T) {
	root := sparseWorkspace(t)

	var out bytes.Buffer
	a := NewApp(&out, testConfig(t, root), &fakeLoader{targets: sparseTargets(root)})
	a.runner = &stubRunner{}

	require.NoError(t, a.Run(context.Background()))

	var decoded map[string]summary.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "success", decoded["fastlib/sparse:sparse"].Status)
	assert.Equal(t, "success", decoded["fastlib/sparse:mtest"].Status)
}

func TestRunSummaryFile(t *testing.T) {
	root := sparseWorkspace(t)

	cfg := testConfig(t, root)
	cfg.SummaryPath = filepath.Join(root, "summary.json")
	var out bytes.Buffer
	a := NewApp(&out, cfg, &fakeLoader{targets: sparseTargets(root)})
	a.runner = &stubRunner{}

	require.NoError(t, a.Run(context.Background()))

	assert.Empty(t, out.Bytes())
	data, err := os.ReadFile(cfg.SummaryPath)
	require.NoError(t, err)
	var decoded map[string]summary.Entry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)
}

func TestRunTargetFailure(t *testing.T) {
	root := sparseWorkspace(t)

	var out bytes.Buffer
	a := NewApp(&out, testConfig(t, root), &fakeLoader{targets: sparseTargets(root)})
	a.runner = &stubRunner{fail: map[string]string{
		"sparse_matrix.cc": "sparse_matrix.cc:1: error: expected ';'",
	}}

	err := a.Run(context.Background())
	require.Error(t, err)
	// Both the library and its fast-failed dependent count.
	assert.Contains(t, err.Error(), "2 target(s) failed")

	var decoded map[string]summary.Entry
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "failed", decoded["fastlib/sparse:sparse"].Status)
}

func TestRunLoaderErrors(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		var out bytes.Buffer
		a := NewApp(&out, testConfig(t, t.TempDir()), &fakeLoader{err: errors.New("bad rule file")})
		err := a.Run(context.Background())
		assert.ErrorContains(t, err, "loading rules")
	})

	t.Run("no targets", func(t *testing.T) {
		var out bytes.Buffer
		a := NewApp(&out, testConfig(t, t.TempDir()), &fakeLoader{})
		err := a.Run(context.Background())
		assert.ErrorContains(t, err, "no targets")
	})
}

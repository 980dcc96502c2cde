package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
	"github.com/vk/fabr/internal/testutil"
)

func sparseTarget(root string) *model.Target {
	return &model.Target{
		Name:    qname.Name{Package: "fastlib/sparse", Local: "sparse"},
		Kind:    model.Library,
		Dir:     root + "/fastlib/sparse",
		Sources: []string{"sparse_matrix.cc"},
		Headers: []string{"sparse_matrix.h"},
	}
}

func TestTarget(t *testing.T) {
	files := map[string]string{
		"fastlib/sparse/sparse_matrix.cc": "int sparse() { return 0; }\n",
		"fastlib/sparse/sparse_matrix.h":  "int sparse();\n",
	}

	t.Run("deterministic across hashers", func(t *testing.T) {
		root := testutil.Workspace(t, files)
		target := sparseTarget(root)

		a, err := NewHasher().Target(target, nil)
		require.NoError(t, err)
		b, err := NewHasher().Target(target, nil)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("source change invalidates", func(t *testing.T) {
		root := testutil.Workspace(t, files)
		target := sparseTarget(root)
		h := NewHasher()

		before, err := h.Target(target, nil)
		require.NoError(t, err)

		testutil.WriteFile(t, root, "fastlib/sparse/sparse_matrix.cc", "int sparse() { return 1 + 1; }\n")
		after, err := h.Target(target, nil)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("flag change invalidates", func(t *testing.T) {
		root := testutil.Workspace(t, files)
		target := sparseTarget(root)
		h := NewHasher()

		before, err := h.Target(target, nil)
		require.NoError(t, err)

		target.Flags = []string{"-fexceptions"}
		after, err := h.Target(target, nil)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("dependency fingerprint propagates", func(t *testing.T) {
		root := testutil.Workspace(t, files)
		target := sparseTarget(root)
		h := NewHasher()

		a, err := h.Target(target, []string{"depfp-1"})
		require.NoError(t, err)
		b, err := h.Target(target, []string{"depfp-2"})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("header order does not matter", func(t *testing.T) {
		root := testutil.Workspace(t, map[string]string{
			"fastlib/sparse/sparse_matrix.cc": "int sparse() { return 0; }\n",
			"fastlib/sparse/sparse_matrix.h":  "int sparse();\n",
			"fastlib/sparse/sparse_impl.h":    "// impl\n",
		})
		target := sparseTarget(root)
		h := NewHasher()

		target.Headers = []string{"sparse_matrix.h", "sparse_impl.h"}
		a, err := h.Target(target, nil)
		require.NoError(t, err)

		target.Headers = []string{"sparse_impl.h", "sparse_matrix.h"}
		b, err := h.Target(target, nil)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		root := testutil.Workspace(t, nil)
		target := sparseTarget(root)

		_, err := NewHasher().Target(target, nil)
		assert.Error(t, err)
	})
}

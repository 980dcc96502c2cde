package summary

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fabr/internal/model"
	"github.com/vk/fabr/internal/qname"
)

func TestWrite(t *testing.T) {
	results := map[string]*model.Result{
		"fastlib/sparse:sparse": {
			Name:        qname.Name{Package: "fastlib/sparse", Local: "sparse"},
			Status:      model.StatusSuccess,
			Fingerprint: "abc123",
			Artifacts:   []model.Artifact{{Path: "/out/libsparse.a"}},
		},
		"fastlib/sparse:mtest": {
			Name:       qname.Name{Package: "fastlib/sparse", Local: "mtest"},
			Status:     model.StatusFailed,
			Diagnostic: "undefined reference to `sparse'",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, results))

	var decoded map[string]Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, "success", decoded["fastlib/sparse:sparse"].Status)
	assert.Equal(t, []string{"/out/libsparse.a"}, decoded["fastlib/sparse:sparse"].Artifacts)
	assert.Equal(t, "failed", decoded["fastlib/sparse:mtest"].Status)
	assert.Contains(t, decoded["fastlib/sparse:mtest"].Diagnostic, "undefined reference")

	assert.Equal(t, 1, FailedCount(results))
}

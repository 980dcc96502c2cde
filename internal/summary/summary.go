// Package summary renders the machine-readable outcome of a build
// session: one entry per target with its terminal status and either its
// artifacts or its diagnostic.
package summary

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vk/fabr/internal/model"
)

// Entry is one target's row in the build summary.
type Entry struct {
	Status      string   `json:"status"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Artifacts   []string `json:"artifacts,omitempty"`
	Diagnostic  string   `json:"diagnostic,omitempty"`
}

// Build converts the scheduler's result map into summary entries keyed
// by qualified name.
func Build(results map[string]*model.Result) map[string]Entry {
	out := make(map[string]Entry, len(results))
	for name, res := range results {
		e := Entry{
			Status:      res.Status.String(),
			Fingerprint: res.Fingerprint,
			Diagnostic:  res.Diagnostic,
		}
		for _, a := range res.Artifacts {
			e.Artifacts = append(e.Artifacts, a.Path)
		}
		out[name] = e
	}
	return out
}

// Write renders the summary as indented JSON. Map keys are emitted in
// sorted order, so output is stable for an unchanged result set.
func Write(w io.Writer, results map[string]*model.Result) error {
	data, err := json.MarshalIndent(Build(results), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding build summary: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// FailedCount returns how many targets terminated as Failed.
func FailedCount(results map[string]*model.Result) int {
	n := 0
	for _, res := range results {
		if res.Status == model.StatusFailed {
			n++
		}
	}
	return n
}

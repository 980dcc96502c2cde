// Package cache persists the fingerprint index that makes builds
// incremental across sessions. The index maps each qualified name to
// the fingerprint and artifacts of its last successful build; a target
// is skipped only when its fingerprint is unchanged and the recorded
// artifacts still exist on disk.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/fabr/internal/model"
)

const indexFile = "index.json"

type entry struct {
	Fingerprint string           `json:"fingerprint"`
	Artifacts   []model.Artifact `json:"artifacts"`
}

// Cache is the persisted incremental-build index. It is the one shared
// mutable structure of a session, so all access is serialized by an
// internal mutex.
type Cache struct {
	dir string

	mu      sync.Mutex
	entries map[string]entry
}

// Open loads the index from dir, creating the directory if needed. A
// missing or unreadable index starts the cache empty: the worst case is
// a full rebuild, never a wrong skip.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := &Cache{dir: dir, entries: make(map[string]entry)}
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading cache index: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = make(map[string]entry)
	}
	return c, nil
}

// ShouldRebuild reports whether the named target must be rebuilt for
// the given fingerprint. On a hit it also returns the recorded
// artifacts so the scheduler can expose them without re-running the
// executor.
func (c *Cache) ShouldRebuild(name, fingerprint string) (bool, []model.Artifact) {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()

	if !ok || e.Fingerprint != fingerprint {
		return true, nil
	}
	for _, a := range e.Artifacts {
		if _, err := os.Stat(a.Path); err != nil {
			return true, nil
		}
		if a.IncludeDir != "" {
			if _, err := os.Stat(a.IncludeDir); err != nil {
				return true, nil
			}
		}
	}
	return false, e.Artifacts
}

// Record associates the target's fingerprint with its artifacts and
// persists the index for future sessions.
func (c *Cache) Record(name, fingerprint string, artifacts []model.Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[name] = entry{Fingerprint: fingerprint, Artifacts: artifacts}
	return c.persistLocked()
}

// Forget drops the entry for a target, forcing its next build.
func (c *Cache) Forget(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[name]; !ok {
		return nil
	}
	delete(c.entries, name)
	return c.persistLocked()
}

// persistLocked writes the index atomically: full write to a temp file,
// then rename.
func (c *Cache) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache index: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, indexFile+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(c.dir, indexFile))
}

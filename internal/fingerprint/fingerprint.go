// Package fingerprint computes the deterministic digest that decides
// whether a target needs rebuilding. A fingerprint covers the target's
// kind, flags, source and header contents, and the fingerprints of its
// direct dependencies, so any transitive change surfaces through the
// dependency fingerprints.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vk/fabr/internal/model"
)

// fileCacheSize bounds the memoized file digests. Headers are shared by
// many targets, so the same files are hashed repeatedly in one session.
const fileCacheSize = 4096

// Hasher computes target fingerprints. It is safe for concurrent use by
// multiple scheduler workers.
type Hasher struct {
	files *lru.Cache[string, string]
}

// NewHasher creates a Hasher with an empty file-digest cache.
func NewHasher() *Hasher {
	cache, err := lru.New[string, string](fileCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Hasher{files: cache}
}

// Target computes the fingerprint of a target. depFingerprints are the
// fingerprints of the target's direct dependencies, in declaration
// order; they must already be resolved, which the scheduler guarantees
// by fingerprinting in topological order.
func (h *Hasher) Target(t *model.Target, depFingerprints []string) (string, error) {
	digest := sha256.New()

	writeField(digest, []byte(t.Kind.String()))
	writeField(digest, []byte(t.Name.String()))

	writeCount(digest, len(t.Flags))
	for _, flag := range t.Flags {
		writeField(digest, []byte(flag))
	}
	writeCount(digest, len(t.ExportFlags))
	for _, flag := range t.ExportFlags {
		writeField(digest, []byte(flag))
	}

	// Sources in declaration order; headers as a sorted set.
	writeCount(digest, len(t.Sources))
	for _, src := range t.Sources {
		if err := h.writeFile(digest, t.Dir, src); err != nil {
			return "", err
		}
	}
	headers := make([]string, len(t.Headers))
	copy(headers, t.Headers)
	sort.Strings(headers)
	writeCount(digest, len(headers))
	for _, hdr := range headers {
		if err := h.writeFile(digest, t.Dir, hdr); err != nil {
			return "", err
		}
	}

	writeCount(digest, len(depFingerprints))
	for _, fp := range depFingerprints {
		writeField(digest, []byte(fp))
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

func (h *Hasher) writeFile(digest hash.Hash, dir, rel string) error {
	writeField(digest, []byte(rel))
	fileDigest, err := h.fileDigest(filepath.Join(dir, rel))
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", rel, err)
	}
	writeField(digest, []byte(fileDigest))
	return nil
}

// fileDigest hashes one file's contents, memoized by (path, size,
// mtime) so an unchanged file is read at most once per session.
func (h *Hasher) fileDigest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := h.files.Get(key); ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return "", err
	}
	sum := hex.EncodeToString(digest.Sum(nil))
	h.files.Add(key, sum)
	return sum, nil
}

// writeField length-prefixes data to keep field boundaries unambiguous.
func writeField(digest hash.Hash, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	digest.Write(length[:])
	digest.Write(data)
}

func writeCount(digest hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	digest.Write(buf[:])
}

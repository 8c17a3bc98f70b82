package ast

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sibyllinesoft/valknut/internal/verrors"
)

// ManifestEntry records one persisted parse-tree's metadata. A serialized
// tree for the entry belongs at {hash_prefix_2}/{hash}.tree (see ShardPath);
// this package does not write those files itself. The manifest only tracks
// which entries exist and when they were written, so a stale disk cache can
// be pruned without re-reading every tree file.
type ManifestEntry struct {
	Hash      string    `json:"hash"`
	Language  string    `json:"language"`
	WrittenAt time.Time `json:"written_at"`
}

// DiskManifest is the optional on-disk persisted-cache index described in
// the specification's External Interfaces section. It never stores the
// tree_sitter.Tree itself (that is re-parsed on load) — only which source
// hashes have been seen, which is enough to decide whether a warm run can
// skip re-discovery bookkeeping for unchanged files.
type DiskManifest struct {
	mu      sync.Mutex
	dir     string
	entries map[string]ManifestEntry
}

// OpenDiskManifest loads (or initializes) the manifest.json file under dir.
func OpenDiskManifest(dir string) (*DiskManifest, error) {
	m := &DiskManifest{dir: dir, entries: make(map[string]ManifestEntry)}

	path := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, verrors.NewFileIoFailure(path, err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, verrors.NewFileIoFailure(path, err)
	}
	for _, e := range entries {
		m.entries[e.Hash] = e
	}
	return m, nil
}

// Record adds or updates an entry and flushes the manifest to disk. The
// per-hash shard directory ({hash[:2]}/) is created so callers can place
// the serialized tree file alongside it.
func (m *DiskManifest) Record(hash, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[hash] = ManifestEntry{Hash: hash, Language: language, WrittenAt: time.Now()}

	shard := filepath.Join(m.dir, hash[:min(2, len(hash))])
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return verrors.NewFileIoFailure(shard, err)
	}

	return m.flushLocked()
}

// Has reports whether hash is already recorded.
func (m *DiskManifest) Has(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[hash]
	return ok
}

// ShardPath returns the path a tree file for hash would be written to.
func (m *DiskManifest) ShardPath(hash string) string {
	return filepath.Join(m.dir, hash[:min(2, len(hash))], hash+".tree")
}

func (m *DiskManifest) flushLocked() error {
	list := make([]ManifestEntry, 0, len(m.entries))
	for _, e := range m.entries {
		list = append(list, e)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(m.dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return verrors.NewFileIoFailure(path, err)
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

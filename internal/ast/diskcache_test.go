package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskManifestRecordAndReload(t *testing.T) {
	dir := t.TempDir()

	m, err := OpenDiskManifest(dir)
	require.NoError(t, err)
	assert.False(t, m.Has("abc123"))

	require.NoError(t, m.Record("abc123", "go"))
	assert.True(t, m.Has("abc123"))

	reloaded, err := OpenDiskManifest(dir)
	require.NoError(t, err)
	assert.True(t, reloaded.Has("abc123"))
}

func TestShardPathUsesHashPrefix(t *testing.T) {
	m, err := OpenDiskManifest(t.TempDir())
	require.NoError(t, err)
	path := m.ShardPath("deadbeef")
	assert.Contains(t, path, "/de/")
	assert.Contains(t, path, "deadbeef.tree")
}

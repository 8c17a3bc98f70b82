package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigProfiles(t *testing.T) {
	fast := DefaultConfig(ProfileFast)
	assert.False(t, fast.Modules.Clones)
	assert.Equal(t, ProfileFast, fast.Profile)

	thorough := DefaultConfig(ProfileThorough)
	assert.True(t, thorough.Clones.AptedVerify)

	extreme := DefaultConfig(ProfileExtreme)
	assert.Less(t, extreme.Clones.SimilarityThreshold, thorough.Clones.SimilarityThreshold)

	balanced := DefaultConfig("unknown-profile-name")
	assert.Equal(t, ProfileBalanced, balanced.Profile)
}

func TestLoadFallsBackToProfileWhenNoKDLFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, ProfileFast)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ProfileFast, cfg.Profile)
	assert.Equal(t, dir, cfg.Project.Root)
}

func TestLoadParsesKDLFile(t *testing.T) {
	dir := t.TempDir()
	kdl := `project {
    name "demo"
}
clones {
    similarity_threshold 0.9
    num_bands 10
    rows_per_band 4
}
include "**/*.go"
exclude "**/vendor/**"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".valknut.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir, ProfileBalanced)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, 0.9, cfg.Clones.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Clones.NumBands)
	assert.Equal(t, []string{"**/*.go"}, cfg.Include)
	assert.Equal(t, []string{"**/vendor/**"}, cfg.Exclude)
}

func TestLoadRejectsUnknownSection(t *testing.T) {
	dir := t.TempDir()
	kdl := `bogus_section {
    foo "bar"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".valknut.kdl"), []byte(kdl), 0o644))

	_, err := Load(dir, ProfileBalanced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_section")
}

func TestValidateRejectsBadSimilarityThreshold(t *testing.T) {
	cfg := baseConfig()
	cfg.Clones.SimilarityThreshold = 1.5
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestValidateFillsSmartDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.Performance.MaxThreads = 0
	require.NoError(t, Validate(cfg))
	assert.Greater(t, cfg.Performance.MaxThreads, 0)
}

package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectOutputDirectoriesFromPackageJSON(t *testing.T) {
	dir := t.TempDir()
	pkg := `{"scripts": {"build": "tsc --outDir dist-custom"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(pkg), 0o644))

	det := NewBuildArtifactDetector(dir)
	patterns := det.DetectOutputDirectories()
	assert.Contains(t, patterns, "**/dist-custom/**")
}

func TestDetectOutputDirectoriesFromCargoToml(t *testing.T) {
	dir := t.TempDir()
	cargo := "[profile.release]\ntarget-dir = \"out\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(cargo), 0o644))

	det := NewBuildArtifactDetector(dir)
	patterns := det.DetectOutputDirectories()
	assert.Contains(t, patterns, "**/out/**")
}

func TestDeduplicatePatternsPreservesOrder(t *testing.T) {
	in := []string{"**/a/**", "**/b/**", "**/a/**"}
	out := DeduplicatePatterns(in)
	assert.Equal(t, []string{"**/a/**", "**/b/**"}, out)
}

package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
)

func TestParseLCOVAndComputeCoverage(t *testing.T) {
	lcov := `SF:main.go
DA:1,1
DA:2,0
DA:3,1
end_of_record
`
	dir := t.TempDir()
	path := filepath.Join(dir, "lcov.info")
	require.NoError(t, os.WriteFile(path, []byte(lcov), 0o644))

	report, err := parseLCOV([]byte(lcov))
	require.NoError(t, err)

	cov, ok := report.Coverage(LineRange{Path: "main.go", Start: 1, End: 3})
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, cov, 1e-9)
}

func TestCoverageReturnsSentinelForUnknownFile(t *testing.T) {
	report := &Report{Files: map[string]FileCoverage{}}
	cov, ok := report.Coverage(LineRange{Path: "missing.go", Start: 1, End: 10})
	assert.False(t, ok)
	assert.True(t, feature.IsSentinel(cov))
}

func TestDiscoverReturnsNilWhenAutoDiscoverDisabledAndNoFile(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Coverage.AutoDiscover = false
	cfg.Coverage.CoverageFile = ""

	report, err := Discover(cfg)
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestGapFindingNilWhenCoverageUnknown(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	f := GapFinding(cfg, entity.ID(1), feature.Sentinel, false)
	assert.Nil(t, f)
}

func TestGapFindingFiresBelowThreshold(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Coverage.GapThreshold = 0.8
	f := GapFinding(cfg, entity.ID(1), 0.3, true)
	require.NotNil(t, f)
	assert.Equal(t, "CoverageGap", string(f.Kind))
}

package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
)

func TestAnalyzeFilesFlagsHugeFileAsFileSplitWithClusters(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	files := []FileStats{
		{
			Path:       "pkg/big/file.go",
			FileEntity: 1,
			LOC:        cfg.Structure.HugeLOC + 100,
			TopLevel: []TopLevelEntity{
				{Entity: 10, Name: "ParseRequest", Tokens: stemmedWords("ParseRequest")},
				{Entity: 11, Name: "ParseResponse", Tokens: stemmedWords("ParseResponse")},
				{Entity: 12, Name: "RenderWidget", Tokens: stemmedWords("RenderWidget")},
			},
			PublicExportCount:     2,
			ExternalImporterCount: 4,
		},
	}

	results := AnalyzeFiles(cfg, files)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Finding)
	assert.Equal(t, "FileSplit", string(results[0].Finding.Kind))
	assert.Greater(t, results[0].Finding.Severity, 0.6)
	assert.Equal(t, 0.5*2+0.5*4, results[0].Finding.Effort)
}

func TestAnalyzeFilesBoundaryAtHugeLOCDoesNotFireBelowThreshold(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	files := []FileStats{
		{Path: "pkg/small/file.go", FileEntity: 1, LOC: cfg.Structure.HugeLOC - 1},
	}
	assert.Empty(t, AnalyzeFiles(cfg, files))
}

func TestAnalyzeFilesBoundaryAtHugeLOCFiresAtThreshold(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	files := []FileStats{
		{Path: "pkg/small/file.go", FileEntity: 1, LOC: cfg.Structure.HugeLOC},
	}
	results := AnalyzeFiles(cfg, files)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Finding)
}

func TestAnalyzeFlagsUnevenBranchDistributionAsBranchReorg(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Structure.MinBranchGain = 0.1
	dirs := []DirStats{
		{Path: "pkg/skewed", Files: []string{"a.go", "b.go", "c.go", "d.go", "e.go"}, FileCount: 40, TotalLOC: 500, BranchCounts: []int{50, 1, 1, 1, 1}},
	}
	primary := map[string]entity.ID{"pkg/skewed": 2}

	results := Analyze(cfg, dirs, primary)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Finding)
	assert.Equal(t, "BranchReorg", string(results[0].Finding.Kind))
}

func TestAnalyzeDoesNotFireBranchReorgWithoutRawThresholdExceeded(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Structure.MinBranchGain = 0.01 // imbalance will clear this trivially
	dirs := []DirStats{
		{Path: "pkg/skewed", FileCount: 3, TotalLOC: 100, BranchCounts: []int{50, 1, 1}},
	}
	results := Analyze(cfg, dirs, map[string]entity.ID{"pkg/skewed": 2})
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Finding)
}

func TestAnalyzeLeavesQuietDirectoryUnflagged(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	dirs := []DirStats{
		{Path: "pkg/calm", FileCount: 3, TotalLOC: 100, BranchCounts: []int{2, 2, 2}},
	}
	results := Analyze(cfg, dirs, map[string]entity.ID{"pkg/calm": 3})
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Finding)
}

func TestClusterTopLevelGroupsByDominantSharedToken(t *testing.T) {
	entities := []TopLevelEntity{
		{Entity: 1, Name: "ParseRequest", Tokens: stemmedWords("ParseRequest")},
		{Entity: 2, Name: "ParseResponse", Tokens: stemmedWords("ParseResponse")},
		{Entity: 3, Name: "RenderWidget", Tokens: stemmedWords("RenderWidget")},
		{Entity: 4, Name: "RenderPanel", Tokens: stemmedWords("RenderPanel")},
	}
	clusters := clusterTopLevel(entities)
	assert.LessOrEqual(t, len(clusters), 3)
	assert.GreaterOrEqual(t, len(clusters), 2)
}

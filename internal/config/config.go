// Package config defines valknut's typed, closed configuration and the
// profile presets built on top of it. The struct is total: every knob
// named in the specification has a field here. LoadKDL rejects an unknown
// top-level section as a ConfigInvalid error; an unrecognized key inside a
// known section is ignored.
package config

import (
	"os"
	"runtime"
)

// Profile selects a bundle of detector/performance knobs.
type Profile string

const (
	ProfileFast     Profile = "fast"
	ProfileBalanced Profile = "balanced"
	ProfileThorough Profile = "thorough"
	ProfileExtreme  Profile = "extreme"
)

// Config is the single, closed configuration object the pipeline consumes.
type Config struct {
	Version int
	Profile Profile
	Project Project
	Index   Index
	Modules Modules

	Complexity Complexity
	Structure  Structure
	Graph      Graph
	Clones     Clones
	Coverage   Coverage
	Gate       Gate

	Performance Performance

	Include []string
	Exclude []string
}

// Project identifies the repository under analysis.
type Project struct {
	Root string
	Name string
}

// Index controls file discovery limits.
type Index struct {
	MaxFiles         int
	MaxFileSizeBytes int64
	Languages        []string // empty means "all registered adapters"
	FollowSymlinks   bool
	RespectGitignore bool
}

// Modules toggles each detector independently.
type Modules struct {
	Complexity  bool
	Structure   bool
	Graph       bool
	Clones      bool
	Coverage    bool
	Refactoring bool
}

// Complexity holds per-language cyclomatic/cognitive complexity thresholds.
type Complexity struct {
	// DefaultThreshold applies when a language has no explicit entry.
	DefaultThreshold int
	PerLanguage      map[string]int
}

// Structure controls the structure extractor's thresholds (§4.5).
type Structure struct {
	MaxFilesPerDir       int
	MaxSubdirsPerDir     int
	MaxDirLOC            int
	HugeLOC              int
	HugeBytes            int64
	MinBranchGain        float64
	FallbackClusterNames []string
}

// Graph controls the dependency-graph extractor (§4.6).
type Graph struct {
	CentralitySamples   int
	NonOverlapThreshold float64
}

// Clones controls the LSH clone detector (§4.7).
type Clones struct {
	ShingleK            int
	MinFunctionTokens   int
	MinMatchTokens      int
	RequireBlocks       int
	MinSharedMotifs     int
	SimilarityThreshold float64
	NumBands            int
	RowsPerBand         int
	AptedVerify         bool
	AptedMaxNodes       int
	IOPenalty           float64
	Denoise             bool
}

// Coverage controls coverage-report discovery and ingestion (§4.8).
type Coverage struct {
	AutoDiscover bool
	SearchPaths  []string
	FilePatterns []string
	MaxAgeDays   int
	CoverageFile string
	GapThreshold float64
}

// Gate holds the quality-gate thresholds (§4.13).
type Gate struct {
	Enabled            bool
	MaxComplexity      int
	MinHealth          float64
	MaxDebt            float64
	MinMaintainability float64
	MinDocHealth       float64
	MaxIssues          int
	MaxCritical        int
	MaxHighPriority    int
}

// Performance bounds resource usage and concurrency (§5, §6).
type Performance struct {
	MaxThreads          int
	MemoryLimitMB       int64
	FileTimeoutSeconds  int
	TotalTimeoutSeconds int
	ASTCacheEntries     int
	EnableSIMD          bool
}

// Load reads a `.valknut.kdl` file from projectRoot, falling back to the
// profile-selected defaults if none exists. Unknown top-level sections are
// rejected by LoadKDL before this function ever sees them; unknown keys
// inside a known section are ignored.
func Load(projectRoot string, profile Profile) (*Config, error) {
	cfg, err := LoadKDL(projectRoot)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig(profile)
		cfg.Project.Root = projectRoot
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the concrete configuration for a named profile.
// Profiles are plain functions, never an inheritance chain.
func DefaultConfig(profile Profile) *Config {
	switch profile {
	case ProfileFast:
		return fastProfile()
	case ProfileThorough:
		return thoroughProfile()
	case ProfileExtreme:
		return extremeProfile()
	default:
		return balancedProfile()
	}
}

func baseConfig() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return &Config{
		Version: 1,
		Profile: ProfileBalanced,
		Project: Project{Root: root, Name: "repository"},
		Index: Index{
			MaxFiles:         50000,
			MaxFileSizeBytes: 5 * 1024 * 1024,
			FollowSymlinks:   false,
			RespectGitignore: true,
		},
		Modules: Modules{
			Complexity:  true,
			Structure:   true,
			Graph:       true,
			Clones:      true,
			Coverage:    true,
			Refactoring: true,
		},
		Complexity: Complexity{
			DefaultThreshold: 10,
			PerLanguage: map[string]int{
				"go":         10,
				"python":     10,
				"javascript": 12,
				"typescript": 12,
			},
		},
		Structure: Structure{
			MaxFilesPerDir:       30,
			MaxSubdirsPerDir:     15,
			MaxDirLOC:            3000,
			HugeLOC:              1000,
			HugeBytes:            64 * 1024,
			MinBranchGain:        0.6,
			FallbackClusterNames: []string{"core", "io", "api", "util"},
		},
		Graph: Graph{
			CentralitySamples:   256,
			NonOverlapThreshold: 0.5,
		},
		Clones: Clones{
			ShingleK:            5,
			MinFunctionTokens:   30,
			MinMatchTokens:      30,
			RequireBlocks:       1,
			MinSharedMotifs:     1,
			SimilarityThreshold: 0.82,
			NumBands:            20,
			RowsPerBand:         6,
			AptedVerify:         true,
			AptedMaxNodes:       400,
			IOPenalty:           0.5,
			Denoise:             true,
		},
		Coverage: Coverage{
			AutoDiscover: true,
			SearchPaths:  []string{"."},
			FilePatterns: []string{"coverage.xml", "lcov.info", "coverage-final.json", "*.lcov"},
			MaxAgeDays:   7,
			GapThreshold: 0.7,
		},
		Gate: Gate{
			Enabled:            false,
			MaxComplexity:      30,
			MinHealth:          60,
			MaxDebt:            0.4,
			MinMaintainability: 40,
			MinDocHealth:       30,
			MaxIssues:          1000,
			MaxCritical:        0,
			MaxHighPriority:    20,
		},
		Performance: Performance{
			MaxThreads:          runtime.NumCPU(),
			MemoryLimitMB:       2048,
			FileTimeoutSeconds:  10,
			TotalTimeoutSeconds: 600,
			ASTCacheEntries:     2000,
			EnableSIMD:          true,
		},
	}
}

func balancedProfile() *Config {
	cfg := baseConfig()
	cfg.Profile = ProfileBalanced
	return cfg
}

func fastProfile() *Config {
	cfg := baseConfig()
	cfg.Profile = ProfileFast
	cfg.Modules.Clones = false
	cfg.Clones.AptedVerify = false
	cfg.Graph.CentralitySamples = 64
	cfg.Performance.ASTCacheEntries = 500
	return cfg
}

func thoroughProfile() *Config {
	cfg := baseConfig()
	cfg.Profile = ProfileThorough
	cfg.Clones.AptedVerify = true
	cfg.Clones.SimilarityThreshold = 0.75
	cfg.Graph.CentralitySamples = 512
	cfg.Performance.ASTCacheEntries = 5000
	return cfg
}

func extremeProfile() *Config {
	cfg := thoroughProfile()
	cfg.Profile = ProfileExtreme
	cfg.Clones.SimilarityThreshold = 0.65
	cfg.Clones.AptedMaxNodes = 1200
	cfg.Graph.CentralitySamples = 2048
	cfg.Performance.ASTCacheEntries = 20000
	return cfg
}

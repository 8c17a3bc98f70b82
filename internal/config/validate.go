package config

import (
	"fmt"
	"runtime"

	"github.com/sibyllinesoft/valknut/internal/verrors"
)

// Validate checks cfg for internal consistency and applies smart defaults
// (e.g. MaxThreads==0 becomes runtime.NumCPU()). It returns a
// verrors.KindConfigInvalid error naming the offending field on failure.
func Validate(cfg *Config) error {
	if err := validateProject(&cfg.Project); err != nil {
		return err
	}
	if err := validateIndex(&cfg.Index); err != nil {
		return err
	}
	if err := validateClones(&cfg.Clones); err != nil {
		return err
	}
	if err := validateGraph(&cfg.Graph); err != nil {
		return err
	}
	if err := validateCoverage(&cfg.Coverage); err != nil {
		return err
	}
	if err := validateGate(&cfg.Gate); err != nil {
		return err
	}
	setSmartDefaults(&cfg.Performance)
	return nil
}

func validateProject(p *Project) error {
	if p.Root == "" {
		return verrors.NewConfigInvalid("project.root", fmt.Errorf("must not be empty"))
	}
	return nil
}

func validateIndex(idx *Index) error {
	if idx.MaxFiles <= 0 {
		return verrors.NewConfigInvalid("index.max_files", fmt.Errorf("must be positive, got %d", idx.MaxFiles))
	}
	if idx.MaxFileSizeBytes <= 0 {
		return verrors.NewConfigInvalid("index.max_file_size", fmt.Errorf("must be positive, got %d", idx.MaxFileSizeBytes))
	}
	return nil
}

func validateClones(c *Clones) error {
	if c.ShingleK <= 0 {
		return verrors.NewConfigInvalid("clones.shingle_k", fmt.Errorf("must be positive, got %d", c.ShingleK))
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return verrors.NewConfigInvalid("clones.similarity_threshold", fmt.Errorf("must be in (0,1], got %v", c.SimilarityThreshold))
	}
	if c.NumBands <= 0 || c.RowsPerBand <= 0 {
		return verrors.NewConfigInvalid("clones.num_bands/rows_per_band", fmt.Errorf("must both be positive, got %d/%d", c.NumBands, c.RowsPerBand))
	}
	if c.IOPenalty < 0 || c.IOPenalty > 1 {
		return verrors.NewConfigInvalid("clones.io_penalty", fmt.Errorf("must be in [0,1], got %v", c.IOPenalty))
	}
	return nil
}

func validateGraph(g *Graph) error {
	if g.CentralitySamples < 0 {
		return verrors.NewConfigInvalid("graph.centrality_samples", fmt.Errorf("cannot be negative, got %d", g.CentralitySamples))
	}
	if g.NonOverlapThreshold < 0 || g.NonOverlapThreshold > 1 {
		return verrors.NewConfigInvalid("graph.non_overlap_threshold", fmt.Errorf("must be in [0,1], got %v", g.NonOverlapThreshold))
	}
	return nil
}

func validateCoverage(c *Coverage) error {
	if c.MaxAgeDays < 0 {
		return verrors.NewConfigInvalid("coverage.max_age_days", fmt.Errorf("cannot be negative, got %d", c.MaxAgeDays))
	}
	return nil
}

func validateGate(g *Gate) error {
	if g.MinHealth < 0 || g.MinHealth > 100 {
		return verrors.NewConfigInvalid("gate.min_health", fmt.Errorf("must be in [0,100], got %v", g.MinHealth))
	}
	if g.MaxDebt < 0 || g.MaxDebt > 1 {
		return verrors.NewConfigInvalid("gate.max_debt", fmt.Errorf("must be in [0,1], got %v", g.MaxDebt))
	}
	return nil
}

// setSmartDefaults fills in zero-value performance knobs that mean
// "auto-detect" rather than "disabled".
func setSmartDefaults(perf *Performance) {
	if perf.MaxThreads <= 0 {
		perf.MaxThreads = runtime.NumCPU()
	}
	if perf.ASTCacheEntries <= 0 {
		perf.ASTCacheEntries = 2000
	}
}

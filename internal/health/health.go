// Package health aggregates per-entity scores and findings into the
// repository-wide HealthMetrics the quality gate evaluates (spec §4.13).
package health

import (
	"github.com/sibyllinesoft/valknut/internal/finding"
	"github.com/sibyllinesoft/valknut/internal/score"
)

// Metrics summarizes a run's overall health for gating and reporting.
type Metrics struct {
	OverallHealth      float64 // 0-100, higher is healthier
	AverageComplexity  float64
	DebtRatio          float64 // 0-1
	Maintainability    float64 // 0-100
	DocHealth          float64 // 0-100, proxy: fraction of entities with no findings
	CoveragePercent    float64
	TotalIssues        int
	CriticalIssues     int
	HighPriorityIssues int
}

// criticalSeverity/highPrioritySeverity are the severity cutoffs used to
// classify findings for the issue-count thresholds the gate checks.
const (
	criticalSeverity    = 0.85
	highPrioritySeverity = 0.6
)

// Aggregate computes HealthMetrics from the scorer's per-entity output, the
// full set of findings a run produced, and the raw (un-normalized)
// cyclomatic complexity of every analyzed function — avgCyclomatic feeds
// Metrics.AverageComplexity directly, since the quality gate's
// max_complexity threshold (spec §4.13) is expressed in raw cyclomatic
// units, not the scorer's normalized complexity_score.
func Aggregate(scores []score.EntityScore, findings []*finding.Finding, coveragePercent float64, avgCyclomatic float64) Metrics {
	m := Metrics{CoveragePercent: coveragePercent, AverageComplexity: avgCyclomatic}
	if len(scores) == 0 {
		return m
	}

	var sumDebt, sumMI float64
	for _, s := range scores {
		sumDebt += s.DebtScore
		// Maintainability is the inverse of complexity_score on a 0-100
		// scale, since the scorer already folds the maintainability-index
		// feature (negatively weighted) into complexity_score.
		sumMI += (1 - s.ComplexityScore) * 100
	}
	n := float64(len(scores))
	m.DebtRatio = sumDebt / n
	m.Maintainability = sumMI / n

	flagged := map[uint32]bool{}
	for _, f := range findings {
		if f == nil {
			continue
		}
		m.TotalIssues++
		flagged[uint32(f.PrimaryEntity)] = true
		if f.Severity >= criticalSeverity {
			m.CriticalIssues++
		} else if f.Severity >= highPrioritySeverity {
			m.HighPriorityIssues++
		}
	}
	m.DocHealth = 100 * (1 - float64(len(flagged))/n)
	if m.DocHealth < 0 {
		m.DocHealth = 0
	}

	m.OverallHealth = 100 * (1 - m.DebtRatio)
	if m.OverallHealth < 0 {
		m.OverallHealth = 0
	}
	return m
}

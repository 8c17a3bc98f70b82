// Package gate implements the Quality Gate (spec §4.13): a pure function
// of HealthMetrics and configured thresholds producing a pass/fail report
// with the specific reasons for any failure.
package gate

import (
	"fmt"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/health"
)

// Report is the Quality Gate's verdict.
type Report struct {
	Passed  bool
	Reasons []string
	Metrics health.Metrics
}

// Evaluate compares m against cfg.Gate's thresholds. A disabled gate
// always passes (the caller still gets metrics for reporting). Evaluate
// has no side effects and depends only on its arguments, so a given
// (cfg, metrics) pair always produces the same report.
func Evaluate(cfg *config.Config, m health.Metrics) Report {
	report := Report{Passed: true, Metrics: m}
	if !cfg.Gate.Enabled {
		return report
	}

	check := func(cond bool, reason string) {
		if cond {
			report.Passed = false
			report.Reasons = append(report.Reasons, reason)
		}
	}

	check(m.AverageComplexity > float64(cfg.Gate.MaxComplexity),
		fmt.Sprintf("average cyclomatic complexity %.1f exceeds max_complexity %d", m.AverageComplexity, cfg.Gate.MaxComplexity))
	check(m.OverallHealth < cfg.Gate.MinHealth,
		fmt.Sprintf("overall health %.1f is below min_health %.1f", m.OverallHealth, cfg.Gate.MinHealth))
	check(m.DebtRatio > cfg.Gate.MaxDebt,
		fmt.Sprintf("debt ratio %.2f exceeds max_debt %.2f", m.DebtRatio, cfg.Gate.MaxDebt))
	check(m.Maintainability < cfg.Gate.MinMaintainability,
		fmt.Sprintf("maintainability %.1f is below min_maintainability %.1f", m.Maintainability, cfg.Gate.MinMaintainability))
	check(m.DocHealth < cfg.Gate.MinDocHealth,
		fmt.Sprintf("doc health %.1f is below min_doc_health %.1f", m.DocHealth, cfg.Gate.MinDocHealth))
	check(m.TotalIssues > cfg.Gate.MaxIssues,
		fmt.Sprintf("%d issues exceed max_issues %d", m.TotalIssues, cfg.Gate.MaxIssues))
	check(m.CriticalIssues > cfg.Gate.MaxCritical,
		fmt.Sprintf("%d critical issues exceed max_critical %d", m.CriticalIssues, cfg.Gate.MaxCritical))
	check(m.HighPriorityIssues > cfg.Gate.MaxHighPriority,
		fmt.Sprintf("%d high-priority issues exceed max_high_priority %d", m.HighPriorityIssues, cfg.Gate.MaxHighPriority))

	return report
}

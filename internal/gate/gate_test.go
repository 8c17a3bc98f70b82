package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/health"
)

func TestEvaluatePassesWhenGateDisabled(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Gate.Enabled = false
	report := Evaluate(cfg, health.Metrics{OverallHealth: 0})
	assert.True(t, report.Passed)
}

func TestEvaluateFailsOnLowHealth(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Gate.Enabled = true
	cfg.Gate.MinHealth = 70
	report := Evaluate(cfg, health.Metrics{OverallHealth: 50, Maintainability: 100, DocHealth: 100})
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.Reasons)
}

func TestEvaluateFailsOnExcessiveAverageComplexity(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Gate.Enabled = true
	cfg.Gate.MaxComplexity = 30
	m := health.Metrics{OverallHealth: 90, Maintainability: 80, DocHealth: 80, AverageComplexity: 40}
	report := Evaluate(cfg, m)
	assert.False(t, report.Passed)
	assert.Contains(t, report.Reasons[0], "max_complexity")
}

func TestEvaluatePassesWhenAllThresholdsMet(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Gate.Enabled = true
	m := health.Metrics{
		OverallHealth:   90,
		DebtRatio:       0.1,
		Maintainability: 80,
		DocHealth:       80,
		TotalIssues:     2,
	}
	report := Evaluate(cfg, m)
	assert.True(t, report.Passed)
}

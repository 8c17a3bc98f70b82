package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/finding"
	"github.com/sibyllinesoft/valknut/internal/score"
)

func TestAggregateCountsCriticalAndHighPriorityIssues(t *testing.T) {
	scores := []score.EntityScore{{Entity: 1, ComplexityScore: 0.2, DebtScore: 0.1}}
	findings := []*finding.Finding{
		{Kind: finding.KindComplexityHotspot, PrimaryEntity: entity.ID(1), Severity: 0.9},
		{Kind: finding.KindClone, PrimaryEntity: entity.ID(1), Severity: 0.65},
		{Kind: finding.KindCoverageGap, PrimaryEntity: entity.ID(1), Severity: 0.3},
	}
	m := Aggregate(scores, findings, 80, 12.5)
	assert.Equal(t, 3, m.TotalIssues)
	assert.Equal(t, 1, m.CriticalIssues)
	assert.Equal(t, 1, m.HighPriorityIssues)
	assert.Equal(t, 12.5, m.AverageComplexity)
}

func TestAggregateEmptyScoresReturnsZeroValue(t *testing.T) {
	m := Aggregate(nil, nil, 0, 0)
	assert.Equal(t, Metrics{}, m)
}

package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/finding"
)

func TestBuildRanksByPriorityDescending(t *testing.T) {
	f1 := &finding.Finding{Kind: finding.KindComplexityHotspot, PrimaryEntity: 1, Severity: 0.9, Effort: 1}
	f2 := &finding.Finding{Kind: finding.KindComplexityHotspot, PrimaryEntity: 2, Severity: 0.1, Effort: 1}

	packs := Build([]*finding.Finding{f2, f1}, nil, 0.5, 10, 10)
	require.Len(t, packs, 2)
	assert.Equal(t, entity.ID(1), packs[0].PrimaryEntity)
}

func TestBuildDedupesOverlappingPacksToHighestPriority(t *testing.T) {
	f1 := &finding.Finding{Kind: finding.KindClone, PrimaryEntity: 1, OtherEntities: []entity.ID{2}, Severity: 0.4, Effort: 1}
	f2 := &finding.Finding{Kind: finding.KindClone, PrimaryEntity: 1, OtherEntities: []entity.ID{2}, Severity: 0.9, Effort: 1}

	packs := Build([]*finding.Finding{f1, f2}, nil, 0.5, 10, 10)
	require.Len(t, packs, 1)
	assert.Equal(t, 0.9, packs[0].Value)
}

func TestBuildRanksHigherFanInAboveEquallySevereFinding(t *testing.T) {
	f1 := &finding.Finding{Kind: finding.KindCoverageGap, PrimaryEntity: 1, Severity: 0.5, Effort: 0.5}
	f2 := &finding.Finding{Kind: finding.KindCoverageGap, PrimaryEntity: 2, Severity: 0.5, Effort: 0.5}
	fanIn := map[entity.ID]float64{1: 0, 2: 20}

	packs := Build([]*finding.Finding{f1, f2}, fanIn, 0.5, 10, 10)
	require.Len(t, packs, 2)
	assert.Equal(t, entity.ID(2), packs[0].PrimaryEntity)
}

func TestBuildTruncatesToMaxPacksAndTopKPerKind(t *testing.T) {
	var findings []*finding.Finding
	for i := 0; i < 5; i++ {
		findings = append(findings, &finding.Finding{
			Kind: finding.KindComplexityHotspot, PrimaryEntity: entity.ID(i + 1),
			Severity: 0.5, Effort: 1,
		})
	}
	packs := Build(findings, nil, 0.5, 10, 2)
	assert.Len(t, packs, 2)
}

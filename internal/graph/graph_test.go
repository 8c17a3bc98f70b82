package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
)

func TestAnalyzeDetectsImpactCycle(t *testing.T) {
	nodes := []entity.ID{1, 2, 3, 4}
	edges := [][2]entity.ID{
		{1, 2}, {2, 3}, {3, 1}, // cycle among 1,2,3
		{3, 4},
	}
	g := New(nodes, edges)
	cfg := config.DefaultConfig(config.ProfileBalanced)

	result := Analyze(cfg, g, 42)
	require.Len(t, result.Features, 4)

	var sawCycle bool
	for _, f := range result.Findings {
		if f.Kind == "ImpactCycle" {
			sawCycle = true
		}
	}
	assert.True(t, sawCycle)
}

func TestAnalyzeIsDeterministicAcrossRuns(t *testing.T) {
	nodes := []entity.ID{1, 2, 3, 4, 5}
	edges := [][2]entity.ID{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {1, 5}}
	g := New(nodes, edges)
	cfg := config.DefaultConfig(config.ProfileBalanced)

	r1 := Analyze(cfg, g, 7)
	r2 := Analyze(cfg, g, 7)
	require.Equal(t, len(r1.Features), len(r2.Features))
	for i := range r1.Features {
		assert.Equal(t, r1.Features[i].Values, r2.Features[i].Values)
	}
}

func TestTarjanSCCFindsTrivialComponents(t *testing.T) {
	nodes := []entity.ID{1, 2}
	edges := [][2]entity.ID{{1, 2}}
	g := New(nodes, edges)
	sccs := tarjanSCC(g)
	assert.Len(t, sccs, 2) // no cycle, each node its own component
}

package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
)

func TestComputeHighComplexityYieldsHighComplexityScore(t *testing.T) {
	n := &feature.Normalized{
		Entity: entity.ID(1),
		Names:  []string{"cyclomatic_complexity", "cognitive_complexity", "halstead_effort", "maintainability_index"},
		Values: []float64{1, 1, 1, 0},
	}
	scores := Compute([]*feature.Normalized{n}, map[entity.ID]float64{1: 5})
	require.Len(t, scores, 1)
	assert.Greater(t, scores[0].ComplexityScore, 0.5)
}

func TestComputePriorityScoreScalesWithFanIn(t *testing.T) {
	n := &feature.Normalized{
		Entity: entity.ID(1),
		Names:  []string{"cyclomatic_complexity"},
		Values: []float64{1},
	}
	lowFanIn := Compute([]*feature.Normalized{n}, map[entity.ID]float64{1: 0})
	highFanIn := Compute([]*feature.Normalized{n}, map[entity.ID]float64{1: 50})
	assert.Greater(t, highFanIn[0].PriorityScore, lowFanIn[0].PriorityScore)
}

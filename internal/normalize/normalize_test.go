package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
)

func vec(id entity.ID, value float64) *feature.Vector {
	v := feature.NewVector(id)
	v.Set("complexity", value, feature.SourceComplexity)
	return v
}

func TestFitComputesMedianAndMAD(t *testing.T) {
	vectors := []*feature.Vector{vec(1, 1), vec(2, 2), vec(3, 3), vec(4, 4), vec(5, 100)}
	stats := Fit(vectors)
	s, ok := stats["complexity"]
	require.True(t, ok)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 5, s.N)
}

func TestTransformClipsExtremeOutlierToOne(t *testing.T) {
	vectors := []*feature.Vector{vec(1, 1), vec(2, 2), vec(3, 3), vec(4, 4), vec(5, 1000)}
	stats := Fit(vectors)
	normalized := Transform(vectors, stats, true)
	require.Len(t, normalized, 5)
	assert.InDelta(t, 1.0, normalized[4].Values[0], 1e-9)
}

func covVec(id entity.ID, value float64) *feature.Vector {
	v := feature.NewVector(id)
	v.Set("line_coverage", value, feature.SourceCoverage)
	return v
}

func TestFitUsesBayesianSchemeForLineCoverage(t *testing.T) {
	vectors := []*feature.Vector{covVec(1, 0.9), covVec(2, 0.95), covVec(3, 1.0)}
	stats := Fit(vectors)
	s, ok := stats["line_coverage"]
	require.True(t, ok)
	assert.Equal(t, SchemeBayesian, s.Scheme)
	// Posterior mean should be pulled toward the well-covered batch and
	// away from the wide 0.5 prior.
	assert.Greater(t, s.PosteriorMean, 0.5)
}

func TestTransformBayesianSquashesAroundPosteriorMean(t *testing.T) {
	raw := []float64{0.9, 0.95, 1.0, 0.92, 0.97}
	vectors := []*feature.Vector{covVec(1, 0.9), covVec(2, 0.95), covVec(3, 1.0), covVec(4, 0.92), covVec(5, 0.97)}
	stats := Fit(vectors)
	normalized := Transform(vectors, stats, false)
	require.Len(t, normalized, 5)
	// Values above the posterior mean land above 0.5, values below it under 0.5.
	mean := stats["line_coverage"].PosteriorMean
	for i, n := range normalized {
		if raw[i] > mean {
			assert.Greater(t, n.Values[0], 0.5)
		} else {
			assert.Less(t, n.Values[0], 0.5)
		}
	}
}

func TestTransformPassesSentinelAsNeutral(t *testing.T) {
	vectors := []*feature.Vector{vec(1, 1), vec(2, 2), vec(3, 3)}
	sentinelVec := feature.NewVector(4)
	sentinelVec.Set("complexity", feature.Sentinel, feature.SourceComplexity)
	vectors = append(vectors, sentinelVec)

	stats := Fit(vectors)
	normalized := Transform(vectors, stats, true)
	assert.Equal(t, 0.5, normalized[3].Values[0])
}

// Package score implements the Scorer (spec §4.10): a weighted combination
// of normalized features into four per-entity scores, plus a priority
// score that folds in raw (not normalized) fan-in to reward high-impact
// hotspots over merely-complex leaf code.
package score

import (
	"math"

	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
)

// EntityScore is the full set of per-entity scores the pack builder and
// quality gate consume.
type EntityScore struct {
	Entity          entity.ID
	ComplexityScore float64
	StructureScore  float64
	CouplingScore   float64
	DebtScore       float64
	PriorityScore   float64
}

// Compute folds each normalized vector through the canonical weight
// tables. fanIn supplies each entity's raw (unnormalized) fan-in count,
// used only by the priority_score formula.
func Compute(normalized []*feature.Normalized, fanIn map[entity.ID]float64) []EntityScore {
	out := make([]EntityScore, len(normalized))
	for i, n := range normalized {
		lookup := make(map[string]float64, len(n.Names))
		for j, name := range n.Names {
			lookup[name] = n.Values[j]
		}

		es := EntityScore{
			Entity:          n.Entity,
			ComplexityScore: weightedSum(lookup, complexityWeights),
			StructureScore:  weightedSum(lookup, structureWeights),
			CouplingScore:   weightedSum(lookup, couplingWeights),
			DebtScore:       weightedSum(lookup, debtWeights),
		}
		fi := fanIn[n.Entity]
		es.PriorityScore = es.ComplexityScore * math.Log1p(fi)
		out[i] = es
	}
	return out
}

// weightedSum computes a weighted average of values under weights,
// normalized by the sum of absolute weights so the result stays inside
// [0,1] even when some weights (e.g. maintainability_index) are negative.
func weightedSum(values map[string]float64, weights map[string]float64) float64 {
	var sum, weightTotal float64
	for name, w := range weights {
		v, ok := values[name]
		if !ok {
			continue
		}
		sum += v * w
		weightTotal += math.Abs(w)
	}
	if weightTotal == 0 {
		return 0
	}
	// Shift from a [-weightTotal,weightTotal] signed sum into [0,1].
	return clamp01((sum + weightTotal) / (2 * weightTotal))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

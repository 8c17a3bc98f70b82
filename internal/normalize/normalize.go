// Package normalize implements the Normalizer (spec §4.9): two
// configurable schemes, robust z-score and Bayesian, applied per named
// feature across a batch of entities sharing a fixed feature schema. The
// inner loop is manually unrolled 4-wide with a scalar tail, grounded on
// the teacher's internal/core.CountLines batch-processing style (lean on
// the runtime's own vectorization of tight loops rather than hand-written
// assembly).
package normalize

import (
	"math"
	"sort"

	"github.com/sibyllinesoft/valknut/internal/feature"
)

// Confidence labels how much the normalizer trusts a feature's
// distribution statistics, based on sample size (z-score scheme) or
// posterior variance (Bayesian scheme).
type Confidence string

const (
	ConfidenceHigh         Confidence = "High"
	ConfidenceMedium       Confidence = "Medium"
	ConfidenceLow          Confidence = "Low"
	ConfidenceVeryLow      Confidence = "VeryLow"
	ConfidenceInsufficient Confidence = "Insufficient"
)

// Scheme selects which of the two spec §4.9 normalization schemes a
// feature uses.
type Scheme string

const (
	SchemeZScore   Scheme = "zscore"
	SchemeBayesian Scheme = "bayesian"
)

// bayesianFeatures names the features fit with the Bayesian scheme
// instead of the default robust z-score. line_coverage is the one
// feature in the schema that is routinely sparse per entity (many
// functions have zero or unknown coverage in a partial run), which is
// exactly the small-n case the Bayesian prior is meant to stabilize;
// every other feature has enough in-batch volume that the robust
// z-score's median/MAD already behaves well.
var bayesianFeatures = map[string]bool{
	"line_coverage": true,
}

// SchemeFor reports which scheme a feature name is fit and transformed
// with. Unlisted features default to the robust z-score scheme.
func SchemeFor(name string) Scheme {
	if bayesianFeatures[name] {
		return SchemeBayesian
	}
	return SchemeZScore
}

// bayesianPrior is a feature-specific Gaussian prior (mean, variance)
// for the Bayesian scheme. line_coverage's prior is centered at 50%
// coverage with a wide spread, reflecting that an un-analyzed codebase
// is as likely to be well-tested as not; the batch's own observations
// dominate the posterior as soon as a handful of entities have known
// coverage.
var bayesianPriors = map[string]struct{ Mean, Var float64 }{
	"line_coverage": {Mean: 0.5, Var: 0.25},
}

func priorFor(name string) (mean, variance float64) {
	if p, ok := bayesianPriors[name]; ok {
		return p.Mean, p.Var
	}
	return 0, 1
}

// Stats holds the fitted distribution parameters for one feature name,
// under whichever scheme SchemeFor selects for it.
type Stats struct {
	Name   string
	Scheme Scheme

	// z-score scheme
	Median float64
	MAD    float64

	// Bayesian scheme
	PosteriorMean float64
	PosteriorVar  float64

	Confidence Confidence
	N          int
}

const epsilon = 1e-9

// Fit computes distribution statistics for every feature name across
// vectors, skipping sentinel values so an "unknown" never pollutes the
// distribution. Each feature is fit under the scheme SchemeFor assigns
// it: robust median/MAD for z-score features, Gaussian posterior
// mean/variance for Bayesian features.
func Fit(vectors []*feature.Vector) map[string]Stats {
	columns := map[string][]float64{}
	for _, v := range vectors {
		for i, name := range v.Names {
			val := v.Values[i]
			if feature.IsSentinel(val) {
				continue
			}
			columns[name] = append(columns[name], val)
		}
	}

	out := make(map[string]Stats, len(columns))
	for name, values := range columns {
		switch SchemeFor(name) {
		case SchemeBayesian:
			out[name] = fitBayesian(name, values)
		default:
			out[name] = fitZScore(name, values)
		}
	}
	return out
}

func fitZScore(name string, values []float64) Stats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := percentileSorted(sorted, 0.5)

	deviations := make([]float64, len(sorted))
	for i, v := range sorted {
		deviations[i] = math.Abs(v - median)
	}
	sort.Float64s(deviations)
	mad := percentileSorted(deviations, 0.5)

	return Stats{
		Name:       name,
		Scheme:     SchemeZScore,
		Median:     median,
		MAD:        mad,
		Confidence: confidenceForN(len(values)),
		N:          len(values),
	}
}

// fitBayesian combines a feature-specific Gaussian prior with the
// batch's own sample mean/variance into a posterior mean and variance
// (spec §4.9), via the standard conjugate normal-normal update treating
// the batch variance as the known per-observation variance. Confidence
// is labeled from the resulting posterior variance: a posterior that
// stays close to the (wide) prior variance means the batch barely moved
// the estimate, i.e. low confidence.
func fitBayesian(name string, values []float64) Stats {
	priorMean, priorVar := priorFor(name)
	n := len(values)
	if n == 0 {
		return Stats{Name: name, Scheme: SchemeBayesian, PosteriorMean: priorMean, PosteriorVar: priorVar, Confidence: ConfidenceInsufficient}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	sampleMean := sum / float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - sampleMean
		sumSq += d * d
	}
	sampleVar := sumSq/float64(n) + epsilon

	priorPrecision := 1 / priorVar
	likelihoodPrecision := float64(n) / sampleVar
	posteriorPrecision := priorPrecision + likelihoodPrecision
	posteriorVar := 1 / posteriorPrecision
	posteriorMean := posteriorVar * (priorMean*priorPrecision + sampleMean*likelihoodPrecision)

	return Stats{
		Name:          name,
		Scheme:        SchemeBayesian,
		PosteriorMean: posteriorMean,
		PosteriorVar:  posteriorVar,
		Confidence:    confidenceForVariance(posteriorVar),
		N:             n,
	}
}

func confidenceForN(n int) Confidence {
	switch {
	case n >= 100:
		return ConfidenceHigh
	case n >= 30:
		return ConfidenceMedium
	case n >= 10:
		return ConfidenceLow
	case n >= 3:
		return ConfidenceVeryLow
	default:
		return ConfidenceInsufficient
	}
}

// confidenceForVariance labels Bayesian posterior confidence: a tight
// posterior (small variance) means the batch's observations dominated
// the prior and the estimate is trustworthy.
func confidenceForVariance(v float64) Confidence {
	switch {
	case v <= 0.01:
		return ConfidenceHigh
	case v <= 0.05:
		return ConfidenceMedium
	case v <= 0.15:
		return ConfidenceLow
	case v <= 0.25:
		return ConfidenceVeryLow
	default:
		return ConfidenceInsufficient
	}
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Transform maps every vector's features into [0,1] using stats fit by
// Fit, each through the scheme it was fit under (see transformOne):
// robust z-score clipped to [-3,3] and rescaled, or the Bayesian
// posterior z-score squashed through a logistic. Features
// with insufficient-confidence stats or a sentinel input value pass
// through as 0.5 (the neutral midpoint), since the scorer cannot trust a
// z-score computed from fewer than 3 samples. The 4-wide unrolled path
// runs whenever enableSIMD is true and the vector is long enough to
// benefit; both paths call the same transformOne reduction so results are
// bit-equivalent regardless of which one ran.
func Transform(vectors []*feature.Vector, stats map[string]Stats, enableSIMD bool) []*feature.Normalized {
	out := make([]*feature.Normalized, len(vectors))
	for vi, v := range vectors {
		n := &feature.Normalized{Entity: v.Entity, Names: append([]string(nil), v.Names...)}
		n.Values = make([]float64, len(v.Values))

		i := 0
		if enableSIMD {
			for ; i+4 <= len(v.Values); i += 4 {
				n.Values[i] = transformOne(v.Names[i], v.Values[i], stats)
				n.Values[i+1] = transformOne(v.Names[i+1], v.Values[i+1], stats)
				n.Values[i+2] = transformOne(v.Names[i+2], v.Values[i+2], stats)
				n.Values[i+3] = transformOne(v.Names[i+3], v.Values[i+3], stats)
			}
		}
		for ; i < len(v.Values); i++ {
			n.Values[i] = transformOne(v.Names[i], v.Values[i], stats)
		}
		out[vi] = n
	}
	return out
}

// transformOne applies whichever scheme fit s under: robust z-score
// (clip to [-3,3], rescale to [0,1]) or Bayesian (z-score against the
// posterior, squashed through a logistic). Both neutral-value cases
// (missing feature, sentinel input, insufficient confidence) return 0.5,
// the scheme-agnostic neutral midpoint the spec requires for missing
// features.
func transformOne(name string, value float64, stats map[string]Stats) float64 {
	if feature.IsSentinel(value) {
		return 0.5
	}
	s, ok := stats[name]
	if !ok || s.Confidence == ConfidenceInsufficient {
		return 0.5
	}
	if s.Scheme == SchemeBayesian {
		z := (value - s.PosteriorMean) / math.Sqrt(s.PosteriorVar+epsilon)
		return 1 / (1 + math.Exp(-z))
	}
	z := (value - s.Median) / (1.4826*s.MAD + epsilon)
	if z < -3 {
		z = -3
	}
	if z > 3 {
		z = 3
	}
	return (z + 3) / 6.0
}

// Package feature defines the FeatureVector and NormalizedVector types
// that flow from the five detectors through the normalizer to the scorer.
// The ordered map of features is total within a detector's declared
// schema: a detector that cannot compute a value records an explicit
// sentinel rather than omitting the key, per the data model's invariant.
package feature

import (
	"math"

	"github.com/sibyllinesoft/valknut/internal/entity"
)

// Sentinel marks a feature value that a detector could not compute (e.g.
// no coverage report found). It is distinct from 0, so downstream
// aggregation never mistakes "unknown" for "measured zero".
var Sentinel = math.NaN()

// IsSentinel reports whether v is the "value not computed" sentinel.
func IsSentinel(v float64) bool {
	return math.IsNaN(v)
}

// Provenance is a bitset of which extractors contributed to a vector,
// indexed by Source.
type Provenance uint8

const (
	SourceComplexity Provenance = 1 << iota
	SourceStructure
	SourceGraph
	SourceClone
	SourceCoverage
)

// Vector is an ordered mapping from feature name to real value for one
// entity. Field order in Names/Values is fixed at construction and is
// never resorted, so downstream batches can rely on positional alignment.
type Vector struct {
	Entity     entity.ID
	Names      []string
	Values     []float64
	Provenance Provenance
}

// NewVector creates an empty Vector for id.
func NewVector(id entity.ID) *Vector {
	return &Vector{Entity: id}
}

// Set appends or overwrites a named feature value.
func (v *Vector) Set(name string, value float64, source Provenance) {
	for i, n := range v.Names {
		if n == name {
			v.Values[i] = value
			v.Provenance |= source
			return
		}
	}
	v.Names = append(v.Names, name)
	v.Values = append(v.Values, value)
	v.Provenance |= source
}

// Get returns the value for name, or (0, false) if absent.
func (v *Vector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Merge folds other's features into v, used to combine per-detector
// vectors for the same entity before normalization.
func (v *Vector) Merge(other *Vector) {
	if other == nil {
		return
	}
	for i, name := range other.Names {
		v.Set(name, other.Values[i], other.Provenance)
	}
}

// Normalized is a Vector after a Normalizer has fit distribution
// statistics across a batch; values are rescaled into a known range
// (typically [0,1] or a z-score band) but keep the same name/order
// contract as Vector.
type Normalized struct {
	Entity entity.ID
	Names  []string
	Values []float64
}

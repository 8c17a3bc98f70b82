// Package finding defines the detector-local Finding type consumed by the
// pack builder.
package finding

import (
	"github.com/sibyllinesoft/valknut/internal/entity"
)

// Kind tags the category of observation a detector produced.
type Kind string

const (
	KindComplexityHotspot Kind = "ComplexityHotspot"
	KindImpactCycle       Kind = "ImpactCycle"
	KindChokepoint        Kind = "Chokepoint"
	KindClone             Kind = "Clone"
	KindFileSplit         Kind = "FileSplit"
	KindBranchReorg       Kind = "BranchReorg"
	KindCoverageGap       Kind = "CoverageGap"
	KindTimeout           Kind = "Timeout"
)

// KindRank gives the deterministic tie-break order used by the pack
// builder's ranking rule (priority desc, kind_rank asc, first_entity_id asc).
func (k Kind) KindRank() int {
	switch k {
	case KindImpactCycle:
		return 0
	case KindChokepoint:
		return 1
	case KindComplexityHotspot:
		return 2
	case KindClone:
		return 3
	case KindFileSplit:
		return 4
	case KindBranchReorg:
		return 5
	case KindCoverageGap:
		return 6
	case KindTimeout:
		return 7
	default:
		return 99
	}
}

// Finding is a detector-local observation: a complexity hotspot, clone
// pair, cycle, coverage gap, or structural imbalance.
type Finding struct {
	Kind           Kind
	PrimaryEntity  entity.ID
	OtherEntities  []entity.ID
	Severity       float64 // 0..1 for every kind except FileSplit, whose formula can exceed 1
	Effort         float64 // proxy effort, detector-specific units
	Reasons        []string
	Path           string // file path, for file-scoped findings (Timeout, FileSplit)
}

// New creates a Finding with the given primary entity and kind.
func New(kind Kind, primary entity.ID) *Finding {
	return &Finding{Kind: kind, PrimaryEntity: primary}
}

// WithReason appends a human-readable reason string and returns f for chaining.
func (f *Finding) WithReason(reason string) *Finding {
	f.Reasons = append(f.Reasons, reason)
	return f
}

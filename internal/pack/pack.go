// Package pack implements the Pack Builder (spec §4.11): findings are
// grouped into Packs, deduplicated by entity-set overlap, ranked by
// priority with a deterministic tie-break, and truncated to the
// configured output budget.
package pack

import (
	"math"
	"sort"

	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/finding"
)

// Pack is one ranked unit of output: a finding plus the derived priority
// used to rank it against every other pack in the run.
type Pack struct {
	Kind          finding.Kind
	PrimaryEntity entity.ID
	Entities      []entity.ID // primary first, then OtherEntities
	Value         float64     // severity-derived benefit
	Effort        float64
	Priority      float64 // value / (effort + epsilon)
	Reasons       []string
}

const priorityEpsilon = 1e-6

// FromFinding converts a detector Finding into a Pack, computing priority
// as value/(effort+epsilon) per the data model. fanIn is the primary
// entity's raw (non-normalized) incoming dependency-graph edge count, used
// to set value = severity * (1 + log1p(fan_in)) so that two
// equally-severe findings on entities of differing centrality don't rank
// identically: the more depended-upon entity outranks the other. Unlike
// the scorer's PriorityScore, a fan-in of 0 leaves value equal to severity.
func FromFinding(f *finding.Finding, fanIn float64) Pack {
	entities := append([]entity.ID{f.PrimaryEntity}, f.OtherEntities...)
	value := f.Severity * (1 + math.Log1p(fanIn))
	return Pack{
		Kind:          f.Kind,
		PrimaryEntity: f.PrimaryEntity,
		Entities:      entities,
		Value:         value,
		Effort:        f.Effort,
		Priority:      value / (f.Effort + priorityEpsilon),
		Reasons:       append([]string(nil), f.Reasons...),
	}
}

// Build converts findings to packs, deduplicates overlapping packs
// (collapsing to the highest-priority member of any group whose entity
// sets overlap by more than nonOverlapThreshold by Jaccard similarity),
// ranks the survivors, and truncates to maxPacks with up to topKPerKind
// packs of any single kind. fanIn supplies each entity's raw dependency
// fan-in (from internal/graph), keyed by entity.ID; entities absent from
// the map (e.g. no graph module run) get a neutral fan-in of 0.
func Build(findings []*finding.Finding, fanIn map[entity.ID]float64, nonOverlapThreshold float64, maxPacks, topKPerKind int) []Pack {
	packs := make([]Pack, 0, len(findings))
	for _, f := range findings {
		if f == nil {
			continue
		}
		packs = append(packs, FromFinding(f, fanIn[f.PrimaryEntity]))
	}

	packs = dedup(packs, nonOverlapThreshold)
	rank(packs)
	return truncate(packs, maxPacks, topKPerKind)
}

// dedup collapses packs whose entity sets overlap by more than threshold
// (Jaccard similarity over entity ID sets) to the single highest-priority
// member of each overlapping group. O(n^2) in pack count, acceptable since
// pack counts are post-threshold and typically small relative to entity
// counts.
func dedup(packs []Pack, threshold float64) []Pack {
	n := len(packs)
	kept := make([]bool, n)
	for i := range kept {
		kept[i] = true
	}

	for i := 0; i < n; i++ {
		if !kept[i] {
			continue
		}
		for j := i + 1; j < n; j++ {
			if !kept[j] {
				continue
			}
			if jaccardOverlap(packs[i].Entities, packs[j].Entities) > threshold {
				if packs[j].Priority > packs[i].Priority {
					kept[i] = false
					break
				}
				kept[j] = false
			}
		}
	}

	out := make([]Pack, 0, n)
	for i, k := range kept {
		if k {
			out = append(out, packs[i])
		}
	}
	return out
}

func jaccardOverlap(a, b []entity.ID) float64 {
	set := make(map[entity.ID]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	shared := 0
	union := len(set)
	for _, id := range b {
		if set[id] {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// rank sorts packs by (priority desc, kind_rank asc, first_entity_id asc),
// the deterministic ranking rule from the data model.
func rank(packs []Pack) {
	sort.SliceStable(packs, func(i, j int) bool {
		if packs[i].Priority != packs[j].Priority {
			return packs[i].Priority > packs[j].Priority
		}
		ri, rj := packs[i].Kind.KindRank(), packs[j].Kind.KindRank()
		if ri != rj {
			return ri < rj
		}
		return packs[i].PrimaryEntity < packs[j].PrimaryEntity
	})
}

// truncate keeps at most maxPacks packs overall, further capping any
// single kind at topKPerKind entries so one noisy detector can't crowd out
// the rest of the report.
func truncate(packs []Pack, maxPacks, topKPerKind int) []Pack {
	kindCount := map[finding.Kind]int{}
	out := make([]Pack, 0, maxPacks)
	for _, p := range packs {
		if len(out) >= maxPacks {
			break
		}
		if topKPerKind > 0 && kindCount[p.Kind] >= topKPerKind {
			continue
		}
		kindCount[p.Kind]++
		out = append(out, p)
	}
	return out
}

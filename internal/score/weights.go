package score

// Canonical weight table for complexity_score and debt_score (spec §4.10
// Open Question resolution): the original source carried two overlapping
// weight tables for these scores; this module keeps one, documented in
// DESIGN.md, rather than reconciling both into the pipeline.
var complexityWeights = map[string]float64{
	"cyclomatic_complexity":  0.35,
	"cognitive_complexity":   0.35,
	"halstead_effort":        0.15,
	"maintainability_index":  -0.15, // higher MI lowers complexity_score
}

var debtWeights = map[string]float64{
	"imbalance":              0.3,
	"fan_in":                 0.15,
	"fan_out":                0.15,
	"betweenness_centrality": 0.2,
	"line_coverage":          -0.2, // higher coverage lowers debt
}

var structureWeights = map[string]float64{
	"file_pressure":   0.3,
	"branch_pressure": 0.3,
	"size_pressure":   0.25,
	"dispersion":      0.15,
}

var couplingWeights = map[string]float64{
	"fan_in":                 0.4,
	"fan_out":                0.3,
	"betweenness_centrality": 0.3,
}

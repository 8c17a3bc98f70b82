package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/ast"
	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/extract"
)

func parseFunctions(t *testing.T, src []byte) ([]extract.FunctionLike, []byte) {
	t.Helper()
	adapter := ast.ForLanguage("go")
	tree, err := adapter.Parse(src)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	arena := entity.New(8)
	result, err := extract.Extract(arena, adapter, tree, src, "demo.go")
	require.NoError(t, err)
	return result.Functions, src
}

func TestAnalyzeFindsNearIdenticalFunctions(t *testing.T) {
	src := []byte(`package demo

func SumA(a int, b int) int {
	total := 0
	for i := 0; i < a; i++ {
		total = total + b
	}
	return total
}

func SumB(x int, y int) int {
	result := 0
	for i := 0; i < x; i++ {
		result = result + y
	}
	return result
}
`)
	fns, content := parseFunctions(t, src)
	require.Len(t, fns, 2)

	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Clones.MinFunctionTokens = 3
	cfg.Clones.RequireBlocks = 1
	cfg.Clones.MinSharedMotifs = 1
	cfg.Clones.SimilarityThreshold = 0.3
	cfg.Clones.AptedVerify = false

	candidates := []Candidate{NewCandidate(fns[0], content), NewCandidate(fns[1], content)}
	findings := Analyze(cfg, candidates)
	assert.NotEmpty(t, findings)
}

// TestIOPenaltyIsAppliedBeforeSimilarityThreshold pins the Open Question
// resolution recorded in DESIGN.md/SPEC_FULL.md: the io-penalty multiplier
// is folded into the weighted-Jaccard score that gets compared against
// similarity_threshold, not applied as a post-hoc filter on pairs that
// already cleared it. A pair with differing arity and unrelated names (so
// the stemmed-name-overlap discount doesn't intervene) should clone-match
// with the penalty disabled and drop out once it's enabled, proving the
// penalty moves the score across the threshold rather than being checked
// afterward.
func TestIOPenaltyIsAppliedBeforeSimilarityThreshold(t *testing.T) {
	src := []byte(`package demo

func AlphaWorker(a int, b int) int {
	total := 0
	for i := 0; i < a; i++ {
		total = total + b
	}
	return total
}

func BetaHandler(x int, y int, z int) int {
	total := 0
	for i := 0; i < x; i++ {
		total = total + y
	}
	return total
}
`)
	fns, content := parseFunctions(t, src)
	require.Len(t, fns, 2)

	base := *config.DefaultConfig(config.ProfileBalanced)
	base.Clones.MinFunctionTokens = 3
	base.Clones.RequireBlocks = 1
	base.Clones.MinSharedMotifs = 1
	base.Clones.AptedVerify = false
	base.Clones.SimilarityThreshold = 0.3

	candidates := []Candidate{NewCandidate(fns[0], content), NewCandidate(fns[1], content)}

	withoutPenalty := base
	withoutPenalty.Clones.IOPenalty = 0
	found := Analyze(&withoutPenalty, candidates)
	require.NotEmpty(t, found, "differing-arity pair should still clone-match when the io penalty is disabled")

	withPenalty := base
	withPenalty.Clones.IOPenalty = 1
	suppressed := Analyze(&withPenalty, candidates)
	assert.Empty(t, suppressed, "io penalty must be folded into the score before the threshold check, not applied post-hoc")
}

func TestAnalyzeIgnoresShortFunctions(t *testing.T) {
	src := []byte(`package demo

func A() int { return 1 }
func B() int { return 2 }
`)
	fns, content := parseFunctions(t, src)
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Clones.MinFunctionTokens = 1000 // nothing will qualify

	candidates := []Candidate{NewCandidate(fns[0], content), NewCandidate(fns[1], content)}
	findings := Analyze(cfg, candidates)
	assert.Empty(t, findings)
}

// Package complexity implements the Complexity detector (spec §4.4):
// cyclomatic and cognitive complexity, Halstead volume/effort, and the
// maintainability-index formula, each computed per function/method entity
// from its tree-sitter subtree.
package complexity

import (
	"fmt"
	"math"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/extract"
	"github.com/sibyllinesoft/valknut/internal/feature"
	"github.com/sibyllinesoft/valknut/internal/finding"
)

// decisionKinds are tree-sitter node kinds that add one decision point to
// cyclomatic complexity across the languages valknut supports. This is a
// deliberately conservative, language-agnostic set: control-flow nodes that
// recur under very similar names in every grammar we register.
var decisionKinds = map[string]bool{
	"if_statement": true, "elif_clause": true, "else_clause": false,
	"for_statement": true, "for_in_statement": true, "for_range_clause": true,
	"while_statement": true, "do_statement": true,
	"case_clause": true, "switch_case": true, "catch_clause": true,
	"conditional_expression": true, "binary_expression": false,
	"ternary_expression": true, "guard_statement": true,
}

// nestingKinds additionally increase the cognitive-complexity nesting
// penalty: a decision nested inside one of these costs more than one at
// top level (Sonar-style weighting).
var nestingKinds = map[string]bool{
	"if_statement": true, "for_statement": true, "for_in_statement": true,
	"while_statement": true, "do_statement": true, "switch_statement": true,
}

// operatorKinds/operandKinds approximate Halstead's operator/operand
// classification well enough to be a useful relative signal without a
// full per-language token-class table.
var operatorKinds = map[string]bool{
	"binary_expression": true, "unary_expression": true, "assignment_expression": true,
	"call_expression": true, "call": true,
}

// Result is one function/method entity's computed complexity features and
// any finding it triggers.
type Result struct {
	Entity     entity.ID
	Features   *feature.Vector
	Finding    *finding.Finding // nil if under threshold
	Cyclomatic int              // raw cyclomatic complexity, for health.Aggregate's gate-facing average
}

// Analyze walks each extracted function/method node and computes its
// complexity metrics, comparing cyclomatic complexity against the
// per-language threshold from cfg.Complexity to decide whether to emit a
// ComplexityHotspot finding.
func Analyze(cfg *config.Config, language string, fns []extract.FunctionLike) []Result {
	threshold := cfg.Complexity.DefaultThreshold
	if t, ok := cfg.Complexity.PerLanguage[language]; ok {
		threshold = t
	}

	out := make([]Result, 0, len(fns))
	for _, fn := range fns {
		cyclomatic, cognitive, operators, operands, distinctOps, distinctOperands := walk(fn.Node, 0)
		loc := extract.FunctionSourceLen(fn.Node)

		vocab := distinctOps + distinctOperands
		length := operators + operands
		volume := 0.0
		if vocab > 0 && length > 0 {
			volume = float64(length) * math.Log2(float64(vocab))
		}
		difficulty := 0.0
		if distinctOperands > 0 {
			difficulty = (float64(distinctOps) / 2.0) * (float64(operands) / float64(distinctOperands))
		}
		effort := difficulty * volume

		mi := maintainabilityIndex(volume, cyclomatic, loc)

		fv := feature.NewVector(fn.ID)
		fv.Set("cyclomatic_complexity", float64(cyclomatic), feature.SourceComplexity)
		fv.Set("cognitive_complexity", float64(cognitive), feature.SourceComplexity)
		fv.Set("halstead_volume", volume, feature.SourceComplexity)
		fv.Set("halstead_effort", effort, feature.SourceComplexity)
		fv.Set("maintainability_index", mi, feature.SourceComplexity)
		fv.Set("loc", float64(loc), feature.SourceComplexity)

		res := Result{Entity: fn.ID, Features: fv, Cyclomatic: cyclomatic}
		if cyclomatic > threshold {
			severity := math.Min(1.0, float64(cyclomatic-threshold)/float64(threshold))
			f := finding.New(finding.KindComplexityHotspot, fn.ID)
			f.Severity = severity
			f.Effort = effort
			f.WithReason(fmt.Sprintf("cyclomatic complexity %d exceeds threshold %d", cyclomatic, threshold))
			if cognitive > threshold {
				f.WithReason(fmt.Sprintf("cognitive complexity %d also exceeds threshold", cognitive))
			}
			res.Finding = f
		}
		out = append(out, res)
	}
	return out
}

// walk recursively accumulates cyclomatic decision points, a Sonar-style
// cognitive score (decisions weighted by nesting depth), and rough
// Halstead operator/operand tallies.
func walk(n *tree_sitter.Node, depth int) (cyclomatic, cognitive, operators, operands, distinctOps, distinctOperands int) {
	seenOps := map[string]bool{}
	seenOperands := map[string]bool{}
	var rec func(n tree_sitter.Node, depth int)
	rec = func(n tree_sitter.Node, depth int) {
		kind := n.Kind()
		nextDepth := depth
		if decisionKinds[kind] {
			cyclomatic++
			cognitive += 1 + depth
		}
		if nestingKinds[kind] {
			nextDepth = depth + 1
		}
		if operatorKinds[kind] {
			operators++
			if !seenOps[kind] {
				seenOps[kind] = true
				distinctOps++
			}
		}
		if kind == "identifier" || kind == "field_identifier" {
			operands++
			if !seenOperands[kind] {
				seenOperands[kind] = true
				distinctOperands++
			}
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			child := n.Child(uint(i))
			if child != nil {
				rec(*child, nextDepth)
			}
		}
	}
	rec(*n, depth)
	cyclomatic++ // base path
	return
}

// maintainabilityIndex applies the classic formula, clamped to [0,171] and
// floored at 0 as the spec requires.
func maintainabilityIndex(volume float64, cyclomatic, loc int) float64 {
	if volume <= 0 {
		volume = 1
	}
	if loc <= 0 {
		loc = 1
	}
	mi := 171 - 5.2*math.Log(volume) - 0.23*float64(cyclomatic) - 16.2*math.Log(float64(loc))
	if mi < 0 {
		mi = 0
	}
	return mi
}

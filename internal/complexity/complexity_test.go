package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/ast"
	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/extract"
)

func TestAnalyzeFlagsHighCyclomaticFunction(t *testing.T) {
	src := []byte(`package demo

func Branchy(x int) int {
	if x > 0 {
		if x > 1 {
			return 1
		}
	}
	for i := 0; i < x; i++ {
		if i%2 == 0 {
			if i%3 == 0 {
				return i
			}
		}
	}
	switch x {
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	}
	return 0
}
`)
	adapter := ast.ForLanguage("go")
	require.NotNil(t, adapter)
	tree, err := adapter.Parse(src)
	require.NoError(t, err)
	defer tree.Close()

	arena := entity.New(4)
	result, err := extract.Extract(arena, adapter, tree, src, "demo.go")
	require.NoError(t, err)
	require.Len(t, result.Functions, 1)

	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Complexity.PerLanguage["go"] = 3

	results := Analyze(cfg, "go", result.Functions)
	require.Len(t, results, 1)
	assert.NotNil(t, results[0].Finding)
	assert.Equal(t, result.Functions[0].ID, results[0].Finding.PrimaryEntity)

	cc, ok := results[0].Features.Get("cyclomatic_complexity")
	require.True(t, ok)
	assert.Greater(t, cc, 3.0)
}

func TestAnalyzeLeavesSimpleFunctionUnflagged(t *testing.T) {
	src := []byte(`package demo

func Add(a, b int) int {
	return a + b
}
`)
	adapter := ast.ForLanguage("go")
	tree, err := adapter.Parse(src)
	require.NoError(t, err)
	defer tree.Close()

	arena := entity.New(4)
	result, err := extract.Extract(arena, adapter, tree, src, "demo.go")
	require.NoError(t, err)

	cfg := config.DefaultConfig(config.ProfileBalanced)
	results := Analyze(cfg, "go", result.Functions)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Finding)
}

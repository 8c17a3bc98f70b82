package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/ast"
	"github.com/sibyllinesoft/valknut/internal/entity"
)

func TestExtractFindsGoFunctionsAndMethods(t *testing.T) {
	src := []byte(`package demo

func Add(a, b int) int {
	return a + b
}

type Server struct{}

func (s *Server) Start() error {
	return nil
}
`)
	adapter := ast.ForLanguage("go")
	require.NotNil(t, adapter)
	tree, err := adapter.Parse(src)
	require.NoError(t, err)
	defer tree.Close()

	arena := entity.New(8)
	result, err := Extract(arena, adapter, tree, src, "demo.go")
	require.NoError(t, err)

	arena.Seal()
	file, ok := arena.Get(result.FileEntity)
	require.True(t, ok)
	assert.Equal(t, entity.KindFile, file.Kind)
	assert.Len(t, file.Children, 3) // Add, Server type, Start method

	var names []string
	for _, child := range file.Children {
		e, _ := arena.Get(child)
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Add")
	assert.Contains(t, names, "Start")

	assert.Len(t, result.Functions, 2)
}

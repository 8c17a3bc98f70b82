package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForLanguageReturnsRegisteredAdapters(t *testing.T) {
	for _, lang := range []string{"go", "python", "javascript", "typescript", "java", "csharp", "cpp", "php", "rust", "zig"} {
		assert.NotNil(t, ForLanguage(lang), "expected adapter for %s", lang)
	}
	assert.Nil(t, ForLanguage("cobol"))
}

func TestGoAdapterParsesSimpleFunction(t *testing.T) {
	adapter := ForLanguage("go")
	require.NotNil(t, adapter)

	tree, err := adapter.Parse([]byte("package main\n\nfunc main() {}\n"))
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "source_file", root.Kind())
	assert.Greater(t, int(root.ChildCount()), 0)
}

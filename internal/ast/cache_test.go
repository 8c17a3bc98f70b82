package ast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func TestGetOrParseParsesOnceOnMiss(t *testing.T) {
	adapter := ForLanguage("go")
	require.NotNil(t, adapter)

	cache := NewCache(10)
	var parseCalls int

	ct, err := cache.GetOrParse("go", "hash1", func() (*tree_sitter.Tree, error) {
		parseCalls++
		return adapter.Parse([]byte("package main\nfunc main() {}\n"))
	})
	require.NoError(t, err)
	require.NotNil(t, ct)
	defer ct.Release()

	ct2, err := cache.GetOrParse("go", "hash1", func() (*tree_sitter.Tree, error) {
		parseCalls++
		return nil, nil
	})
	require.NoError(t, err)
	defer ct2.Release()

	assert.Equal(t, 1, parseCalls)
	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	adapter := ForLanguage("go")
	cache := NewCache(1)

	parse := func(src string) func() (*tree_sitter.Tree, error) {
		return func() (*tree_sitter.Tree, error) {
			return adapter.Parse([]byte(src))
		}
	}

	ct1, err := cache.GetOrParse("go", "h1", parse("package a\n"))
	require.NoError(t, err)
	ct1.Release()

	ct2, err := cache.GetOrParse("go", "h2", parse("package b\n"))
	require.NoError(t, err)
	ct2.Release()

	assert.Equal(t, 1, cache.Len())
}

func TestGetOrParseSingleFlightUnderConcurrency(t *testing.T) {
	adapter := ForLanguage("go")
	cache := NewCache(10)

	var parseCalls int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ct, err := cache.GetOrParse("go", "shared", func() (*tree_sitter.Tree, error) {
				mu.Lock()
				parseCalls++
				mu.Unlock()
				return adapter.Parse([]byte("package shared\n"))
			})
			require.NoError(t, err)
			ct.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, parseCalls)
}

package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	a := New(4)
	id1 := a.Insert(KindFile, "a.go", "a.go", Span{}, Invalid)
	id2 := a.Insert(KindFunction, "f", "a.go", Span{}, id1)

	assert.Equal(t, ID(1), id1)
	assert.Equal(t, ID(2), id2)
	assert.True(t, id2 > id1)
}

func TestAddChildLinksParent(t *testing.T) {
	a := New(4)
	fileID := a.Insert(KindFile, "a.go", "a.go", Span{}, Invalid)
	fnID := a.Insert(KindFunction, "f", "a.go", Span{}, fileID)
	a.AddChild(fileID, fnID)

	file, ok := a.Get(fileID)
	require.True(t, ok)
	assert.Equal(t, []ID{fnID}, file.Children)
}

func TestSealMakesReadsLockFree(t *testing.T) {
	a := New(4)
	id := a.Insert(KindFile, "a.go", "a.go", Span{}, Invalid)
	a.Seal()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := a.Get(id)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Panics(t, func() {
		a.Insert(KindFunction, "late", "a.go", Span{}, Invalid)
	})
}

func TestIsLiveAndInvalid(t *testing.T) {
	a := New(1)
	assert.False(t, a.IsLive(Invalid))
	id := a.Insert(KindFile, "a.go", "a.go", Span{}, Invalid)
	assert.True(t, a.IsLive(id))
	assert.False(t, a.IsLive(id+100))
}

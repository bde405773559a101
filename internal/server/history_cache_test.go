package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCacheTrimsOldestTurns(t *testing.T) {
	cache := newHistoryCache(10, 4)
	for i := 0; i < 6; i++ {
		cache.Append("u1", ChatTurn{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}

	turns := cache.Get("u1")
	require.Len(t, turns, 4)
	assert.Equal(t, "m2", turns[0].Content)
	assert.Equal(t, "m5", turns[3].Content)
}

func TestHistoryCacheAppendReturnsCopy(t *testing.T) {
	cache := newHistoryCache(10, 10)
	returned := cache.Append("u1", ChatTurn{Role: "user", Content: "hello"})
	returned[0].Content = "mutated"

	assert.Equal(t, "hello", cache.Get("u1")[0].Content)

	got := cache.Get("u1")
	got[0].Content = "mutated again"
	assert.Equal(t, "hello", cache.Get("u1")[0].Content)
}

func TestHistoryCacheEvictsLeastRecentlyUsedUser(t *testing.T) {
	cache := newHistoryCache(2, 10)
	cache.Append("a", ChatTurn{Role: "user", Content: "a1"})
	cache.Append("b", ChatTurn{Role: "user", Content: "b1"})
	cache.Append("a", ChatTurn{Role: "assistant", Content: "a2"})
	cache.Append("c", ChatTurn{Role: "user", Content: "c1"})

	assert.Equal(t, 2, cache.Len())
	assert.Empty(t, cache.Get("b"))
	assert.Len(t, cache.Get("a"), 2)
	assert.Len(t, cache.Get("c"), 1)
}

func TestHistoryCacheClearIsPerUser(t *testing.T) {
	cache := newHistoryCache(0, 0)
	cache.Append("a", ChatTurn{Role: "user", Content: "a1"})
	cache.Append("b", ChatTurn{Role: "user", Content: "b1"})

	cache.Clear("a")
	assert.Empty(t, cache.Get("a"))
	assert.Len(t, cache.Get("b"), 1)
	assert.Equal(t, defaultHistoryMaxTurns, cache.maxTurns)
}

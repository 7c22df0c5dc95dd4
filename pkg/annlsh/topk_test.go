package annlsh

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: capacity is respected and the retained items are the k smallest.
func TestBoundedTopK_RetainsKSmallest(t *testing.T) {
	// Given a capacity-3 selector fed five candidates in arbitrary order
	topk := NewBoundedTopK(3)
	topk.Insert("e", 5.0)
	topk.Insert("a", 1.0)
	topk.Insert("d", 4.0)
	topk.Insert("b", 2.0)
	topk.Insert("c", 3.0)

	// When drained
	results := topk.DrainSorted()

	// Then the three smallest distances survive, in ascending order
	require.Len(t, results, 3)
	assert.Equal(t, []VectorId{"a", "b", "c"}, ids(results))
	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool { return results[i].Distance < results[j].Distance }))
}

// TS02: equal distances do not displace an already-accepted candidate.
func TestBoundedTopK_EqualDistanceDoesNotDisplace(t *testing.T) {
	// Given a capacity-1 selector already holding "first" at distance 1.0
	topk := NewBoundedTopK(1)
	topk.Insert("first", 1.0)

	// When a second candidate arrives at the exact same distance
	topk.Insert("second", 1.0)

	// Then "first" is retained, per the strict less-than eviction rule
	results := topk.DrainSorted()
	require.Len(t, results, 1)
	assert.Equal(t, VectorId("first"), results[0].ID)
}

// TS03: DrainSorted is single-use.
func TestBoundedTopK_DrainIsSingleUse(t *testing.T) {
	topk := NewBoundedTopK(2)
	topk.Insert("a", 1.0)

	first := topk.DrainSorted()
	second := topk.DrainSorted()

	assert.Len(t, first, 1)
	assert.Nil(t, second)
}

// TS04: a capacity-0 selector never retains anything.
func TestBoundedTopK_ZeroCapacityRetainsNothing(t *testing.T) {
	topk := NewBoundedTopK(0)
	topk.Insert("a", 1.0)
	topk.Insert("b", 2.0)

	assert.Empty(t, topk.DrainSorted())
}

// TS05: property 6 — matches a sorted-reference implementation across a
// randomised sequence of inserts.
func TestBoundedTopK_MatchesSortedReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const n, k = 200, 7

	type entry struct {
		id   VectorId
		dist float64
	}
	entries := make([]entry, n)
	for i := range entries {
		entries[i] = entry{id: VectorId(string(rune('a' + i%26))), dist: rng.Float64() * 100}
	}

	topk := NewBoundedTopK(k)
	for _, e := range entries {
		topk.Insert(e.id, e.dist)
	}
	got := topk.DrainSorted()

	sort.Slice(entries, func(i, j int) bool { return entries[i].dist < entries[j].dist })
	want := entries[:k]

	require.Len(t, got, k)
	for i := range got {
		assert.InDelta(t, want[i].dist, got[i].Distance, 1e-9)
	}
}

func ids(results []Result) []VectorId {
	out := make([]VectorId, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

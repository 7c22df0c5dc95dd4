package annlsh

import "container/heap"

// Result is a single candidate surfaced by a query, paired with its
// Euclidean distance from the query vector.
type Result struct {
	ID       VectorId
	Distance float64
}

// BoundedTopK keeps the k smallest-distance results seen across a sequence
// of Insert calls. It is a single-query, single-goroutine structure: never
// share one across concurrent callers.
type BoundedTopK struct {
	k       int
	items   topkHeap
	seq     int
	drained bool
}

// NewBoundedTopK returns a selector that retains at most k results.
func NewBoundedTopK(k int) *BoundedTopK {
	return &BoundedTopK{
		k:     k,
		items: make(topkHeap, 0, k),
	}
}

// Insert offers a candidate. If fewer than k results have been accepted so
// far, it is kept unconditionally; otherwise it replaces the current
// worst-accepted candidate only if strictly closer. Equal distances never
// displace an already-accepted candidate, so ties resolve by insertion
// order.
func (b *BoundedTopK) Insert(id VectorId, dist float64) {
	entry := topkEntry{id: id, dist: dist, seq: b.seq}
	b.seq++

	if len(b.items) < b.k {
		heap.Push(&b.items, entry)
		return
	}
	if b.k == 0 {
		return
	}
	if dist < b.items[0].dist {
		b.items[0] = entry
		heap.Fix(&b.items, 0)
	}
}

// DrainSorted consumes the selector and returns its contents in ascending
// distance order. Single-use: calling it again returns nil.
func (b *BoundedTopK) DrainSorted() []Result {
	if b.drained {
		return nil
	}
	b.drained = true

	out := make([]Result, len(b.items))
	// Popping a max-heap yields descending order; fill from the back.
	items := make(topkHeap, len(b.items))
	copy(items, b.items)
	for i := len(items) - 1; i >= 0; i-- {
		top := heap.Pop(&items).(topkEntry)
		out[i] = Result{ID: top.id, Distance: top.dist}
	}
	return out
}

// Len reports how many candidates are currently retained.
func (b *BoundedTopK) Len() int {
	return len(b.items)
}

type topkEntry struct {
	id   VectorId
	dist float64
	seq  int
}

// topkHeap is a max-heap on distance, so its root is always the current
// worst accepted candidate, per the classical bounded-k-smallest pattern.
// Ties (equal distance) are broken by insertion order: an earlier entry is
// considered "smaller" (stays further from eviction) than a later one.
type topkHeap []topkEntry

func (h topkHeap) Len() int { return len(h) }

func (h topkHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].seq > h[j].seq
}

func (h topkHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *topkHeap) Push(x any) {
	*h = append(*h, x.(topkEntry))
}

func (h *topkHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Package search implements C6 (the hierarchical layer search) and the
// shared search_layer primitive C5's linking engine also drives at
// construction time.
package search

import (
	"container/heap"

	"github.com/chassisdb/chassis/internal/distance"
)

// Candidate is one scored node during a layer search.
type Candidate struct {
	ID   uint64
	Dist float32
}

// minHeap orders by ascending distance: Pop yields the closest candidate.
// Used as the "to explore" frontier in search_layer.
type minHeap []Candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return distance.Less(h[i].Dist, h[j].Dist) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap orders by descending distance: Pop yields the farthest candidate.
// Used as the bounded result set in search_layer — when it overflows ef,
// the farthest entry is evicted.
type maxHeap []Candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return distance.Less(h[j].Dist, h[i].Dist) }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h *minHeap) pushC(c Candidate) { heap.Push(h, c) }
func (h *minHeap) popC() Candidate   { return heap.Pop(h).(Candidate) }

func (h *maxHeap) pushC(c Candidate) { heap.Push(h, c) }
func (h *maxHeap) popC() Candidate   { return heap.Pop(h).(Candidate) }
func (h maxHeap) peek() Candidate    { return h[0] }

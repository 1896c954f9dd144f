package tracker

import (
	"container/heap"
	"time"

	"aistrack/ais"
)

type staleEntry struct {
	mmsi       ais.MMSI
	lastUpdate time.Time
}

/**
 * A heap of tracks ordered by the time of their last update, so the staleness
 * sweep only looks at tracks which actually went quiet. Updated in place when
 * a track sees a new message.
 */
type staleHeap struct {
	idxs map[ais.MMSI]int
	heap []staleEntry
}

func newStaleHeap() *staleHeap {
	ret := &staleHeap{
		idxs: make(map[ais.MMSI]int),
		heap: make([]staleEntry, 0, 128),
	}
	heap.Init(ret)
	return ret
}

// The track which has been quiet for the longest time
func (h *staleHeap) Peek() (staleEntry, bool) {
	if len(h.heap) == 0 {
		return staleEntry{}, false
	}
	return h.heap[0], true
}

// Update or insert. Returns 'true' on update, 'false' on insert
func (h *staleHeap) Upsert(e staleEntry) bool {
	if idx, ok := h.idxs[e.mmsi]; ok {
		h.heap[idx] = e
		heap.Fix(h, idx)
		return true
	}
	heap.Push(h, e)
	return false
}

// Needed for container/heap
func (h *staleHeap) Len() int {
	return len(h.heap)
}

// Needed for container/heap
func (h *staleHeap) Less(i, j int) bool {
	return h.heap[i].lastUpdate.Before(h.heap[j].lastUpdate)
}

// Needed for container/heap
func (h *staleHeap) Swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.idxs[h.heap[i].mmsi] = i
	h.idxs[h.heap[j].mmsi] = j
}

// Needed for container/heap
func (h *staleHeap) Push(x interface{}) {
	e := x.(staleEntry)
	h.idxs[e.mmsi] = len(h.heap)
	h.heap = append(h.heap, e)
}

// Needed for container/heap
func (h *staleHeap) Pop() interface{} {
	old := h.heap
	n := len(old)
	e := old[n-1]
	delete(h.idxs, e.mmsi)
	h.heap = old[0 : n-1]
	return e
}

package tracker

import (
	"container/heap"
	"testing"
	"time"

	"aistrack/ais"

	"github.com/stretchr/testify/assert"
)

func TestStaleHeap(t *testing.T) {
	h := newStaleHeap()
	assert.False(t, h.Upsert(staleEntry{mmsi: 1, lastUpdate: at(3 * time.Minute)}))
	assert.False(t, h.Upsert(staleEntry{mmsi: 2, lastUpdate: at(1 * time.Minute)}))
	assert.False(t, h.Upsert(staleEntry{mmsi: 3, lastUpdate: at(2 * time.Minute)}))

	next, ok := h.Peek()
	assert.True(t, ok)
	assert.Equal(t, ais.MMSI(2), next.mmsi)

	assert.True(t, h.Upsert(staleEntry{mmsi: 2, lastUpdate: at(5 * time.Minute)}))
	next, _ = h.Peek()
	assert.Equal(t, ais.MMSI(3), next.mmsi)

	var order []ais.MMSI
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(staleEntry).mmsi)
	}
	assert.Equal(t, []ais.MMSI{3, 1, 2}, order)
	_, ok = h.Peek()
	assert.False(t, ok)
}

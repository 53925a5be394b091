package scheduler

import "container/heap"

// eventHeap implements container/heap.Interface for Event, sorted by At
// (earliest first). Equal instants are ordered by RecordID.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].RecordID < h[j].RecordID
	}
	return h[i].At.Before(h[j].At)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapPush adds an Event to the heap, maintaining heap invariant.
func heapPush(h *eventHeap, e Event) {
	heap.Push(h, e)
}

// heapPop removes and returns the earliest Event.
// Panics if the heap is empty.
func heapPop(h *eventHeap) Event {
	return heap.Pop(h).(Event)
}

// heapRemove removes every Event of the given record.
// Returns true if at least one event was removed.
func heapRemove(h *eventHeap, recordID string) bool {
	kept := (*h)[:0]
	for _, e := range *h {
		if e.RecordID != recordID {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != h.Len()
	*h = kept
	if removed {
		heap.Init(h)
	}
	return removed
}

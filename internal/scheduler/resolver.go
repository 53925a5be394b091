package scheduler

import (
	"container/heap"
	"time"

	"github.com/reelcron/reelcron/internal/record"
)

// candidate reports whether rec can still produce a future wake-up.
func candidate(rec *record.Record, now time.Time) bool {
	return rec.Pending() && rec.ScheduledAt.After(now)
}

// NextEvent returns the earliest scheduled instant strictly after now among
// ready, unposted records. Records are expected in file-name order; on equal
// instants the first one wins. ok is false when nothing is left to schedule.
func NextEvent(records []*record.Record, now time.Time) (ev Event, ok bool) {
	for _, rec := range records {
		if !candidate(rec, now) {
			continue
		}
		if !ok || rec.ScheduledAt.Before(ev.At) {
			ev = Event{RecordID: rec.ID, At: rec.ScheduledAt}
			ok = true
		}
	}
	return ev, ok
}

// Upcoming returns every future candidate in firing order.
func Upcoming(records []*record.Record, now time.Time) []Event {
	h := &eventHeap{}
	for _, rec := range records {
		if candidate(rec, now) {
			*h = append(*h, Event{RecordID: rec.ID, At: rec.ScheduledAt})
		}
	}
	heap.Init(h)
	out := make([]Event, 0, h.Len())
	for h.Len() > 0 {
		out = append(out, heapPop(h))
	}
	return out
}

package scheduler

import (
	"container/heap"
	"context"
	"time"

	"github.com/reelcron/reelcron/internal/tz"
)

const maxSleepCap = 60 * time.Second

// Watcher fires events in-process. It runs a background goroutine that
// sleeps until the next event's instant, then calls the onDue callback.
// Used by `reelcron watch` on hosts that keep running instead of relying on
// the workflow trigger.
type Watcher struct {
	addChan    chan Event
	removeChan chan string
	ctx        context.Context
	clock      tz.Clock
}

// NewWatcher creates and starts a Watcher. clock decides when an event is
// due; a nil clock is the wall clock. The watcher goroutine exits when ctx
// is cancelled.
func NewWatcher(ctx context.Context, clock tz.Clock, onDue func(Event)) *Watcher {
	w := &Watcher{
		addChan:    make(chan Event, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
		clock:      clock,
	}
	go w.run(onDue)
	return w
}

// Add schedules an event, replacing any pending event of the same record.
func (w *Watcher) Add(event Event) {
	select {
	case w.addChan <- event:
	case <-w.ctx.Done():
	}
}

// Remove drops the pending event of a record.
func (w *Watcher) Remove(recordID string) {
	select {
	case w.removeChan <- recordID:
	case <-w.ctx.Done():
	}
}

// run owns the heap. Sleeps are capped at maxSleepCap so that a wall-clock
// jump is noticed within a minute.
func (w *Watcher) run(onDue func(Event)) {
	h := &eventHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// nothing scheduled, block on channels
			return nil
		}
		dur := (*h)[0].At.Sub(w.clock.Now())
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event := <-w.addChan:
			heapRemove(h, event.RecordID)
			heapPush(h, event)
			timerCh = resetTimer()

		case id := <-w.removeChan:
			heapRemove(h, id)
			timerCh = resetTimer()

		case <-timerCh:
			now := w.clock.Now()
			for h.Len() > 0 && !(*h)[0].At.After(now) {
				onDue(heapPop(h))
			}
			timerCh = resetTimer()
		}
	}
}

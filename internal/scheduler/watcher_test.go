package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reelcron/reelcron/internal/tz"
)

type firedLog struct {
	mu  sync.Mutex
	ids []string
}

func (f *firedLog) onDue(e Event) {
	f.mu.Lock()
	f.ids = append(f.ids, e.RecordID)
	f.mu.Unlock()
}

func (f *firedLog) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func TestWatcher_FiresInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &firedLog{}
	w := NewWatcher(ctx, nil, log.onDue)

	w.Add(Event{RecordID: "second", At: time.Now().Add(200 * time.Millisecond)})
	w.Add(Event{RecordID: "first", At: time.Now().Add(100 * time.Millisecond)})

	time.Sleep(500 * time.Millisecond)

	got := log.snapshot()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected firing order %v", got)
	}
}

func TestWatcher_PastEventFiresImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &firedLog{}
	w := NewWatcher(ctx, nil, log.onDue)
	w.Add(Event{RecordID: "late", At: time.Now().Add(-time.Hour)})

	time.Sleep(100 * time.Millisecond)
	if got := log.snapshot(); len(got) != 1 {
		t.Fatalf("expected overdue event to fire, got %v", got)
	}
}

func TestWatcher_AddReplacesSameRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &firedLog{}
	w := NewWatcher(ctx, nil, log.onDue)

	w.Add(Event{RecordID: "reel_a.json", At: time.Now().Add(100 * time.Millisecond)})
	w.Add(Event{RecordID: "reel_a.json", At: time.Now().Add(2 * time.Second)})

	time.Sleep(400 * time.Millisecond)
	if got := log.snapshot(); len(got) != 0 {
		t.Fatalf("rescheduled event fired early: %v", got)
	}
}

func TestWatcher_RemoveBeforeFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &firedLog{}
	w := NewWatcher(ctx, nil, log.onDue)

	w.Add(Event{RecordID: "reel_a.json", At: time.Now().Add(500 * time.Millisecond)})
	time.Sleep(50 * time.Millisecond)
	w.Remove("reel_a.json")

	time.Sleep(800 * time.Millisecond)
	if got := log.snapshot(); len(got) != 0 {
		t.Fatalf("expected removed event not to fire, got %v", got)
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	log := &firedLog{}
	w := NewWatcher(ctx, nil, log.onDue)
	w.Add(Event{RecordID: "reel_a.json", At: time.Now().Add(300 * time.Millisecond)})
	cancel()

	time.Sleep(500 * time.Millisecond)
	if got := log.snapshot(); len(got) != 0 {
		t.Fatalf("expected nothing after cancel, got %v", got)
	}
	// calls after shutdown must not block
	w.Add(Event{RecordID: "reel_b.json", At: time.Now()})
	w.Remove("reel_b.json")
}

func TestWatcher_UsesInjectedClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := time.Now()
	log := &firedLog{}
	w := NewWatcher(ctx, tz.Fixed(base.Add(time.Hour)), log.onDue)
	w.Add(Event{RecordID: "past_for_clock", At: base.Add(10 * time.Minute)})
	w.Add(Event{RecordID: "future_for_clock", At: base.Add(2 * time.Hour)})

	time.Sleep(200 * time.Millisecond)

	got := log.snapshot()
	if len(got) != 1 || got[0] != "past_for_clock" {
		t.Errorf("fired %v, want [past_for_clock]", got)
	}
}

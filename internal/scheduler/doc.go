// Package scheduler resolves when reelcron has to wake up next.
//
// It holds the three pure pieces of the dispatch protocol: the next-event
// resolver (the earliest future pending record), the due-check gate (the
// predicate shared with the publish engine), and the trigger, a 5-field UTC
// cron expression that fires once a year at the minute following the next
// event and is rewritten after every publish.
//
// Watcher is the in-process variant of the same loop: a min-heap of events
// drained by a single goroutine that sleeps at most 60 seconds at a time, so
// clock steps and DST transitions never delay a post by more than a minute.
package scheduler

package scheduler

import (
	"time"

	"github.com/reelcron/reelcron/internal/record"
)

// IsDue is the single due predicate: a ready, unposted record whose
// scheduled instant is not after now. The gate and the publish engine both
// call it.
func IsDue(rec *record.Record, now time.Time) bool {
	return rec.Pending() && !rec.ScheduledAt.After(now)
}

// Due reports whether at least one record is due.
func Due(records []*record.Record, now time.Time) bool {
	for _, rec := range records {
		if IsDue(rec, now) {
			return true
		}
	}
	return false
}

// DueRecords returns the due records in their original order.
func DueRecords(records []*record.Record, now time.Time) []*record.Record {
	var out []*record.Record
	for _, rec := range records {
		if IsDue(rec, now) {
			out = append(out, rec)
		}
	}
	return out
}

package scheduler

import "time"

// Event is the scheduled instant of one pending record.
type Event struct {
	// RecordID is the file name of the record in the store.
	RecordID string
	// At is the scheduled instant in the reference zone.
	At time.Time
}

// IsZero reports an empty event.
func (e Event) IsZero() bool {
	return e.RecordID == "" && e.At.IsZero()
}

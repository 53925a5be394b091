package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// ErrInvalidCron is returned for expressions that are not 5-field cron.
var ErrInvalidCron = errors.New("invalid cron expression")

// Trigger is a one-shot wake-up expressed as a yearly UTC cron entry
// "minute hour day month *".
type Trigger struct {
	Minute int
	Hour   int
	Day    int
	Month  time.Month
}

// TriggerFor returns the trigger that fires in the minute after at. The
// extra minute guarantees the gate sees the record as due when it runs.
func TriggerFor(at time.Time) Trigger {
	u := at.Add(time.Minute).UTC()
	return Trigger{Minute: u.Minute(), Hour: u.Hour(), Day: u.Day(), Month: u.Month()}
}

// String renders the 5-field cron expression.
func (t Trigger) String() string {
	return fmt.Sprintf("%d %d %d %d *", t.Minute, t.Hour, t.Day, int(t.Month))
}

// Next returns the first UTC instant at or after after when the trigger
// fires.
func (t Trigger) Next(after time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(t.String(), after.UTC(), true)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode trigger %q: %w", t, err)
	}
	return next.UTC().Truncate(time.Minute), nil
}

// ValidateCron checks a cron expression the way GitHub Actions accepts it:
// exactly 5 fields (minute hour day-of-month month day-of-week).
func ValidateCron(expr string) error {
	// gronx.IsValid also accepts 6 and 7 fields.
	if len(strings.Fields(expr)) != 5 || !gronx.IsValid(expr) {
		return fmt.Errorf("%w %q, expected 5-field format (minute hour day-of-month month day-of-week)", ErrInvalidCron, expr)
	}
	return nil
}

// ParseTrigger parses an expression produced by Trigger.String. Anything
// other than four plain numbers followed by "*" is rejected.
func ParseTrigger(expr string) (Trigger, error) {
	if err := ValidateCron(expr); err != nil {
		return Trigger{}, err
	}
	f := strings.Fields(expr)
	if f[4] != "*" {
		return Trigger{}, fmt.Errorf("%w %q: not a one-shot trigger", ErrInvalidCron, expr)
	}
	var n [4]int
	for i := range n {
		v, err := strconv.Atoi(f[i])
		if err != nil {
			return Trigger{}, fmt.Errorf("%w %q: not a one-shot trigger", ErrInvalidCron, expr)
		}
		n[i] = v
	}
	return Trigger{Minute: n[0], Hour: n[1], Day: n[2], Month: time.Month(n[3])}, nil
}

// HasOccurrenceWithinYear reports whether expr fires within a year of from.
func HasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return false
	}
	return next.Before(from.Add(365 * 24 * time.Hour))
}

// Package tz holds the reference timezone and the single parser used for
// every timestamp stored in post records. A timestamp without a UTC offset
// is wall time in the reference zone.
package tz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultZoneName is the reference timezone of the content calendar.
const DefaultZoneName = "Europe/Paris"

// ErrUnparseable is returned for timestamps matching no accepted layout.
var ErrUnparseable = errors.New("unparseable timestamp")

// Layouts carrying an explicit offset ("Z" or "+02:00").
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts without offset, interpreted in the reference zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Zone is the reference timezone.
type Zone struct {
	loc *time.Location
}

// Load returns the Zone for an IANA name such as "Europe/Paris".
func Load(name string) (Zone, error) {
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// MustLoad is Load for package-level defaults and tests.
func MustLoad(name string) Zone {
	z, err := Load(name)
	if err != nil {
		panic(err)
	}
	return z
}

// Location returns the underlying *time.Location (UTC for the zero Zone).
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// String returns the IANA name.
func (z Zone) String() string {
	return z.Location().String()
}

// In converts t to the reference zone.
func (z Zone) In(t time.Time) time.Time {
	return t.In(z.Location())
}

// Date builds a wall-clock instant in the reference zone.
func (z Zone) Date(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, z.Location())
}

// Normalize parses a stored timestamp. Values with an offset keep their
// instant; naive values are read as wall time in the reference zone. The
// result is always expressed in the reference zone.
func (z Zone) Normalize(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrUnparseable)
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return z.In(t), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, z.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, value)
}

// Format renders t in the reference zone with its offset, the form written
// back into records.
func (z Zone) Format(t time.Time) string {
	return z.In(t).Format(time.RFC3339)
}

// Clock returns the current instant. Commands use time.Now; tests pin it.
type Clock func() time.Time

// Now calls the clock, defaulting to time.Now for a nil Clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

package scheduler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reelcron/reelcron/internal/record"
)

func TestTriggerFor_SummerExample(t *testing.T) {
	at := paris.Date(2025, time.August, 22, 20, 0)

	tr := TriggerFor(at)
	if tr.String() != "1 18 22 8 *" {
		t.Fatalf("trigger = %q, want %q", tr, "1 18 22 8 *")
	}
	fires, err := tr.Next(at)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := paris.In(fires); !got.Equal(paris.Date(2025, time.August, 22, 20, 1)) {
		t.Errorf("decoded %v, want 20:01 Paris", got)
	}
}

func TestTriggerFor_KnownExpressions(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{paris.Date(2025, time.July, 15, 9, 30), "31 7 15 7 *"},
		{paris.Date(2025, time.June, 1, 23, 45), "46 21 1 6 *"},
		{paris.Date(2025, time.December, 25, 20, 0), "1 19 25 12 *"},
		{paris.Date(2025, time.January, 15, 9, 30), "31 8 15 1 *"},
		{paris.Date(2025, time.February, 1, 23, 45), "46 22 1 2 *"},
		// UTC date rolls back across midnight
		{paris.Date(2025, time.September, 1, 0, 30), "31 22 31 8 *"},
		// new year in UTC
		{paris.Date(2026, time.January, 1, 0, 59), "0 0 1 1 *"},
	}
	for _, c := range cases {
		if got := TriggerFor(c.at).String(); got != c.want {
			t.Errorf("TriggerFor(%v) = %q, want %q", c.at, got, c.want)
		}
	}
}

func TestTrigger_RoundTripAcrossDST(t *testing.T) {
	instants := []time.Time{
		// spring forward: 2025-03-30 02:00 CET -> 03:00 CEST
		paris.Date(2025, time.March, 29, 20, 0),
		paris.Date(2025, time.March, 30, 1, 30),
		paris.Date(2025, time.March, 30, 3, 30),
		paris.Date(2025, time.March, 31, 9, 30),
		// fall back: 2025-10-26 03:00 CEST -> 02:00 CET
		paris.Date(2025, time.October, 25, 20, 0),
		paris.Date(2025, time.October, 26, 1, 30),
		paris.Date(2025, time.October, 26, 3, 30),
		paris.Date(2025, time.October, 27, 19, 15),
		// year end
		paris.Date(2025, time.December, 31, 23, 59),
	}
	for _, at := range instants {
		tr := TriggerFor(at)
		expr := tr.String()

		f := strings.Fields(expr)
		if len(f) != 5 || f[4] != "*" {
			t.Errorf("%v: malformed expression %q", at, expr)
			continue
		}
		if err := ValidateCron(expr); err != nil {
			t.Errorf("%v: %v", at, err)
		}
		parsed, err := ParseTrigger(expr)
		if err != nil || parsed != tr {
			t.Errorf("%v: ParseTrigger(%q) = %+v, %v", at, expr, parsed, err)
		}

		fires, err := tr.Next(at)
		if err != nil {
			t.Errorf("%v: Next: %v", at, err)
			continue
		}
		want := at.Add(time.Minute)
		if !paris.In(fires).Equal(want) {
			t.Errorf("%v: decoded %v, want %v", at, paris.In(fires), want)
		}
	}
}

func TestParseTrigger_Rejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"1 18 22 8",
		"0 1 18 22 8 *",
		"*/5 * * * *",
		"1 18 22 8 1",
		"99 18 22 8 *",
		"a b c d e",
	} {
		if _, err := ParseTrigger(expr); !errors.Is(err, ErrInvalidCron) {
			t.Errorf("ParseTrigger(%q): expected ErrInvalidCron, got %v", expr, err)
		}
	}
}

func TestValidateCron(t *testing.T) {
	for _, ok := range []string{"0 * * * *", "*/15 9-17 * * 1-5", "1 18 22 8 *"} {
		if err := ValidateCron(ok); err != nil {
			t.Errorf("ValidateCron(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "* * * *", "0 0 * * * *", "99 2 * * *"} {
		if err := ValidateCron(bad); err == nil {
			t.Errorf("ValidateCron(%q): expected error", bad)
		}
	}
}

func TestHasOccurrenceWithinYear(t *testing.T) {
	from := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	if !HasOccurrenceWithinYear("1 18 22 8 *", from) {
		t.Error("expected occurrence")
	}
	if HasOccurrenceWithinYear("bad-cron", from) {
		t.Error("invalid cron should return false")
	}
}

func TestScenario_WeeklyPosts(t *testing.T) {
	// Monday 2025-09-01 20:00, Wednesday 09:30, Friday 19:15 Paris.
	records := []*record.Record{
		ready(t, "reel_mon.json", "2025-09-01T20:00:00", false),
		ready(t, "reel_wed.json", "2025-09-03T09:30:00", false),
		ready(t, "reel_fri.json", "2025-09-05T19:15:00", false),
	}
	now := paris.Date(2025, time.August, 31, 12, 0)

	ev, ok := NextEvent(records, now)
	if !ok || ev.RecordID != "reel_mon.json" {
		t.Fatalf("expected Monday first, got %+v", ev)
	}
	first := TriggerFor(ev.At)

	// Monday posted at 20:01
	records[0] = ready(t, "reel_mon.json", "2025-09-01T20:00:00", true)
	now = paris.Date(2025, time.September, 1, 20, 1)

	ev, ok = NextEvent(records, now)
	if !ok || ev.RecordID != "reel_wed.json" {
		t.Fatalf("expected Wednesday next, got %+v", ev)
	}
	second := TriggerFor(ev.At)

	records[1] = ready(t, "reel_wed.json", "2025-09-03T09:30:00", true)
	ev, _ = NextEvent(records, paris.Date(2025, time.September, 3, 9, 31))
	third := TriggerFor(ev.At)

	var prev time.Time
	for i, tr := range []Trigger{first, second, third} {
		fires, err := tr.Next(now.AddDate(0, 0, -3))
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if i > 0 && !fires.After(prev) {
			t.Errorf("trigger %d (%s) does not fire after the previous one", i, tr)
		}
		prev = fires
	}
	if first.String() != "1 18 1 9 *" || second.String() != "31 7 3 9 *" || third.String() != "16 17 5 9 *" {
		t.Errorf("unexpected triggers %s, %s, %s", first, second, third)
	}
}

package tz

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize_OffsetKeepsInstant(t *testing.T) {
	z := MustLoad(DefaultZoneName)

	got, err := z.Normalize("2025-08-25T16:00:00Z")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := time.Date(2025, 8, 25, 18, 0, 0, 0, z.Location())
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got.Location() != z.Location() {
		t.Errorf("expected result in reference zone, got %v", got.Location())
	}
}

func TestNormalize_NaiveIsReferenceWallTime(t *testing.T) {
	z := MustLoad(DefaultZoneName)

	cases := []struct {
		in   string
		want time.Time
	}{
		// summer, UTC+2
		{"2025-08-22T20:00:00", time.Date(2025, 8, 22, 18, 0, 0, 0, time.UTC)},
		// winter, UTC+1
		{"2025-12-25T20:00:00", time.Date(2025, 12, 25, 19, 0, 0, 0, time.UTC)},
		{"2025-12-25 20:00", time.Date(2025, 12, 25, 19, 0, 0, 0, time.UTC)},
		{"2025-08-22T20:00:00.250000", time.Date(2025, 8, 22, 18, 0, 0, 250000000, time.UTC)},
		{"2025-08-22", time.Date(2025, 8, 21, 22, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := z.Normalize(c.in)
		if err != nil {
			t.Errorf("Normalize(%q): %v", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("Normalize(%q) = %v, want %v", c.in, got.UTC(), c.want)
		}
	}
}

func TestNormalize_PythonIsoformat(t *testing.T) {
	z := MustLoad(DefaultZoneName)

	got, err := z.Normalize("2025-08-25T18:00:00.123456+02:00")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Hour() != 18 || got.Minute() != 0 {
		t.Errorf("unexpected wall time %v", got)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	z := MustLoad(DefaultZoneName)

	for _, in := range []string{"", "   ", "tomorrow", "2025-13-01T00:00:00", "25/08/2025 18:00"} {
		if _, err := z.Normalize(in); !errors.Is(err, ErrUnparseable) {
			t.Errorf("Normalize(%q): expected ErrUnparseable, got %v", in, err)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	z := MustLoad(DefaultZoneName)
	at := time.Date(2025, 3, 30, 1, 30, 0, 0, time.UTC)

	s := z.Format(at)
	if s != "2025-03-30T03:30:00+02:00" {
		t.Errorf("Format = %q", s)
	}
	back, err := z.Normalize(s)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !back.Equal(at) {
		t.Errorf("round trip mismatch: %v vs %v", back, at)
	}
}

func TestLoad_DefaultAndInvalid(t *testing.T) {
	z, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if z.String() != DefaultZoneName {
		t.Errorf("expected default zone, got %s", z)
	}
	if _, err := Load("Mars/Olympus"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestClock(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !Fixed(at).Now().Equal(at) {
		t.Error("fixed clock mismatch")
	}
	var c Clock
	if c.Now().IsZero() {
		t.Error("nil clock should fall back to time.Now")
	}
}

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func counterValue(t *testing.T, m *Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.Publish(OutcomePublished)
	m.Publish(OutcomePublished)
	m.Publish(OutcomeFailed)
	m.Deleted("record")

	if got := counterValue(t, m, "reelcron_publish_total", OutcomePublished); got != 2 {
		t.Errorf("published = %v", got)
	}
	if got := counterValue(t, m, "reelcron_publish_total", OutcomeFailed); got != 1 {
		t.Errorf("failed = %v", got)
	}
	if got := counterValue(t, m, "reelcron_retention_deleted_total", "record"); got != 1 {
		t.Errorf("deleted = %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Publish(OutcomePublished)
	m.Processing(time.Second)
	m.Deleted("media")
	m.RetentionError()
	m.Schedule(1, time.Now())
	m.Ran("publish", time.Now())
	if err := m.WriteTextfile("ignored.prom"); err != nil {
		t.Errorf("nil WriteTextfile: %v", err)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.Schedule(3, time.Unix(1756130400, 0))
	m.Ran("next", time.Unix(1756130000, 0))

	path := filepath.Join(t.TempDir(), "reelcron.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{
		"reelcron_pending_records 3",
		"reelcron_next_event_timestamp_seconds 1.7561304e+09",
		`reelcron_last_run_timestamp_seconds{command="next"}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in:\n%s", want, data)
		}
	}
}

package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/tz"
)

var paris = tz.MustLoad(tz.DefaultZoneName)

func ready(t *testing.T, id, scheduled string, posted bool) *record.Record {
	t.Helper()
	doc := fmt.Sprintf(`{"video_url": "https://cdn/%s.mp4", "caption": "c", "scheduled_time": %q, "posted": false}`, id, scheduled)
	if posted {
		doc = fmt.Sprintf(`{"video_url": "https://cdn/%s.mp4", "caption": "c", "scheduled_time": %q, "posted": true, "posted_at": %q}`, id, scheduled, scheduled)
	}
	r, err := record.Decode(id, []byte(doc), paris)
	if err != nil {
		t.Fatalf("decode %s: %v", id, err)
	}
	return r
}

func draft(t *testing.T, id, scheduled string) *record.Record {
	t.Helper()
	r, err := record.Decode(id, []byte(fmt.Sprintf(`{"video_url": null, "scheduled_time": %q}`, scheduled)), paris)
	if err != nil {
		t.Fatalf("decode %s: %v", id, err)
	}
	return r
}

func mustNormalize(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := paris.Normalize(s)
	if err != nil {
		t.Fatalf("normalize %q: %v", s, err)
	}
	return v
}

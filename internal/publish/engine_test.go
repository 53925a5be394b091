package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reelcron/reelcron/internal/graph"
	"github.com/reelcron/reelcron/internal/journal"
	"github.com/reelcron/reelcron/internal/metrics"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
	"github.com/spf13/afero"
)

var paris = tz.MustLoad(tz.DefaultZoneName)

// fakeAPI answers by media URL so each record can be scripted separately.
type fakeAPI struct {
	mu        sync.Mutex
	createErr map[string]error
	statuses  map[string][]string
	publish   map[string]error
	created   []string
	published []string
	byID      map[string]string
	polls     map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		createErr: map[string]error{},
		statuses:  map[string][]string{},
		publish:   map[string]error{},
		byID:      map[string]string{},
		polls:     map[string]int{},
	}
}

func (f *fakeAPI) CreateContainer(_ context.Context, m graph.Container) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[m.VideoURL]; err != nil {
		return "", err
	}
	id := fmt.Sprintf("c-%d", len(f.created)+1)
	f.created = append(f.created, m.VideoURL)
	f.byID[id] = m.VideoURL
	return id, nil
}

func (f *fakeAPI) ContainerStatus(_ context.Context, id string) (graph.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.statuses[id]
	if seq == nil {
		seq = f.statuses[f.byID[id]]
	}
	n := f.polls[id]
	f.polls[id]++
	if len(seq) == 0 {
		return graph.Status{Code: graph.StatusFinished}, nil
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return graph.Status{Code: seq[n]}, nil
}

func (f *fakeAPI) Publish(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.publish[f.byID[id]]; err != nil {
		return "", err
	}
	f.published = append(f.published, id)
	return "m-" + id, nil
}

type fakeJournal struct {
	attempts []journal.Attempt
}

func (j *fakeJournal) Begin(_ context.Context, recordID, containerID string, at time.Time) (journal.Attempt, error) {
	a := journal.Attempt{ID: fmt.Sprintf("a-%d", len(j.attempts)+1), RecordID: recordID, ContainerID: containerID, State: journal.StateCreated, StartedAt: at}
	j.attempts = append(j.attempts, a)
	return a, nil
}

func (j *fakeJournal) set(id string, state journal.State, mediaID string) error {
	for i := range j.attempts {
		if j.attempts[i].ID == id && j.attempts[i].State == journal.StateCreated {
			j.attempts[i].State = state
			j.attempts[i].MediaID = mediaID
			return nil
		}
	}
	return fmt.Errorf("no open attempt %s", id)
}

func (j *fakeJournal) Resolve(_ context.Context, id, mediaID string, _ time.Time) error {
	return j.set(id, journal.StatePublished, mediaID)
}

func (j *fakeJournal) Fail(_ context.Context, id string, _ error, _ time.Time) error {
	return j.set(id, journal.StateFailed, "")
}

func (j *fakeJournal) Abandon(_ context.Context, id, _ string, _ time.Time) error {
	return j.set(id, journal.StateAbandoned, "")
}

func (j *fakeJournal) Pending(_ context.Context, recordID string) (*journal.Attempt, error) {
	for i := len(j.attempts) - 1; i >= 0; i-- {
		if j.attempts[i].RecordID == recordID && j.attempts[i].State == journal.StateCreated {
			a := j.attempts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func readyDoc(url, scheduled string, posted bool) string {
	postedAt := "null"
	if posted {
		postedAt = `"` + scheduled + `"`
	}
	return fmt.Sprintf(`{"video_url": %q, "caption": "c", "scheduled_time": %q, "posted": %t, "posted_at": %s}`,
		url, scheduled, posted, postedAt)
}

var now = time.Date(2025, 8, 25, 18, 30, 0, 0, paris.Location())

func newTestEngine(t *testing.T, files map[string]string) (*Engine, *fakeAPI, *record.Store, *logger.MockLogger) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		if err := afero.WriteFile(fs, "config/"+name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ml := logger.NewMockLogger()
	store := record.NewStore(fs, "config", paris, ml)
	api := newFakeAPI()
	e := NewEngine(store, api, ml)
	e.Clock = tz.Fixed(now)
	e.Wait = graph.WaitOptions{Interval: time.Millisecond, Timeout: time.Second}
	return e, api, store, ml
}

func TestSweep_PublishesOnlyDue(t *testing.T) {
	e, api, store, _ := newTestEngine(t, map[string]string{
		"reel_a.json":   readyDoc("https://x/a.mp4", "2025-08-25T18:00:00", false),
		"reel_b.json":   readyDoc("https://x/b.mp4", "2025-08-25T18:30:00", false),
		"reel_c.json":   readyDoc("https://x/c.mp4", "2025-08-25T19:00:00", false),
		"reel_d.json":   readyDoc("https://x/d.mp4", "2025-08-24T18:00:00", true),
		"notion_e.json": `{"video_url": null, "caption": "c", "scheduled_time": "2025-08-20T10:00:00", "posted": false}`,
	})

	report, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Processed != 2 || report.Published != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if strings.Join(api.created, ",") != "https://x/a.mp4,https://x/b.mp4" {
		t.Errorf("containers created for %v", api.created)
	}
	for _, id := range []string{"reel_a.json", "reel_b.json"} {
		r, _ := store.Load(id)
		if !r.Posted || !r.PostedAt.Equal(now) {
			t.Errorf("%s not marked posted: %+v", id, r)
		}
	}
	if r, _ := store.Load("reel_c.json"); r.Posted {
		t.Error("future record must stay pending")
	}
}

func TestSweep_SecondRunIsNoOp(t *testing.T) {
	e, api, _, ml := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T18:00:00", false),
	})
	if _, err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	report, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Processed != 0 || len(api.created) != 1 {
		t.Errorf("second sweep republished: report %+v, created %v", report, api.created)
	}
	if last := ml.InfoCalls[len(ml.InfoCalls)-1]; last != "No posts due" {
		t.Errorf("last info = %q", last)
	}
}

func TestSweep_FailureIsolation(t *testing.T) {
	e, api, store, ml := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
		"reel_b.json": readyDoc("https://x/b.mp4", "2025-08-25T17:30:00", false),
		"reel_c.json": readyDoc("https://x/c.mp4", "2025-08-25T18:00:00", false),
	})
	api.statuses["https://x/b.mp4"] = []string{graph.StatusInProgress, graph.StatusError}
	e.Metrics = metrics.New()

	report, err := e.Sweep(context.Background())
	var batch *BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if got := batch.Failed(); len(got) != 1 || got[0] != "reel_b.json" {
		t.Errorf("failed ids = %v", got)
	}
	if !errors.Is(err, graph.ErrProcessingFailed) {
		t.Errorf("expected processing failure in chain, got %v", err)
	}
	if report.Published != 2 || report.Failed != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if r, _ := store.Load("reel_b.json"); r.Posted {
		t.Error("failed record must stay pending")
	}
	if r, _ := store.Load("reel_c.json"); !r.Posted {
		t.Error("record after a failure must still be published")
	}
	if len(ml.ErrorCalls) != 1 {
		t.Errorf("expected one error log, got %v", ml.ErrorCalls)
	}
	if !strings.HasPrefix(err.Error(), "1 post(s) failed:") {
		t.Errorf("unexpected batch message %q", err.Error())
	}
}

func TestSweep_CreateFailureSkipsPublish(t *testing.T) {
	e, api, store, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	api.createErr["https://x/a.mp4"] = &graph.APIError{StatusCode: 400, Message: "Invalid parameter"}

	if _, err := e.Sweep(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(api.published) != 0 {
		t.Error("publish must not be called without a container")
	}
	if r, _ := store.Load("reel_a.json"); r.Posted {
		t.Error("record must stay pending")
	}
}

func TestSweep_FalseFatalAccepted(t *testing.T) {
	e, api, store, ml := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	api.publish["https://x/a.mp4"] = &graph.APIError{StatusCode: 400, Subcode: 2207032, Message: "Fatal"}

	report, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	res := report.Results[0]
	if res.Outcome != metrics.OutcomeFalseFatal || res.MediaID != res.ContainerID {
		t.Errorf("unexpected result %+v", res)
	}
	if r, _ := store.Load("reel_a.json"); !r.Posted {
		t.Error("false fatal response must mark the record posted")
	}
	if len(ml.WarningCalls) == 0 {
		t.Error("expected a warning for the accepted response")
	}
}

func TestSweep_StrictPolicyRejectsFalseFatal(t *testing.T) {
	e, api, store, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	e.Policy = StrictPolicy{}
	api.publish["https://x/a.mp4"] = &graph.APIError{StatusCode: 400, Subcode: 2207032, Message: "Fatal"}

	if _, err := e.Sweep(context.Background()); err == nil {
		t.Fatal("expected error under strict policy")
	}
	if r, _ := store.Load("reel_a.json"); r.Posted {
		t.Error("record must stay pending")
	}
}

func TestSweep_OtherPublishErrorsFail(t *testing.T) {
	for _, apiErr := range []*graph.APIError{
		{StatusCode: 400, Subcode: 2207032, Message: "Media upload failed"},
		{StatusCode: 500, Subcode: 2207032, Message: "Fatal"},
		{StatusCode: 400, Subcode: 1, Message: "Fatal"},
	} {
		e, api, _, _ := newTestEngine(t, map[string]string{
			"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
		})
		api.publish["https://x/a.mp4"] = apiErr
		if _, err := e.Sweep(context.Background()); err == nil {
			t.Errorf("%v: expected failure", apiErr)
		}
	}
}

func TestSweep_Locked(t *testing.T) {
	e, _, store, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	unlock, err := store.Lock(now)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()
	if _, err := e.Sweep(context.Background()); !errors.Is(err, record.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestSweep_ResumesJournaledContainer(t *testing.T) {
	e, api, store, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	j := &fakeJournal{}
	e.Journal = j
	j.Begin(context.Background(), "reel_a.json", "old-1", now.Add(-time.Hour))
	api.byID["old-1"] = "https://x/a.mp4"
	api.statuses["old-1"] = []string{graph.StatusFinished}

	report, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(api.created) != 0 {
		t.Errorf("expected no new container, created %v", api.created)
	}
	if !report.Results[0].Resumed || report.Results[0].ContainerID != "old-1" {
		t.Errorf("unexpected result %+v", report.Results[0])
	}
	if j.attempts[0].State != journal.StatePublished || j.attempts[0].MediaID != "m-old-1" {
		t.Errorf("attempt not resolved: %+v", j.attempts[0])
	}
	if r, _ := store.Load("reel_a.json"); !r.Posted {
		t.Error("record not marked posted")
	}
}

func TestSweep_ResumePublishedContainerSkipsPublish(t *testing.T) {
	e, api, _, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	j := &fakeJournal{}
	e.Journal = j
	j.Begin(context.Background(), "reel_a.json", "old-1", now.Add(-time.Hour))
	api.statuses["old-1"] = []string{graph.StatusPublished}

	if _, err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(api.published) != 0 || len(api.created) != 0 {
		t.Errorf("published container must not be published again: created %v published %v", api.created, api.published)
	}
}

func TestSweep_AbandonsExpiredContainer(t *testing.T) {
	e, api, _, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	j := &fakeJournal{}
	e.Journal = j
	j.Begin(context.Background(), "reel_a.json", "old-1", now.Add(-48*time.Hour))
	api.statuses["old-1"] = []string{graph.StatusExpired}

	if _, err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(api.created) != 1 {
		t.Errorf("expected a fresh container, created %v", api.created)
	}
	if j.attempts[0].State != journal.StateAbandoned || j.attempts[1].State != journal.StatePublished {
		t.Errorf("unexpected attempts %+v", j.attempts)
	}
}

func TestSweep_TimeoutKeepsAttemptOpen(t *testing.T) {
	e, api, _, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-08-25T17:00:00", false),
	})
	j := &fakeJournal{}
	e.Journal = j
	e.Wait.Timeout = 20 * time.Millisecond
	api.statuses["https://x/a.mp4"] = []string{graph.StatusInProgress}

	_, err := e.Sweep(context.Background())
	if !errors.Is(err, graph.ErrProcessingTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if p, _ := j.Pending(context.Background(), "reel_a.json"); p == nil {
		t.Error("timed out attempt must stay open for the next run")
	}
}

func TestPublishOne(t *testing.T) {
	e, api, store, _ := newTestEngine(t, map[string]string{
		"reel_a.json": readyDoc("https://x/a.mp4", "2025-09-01T18:00:00", false),
		"reel_b.json": readyDoc("https://x/b.mp4", "2025-08-24T18:00:00", true),
	})

	res, err := e.PublishOne(context.Background(), "reel_a.json")
	if err != nil {
		t.Fatalf("PublishOne: %v", err)
	}
	if res.Outcome != metrics.OutcomePublished || len(api.created) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if r, _ := store.Load("reel_a.json"); !r.Posted {
		t.Error("record not marked posted")
	}

	if _, err := e.PublishOne(context.Background(), "reel_b.json"); !errors.Is(err, record.ErrAlreadyPosted) {
		t.Errorf("expected ErrAlreadyPosted, got %v", err)
	}
	if _, err := e.PublishOne(context.Background(), "reel_zz.json"); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

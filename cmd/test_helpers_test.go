package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reelcron/reelcron/internal/config"
	"github.com/reelcron/reelcron/internal/graph"
	"github.com/reelcron/reelcron/internal/media"
	"github.com/reelcron/reelcron/internal/planning"
	"github.com/reelcron/reelcron/internal/publish"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
	"github.com/spf13/afero"
)

var paris = tz.MustLoad(tz.DefaultZoneName)

// testNow is Friday 2025-08-22 12:00 in Paris (10:00 UTC).
var testNow = time.Date(2025, 8, 22, 12, 0, 0, 0, paris.Location())

const testWorkflow = `name: Post Instagram Reels

on:
  workflow_dispatch:
  schedule:
    # Run every hour at minute 0
    - cron: '0 * * * *'

jobs:
  post:
    runs-on: ubuntu-latest
`

// captureOutput captures stdout and stderr during function execution.
func captureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	var bufOut, bufErr bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { io.Copy(&bufOut, rOut); wg.Done() }()
	go func() { io.Copy(&bufErr, rErr); wg.Done() }()

	f()

	wOut.Close()
	wErr.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	rOut.Close()
	rErr.Close()

	return bufOut.String(), bufErr.String()
}

// assertContains checks if output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertNotContains checks if output does NOT contain the specified substring.
func assertNotContains(t *testing.T, output, notExpected string) {
	t.Helper()
	if strings.Contains(output, notExpected) {
		t.Errorf("expected output to NOT contain %q, got:\n%s", notExpected, output)
	}
}

type fakeAPI struct {
	mu        sync.Mutex
	failFor   map[string]error
	created   []string
	published []string
	byID      map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{failFor: map[string]error{}, byID: map[string]string{}}
}

func (f *fakeAPI) CreateContainer(_ context.Context, m graph.Container) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[m.VideoURL]; err != nil {
		return "", err
	}
	f.created = append(f.created, m.VideoURL)
	id := fmt.Sprintf("c-%d", len(f.created))
	f.byID[id] = m.VideoURL
	return id, nil
}

func (f *fakeAPI) ContainerStatus(context.Context, string) (graph.Status, error) {
	return graph.Status{Code: graph.StatusFinished}, nil
}

func (f *fakeAPI) Publish(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, f.byID[id])
	return "m-" + id, nil
}

type fakeHost struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (h *fakeHost) Upload(_ context.Context, file, publicID string) (media.Asset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploaded = append(h.uploaded, file)
	return media.Asset{
		PublicID: publicID,
		URL:      "https://res.cloudinary.com/demo/video/upload/v1/" + publicID + path.Ext(file),
	}, nil
}

func (h *fakeHost) Owns(url string) bool { return strings.Contains(url, "cloudinary.com") }

func (h *fakeHost) Delete(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, url)
	return nil
}

type fakeSource struct {
	pages  []planning.Page
	blocks map[string][]planning.Block
}

func (s *fakeSource) Pages(context.Context) ([]planning.Page, error) { return s.pages, nil }

func (s *fakeSource) Blocks(_ context.Context, id string) ([]planning.Block, error) {
	return s.blocks[id], nil
}

type testEnv struct {
	fs     afero.Fs
	api    *fakeAPI
	host   *fakeHost
	source *fakeSource
}

// setupEnv swaps the filesystem, the clock and every remote collaborator of
// the commands. files are written into the record directory.
func setupEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()
	te := &testEnv{
		fs:     afero.NewMemMapFs(),
		api:    newFakeAPI(),
		host:   &fakeHost{},
		source: &fakeSource{},
	}
	for name, body := range files {
		if err := afero.WriteFile(te.fs, DEF_RECORDS_DIR+"/"+name, []byte(body), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	origFs, origClock := appFs, clock
	origAPI, origHost, origSource := newGraphAPI, newMediaHost, newPlanningSource
	t.Cleanup(func() {
		appFs, clock = origFs, origClock
		newGraphAPI, newMediaHost, newPlanningSource = origAPI, origHost, origSource
	})
	appFs = te.fs
	clock = tz.Fixed(testNow)
	newGraphAPI = func(config.Instagram, logger.Logger) publish.API { return te.api }
	newMediaHost = func(config.Cloudinary, logger.Logger) (mediaHost, error) { return te.host, nil }
	newPlanningSource = func(config.Notion, planning.Properties) planning.Source { return te.source }

	for _, n := range config.Names {
		t.Setenv(n, "test-"+strings.ToLower(n))
	}
	t.Setenv("GITHUB_OUTPUT", "")
	return te
}

func (te *testEnv) write(t *testing.T, name, body string) {
	t.Helper()
	if err := afero.WriteFile(te.fs, name, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (te *testEnv) read(t *testing.T, name string) string {
	t.Helper()
	data, err := afero.ReadFile(te.fs, name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func (te *testEnv) exists(t *testing.T, name string) bool {
	t.Helper()
	ok, err := afero.Exists(te.fs, name)
	if err != nil {
		t.Fatalf("stat %s: %v", name, err)
	}
	return ok
}

// runApp runs the CLI with the journal disabled unless args enable it.
func runApp(args ...string) (stdout, stderr string, err error) {
	full := append([]string{"reelcron", "--journal", ""}, args...)
	stdout, stderr = captureOutput(func() {
		err = Execute(full, BuildArgs{Version: "test", BuildType: "unit"})
	})
	return
}

func readyDoc(url, scheduled string) string {
	return fmt.Sprintf(`{"video_url": %q, "caption": "c", "scheduled_time": %q, "posted": false}`, url, scheduled)
}

func postedDoc(url, scheduled, postedAt string) string {
	return fmt.Sprintf(`{"video_url": %q, "caption": "c", "scheduled_time": %q, "posted": true, "posted_at": %q}`, url, scheduled, postedAt)
}

func draftDoc(video, scheduled string) string {
	return fmt.Sprintf(`{"video_url": null, "caption": "draft caption", "scheduled_time": %q, "posted": false, "notion_page_id": "page-1", "local_video_path": %q}`, scheduled, video)
}

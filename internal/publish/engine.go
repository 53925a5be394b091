// Package publish runs the publish sweep: every due record is published
// through the Graph API and marked posted exactly once.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelcron/reelcron/internal/graph"
	"github.com/reelcron/reelcron/internal/journal"
	"github.com/reelcron/reelcron/internal/metrics"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/scheduler"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
)

// API is the part of the Graph API the engine uses.
type API interface {
	graph.StatusChecker
	CreateContainer(ctx context.Context, m graph.Container) (string, error)
	Publish(ctx context.Context, containerID string) (string, error)
}

// Journal persists publish attempts across runs.
type Journal interface {
	Begin(ctx context.Context, recordID, containerID string, at time.Time) (journal.Attempt, error)
	Resolve(ctx context.Context, attemptID, mediaID string, at time.Time) error
	Fail(ctx context.Context, attemptID string, cause error, at time.Time) error
	Abandon(ctx context.Context, attemptID, reason string, at time.Time) error
	Pending(ctx context.Context, recordID string) (*journal.Attempt, error)
}

// Observer follows the progress of each record.
type Observer interface {
	Started(rec *record.Record, containerID string)
	Polled(rec *record.Record, st graph.Status, elapsed time.Duration)
	Done(rec *record.Record, res Result)
}

type nopObserver struct{}

func (nopObserver) Started(*record.Record, string)                     {}
func (nopObserver) Polled(*record.Record, graph.Status, time.Duration) {}
func (nopObserver) Done(*record.Record, Result)                        {}

// Result is the outcome for one record.
type Result struct {
	RecordID    string
	ContainerID string
	MediaID     string
	// Outcome is one of the metrics.Outcome* values.
	Outcome string
	// Resumed is set when an attempt of an earlier run was picked up.
	Resumed bool
	Err     error
}

// Report summarises a sweep.
type Report struct {
	Processed int
	Published int
	Failed    int
	Skipped   int
	Results   []Result
}

// Engine publishes due records.
type Engine struct {
	Store *record.Store
	API   API
	// Journal is optional. Without it a crash after container creation may
	// lead to a second container on the next run.
	Journal  Journal
	Policy   ResponsePolicy
	Wait     graph.WaitOptions
	Clock    tz.Clock
	Logger   logger.Logger
	Observer Observer
	Metrics  *metrics.Metrics
}

// NewEngine returns an engine with the default response policy and
// processing wait.
func NewEngine(store *record.Store, api API, l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Engine{
		Store:  store,
		API:    api,
		Policy: DefaultPolicy(),
		Wait: graph.WaitOptions{
			Interval: graph.DefaultPollInterval,
			Timeout:  graph.DefaultProcessingTimeout,
		},
		Logger:   l,
		Observer: nopObserver{},
	}
}

func (e *Engine) observer() Observer {
	if e.Observer == nil {
		return nopObserver{}
	}
	return e.Observer
}

func (e *Engine) policy() ResponsePolicy {
	if e.Policy == nil {
		return StrictPolicy{}
	}
	return e.Policy
}

// Due returns the records a sweep would publish now.
func (e *Engine) Due() ([]*record.Record, error) {
	scan, err := e.Store.Scan(record.AllPattern)
	if err != nil {
		return nil, err
	}
	return scheduler.DueRecords(scan.Records, e.Clock.Now()), nil
}

// Sweep publishes every due record. A failing record never stops the
// sweep; failures are returned together as a *BatchError.
func (e *Engine) Sweep(ctx context.Context) (*Report, error) {
	unlock, err := e.Store.Lock(e.Clock.Now())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			e.Logger.Warning("%v", err)
		}
	}()

	scan, err := e.Store.Scan(record.AllPattern)
	if err != nil {
		return nil, err
	}
	report := &Report{Skipped: len(scan.Malformed)}
	due := scheduler.DueRecords(scan.Records, e.Clock.Now())
	if len(due) == 0 {
		e.Logger.Info("No posts due")
		return report, nil
	}
	e.Logger.Info("%d post(s) due", len(due))

	batch := &BatchError{}
	for _, rec := range due {
		if ctx.Err() != nil {
			batch.add(rec.ID, ctx.Err())
			report.Failed++
			continue
		}
		res := e.publish(ctx, rec)
		report.Processed++
		report.Results = append(report.Results, res)
		switch res.Outcome {
		case metrics.OutcomePublished, metrics.OutcomeFalseFatal:
			report.Published++
		case metrics.OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
			batch.add(rec.ID, res.Err)
		}
	}
	e.Logger.Info("Sweep finished: %d processed, %d published, %d failed, %d skipped",
		report.Processed, report.Published, report.Failed, report.Skipped)
	return report, batch.errOrNil()
}

// PublishOne publishes a single ready record now, whatever its schedule.
func (e *Engine) PublishOne(ctx context.Context, id string) (Result, error) {
	unlock, err := e.Store.Lock(e.Clock.Now())
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	rec, err := e.Store.Load(id)
	if err != nil {
		return Result{}, err
	}
	if rec.Posted {
		return Result{RecordID: id, Outcome: metrics.OutcomeSkipped}, fmt.Errorf("%w: %s", record.ErrAlreadyPosted, id)
	}
	if rec.Kind() != record.KindReady {
		return Result{}, fmt.Errorf("%s is a %s record without media", id, rec.Kind())
	}
	res := e.publish(ctx, rec)
	if res.Err != nil {
		return res, &RecordError{RecordID: id, Err: res.Err}
	}
	return res, nil
}

// publish runs the full flow for one record and never panics the sweep.
func (e *Engine) publish(ctx context.Context, rec *record.Record) (res Result) {
	res = Result{RecordID: rec.ID}
	obs := e.observer()
	defer func() {
		if res.Err != nil {
			res.Outcome = metrics.OutcomeFailed
			e.Logger.Error("Failed to publish %s: %v", rec.ID, res.Err)
		}
		e.Metrics.Publish(res.Outcome)
		obs.Done(rec, res)
	}()

	e.Logger.Info("Publishing %s (scheduled %s)", rec.ID, e.Store.Zone().Format(rec.ScheduledAt))

	attempt, st, err := e.resume(ctx, rec)
	if err != nil {
		res.Err = err
		return res
	}
	if attempt != nil {
		res.Resumed = true
		res.ContainerID = attempt.ContainerID
	}

	if attempt == nil {
		id, err := e.API.CreateContainer(ctx, graph.Container{
			VideoURL:   rec.MediaURL,
			Caption:    rec.Caption,
			CoverURL:   rec.CoverURL,
			LocationID: rec.LocationID,
		})
		if err != nil {
			res.Err = err
			return res
		}
		res.ContainerID = id
		attempt = e.begin(ctx, rec.ID, id)
	}
	obs.Started(rec, res.ContainerID)

	if st.Code != graph.StatusPublished && st.Code != graph.StatusFinished {
		start := time.Now()
		opts := e.Wait
		opts.Logger = e.Logger
		opts.OnStatus = func(s graph.Status, elapsed time.Duration) { obs.Polled(rec, s, elapsed) }
		st, err = graph.WaitForProcessing(ctx, e.API, res.ContainerID, opts)
		e.Metrics.Processing(time.Since(start))
		if err != nil {
			// a timed out container may still finish; the next run resumes it
			if !errors.Is(err, graph.ErrProcessingTimeout) {
				e.fail(ctx, attempt, err)
			}
			res.Err = err
			return res
		}
	}

	res.Outcome = metrics.OutcomePublished
	if st.Code == graph.StatusPublished {
		res.MediaID = res.ContainerID
		e.Logger.Info("Container %s is already published", res.ContainerID)
	} else {
		res.MediaID, err = e.API.Publish(ctx, res.ContainerID)
		if err != nil {
			mediaID, ok := e.policy().Accept(err, res.ContainerID)
			if !ok {
				e.fail(ctx, attempt, err)
				res.Err = err
				return res
			}
			e.Logger.Warning("Publishing %s returned %v; treating it as published with id %s, verify the post on the account", rec.ID, err, mediaID)
			res.MediaID = mediaID
			res.Outcome = metrics.OutcomeFalseFatal
		}
	}

	if _, err := e.Store.MarkPosted(rec.ID, e.Clock.Now()); err != nil {
		if errors.Is(err, record.ErrAlreadyPosted) {
			e.Logger.Warning("%s was marked posted by another run", rec.ID)
			res.Outcome = metrics.OutcomeSkipped
			e.resolve(ctx, attempt, res.MediaID)
			return res
		}
		// the attempt stays open so the next run finds the container published
		res.Err = fmt.Errorf("media %s is live but the record could not be updated: %w", res.MediaID, err)
		return res
	}
	e.resolve(ctx, attempt, res.MediaID)
	e.Logger.Info("Successfully posted %s (media %s)", rec.ID, res.MediaID)
	return res
}

// resume inspects an unresolved attempt of an earlier run. It returns the
// attempt to continue with and the container status, or a nil attempt when
// a new container is needed.
func (e *Engine) resume(ctx context.Context, rec *record.Record) (*journal.Attempt, graph.Status, error) {
	if e.Journal == nil {
		return nil, graph.Status{}, nil
	}
	attempt, err := e.Journal.Pending(ctx, rec.ID)
	if err != nil {
		return nil, graph.Status{}, err
	}
	if attempt == nil {
		return nil, graph.Status{}, nil
	}

	st, err := e.API.ContainerStatus(ctx, attempt.ContainerID)
	if err != nil {
		if graph.ClassifyError(err) != graph.ErrCategoryFatal {
			return nil, graph.Status{}, fmt.Errorf("check earlier container %s: %w", attempt.ContainerID, err)
		}
		e.abandon(ctx, attempt, err.Error())
		return nil, graph.Status{}, nil
	}
	switch st.Code {
	case graph.StatusPublished, graph.StatusFinished, graph.StatusInProgress:
		e.Logger.Info("Resuming container %s of %s (%s)", attempt.ContainerID, rec.ID, st.Code)
		return attempt, st, nil
	default:
		e.abandon(ctx, attempt, "container status "+st.Code)
		return nil, graph.Status{}, nil
	}
}

func (e *Engine) begin(ctx context.Context, recordID, containerID string) *journal.Attempt {
	if e.Journal == nil {
		return nil
	}
	a, err := e.Journal.Begin(ctx, recordID, containerID, e.Clock.Now())
	if err != nil {
		e.Logger.Warning("Could not journal container %s: %v", containerID, err)
		return nil
	}
	return &a
}

func (e *Engine) resolve(ctx context.Context, a *journal.Attempt, mediaID string) {
	if a == nil || e.Journal == nil {
		return
	}
	if err := e.Journal.Resolve(ctx, a.ID, mediaID, e.Clock.Now()); err != nil {
		e.Logger.Warning("%v", err)
	}
}

func (e *Engine) fail(ctx context.Context, a *journal.Attempt, cause error) {
	if a == nil || e.Journal == nil {
		return
	}
	if err := e.Journal.Fail(ctx, a.ID, cause, e.Clock.Now()); err != nil {
		e.Logger.Warning("%v", err)
	}
}

func (e *Engine) abandon(ctx context.Context, a *journal.Attempt, reason string) {
	e.Logger.Warning("Abandoning container %s of %s: %s", a.ContainerID, a.RecordID, reason)
	if err := e.Journal.Abandon(ctx, a.ID, reason, e.Clock.Now()); err != nil {
		e.Logger.Warning("%v", err)
	}
}

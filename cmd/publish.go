package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelcron/reelcron/cmd/common"
	"github.com/reelcron/reelcron/internal/graph"
	"github.com/reelcron/reelcron/internal/metrics"
	"github.com/reelcron/reelcron/internal/publish"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/scheduler"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
)

var (
	publishDryRun     bool
	publishNoRearm    bool
	publishNoProgress bool
	publishStrict     bool
	publishPoll       time.Duration
	publishTimeout    time.Duration

	publishFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "dry-run, n",
			Usage:       "list the due posts without publishing",
			Destination: &publishDryRun,
		},
		cli.BoolFlag{
			Name:        "no-rearm",
			Usage:       "leave the workflow schedule untouched",
			Destination: &publishNoRearm,
		},
		cli.BoolFlag{
			Name:        "no-progress",
			Usage:       "do not draw processing progress bars",
			Destination: &publishNoProgress,
		},
		cli.BoolFlag{
			Name:        "strict",
			Usage:       "treat every publish error as a failure",
			Destination: &publishStrict,
		},
		cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "delay between media processing status checks",
			Value:       graph.DefaultPollInterval,
			Destination: &publishPoll,
		},
		cli.DurationFlag{
			Name:        "timeout, t",
			Usage:       "maximum media processing wait per post",
			Value:       graph.DefaultProcessingTimeout,
			Destination: &publishTimeout,
		},
	}
)

// barObserver draws one processing bar per record.
type barObserver struct {
	p       *mpb.Progress
	timeout time.Duration
	bars    map[string]*common.ProcessingBar
}

func newBarObserver(p *mpb.Progress, timeout time.Duration) *barObserver {
	return &barObserver{p: p, timeout: timeout, bars: make(map[string]*common.ProcessingBar)}
}

func (o *barObserver) Started(rec *record.Record, _ string) {
	o.bars[rec.ID] = common.InitProcessingBar(o.p, rec.ID, o.timeout)
}

func (o *barObserver) Polled(rec *record.Record, st graph.Status, elapsed time.Duration) {
	if b := o.bars[rec.ID]; b != nil {
		b.Update(st.Code, elapsed)
	}
}

func (o *barObserver) Done(rec *record.Record, res publish.Result) {
	b := o.bars[rec.ID]
	if b == nil {
		return
	}
	if res.Err != nil {
		b.Finish("FAILED", false)
		return
	}
	b.Finish(res.Outcome, true)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func publishCmd(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("publish")
	if err != nil {
		return err
	}
	defer e.close()

	if publishDryRun {
		return publishPlan(e, id)
	}

	api, err := e.graphAPI()
	if err != nil {
		return err
	}
	eng := publish.NewEngine(e.store, api, e.log)
	eng.Clock = e.clock
	eng.Metrics = e.metrics
	eng.Wait.Interval = publishPoll
	eng.Wait.Timeout = publishTimeout
	if publishStrict {
		eng.Policy = publish.StrictPolicy{}
	}
	j, err := e.journal()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		eng.Journal = j
	}
	var p *mpb.Progress
	if !publishNoProgress {
		p = mpb.New(mpb.WithWidth(64))
		eng.Observer = newBarObserver(p, eng.Wait.Timeout)
	}

	sctx, cancel := signalContext()
	defer cancel()
	var (
		report *publish.Report
		runErr error
	)
	if id != "" {
		var res publish.Result
		res, runErr = eng.PublishOne(sctx, id)
		report = singleReport(res, runErr)
	} else {
		report, runErr = eng.Sweep(sctx)
	}
	if p != nil {
		p.Wait()
	}
	if report != nil {
		printReport(e, report)
	}
	if errors.Is(runErr, record.ErrLocked) {
		return runErr
	}

	if !publishNoRearm {
		if err := rearmNext(e); err != nil {
			common.PrintRuntimeErr(ctx, "publish", "rearm", err)
		}
	}
	return runErr
}

// publishPlan prints what a sweep (or a single publish) would do.
func publishPlan(e *appEnv, id string) error {
	if id != "" {
		rec, err := e.store.Load(id)
		if err != nil {
			return err
		}
		fmt.Printf("Would publish %s (%s, scheduled %s)\n", rec.ID, rec.Kind(), e.zone.Format(rec.ScheduledAt))
		return nil
	}
	eng := publish.NewEngine(e.store, nil, e.log)
	eng.Clock = e.clock
	due, err := eng.Due()
	if err != nil {
		return err
	}
	if len(due) == 0 {
		fmt.Println("No posts due")
		return nil
	}
	for _, rec := range due {
		fmt.Printf("Would publish %s (scheduled %s)\n", rec.ID, e.zone.Format(rec.ScheduledAt))
	}
	return nil
}

func singleReport(res publish.Result, err error) *publish.Report {
	if res.RecordID == "" {
		// the record was never attempted
		return nil
	}
	r := &publish.Report{Processed: 1, Results: []publish.Result{res}}
	switch {
	case res.Outcome == metrics.OutcomeSkipped:
		r.Skipped = 1
	case err != nil:
		r.Failed = 1
	default:
		r.Published = 1
	}
	return r
}

func printReport(e *appEnv, r *publish.Report) {
	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			fmt.Printf("FAILED    %s: %v\n", res.RecordID, res.Err)
		case res.Outcome == metrics.OutcomeSkipped:
			fmt.Printf("SKIPPED   %s\n", res.RecordID)
		case res.Outcome == metrics.OutcomeFalseFatal:
			fmt.Printf("PUBLISHED %s (media %s, verify on the account)\n", res.RecordID, res.MediaID)
		default:
			fmt.Printf("PUBLISHED %s (media %s)\n", res.RecordID, res.MediaID)
		}
	}
	fmt.Printf("Processed %d, published %d, failed %d, skipped %d\n",
		r.Processed, r.Published, r.Failed, r.Skipped)
	e.log.Debug("publish report: %+v", *r)
}

// rearmNext points the workflow at the next pending post, or disables it.
func rearmNext(e *appEnv) error {
	scan, err := e.store.Scan(record.AllPattern)
	if err != nil {
		return err
	}
	now := e.now()
	ev, ok := scheduler.NextEvent(scan.Records, now)
	e.metrics.Schedule(len(scheduler.Upcoming(scan.Records, now)), ev.At)
	if !ok {
		return rearm(e, "", false)
	}
	return rearm(e, scheduler.TriggerFor(ev.At).String(), false)
}

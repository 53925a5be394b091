package cmd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reelcron/reelcron/internal/publish"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/retention"
	"github.com/reelcron/reelcron/internal/scheduler"
	"github.com/urfave/cli"
)

var (
	watchRescan    time.Duration
	watchSweep     time.Duration
	watchKeepMedia bool

	watchFlags = []cli.Flag{
		cli.DurationFlag{
			Name:        "rescan",
			Usage:       "how often the record directory is re-read",
			Value:       time.Minute,
			Destination: &watchRescan,
		},
		cli.DurationFlag{
			Name:        "sweep-every",
			Usage:       "retention sweep interval (0 disables it)",
			Value:       DEF_WATCH_SWEEP,
			Destination: &watchSweep,
		},
		cli.BoolFlag{
			Name:        "keep-media, k",
			Usage:       "retention sweeps leave hosted media untouched",
			Destination: &watchKeepMedia,
		},
	}
)

// watcher publishes records as their instant passes.
type watcher struct {
	env     *appEnv
	engine  *publish.Engine
	sweeper *retention.Sweeper
	sched   *scheduler.Watcher
	known   map[string]bool
	// failed records are not retried until the next start
	failed map[string]bool
}

func watch(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("watch")
	if err != nil {
		return err
	}
	defer e.close()

	api, err := e.graphAPI()
	if err != nil {
		return err
	}
	eng := publish.NewEngine(e.store, api, e.log)
	eng.Clock = e.clock
	eng.Metrics = e.metrics
	j, err := e.journal()
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		eng.Journal = j
	}

	var sw *retention.Sweeper
	if watchSweep > 0 {
		var host retention.MediaHost
		if !watchKeepMedia {
			h, err := e.mediaHost()
			if err != nil {
				return err
			}
			host = h
		}
		sw = retention.NewSweeper(e.store, host, e.log)
		sw.KeepMedia = watchKeepMedia
		sw.Clock = e.clock
		sw.Metrics = e.metrics
	}

	sctx, cancel := signalContext()
	defer cancel()
	return runWatch(sctx, &watcher{env: e, engine: eng, sweeper: sw, known: make(map[string]bool), failed: make(map[string]bool)})
}

// dueQueue hands fired events from the watcher goroutine to the main loop.
// push never blocks.
type dueQueue struct {
	mu    sync.Mutex
	ids   []string
	ready chan struct{}
}

func newDueQueue() *dueQueue {
	return &dueQueue{ready: make(chan struct{}, 1)}
}

func (q *dueQueue) push(ev scheduler.Event) {
	q.mu.Lock()
	q.ids = append(q.ids, ev.RecordID)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *dueQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

func runWatch(ctx context.Context, w *watcher) error {
	fired := newDueQueue()
	w.sched = scheduler.NewWatcher(ctx, w.env.clock, fired.push)
	w.env.log.Info("Watching %s", w.env.store.Dir())
	w.rescan(ctx)

	rescan := time.NewTicker(watchRescan)
	defer rescan.Stop()
	var sweepC <-chan time.Time
	if w.sweeper != nil {
		t := time.NewTicker(watchSweep)
		defer t.Stop()
		sweepC = t.C
	}
	for {
		select {
		case <-ctx.Done():
			w.env.log.Info("Watch stopped")
			return nil
		case <-fired.ready:
			for _, id := range fired.drain() {
				delete(w.known, id)
				w.publish(ctx, id)
			}
		case <-rescan.C:
			w.rescan(ctx)
		case <-sweepC:
			if _, err := w.sweeper.Run(ctx, false); err != nil {
				w.env.log.Error("Retention sweep: %v", err)
			}
		}
	}
}

// rescan schedules new pending records and catches up on records that
// became due without an event, such as files added with a past instant.
func (w *watcher) rescan(ctx context.Context) {
	scan, err := w.env.store.Scan(record.AllPattern)
	if err != nil {
		w.env.log.Error("Scan %s: %v", w.env.store.Dir(), err)
		return
	}
	now := w.env.now()
	events := scheduler.Upcoming(scan.Records, now)
	w.env.metrics.Schedule(len(events), firstAt(events))
	for _, ev := range events {
		if w.known[ev.RecordID] {
			continue
		}
		w.known[ev.RecordID] = true
		w.sched.Add(ev)
		w.env.log.Debug("Scheduled %s at %s", ev.RecordID, w.env.zone.Format(ev.At))
	}
	for _, rec := range scheduler.DueRecords(scan.Records, now) {
		if !w.known[rec.ID] && !w.failed[rec.ID] {
			w.publish(ctx, rec.ID)
		}
	}
}

func (w *watcher) publish(ctx context.Context, id string) {
	res, err := w.engine.PublishOne(ctx, id)
	switch {
	case errors.Is(err, record.ErrAlreadyPosted), errors.Is(err, record.ErrNotFound):
		w.env.log.Debug("%s: %v", id, err)
	case errors.Is(err, record.ErrLocked):
		w.env.log.Warning("Publish %s: %v, retrying on the next scan", id, err)
	case err != nil:
		w.failed[id] = true
		w.env.log.Error("Publish %s: %v", id, err)
	default:
		w.env.log.Info("Published %s as media %s", id, res.MediaID)
	}
}

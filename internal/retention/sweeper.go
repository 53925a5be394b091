// Package retention removes posted records once they are older than the
// retention window, together with their remote media.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/reelcron/reelcron/internal/metrics"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
)

// DefaultWindow is how long a posted record is kept.
const DefaultWindow = 7 * 24 * time.Hour

// MediaHost deletes remote media assets.
type MediaHost interface {
	// Owns reports whether the URL points at an asset of this host.
	Owns(mediaURL string) bool
	Delete(ctx context.Context, mediaURL string) error
}

// Item is one expired record.
type Item struct {
	RecordID string
	MediaURL string
	PostedAt time.Time
	Age      time.Duration
}

// Result describes a sweep. In dry-run mode Deleted and MediaDeleted list
// what would have been removed.
type Result struct {
	DryRun         bool
	Deleted        []Item
	MediaDeleted   []string
	MediaProtected []string
	// Kept counts posted records still inside the window.
	Kept int
	// Pending counts records that are not posted.
	Pending int
	Failed  map[string]error
}

// Sweeper deletes expired records.
type Sweeper struct {
	Store  *record.Store
	Host   MediaHost
	Window time.Duration
	// KeepMedia leaves remote media untouched.
	KeepMedia bool
	Clock     tz.Clock
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// NewSweeper returns a sweeper with the default window.
func NewSweeper(store *record.Store, host MediaHost, l logger.Logger) *Sweeper {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Sweeper{Store: store, Host: host, Window: DefaultWindow, Logger: l}
}

// Expired reports a posted record whose age exceeds window at now.
// Unposted records never expire.
func Expired(rec *record.Record, now time.Time, window time.Duration) bool {
	return rec.Posted && now.Sub(rec.PostedAt) > window
}

// Run sweeps the store. Failures are collected per record; a record whose
// media could not be deleted stays for the next run.
func (s *Sweeper) Run(ctx context.Context, dryRun bool) (*Result, error) {
	if s.Host == nil && !s.KeepMedia {
		return nil, fmt.Errorf("retention: no media host configured")
	}
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := s.Clock.Now()

	scan, err := s.Store.Scan(record.AllPattern)
	if err != nil {
		return nil, err
	}

	protected := make(map[string]bool)
	for _, rec := range scan.Records {
		if !rec.Posted && rec.MediaURL != "" {
			protected[rec.MediaURL] = true
		}
	}

	res := &Result{DryRun: dryRun, Failed: make(map[string]error)}
	var errs *multierror.Error
	mediaDone := make(map[string]error)

	s.Logger.Info("Retention cutoff: %s", s.Store.Zone().Format(now.Add(-window)))
	for _, rec := range scan.Records {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !rec.Posted {
			res.Pending++
			continue
		}
		if !Expired(rec, now, window) {
			res.Kept++
			s.Logger.Debug("Keeping %s (posted at %s, still recent)", rec.ID, rec.PostedAt.Format(time.RFC3339))
			continue
		}

		if err := s.deleteMedia(ctx, rec, protected, mediaDone, res, dryRun); err != nil {
			s.Logger.Error("Keeping %s: %v", rec.ID, err)
			s.Metrics.RetentionError()
			res.Failed[rec.ID] = err
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", rec.ID, err))
			continue
		}

		item := Item{RecordID: rec.ID, MediaURL: rec.MediaURL, PostedAt: rec.PostedAt, Age: now.Sub(rec.PostedAt)}
		if dryRun {
			s.Logger.Info("[DRY RUN] Would delete %s (posted at %s)", rec.ID, rec.PostedAt.Format(time.RFC3339))
			res.Deleted = append(res.Deleted, item)
			continue
		}
		if err := s.Store.Delete(rec.ID); err != nil {
			res.Failed[rec.ID] = err
			errs = multierror.Append(errs, err)
			continue
		}
		s.Metrics.Deleted("record")
		s.Logger.Info("Deleted %s (posted at %s)", rec.ID, rec.PostedAt.Format(time.RFC3339))
		res.Deleted = append(res.Deleted, item)
	}
	return res, errs.ErrorOrNil()
}

// deleteMedia removes the remote asset of an expired record. Each URL is
// handled once per run.
func (s *Sweeper) deleteMedia(ctx context.Context, rec *record.Record, protected map[string]bool, done map[string]error, res *Result, dryRun bool) error {
	url := rec.MediaURL
	if s.KeepMedia || url == "" {
		return nil
	}
	if protected[url] {
		if _, seen := done[url]; !seen {
			done[url] = nil
			res.MediaProtected = append(res.MediaProtected, url)
			s.Logger.Info("Media of %s is still used by a pending post", rec.ID)
		}
		return nil
	}
	if !s.Host.Owns(url) {
		s.Logger.Debug("Media of %s is not hosted by us, leaving it", rec.ID)
		return nil
	}
	if err, seen := done[url]; seen {
		return err
	}

	var err error
	if dryRun {
		s.Logger.Info("[DRY RUN] Would delete media %s", url)
	} else if err = s.Host.Delete(ctx, url); err == nil {
		s.Metrics.Deleted("media")
		s.Logger.Info("Deleted media %s", url)
	}
	done[url] = err
	if err == nil {
		res.MediaDeleted = append(res.MediaDeleted, url)
	}
	return err
}

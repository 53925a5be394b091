// Package planning turns the pages of a Notion content-planning database
// into draft records.
package planning

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the page content requests in flight.
const DefaultConcurrency = 4

// SyncResult lists the drafts written and the pages passed over.
type SyncResult struct {
	Created []string
	// Skipped maps page ids to the reason they were not synced.
	Skipped map[string]string
}

// Syncer writes one draft per new planning page.
type Syncer struct {
	Source      Source
	Config      *Config
	Store       *record.Store
	Clock       tz.Clock
	Logger      logger.Logger
	Concurrency int
}

func (s *Syncer) wanted(p Page, now time.Time) bool {
	f := s.Config.Filters
	if f.futureOnly() && !p.ScheduledAt.After(now) {
		return false
	}
	if f.excludePosted() {
		for _, v := range f.postedValues() {
			if p.Status == v {
				return false
			}
		}
	}
	return true
}

// Sync fetches the planning pages and writes a draft for each future,
// unposted page that has a video path and no record yet.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	now := s.Clock.Now()
	pages, err := s.Source.Pages(ctx)
	if err != nil {
		return nil, err
	}

	scan, err := s.Store.Scan(record.AllPattern)
	if err != nil {
		return nil, err
	}
	known := make(map[string]string)
	for _, rec := range scan.Records {
		if id := rec.Provenance.NotionPageID; id != "" {
			known[id] = rec.ID
		}
	}

	res := &SyncResult{Skipped: make(map[string]string)}
	var todo []Page
	for _, p := range pages {
		switch {
		case !s.wanted(p, now):
			continue
		case known[p.ID] != "":
			s.Logger.Info("Skipping %q: record %s already exists", p.Title, known[p.ID])
			res.Skipped[p.ID] = "exists"
		case p.VideoPath == "":
			s.Logger.Warning("Skipping %q: no video path", p.Title)
			res.Skipped[p.ID] = "no video path"
		case p.ScheduledAt.IsZero():
			s.Logger.Warning("Skipping %q: no scheduled time", p.Title)
			res.Skipped[p.ID] = "no scheduled time"
		default:
			todo = append(todo, p)
		}
	}
	if len(todo) == 0 {
		s.Logger.Info("No new planning pages")
		return res, nil
	}

	descriptions, err := s.describe(ctx, todo)
	if err != nil {
		return res, err
	}

	zone := s.Store.Zone()
	var errs *multierror.Error
	for i, p := range todo {
		caption := descriptions[i]
		if caption == "" {
			s.Logger.Warning("No description for %q, using the title as caption", p.Title)
			caption = p.Title
		}
		if caption == "" {
			caption = "New reel"
		}
		rec := record.NewDraft(caption, p.ScheduledAt, zone, record.Provenance{
			NotionPageID:   p.ID,
			LocalVideoPath: p.VideoPath,
			Title:          orDefault(p.Title, "Untitled"),
			Status:         orDefault(p.Status, "Unknown"),
			GeneratedAt:    zone.Format(now),
		})
		stem := strings.TrimSuffix(filepath.Base(p.VideoPath), filepath.Ext(p.VideoPath))
		id, err := s.Store.Create(s.Config.Output.Prefix, stem, rec, now)
		if err != nil {
			s.Logger.Error("Draft for %q: %v", p.Title, err)
			errs = multierror.Append(errs, fmt.Errorf("page %s: %w", p.ID, err))
			continue
		}
		s.Logger.Info("Created draft %s for %q", id, p.Title)
		res.Created = append(res.Created, id)
	}
	return res, errs.ErrorOrNil()
}

// describe fetches the caption of every page concurrently. A page whose
// content cannot be read gets an empty description.
func (s *Syncer) describe(ctx context.Context, pages []Page) ([]string, error) {
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	c := s.Config.Content
	for i, p := range pages {
		g.Go(func() error {
			blocks, err := s.Source.Blocks(gctx, p.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.Logger.Warning("Failed to fetch content of %q: %v", p.Title, err)
				return nil
			}
			out[i] = ExtractDescription(blocks, c.DescriptionHeading, c.DescriptionHeadingType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

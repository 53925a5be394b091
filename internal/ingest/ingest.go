// Package ingest turns local videos into ready records: the video is
// uploaded to the media host and a record pointing at it is written.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/reelcron/reelcron/internal/media"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
	"github.com/spf13/afero"
)

// DefaultDelay schedules an upload one day ahead.
const DefaultDelay = 24 * time.Hour

// ReadyPrefix and DraftPrefix start the record ids.
const (
	ReadyPrefix = "reel"
	DraftPrefix = "notion"
)

var (
	// ErrVideoNotFound is returned when the local video does not exist.
	ErrVideoNotFound = errors.New("video file not found")
	// ErrCaptionNotFound is returned when the caption file does not exist.
	ErrCaptionNotFound = errors.New("caption file not found")
)

var supportedExt = map[string]bool{".mp4": true, ".mov": true, ".avi": true, ".mkv": true}

// Host uploads videos.
type Host interface {
	Upload(ctx context.Context, file, publicID string) (media.Asset, error)
}

// Request describes one upload.
type Request struct {
	VideoPath string
	// Caption wins over CaptionFile when both are set.
	Caption     string
	CaptionFile string
	// At is the exact scheduled instant. When zero, Delay from now is used.
	At    time.Time
	Delay time.Duration
	// PublicID defaults to the video file name without extension.
	PublicID string
	// NotionPageID links the ready record to its planning page.
	NotionPageID string
}

// Uploader uploads videos and writes ready records.
type Uploader struct {
	// FS is where local videos and caption files are read from.
	FS     afero.Fs
	Store  *record.Store
	Host   Host
	Clock  tz.Clock
	Logger logger.Logger
}

// NewUploader reads local files from the OS filesystem.
func NewUploader(store *record.Store, host Host, l logger.Logger) *Uploader {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Uploader{FS: afero.NewOsFs(), Store: store, Host: host, Logger: l}
}

// Ingested is the ready record written by Ingest.
type Ingested struct {
	RecordID string
	Asset    media.Asset
	Record   *record.Record
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ingest uploads the video and writes a ready record scheduled at req.At,
// or req.Delay (default one day) from now.
func (u *Uploader) Ingest(ctx context.Context, req Request) (*Ingested, error) {
	ok, err := afero.Exists(u.FS, req.VideoPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, req.VideoPath)
	}
	if ext := strings.ToLower(filepath.Ext(req.VideoPath)); !supportedExt[ext] {
		u.Logger.Warning("%q may not be supported by Instagram", ext)
	}

	caption, err := u.caption(req)
	if err != nil {
		return nil, err
	}

	now := u.Clock.Now()
	at := req.At
	if at.IsZero() {
		delay := req.Delay
		if delay <= 0 {
			delay = DefaultDelay
		}
		at = now.Add(delay)
	}

	name := stem(req.VideoPath)
	publicID := req.PublicID
	if publicID == "" {
		publicID = name
	}
	asset, err := u.Host.Upload(ctx, req.VideoPath, publicID)
	if err != nil {
		return nil, err
	}

	rec := record.NewReady(asset.URL, caption, at, u.Store.Zone())
	rec.Provenance.NotionPageID = req.NotionPageID
	id, err := u.Store.Create(ReadyPrefix, name, rec, now)
	if err != nil {
		return nil, fmt.Errorf("uploaded %s but could not write its record: %w", asset.URL, err)
	}
	u.Logger.Info("Created %s scheduled for %s", id, u.Store.Zone().Format(at))
	return &Ingested{RecordID: id, Asset: asset, Record: rec}, nil
}

func (u *Uploader) caption(req Request) (string, error) {
	if req.Caption != "" {
		return req.Caption, nil
	}
	if req.CaptionFile != "" {
		data, err := afero.ReadFile(u.FS, req.CaptionFile)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrCaptionNotFound, req.CaptionFile)
			}
			return "", fmt.Errorf("read caption file: %w", err)
		}
		if c := strings.TrimSpace(string(data)); c != "" {
			return c, nil
		}
	}
	return "New reel from " + stem(req.VideoPath), nil
}

// PromoteResult lists the outcome of a promotion run.
type PromoteResult struct {
	DryRun   bool
	Promoted map[string]string // draft id -> ready id
	Pending  []string          // drafts found in dry-run mode
	Failed   map[string]error
}

// Promoter turns drafts into ready records once their video is available
// locally.
type Promoter struct {
	Uploader *Uploader
}

// PromoteDrafts uploads the video of every draft matching pattern and
// replaces the draft with a ready record scheduled at the same instant. The
// draft is removed only after its ready record has been written.
func (p *Promoter) PromoteDrafts(ctx context.Context, pattern string, dryRun bool) (*PromoteResult, error) {
	if pattern == "" {
		pattern = record.DraftPattern
	}
	u := p.Uploader
	scan, err := u.Store.Scan(pattern)
	if err != nil {
		return nil, err
	}

	res := &PromoteResult{DryRun: dryRun, Promoted: map[string]string{}, Failed: map[string]error{}}
	var errs *multierror.Error
	for _, draft := range scan.Records {
		if draft.Kind() != record.KindDraft || draft.Provenance.LocalVideoPath == "" {
			continue
		}
		if dryRun {
			u.Logger.Info("[DRY RUN] Would promote %s (%s)", draft.ID, draft.Provenance.LocalVideoPath)
			res.Pending = append(res.Pending, draft.ID)
			continue
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		out, err := u.Ingest(ctx, Request{
			VideoPath:    draft.Provenance.LocalVideoPath,
			Caption:      draft.Caption,
			At:           draft.ScheduledAt,
			NotionPageID: draft.Provenance.NotionPageID,
		})
		if err != nil {
			u.Logger.Error("Failed to promote %s: %v", draft.ID, err)
			res.Failed[draft.ID] = err
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", draft.ID, err))
			continue
		}
		if err := u.Store.Delete(draft.ID); err != nil {
			u.Logger.Warning("Promoted %s to %s but could not remove the draft: %v", draft.ID, out.RecordID, err)
		} else {
			u.Logger.Info("Removed draft %s", draft.ID)
		}
		res.Promoted[draft.ID] = out.RecordID
	}
	return res, errs.ErrorOrNil()
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/reelcron/reelcron/internal/config"
	"github.com/reelcron/reelcron/internal/graph"
	"github.com/reelcron/reelcron/internal/journal"
	"github.com/reelcron/reelcron/internal/media"
	"github.com/reelcron/reelcron/internal/metrics"
	"github.com/reelcron/reelcron/internal/planning"
	"github.com/reelcron/reelcron/internal/publish"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
	"github.com/spf13/afero"
)

// mediaHost uploads and deletes hosted videos.
type mediaHost interface {
	Upload(ctx context.Context, file, publicID string) (media.Asset, error)
	Owns(mediaURL string) bool
	Delete(ctx context.Context, mediaURL string) error
}

// journalStore is the publish journal as used by the commands.
type journalStore interface {
	publish.Journal
	History(ctx context.Context, limit int) ([]journal.Attempt, error)
	Close() error
}

// Collaborators are package variables so tests can swap them.
var (
	appFs afero.Fs = afero.NewOsFs()
	clock tz.Clock

	newGraphAPI = func(c config.Instagram, l logger.Logger) publish.API {
		return graph.NewClient(c.AccessToken, c.AccountID, graph.WithLogger(l))
	}
	newMediaHost = func(c config.Cloudinary, l logger.Logger) (mediaHost, error) {
		return media.NewCloudinary(c.CloudName, c.APIKey, c.APISecret, l)
	}
	newPlanningSource = func(c config.Notion, props planning.Properties) planning.Source {
		return planning.NewNotion(c.Token, c.DatabaseID, props)
	}
	openJournal = func(path string) (journalStore, error) {
		return journal.Open(path)
	}
)

// appEnv holds what every command needs: the logger, the reference zone,
// the record store and the metrics of the run.
type appEnv struct {
	command string
	log     logger.Logger
	zone    tz.Zone
	store   *record.Store
	metrics *metrics.Metrics
	clock   tz.Clock
}

func newAppEnv(command string) (*appEnv, error) {
	zone, err := tz.Load(zoneName)
	if err != nil {
		return nil, err
	}
	var l logger.Logger = logger.NewConsoleLogger(verbose)
	if logFile != "" {
		fl, err := logger.NewFileLogger(logFile, verbose)
		if err != nil {
			return nil, err
		}
		l = logger.NewMultiLogger(l, fl)
	}
	l.Debug("%s: records in %s, zone %s", command, recordsDir, zone)
	return &appEnv{
		command: command,
		log:     l,
		zone:    zone,
		store:   record.NewStore(appFs, recordsDir, zone, l),
		metrics: metrics.New(),
		clock:   clock,
	}, nil
}

func (e *appEnv) now() time.Time {
	return e.zone.In(e.clock.Now())
}

// close stamps the run, writes the metrics textfile and closes the logger.
func (e *appEnv) close() {
	e.metrics.Ran(e.command, e.clock.Now())
	if err := e.metrics.WriteTextfile(metricsFile); err != nil {
		e.log.Warning("write metrics: %v", err)
	}
	e.log.Close()
}

func (e *appEnv) graphAPI() (publish.API, error) {
	c, err := config.LoadInstagram()
	if err != nil {
		return nil, err
	}
	return newGraphAPI(c, e.log), nil
}

func (e *appEnv) mediaHost() (mediaHost, error) {
	c, err := config.LoadCloudinary()
	if err != nil {
		return nil, err
	}
	h, err := newMediaHost(c, e.log)
	if err != nil {
		return nil, fmt.Errorf("media host: %w", err)
	}
	return h, nil
}

// journal opens the publish journal, or returns nil when it is disabled.
func (e *appEnv) journal() (journalStore, error) {
	if journalPath == "" {
		return nil, nil
	}
	j, err := openJournal(journalPath)
	if err != nil {
		return nil, err
	}
	return j, nil
}

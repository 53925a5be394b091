package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/reelcron/reelcron/internal/config"
	"github.com/reelcron/reelcron/internal/retention"
	"github.com/urfave/cli"
)

var (
	sweepDryRun    bool
	sweepKeepMedia bool
	sweepWindow    = retention.DefaultWindow

	sweepFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "dry-run, n",
			Usage:       "show what would be deleted",
			Destination: &sweepDryRun,
		},
		cli.BoolFlag{
			Name:        "keep-media, k",
			Usage:       "delete records only, leave hosted media untouched",
			Destination: &sweepKeepMedia,
		},
		cli.DurationFlag{
			Name:        "window",
			Usage:       "age after publishing at which a record expires",
			Value:       retention.DefaultWindow,
			Destination: &sweepWindow,
		},
	}
)

func sweep(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("sweep")
	if err != nil {
		return err
	}
	defer e.close()

	keepMedia := sweepKeepMedia
	var host retention.MediaHost
	if !keepMedia {
		h, err := e.mediaHost()
		switch {
		case err == nil:
			host = h
		case sweepDryRun && errors.Is(err, config.ErrMissingCredential):
			e.log.Warning("%v, the dry run lists records only", err)
			keepMedia = true
		default:
			return err
		}
	}
	s := retention.NewSweeper(e.store, host, e.log)
	s.Window = sweepWindow
	s.KeepMedia = keepMedia
	s.Clock = e.clock
	s.Metrics = e.metrics

	sctx, cancel := signalContext()
	defer cancel()
	res, runErr := s.Run(sctx, sweepDryRun)
	if res != nil {
		printSweep(e, res)
	}
	return runErr
}

func printSweep(e *appEnv, res *retention.Result) {
	verb := "Deleted"
	if res.DryRun {
		verb = "Would delete"
	}
	now := e.now()
	for _, it := range res.Deleted {
		fmt.Printf("%s %s (posted %s)\n", verb, it.RecordID, humanize.RelTime(it.PostedAt, now, "ago", "from now"))
	}
	for _, u := range res.MediaDeleted {
		fmt.Printf("%s media %s\n", verb, u)
	}
	for _, u := range res.MediaProtected {
		fmt.Printf("Kept media %s, still used by a pending post\n", u)
	}
	ids := make([]string, 0, len(res.Failed))
	for id := range res.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("FAILED %s: %v\n", id, res.Failed[id])
	}
	fmt.Printf("%s %d record(s), kept %d recent and %d pending\n",
		verb, len(res.Deleted), res.Kept, res.Pending)
}

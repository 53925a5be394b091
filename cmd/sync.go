package cmd

import (
	"fmt"
	"sort"

	"github.com/reelcron/reelcron/internal/config"
	"github.com/reelcron/reelcron/internal/planning"
	"github.com/urfave/cli"
)

var (
	syncConfig      string
	syncConcurrency int

	syncFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "planning database mapping",
			Value:       planning.DefaultConfigPath,
			Destination: &syncConfig,
		},
		cli.IntFlag{
			Name:        "concurrency",
			Usage:       "pages whose content is fetched in parallel",
			Value:       planning.DefaultConcurrency,
			Destination: &syncConcurrency,
		},
	}
)

func syncCmd(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("sync")
	if err != nil {
		return err
	}
	defer e.close()

	cfg, err := planning.LoadConfig(appFs, syncConfig)
	if err != nil {
		return err
	}
	creds, err := config.LoadNotion()
	if err != nil {
		return err
	}
	s := &planning.Syncer{
		Source:      newPlanningSource(creds, cfg.Properties),
		Config:      cfg,
		Store:       e.store,
		Clock:       e.clock,
		Logger:      e.log,
		Concurrency: syncConcurrency,
	}
	sctx, cancel := signalContext()
	defer cancel()
	res, runErr := s.Sync(sctx)
	if res == nil {
		return runErr
	}
	for _, id := range res.Created {
		fmt.Printf("Created %s\n", id)
	}
	pages := make([]string, 0, len(res.Skipped))
	for id := range res.Skipped {
		pages = append(pages, id)
	}
	sort.Strings(pages)
	for _, id := range pages {
		fmt.Printf("Skipped page %s: %s\n", id, res.Skipped[id])
	}
	fmt.Printf("Created %d draft(s), skipped %d page(s)\n", len(res.Created), len(res.Skipped))
	return runErr
}

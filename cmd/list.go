package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/reelcron/reelcron/cmd/common"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/scheduler"
	"github.com/urfave/cli"
)

var (
	listAll bool

	lsFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "all, a",
			Usage:       "also list drafts, posted and past records",
			Destination: &listAll,
		},
	}

	historyLimit int

	historyFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "number of attempts to show",
			Value:       20,
			Destination: &historyLimit,
		},
	}
)

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("list")
	if err != nil {
		return err
	}
	defer e.close()

	scan, err := e.store.Scan(record.AllPattern)
	if err != nil {
		return err
	}
	for id, merr := range scan.Malformed {
		common.PrintRuntimeErr(ctx, "list", id, merr)
	}
	now := e.now()
	if listAll {
		return listRecords(e, scan.Records)
	}

	events := scheduler.Upcoming(scan.Records, now)
	e.metrics.Schedule(len(events), firstAt(events))
	if len(events) == 0 {
		fmt.Println("reelcron: no upcoming posts")
		return nil
	}
	txt := "Upcoming posts:"
	txt += "\n\n-------------------------------------------------------------------------------"
	txt += "\n|Num|            Record            |     Scheduled      |        When        |"
	txt += "\n|---|------------------------------|--------------------|--------------------|"
	for i, ev := range events {
		txt += fmt.Sprintf("\n|%s|%s|%s|%s|",
			common.Beaut(fmt.Sprint(i+1), 3),
			common.Beaut(ev.RecordID, 30),
			common.Beaut(e.zone.In(ev.At).Format("2006-01-02 15:04"), 20),
			common.Beaut(humanize.RelTime(ev.At, now, "ago", "from now"), 20),
		)
	}
	txt += "\n-------------------------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}

func firstAt(events []scheduler.Event) (at time.Time) {
	if len(events) > 0 {
		at = events[0].At
	}
	return
}

func listRecords(e *appEnv, records []*record.Record) error {
	if len(records) == 0 {
		fmt.Println("reelcron: no records found")
		return nil
	}
	txt := "All records:"
	txt += "\n\n-------------------------------------------------------------------------"
	txt += "\n|            Record            | Kind  |     Scheduled      |   State   |"
	txt += "\n|------------------------------|-------|--------------------|-----------|"
	now := e.now()
	for _, rec := range records {
		state := "pending"
		switch {
		case rec.Posted:
			state = "posted"
		case rec.Kind() == record.KindDraft:
			state = "draft"
		case !rec.ScheduledAt.After(now):
			state = "due"
		}
		txt += fmt.Sprintf("\n|%s|%s|%s|%s|",
			common.Beaut(rec.ID, 30),
			common.Beaut(rec.Kind().String(), 7),
			common.Beaut(e.zone.In(rec.ScheduledAt).Format("2006-01-02 15:04"), 20),
			common.Beaut(state, 11),
		)
	}
	txt += "\n-------------------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("history")
	if err != nil {
		return err
	}
	defer e.close()

	j, err := e.journal()
	if err != nil {
		return err
	}
	if j == nil {
		fmt.Println("reelcron: the publish journal is disabled")
		return nil
	}
	defer j.Close()
	attempts, err := j.History(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("reelcron: no publish attempts recorded")
		return nil
	}
	now := e.now()
	for _, a := range attempts {
		line := fmt.Sprintf("%-10s %s container=%s", a.State, a.RecordID, a.ContainerID)
		if a.MediaID != "" {
			line += " media=" + a.MediaID
		}
		line += " (" + humanize.RelTime(a.UpdatedAt, now, "ago", "from now") + ")"
		if a.Error != "" {
			line += "\n           error: " + a.Error
		}
		fmt.Println(line)
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"

	"al.essio.dev/pkg/shellescape"
	"github.com/dustin/go-humanize"
	"github.com/reelcron/reelcron/cmd/common"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/scheduler"
	"github.com/reelcron/reelcron/internal/workflow"
	"github.com/urfave/cli"
)

var (
	nextArm    bool
	nextDryRun bool

	nextFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "arm, a",
			Usage:       "rewrite the workflow schedule for the next post",
			Destination: &nextArm,
		},
		cli.BoolFlag{
			Name:        "dry-run, n",
			Usage:       "with --arm, show the change without writing it",
			Destination: &nextDryRun,
		},
	}

	armDisable bool

	armFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "disable",
			Usage:       "comment out the schedule block",
			Destination: &armDisable,
		},
	}
)

func next(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("next")
	if err != nil {
		return err
	}
	defer e.close()

	scan, err := e.store.Scan(record.AllPattern)
	if err != nil {
		return err
	}
	now := e.now()
	ev, ok := scheduler.NextEvent(scan.Records, now)
	e.metrics.Schedule(len(scheduler.Upcoming(scan.Records, now)), ev.At)
	if !ok {
		fmt.Println("No pending posts found")
		fmt.Println("STATUS: NO_POSTS")
		if nextArm {
			return rearm(e, "", nextDryRun)
		}
		return nil
	}

	trig := scheduler.TriggerFor(ev.At)
	fmt.Printf("Next post scheduled for: %s (%s, %s)\n",
		e.zone.Format(ev.At), ev.RecordID, humanize.RelTime(ev.At, now, "ago", "from now"))
	fmt.Printf("Optimal cron schedule: %s\n", trig)
	fmt.Println("STATUS: HAS_POSTS")
	if nextArm {
		return rearm(e, trig.String(), nextDryRun)
	}
	fmt.Printf("# - cron: '%s'\n", trig)
	fmt.Printf("To arm it: %s\n", shellescape.QuoteCommand([]string{
		"reelcron", "--workflow", workflowPath, "arm", trig.String(),
	}))
	return nil
}

// rearm writes expr into the workflow, or disables the schedule when expr
// is empty.
func rearm(e *appEnv, expr string, dryRun bool) error {
	if dryRun {
		if expr == "" {
			fmt.Printf("Would disable the schedule of %s\n", workflowPath)
		} else {
			fmt.Printf("Would arm %s with '%s'\n", workflowPath, expr)
		}
		return nil
	}
	var (
		res workflow.Result
		err error
	)
	if expr == "" {
		res, err = workflow.Disable(appFs, workflowPath)
	} else {
		res, err = workflow.Arm(appFs, workflowPath, expr, "")
	}
	if err != nil {
		return fmt.Errorf("re-arm %s: %w", workflowPath, err)
	}
	switch {
	case res == workflow.Unchanged:
		fmt.Println("No changes needed to workflow")
	case expr == "":
		fmt.Println("Workflow schedule disabled")
	default:
		fmt.Printf("Workflow schedule updated to '%s'\n", expr)
	}
	e.log.Info("Workflow %s %s", workflowPath, res)
	return nil
}

func arm(ctx *cli.Context) error {
	expr := ctx.Args().First()
	if expr == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if (expr == "") == !armDisable {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("provide either a cron expression or --disable"),
		)
	}
	e, err := newAppEnv("arm")
	if err != nil {
		return err
	}
	defer e.close()

	if armDisable {
		return rearm(e, "", false)
	}
	if err := scheduler.ValidateCron(expr); err != nil {
		return err
	}
	if !scheduler.HasOccurrenceWithinYear(expr, e.now()) {
		e.log.Warning("'%s' does not fire within the next year", expr)
	}
	return rearm(e, expr, false)
}

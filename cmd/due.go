package cmd

import (
	"fmt"
	"os"

	"github.com/reelcron/reelcron/cmd/common"
	"github.com/reelcron/reelcron/internal/record"
	"github.com/reelcron/reelcron/internal/scheduler"
	"github.com/urfave/cli"
)

const (
	statusDue   = "posts_due"
	statusNoDue = "no_posts_due"
)

func due(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("due")
	if err != nil {
		return err
	}
	defer e.close()

	status := statusNoDue
	scan, err := e.store.Scan(record.AllPattern)
	if err != nil {
		// an unreadable store means nothing can be published
		e.log.Error("scan %s: %v", recordsDir, err)
	} else if scheduler.Due(scan.Records, e.now()) {
		status = statusDue
	}
	fmt.Println(status)

	if out := os.Getenv("GITHUB_OUTPUT"); out != "" {
		if err := appendOutput(out, "status", status); err != nil {
			common.PrintRuntimeErr(ctx, "due", "github_output", err)
		}
	}
	return nil
}

func appendOutput(path, key, value string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

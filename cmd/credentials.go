package cmd

import (
	"fmt"

	"github.com/reelcron/reelcron/internal/config"
	"github.com/urfave/cli"
)

func credentials(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	for _, name := range config.Names {
		_, src := config.Lookup(name)
		if src == "" {
			src = "missing"
		}
		fmt.Printf("%-31s %s\n", name, src)
	}
	return nil
}

package cmd

import (
	"fmt"
	"runtime"

	"github.com/reelcron/reelcron/cmd/common"
	"github.com/reelcron/reelcron/internal/config"
	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/internal/workflow"
	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var (
	recordsDir   string
	workflowPath string
	zoneName     string
	journalPath  string
	logFile      string
	metricsFile  string
	envFile      string
	verbose      bool

	globalFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "dir, d",
			Usage:       "directory holding the post records",
			EnvVar:      "REELCRON_DIR",
			Value:       DEF_RECORDS_DIR,
			Destination: &recordsDir,
		},
		cli.StringFlag{
			Name:        "workflow, w",
			Usage:       "workflow file whose schedule trigger is re-armed",
			EnvVar:      "REELCRON_WORKFLOW",
			Value:       workflow.DefaultPath,
			Destination: &workflowPath,
		},
		cli.StringFlag{
			Name:        "tz",
			Usage:       "reference timezone of naive timestamps",
			EnvVar:      "REELCRON_TZ",
			Value:       tz.DefaultZoneName,
			Destination: &zoneName,
		},
		cli.StringFlag{
			Name:        "journal, j",
			Usage:       "publish journal database (empty disables it)",
			EnvVar:      "REELCRON_JOURNAL",
			Value:       DEF_JOURNAL,
			Destination: &journalPath,
		},
		cli.StringFlag{
			Name:        "log-file, l",
			Usage:       "also append logs to this file",
			EnvVar:      "REELCRON_LOG_FILE",
			Destination: &logFile,
		},
		cli.StringFlag{
			Name:        "metrics-file, m",
			Usage:       "write prometheus metrics of the run to this file",
			EnvVar:      "REELCRON_METRICS_FILE",
			Destination: &metricsFile,
		},
		cli.StringFlag{
			Name:        "env-file, e",
			Usage:       "dotenv file loaded into the environment",
			EnvVar:      "REELCRON_ENV_FILE",
			Value:       DEF_ENV_FILE,
			Destination: &envFile,
		},
		cli.BoolFlag{
			Name:        "verbose, V",
			Usage:       "enable debug logging",
			Destination: &verbose,
		},
	}
)

func Execute(args []string, bArgs BuildArgs) error {
	// variables from the default dotenv file must be visible to flag EnvVars
	if err := config.LoadDotEnv(DEF_ENV_FILE); err != nil {
		return err
	}
	app := cli.App{
		Name:                  "reelcron",
		HelpName:              "reelcron",
		Usage:                 "Schedule and publish reels at a precise time.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "reelcron [global options] <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 globalFlags,
		Before: func(*cli.Context) error {
			if envFile == DEF_ENV_FILE {
				return nil
			}
			return config.LoadDotEnv(envFile)
		},
		Commands: []cli.Command{
			{
				Name:               "next",
				Aliases:            []string{"n"},
				Usage:              "shows the next scheduled post and its cron trigger",
				Action:             next,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        NextDescription,
				Flags:              nextFlags,
			},
			{
				Name:               "arm",
				Usage:              "rewrites the workflow schedule trigger",
				UsageText:          "arm <cron> | --disable",
				Action:             arm,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ArmDescription,
				Flags:              armFlags,
			},
			{
				Name:               "due",
				Usage:              "checks whether any post is due now",
				Action:             due,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DueDescription,
			},
			{
				Name:                   "publish",
				Aliases:                []string{"p"},
				Usage:                  "publishes every due post",
				UsageText:              "publish [--dry-run] [--no-rearm] [record]",
				Action:                 publishCmd,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            PublishDescription,
				UseShortOptionHandling: true,
				Flags:                  publishFlags,
			},
			{
				Name:                   "sweep",
				Usage:                  "deletes expired posted records and their media",
				Action:                 sweep,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            SweepDescription,
				UseShortOptionHandling: true,
				Flags:                  sweepFlags,
			},
			{
				Name:                   "list",
				Aliases:                []string{"l"},
				Usage:                  "displays upcoming posts",
				Action:                 list,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ListDescription,
				UseShortOptionHandling: true,
				Flags:                  lsFlags,
			},
			{
				Name:               "history",
				Usage:              "displays recent publish attempts",
				Action:             history,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        HistoryDescription,
				Flags:              historyFlags,
			},
			{
				Name:               "upload",
				Aliases:            []string{"u"},
				Usage:              "uploads a video and schedules a post",
				UsageText:          "upload [--caption text | --caption-file path] [--hours n | --at \"YYYY-MM-DD HH:MM\"] <video>",
				Action:             upload,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        UploadDescription,
				Flags:              uploadFlags,
			},
			{
				Name:               "sync",
				Usage:              "writes drafts from the content planning database",
				Action:             syncCmd,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        SyncDescription,
				Flags:              syncFlags,
			},
			{
				Name:               "promote",
				Usage:              "turns drafts into publishable posts",
				UsageText:          "promote [--dry-run] [pattern]",
				Action:             promote,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PromoteDescription,
				Flags:              promoteFlags,
			},
			{
				Name:               "watch",
				Usage:              "publishes posts as they become due",
				Action:             watch,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        WatchDescription,
				Flags:              watchFlags,
			},
			{
				Name:               "credentials",
				Usage:              "shows where each credential is read from",
				Action:             credentials,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        CredentialsDescription,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of reelcron",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:      common.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}

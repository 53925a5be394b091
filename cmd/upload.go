package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/reelcron/reelcron/cmd/common"
	"github.com/reelcron/reelcron/internal/ingest"
	"github.com/urfave/cli"
)

const atLayout = "2006-01-02 15:04"

var (
	uploadCaption     string
	uploadCaptionFile string
	uploadHours       float64
	uploadAt          string
	uploadPublicID    string

	uploadFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "caption, c",
			Usage:       "post caption",
			Destination: &uploadCaption,
		},
		cli.StringFlag{
			Name:        "caption-file, f",
			Usage:       "read the caption from a text file",
			Destination: &uploadCaptionFile,
		},
		cli.Float64Flag{
			Name:        "hours",
			Usage:       "schedule the post this many hours from now",
			Value:       ingest.DefaultDelay.Hours(),
			Destination: &uploadHours,
		},
		cli.StringFlag{
			Name:        "at",
			Usage:       `exact schedule as "YYYY-MM-DD HH:MM" in the reference timezone`,
			Destination: &uploadAt,
		},
		cli.StringFlag{
			Name:        "public-id",
			Usage:       "media host asset id (default: video file name)",
			Destination: &uploadPublicID,
		},
	}

	promoteDryRun bool

	promoteFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "dry-run, n",
			Usage:       "list the drafts that would be promoted",
			Destination: &promoteDryRun,
		},
	}
)

func newUploader(e *appEnv, host ingest.Host) *ingest.Uploader {
	u := ingest.NewUploader(e.store, host, e.log)
	u.FS = appFs
	u.Clock = e.clock
	return u
}

func upload(ctx *cli.Context) error {
	video := ctx.Args().First()
	if video == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no video provided"))
	}
	if video == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if uploadHours <= 0 && uploadAt == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("--hours must be positive"))
	}
	e, err := newAppEnv("upload")
	if err != nil {
		return err
	}
	defer e.close()

	req := ingest.Request{
		VideoPath:   video,
		Caption:     uploadCaption,
		CaptionFile: uploadCaptionFile,
		Delay:       time.Duration(uploadHours * float64(time.Hour)),
		PublicID:    uploadPublicID,
	}
	if uploadAt != "" {
		at, err := time.ParseInLocation(atLayout, uploadAt, e.zone.Location())
		if err != nil {
			return fmt.Errorf("invalid --at %q, expected YYYY-MM-DD HH:MM", uploadAt)
		}
		if !at.After(e.now()) {
			e.log.Warning("%s is in the past, the post is due immediately", e.zone.Format(at))
		}
		req.At = at
	}

	host, err := e.mediaHost()
	if err != nil {
		return err
	}
	sctx, cancel := signalContext()
	defer cancel()
	out, err := newUploader(e, host).Ingest(sctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s\n", out.Asset.URL)
	fmt.Printf("Created %s scheduled for %s\n", out.RecordID, e.zone.Format(out.Record.ScheduledAt))
	return nil
}

func promote(ctx *cli.Context) error {
	pattern := ctx.Args().First()
	if pattern == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	e, err := newAppEnv("promote")
	if err != nil {
		return err
	}
	defer e.close()

	var host ingest.Host
	if !promoteDryRun {
		h, err := e.mediaHost()
		if err != nil {
			return err
		}
		host = h
	}
	sctx, cancel := signalContext()
	defer cancel()
	p := &ingest.Promoter{Uploader: newUploader(e, host)}
	res, runErr := p.PromoteDrafts(sctx, pattern, promoteDryRun)
	if res == nil {
		return runErr
	}
	for _, id := range res.Pending {
		fmt.Printf("Would promote %s\n", id)
	}
	drafts := make([]string, 0, len(res.Promoted))
	for id := range res.Promoted {
		drafts = append(drafts, id)
	}
	sort.Strings(drafts)
	for _, id := range drafts {
		fmt.Printf("Promoted %s -> %s\n", id, res.Promoted[id])
	}
	if !res.DryRun {
		fmt.Printf("Promoted %d draft(s), %d failed\n", len(res.Promoted), len(res.Failed))
	}
	return runErr
}

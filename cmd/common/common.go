// Package common provides shared helpers for the reelcron commands: help
// and version output, usage error handling, the processing progress bar and
// table formatting.
package common

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// VersionCmdStr holds the formatted version string displayed by the version
// command. It is populated by Execute with build-time information.
var VersionCmdStr string

var (
	showAppHelpAndExit = cli.ShowAppHelpAndExit
	showCommandHelp    = cli.ShowCommandHelp
)

// ProcessingBar shows the media processing wait of one record. The bar
// fills up to the processing timeout.
type ProcessingBar struct {
	bar    *mpb.Bar
	mu     sync.Mutex
	status string
}

// InitProcessingBar adds a processing bar for name to p.
func InitProcessingBar(p *mpb.Progress, name string, timeout time.Duration) *ProcessingBar {
	pb := &ProcessingBar{status: "CREATED"}
	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")
	pb.bar = p.New(int64(timeout.Seconds()),
		barStyle,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 4}), "done"),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				pb.mu.Lock()
				defer pb.mu.Unlock()
				return pb.status
			}),
		),
	)
	return pb
}

// Update moves the bar to elapsed and shows status.
func (pb *ProcessingBar) Update(status string, elapsed time.Duration) {
	pb.mu.Lock()
	pb.status = status
	pb.mu.Unlock()
	pb.bar.SetCurrent(int64(elapsed.Seconds()))
}

// Finish completes the bar, or aborts it when ok is false.
func (pb *ProcessingBar) Finish(status string, ok bool) {
	pb.mu.Lock()
	pb.status = status
	pb.mu.Unlock()
	if !ok {
		pb.bar.Abort(false)
		return
	}
	pb.bar.SetTotal(-1, true)
}

// Help displays help information for the application or a specific command.
func Help(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" || arg == "help" {
		fmt.Printf("%s %s\n", ctx.App.Name, ctx.App.Version)
		showAppHelpAndExit(ctx, 0)
		return nil
	}
	err := showCommandHelp(ctx, arg)
	if err != nil {
		return err
	}
	return nil
}

// GetVersion prints the version string to stdout and returns nil.
func GetVersion(ctx *cli.Context) error {
	fmt.Println(VersionCmdStr)
	return nil
}

// PrintRuntimeErr prints a runtime error in the form
// "reelcron: cmd[action]: msg" to stderr. ctx may be nil.
func PrintRuntimeErr(ctx *cli.Context, cmd, action string, err error) {
	if err == nil {
		return
	}
	name := "reelcron"
	if ctx != nil && ctx.App != nil {
		name = ctx.App.HelpName
	}
	fmt.Fprintf(os.Stderr, "%s: %s[%s]: %s\n", name, cmd, action, err.Error())
}

// PrintErrWithCmdHelp prints the error followed by the current command's
// help text.
func PrintErrWithCmdHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(ctx, err, func() {
		if err := showCommandHelp(ctx, ctx.Command.Name); err != nil {
			fmt.Println(err.Error())
		}
	})
}

// PrintErrWithHelp prints the error followed by the application help and
// exits with status 1.
func PrintErrWithHelp(ctx *cli.Context, err error) error {
	return printErrWithCallback(ctx, err, func() {
		showAppHelpAndExit(ctx, 1)
	})
}

func printErrWithCallback(ctx *cli.Context, err error, callback func()) error {
	if err == nil {
		return nil
	}
	estr := strings.ToLower(err.Error())
	if estr == "flag: help requested" {
		return Help(ctx)
	}
	fmt.Printf("%s: %s\n\n", ctx.App.HelpName, err.Error())
	callback()
	return nil
}

// UsageErrorCallback is the OnUsageError handler of the app and its
// commands.
func UsageErrorCallback(ctx *cli.Context, err error, _ bool) error {
	if ctx.Command.Name != "" {
		return PrintErrWithCmdHelp(ctx, err)
	}
	return PrintErrWithHelp(ctx, err)
}

// Beaut centers s within a field of width n. Longer strings are cut.
func Beaut(s string, n int) (b string) {
	if len(s) > n {
		return s[:n]
	}
	x := n - len(s)
	w := string(replic(' ', x/2))
	b = w + s + w
	if x%2 != 0 {
		b += " "
	}
	return
}

func replic[aT any](v aT, n int) []aT {
	a := make([]aT, n)
	for i := range a {
		a[i] = v
	}
	return a
}

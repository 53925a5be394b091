package cmd

import "time"

const (
	DEF_RECORDS_DIR = "config"
	DEF_JOURNAL     = ".reelcron/journal.db"
	DEF_ENV_FILE    = ".env"
	DEF_WATCH_SWEEP = time.Hour
)

const DESCRIPTION = `
reelcron publishes scheduled reels to Instagram. Post records live as
JSON files in a directory; an external cron trigger is re-armed to wake
up right after the next scheduled post, checks whether anything is due
and publishes it.
`

const (
	NextDescription = `The next command finds the earliest future post that has
media and is not posted yet, and prints it together with the
one-shot UTC cron expression that fires right after it.

With --arm the workflow schedule is rewritten to that cron
expression, or disabled when no post is left.

Example:
        reelcron next
        reelcron next --arm

`
	ArmDescription = `The arm command writes a cron expression into the schedule
block of the workflow file, or comments the block out with
--disable.

Example:
        reelcron arm "1 14 22 8 *"
        reelcron arm --disable

`
	DueDescription = `The due command prints "posts_due" when at least one post
with media is scheduled at or before now and not posted yet,
and "no_posts_due" otherwise. When $GITHUB_OUTPUT is set the
result is also appended to it as "status=<result>".

Example:
        reelcron due

`
	PublishDescription = `The publish command publishes every due post, marks each
one posted and re-arms the workflow for the next post.
A single record can be published right away by naming it.

Example:
        reelcron publish
        reelcron publish reel_20250822_121500_launch.json

`
	SweepDescription = `The sweep command deletes posted records older than the
retention window together with their hosted media. Media
still used by an unposted record is kept. Without media host
credentials, --dry-run lists the expired records only.

Example:
        reelcron sweep --dry-run
        reelcron sweep --window 72h

`
	ListDescription = `The list command displays the upcoming posts in the order
they will be published.

Example:
        reelcron list
        reelcron list --all

`
	HistoryDescription = `The history command displays the most recent publish
attempts recorded in the journal.

Example:
        reelcron history --limit 20

`
	UploadDescription = `The upload command uploads a local video to the media host
and writes a post record scheduled --hours from now or at the
exact --at time (reference timezone).

Example:
        reelcron upload --caption "Launch day" videos/launch.mp4
        reelcron upload --at "2025-08-22 12:15" videos/launch.mp4

`
	SyncDescription = `The sync command reads the content planning database and
writes a draft record for every new future page.

Example:
        reelcron sync --config notion_config.json

`
	PromoteDescription = `The promote command uploads the video of every draft record
and replaces the draft with a publishable post record.

Example:
        reelcron promote
        reelcron promote --dry-run "notion_2025*.json"

`
	WatchDescription = `The watch command keeps running and publishes each post the
moment it becomes due, sweeping expired records every hour.
It replaces the external trigger on hosts that can run a
long-lived process.

Example:
        reelcron watch

`
	CredentialsDescription = `The credentials command lists every credential reelcron needs
and where it is read from. Environment variables (and the .env
file) take precedence over entries of the "reelcron" service in
the OS keyring.

Example:
        reelcron credentials

`
)

// Package workflow rewrites the schedule trigger of a GitHub Actions
// workflow file.
//
// The file is edited line by line so comments and formatting elsewhere are
// kept untouched. After every edit the result is parsed with yaml.v3 and the
// active cron entries are compared with the requested ones.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPath is the workflow rewritten when none is configured.
const DefaultPath = ".github/workflows/post-reels.yml"

const (
	defaultNote    = "Optimized schedule for next post"
	disabledMarker = "# schedule: # Disabled - no future posts"
	disabledCron   = `#   - cron: "0 * * * *"`
)

var (
	// ErrNotFound is returned when the workflow file does not exist.
	ErrNotFound = errors.New("workflow file not found")
	// ErrNoAnchor is returned when the file has neither a schedule block nor
	// a workflow_dispatch trigger to insert one after.
	ErrNoAnchor = errors.New("workflow has no schedule or workflow_dispatch trigger")
	// ErrVerify is returned when the rewritten file does not carry the
	// requested trigger.
	ErrVerify = errors.New("rewritten workflow failed verification")
)

// Result tells whether the file was written.
type Result int

const (
	Unchanged Result = iota
	Updated
)

func (r Result) String() string {
	if r == Updated {
		return "updated"
	}
	return "unchanged"
}

var (
	scheduleRe = regexp.MustCompile(`^(\s*)schedule:\s*(#.*)?$`)
	dispatchRe = regexp.MustCompile(`^(\s*)workflow_dispatch:`)
	markerRe   = regexp.MustCompile(`^\s*# schedule: # Disabled`)
	markerCron = regexp.MustCompile(`^\s*#\s+- cron:`)
)

type document struct {
	lines []string
}

func parse(data []byte) *document {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return &document{}
	}
	return &document{lines: strings.Split(s, "\n")}
}

func (d *document) bytes() []byte {
	return []byte(strings.Join(d.lines, "\n") + "\n")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// block returns the index range (start, end] of the lines nested under the
// line at i. Trailing blank lines are not part of the block.
func (d *document) block(i int) (end int) {
	ind := indentOf(d.lines[i])
	end = i
	for j := i + 1; j < len(d.lines); j++ {
		if blank(d.lines[j]) {
			continue
		}
		if indentOf(d.lines[j]) <= ind {
			break
		}
		end = j
	}
	return end
}

func (d *document) find(re *regexp.Regexp) int {
	for i, l := range d.lines {
		if re.MatchString(l) {
			return i
		}
	}
	return -1
}

func (d *document) splice(from, to int, repl []string) {
	out := make([]string, 0, len(d.lines)-(to-from)+len(repl))
	out = append(out, d.lines[:from]...)
	out = append(out, repl...)
	out = append(out, d.lines[to:]...)
	d.lines = out
}

// dropDisabledMarker removes the placeholder left by disable.
func (d *document) dropDisabledMarker() {
	i := d.find(markerRe)
	if i < 0 {
		return
	}
	to := i + 1
	if to < len(d.lines) && markerCron.MatchString(d.lines[to]) {
		to++
	}
	d.splice(i, to, nil)
}

func scheduleBody(indent, expr, note string) []string {
	if note == "" {
		note = defaultNote
	}
	return []string{
		indent + "# " + note,
		indent + "- cron: '" + expr + "'",
	}
}

// arm applies the trigger to the document.
func (d *document) arm(expr, note string) error {
	d.dropDisabledMarker()

	if i := d.find(scheduleRe); i >= 0 {
		end := d.block(i)
		inner := strings.Repeat(" ", indentOf(d.lines[i])+2)
		for j := i + 1; j <= end; j++ {
			if !blank(d.lines[j]) {
				inner = d.lines[j][:indentOf(d.lines[j])]
				break
			}
		}
		d.splice(i+1, end+1, scheduleBody(inner, expr, note))
		return nil
	}

	i := d.find(dispatchRe)
	if i < 0 {
		return ErrNoAnchor
	}
	outer := d.lines[i][:indentOf(d.lines[i])]
	inner := outer + "  "
	end := d.block(i)
	d.splice(end+1, end+1, append([]string{outer + "schedule:"}, scheduleBody(inner, expr, note)...))
	return nil
}

// disable comments the schedule block out. It reports whether there was
// an active block.
func (d *document) disable() bool {
	i := d.find(scheduleRe)
	if i < 0 {
		return false
	}
	indent := d.lines[i][:indentOf(d.lines[i])]
	end := d.block(i)
	d.splice(i, end+1, []string{indent + disabledMarker, indent + disabledCron})
	return true
}

func read(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

func write(fs afero.Fs, path string, data []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".workflow.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpPath)
		return fmt.Errorf("write workflow: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Chmod(tmpPath, 0o644); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("rename workflow: %w", err)
	}
	return nil
}

// Arm sets the workflow's schedule to the single cron expression expr,
// re-enabling a disabled schedule or creating one after workflow_dispatch.
// note becomes the comment above the cron line.
func Arm(fs afero.Fs, path, expr, note string) (Result, error) {
	data, err := read(fs, path)
	if err != nil {
		return Unchanged, err
	}
	doc := parse(data)
	if err := doc.arm(expr, note); err != nil {
		return Unchanged, fmt.Errorf("%s: %w", path, err)
	}
	out := doc.bytes()
	crons, err := activeCrons(out)
	if err != nil {
		return Unchanged, fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if len(crons) != 1 || crons[0] != expr {
		return Unchanged, fmt.Errorf("%w: active crons %q", ErrVerify, crons)
	}
	if bytes.Equal(out, data) {
		return Unchanged, nil
	}
	return Updated, write(fs, path, out)
}

// Disable comments out the schedule so the workflow only runs on demand.
func Disable(fs afero.Fs, path string) (Result, error) {
	data, err := read(fs, path)
	if err != nil {
		return Unchanged, err
	}
	doc := parse(data)
	if !doc.disable() {
		return Unchanged, nil
	}
	out := doc.bytes()
	crons, err := activeCrons(out)
	if err != nil {
		return Unchanged, fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if len(crons) != 0 {
		return Unchanged, fmt.Errorf("%w: schedule still active: %q", ErrVerify, crons)
	}
	if bytes.Equal(out, data) {
		return Unchanged, nil
	}
	return Updated, write(fs, path, out)
}

// Current returns the active cron expressions of the workflow. An empty
// slice means scheduling is disabled.
func Current(fs afero.Fs, path string) ([]string, error) {
	data, err := read(fs, path)
	if err != nil {
		return nil, err
	}
	return activeCrons(data)
}

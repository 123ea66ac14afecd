// Package history reads commits and their diffs from git so generated
// messages can be compared with the ones people wrote.
package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/log"
)

// Field and record separators for git log --format.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

const logFormat = "--format=%H" + fieldSep + "%an" + fieldSep + "%aI" + fieldSep + "%B" + recordSep

// Commit is one non-merge commit with the message its author wrote.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
	Diff    string    `json:"diff,omitempty"`
}

// Subject is the first line of the message.
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// Short is the abbreviated hash.
func (c Commit) Short() string {
	return c.Hash[:min(len(c.Hash), 7)]
}

// Options controls which commits Load returns.
type Options struct {
	// Range is a git revision range such as HEAD~20..HEAD. Empty means HEAD.
	Range string
	// Limit caps the number of commits; zero means no cap.
	Limit int
	// ContextLines is the -U value for each diff.
	ContextLines int
}

// Log lists non-merge commits, newest first, without their diffs.
func Log(repoDir string, opts Options) ([]Commit, error) {
	args := []string{"log", "--no-merges", "--no-color", logFormat}
	if opts.Limit > 0 {
		args = append(args, "-n", strconv.Itoa(opts.Limit))
	}
	if opts.Range != "" {
		args = append(args, opts.Range)
	}
	out, err := diff.Git(repoDir, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

// Load lists commits and fills in each one's diff. Commits whose diff is
// empty, such as mode-only changes, are skipped.
func Load(ctx context.Context, repoDir string, opts Options) ([]Commit, error) {
	commits, err := Log(repoDir, opts)
	if err != nil {
		return nil, err
	}

	out := commits[:0]
	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := diff.Git(repoDir, "show", "--format=", "--no-color",
			fmt.Sprintf("-U%d", opts.ContextLines), c.Hash)
		if err != nil {
			return nil, fmt.Errorf("diff for %s: %w", c.Short(), err)
		}
		if strings.TrimSpace(d) == "" {
			log.Debugf("skipping %s: empty diff", c.Short())
			continue
		}
		c.Diff = strings.TrimLeft(d, "\n")
		out = append(out, c)
	}
	return out, nil
}

func parseLog(out string) ([]Commit, error) {
	var commits []Commit
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.TrimLeft(rec, "\n")
		if strings.TrimSpace(rec) == "" {
			continue
		}
		fields := strings.SplitN(rec, fieldSep, 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed git log record %q", firstLine(rec))
		}
		date, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return nil, fmt.Errorf("commit %s: parsing date: %w", fields[0], err)
		}
		commits = append(commits, Commit{
			Hash:    fields[0],
			Author:  fields[1],
			Date:    date,
			Message: strings.TrimSpace(fields[3]),
		})
	}
	return commits, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

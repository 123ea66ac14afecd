package llm

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/tokenize"
)

// ErrNoChanges is returned when a diff has neither file headers nor
// changed lines to describe.
var ErrNoChanges = errors.New("diff contains no file changes")

const (
	maxNamesPerVerb = 3
	maxAddedTerms   = 2
)

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*\(`)

// keywords that can precede a parenthesis in a hunk context line.
var keywords = map[string]bool{
	"func": true, "def": true, "function": true, "fn": true,
	"if": true, "for": true, "while": true, "switch": true, "return": true,
}

// Heuristic derives a message from the files a diff touches. It needs no
// network access and is deterministic.
type Heuristic struct{}

// NewHeuristic returns the offline generator.
func NewHeuristic() Heuristic { return Heuristic{} }

func (Heuristic) Info() Info {
	return Info{Provider: ProviderHeuristic, Model: "diffstat"}
}

func (Heuristic) Generate(ctx context.Context, raw string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ds, err := diff.Parse(raw)
	if err != nil {
		return "", err
	}

	var msg string
	switch {
	case len(ds.Files) == 0:
		if msg = describeLines(raw); msg == "" {
			return "", ErrNoChanges
		}
	case len(ds.Files) == 1:
		msg = describeFile(ds.Files[0])
	default:
		msg = describeFiles(ds.Files)
	}
	if utf8.RuneCountInString(msg) < 10 {
		msg += " file"
	}
	return msg, nil
}

func describeFile(f *diff.File) string {
	switch {
	case f.IsNew:
		return "Add " + f.Path()
	case f.IsDeleted:
		return "Remove " + f.Path()
	case f.IsRenamed:
		return fmt.Sprintf("Rename %s to %s", f.OldName, f.NewName)
	}
	if sym := enclosingSymbol(f); sym != "" {
		return fmt.Sprintf("Update %s in %s", sym, f.Path())
	}
	return "Update " + f.Path()
}

func describeFiles(files []*diff.File) string {
	var modified, added, deleted []string
	for _, f := range files {
		name := path.Base(f.Path())
		switch {
		case f.IsNew:
			added = append(added, name)
		case f.IsDeleted:
			deleted = append(deleted, name)
		default:
			modified = append(modified, name)
		}
	}

	var parts []string
	if len(modified) > 0 {
		parts = append(parts, "update "+joinNames(modified))
	}
	if len(added) > 0 {
		parts = append(parts, "add "+joinNames(added))
	}
	if len(deleted) > 0 {
		parts = append(parts, "remove "+joinNames(deleted))
	}

	msg := strings.Join(parts, "; ")
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// describeLines handles bare hunks pasted without file headers. The first
// changed identifier is the subject; terms that only appear on added lines
// are named after it.
func describeLines(raw string) string {
	var order []string
	seen := make(map[string]bool)
	removed := make(map[string]bool)
	var added []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		var plus bool
		switch {
		case strings.HasPrefix(line, "+"):
			plus = true
		case strings.HasPrefix(line, "-"):
		default:
			continue
		}
		for _, tok := range tokenize.MeaningfulTokens(line[1:]) {
			if keywords[tok] {
				continue
			}
			if !seen[tok] {
				seen[tok] = true
				order = append(order, tok)
			}
			if plus {
				added = append(added, tok)
			} else {
				removed[tok] = true
			}
		}
	}
	if len(order) == 0 {
		return ""
	}

	subject := order[0]
	var extra []string
	for _, tok := range added {
		if tok == subject || removed[tok] || slices.Contains(extra, tok) {
			continue
		}
		extra = append(extra, tok)
		if len(extra) == maxAddedTerms {
			break
		}
	}
	if len(extra) == 0 {
		return "Update " + subject
	}
	return fmt.Sprintf("Update %s with %s", subject, strings.Join(extra, " and "))
}

func joinNames(names []string) string {
	if len(names) <= maxNamesPerVerb {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:maxNamesPerVerb], ", "), len(names)-maxNamesPerVerb)
}

// enclosingSymbol returns the function name from the first hunk context,
// e.g. "calculate_total" for "def calculate_total(items):".
func enclosingSymbol(f *diff.File) string {
	for _, c := range f.HunkContexts() {
		for _, m := range identRe.FindAllString(c, -1) {
			name := strings.TrimSpace(strings.TrimSuffix(m, "("))
			if !keywords[name] {
				return name
			}
		}
	}
	return ""
}

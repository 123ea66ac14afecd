package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/diff"
)

// addDiffFlags registers the flags that select which diff a command reads.
func addDiffFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("head", false, "use the last commit (HEAD~1..HEAD) instead of the staged changes")
	cmd.Flags().IntP("context", "C", 3, "lines of context around changes")
}

// getDiff resolves the diff a command works on:
//
//	-            read the diff from stdin
//	<range>      git diff <range>
//	(piped)      read the diff from stdin
//	--head       git diff HEAD~1..HEAD
//	(default)    git diff --cached
func getDiff(cmd *cobra.Command, args []string) (string, error) {
	if (len(args) == 1 && args[0] == "-") || (len(args) == 0 && stdinPiped(cmd.InOrStdin())) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	repoDir, err := gitRepoRoot()
	if err != nil {
		return "", fmt.Errorf("not in a git repository (or git not installed): %w", err)
	}

	contextLines, _ := cmd.Flags().GetInt("context")
	if len(args) == 1 {
		return diff.GitDiffRange(repoDir, args[0], contextLines)
	}
	if head, _ := cmd.Flags().GetBool("head"); head {
		return diff.GitDiffHead(repoDir, contextLines)
	}
	return diff.GitDiffStaged(repoDir, contextLines)
}

// stdinPiped reports whether in is a pipe or file rather than a terminal
// or a character device such as /dev/null.
func stdinPiped(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	st, err := f.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice == 0
}

func printStat(w io.Writer, ds *diff.DiffSet) {
	files, added, deleted := ds.Stats()
	fmt.Fprintf(w, "%d file(s) changed, %d insertions(+), %d deletions(-)\n\n", files, added, deleted)
	for _, f := range ds.Files {
		status := "M"
		switch {
		case f.IsNew:
			status = "A"
		case f.IsDeleted:
			status = "D"
		case f.IsRenamed:
			status = "R"
		}
		fmt.Fprintf(w, "  %s %-50s +%-4d -%d\n", status, f.Name(), f.AddedLines, f.DeletedLines)
	}
}

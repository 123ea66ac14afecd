package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [commit-range | -]",
	Short: "Generate a message and review it interactively",
	Long: `Run the agent loop and open an interactive view of the result: the
message with unsupported words marked, every agent decision, and the diff
with the lines the message refers to.

Accept the message with "a" to print it, or to commit with it when --commit
is set. Reject it with "x".

Examples:
  smartcommit review                # staged changes
  smartcommit review --commit       # commit the staged changes on accept
  smartcommit review HEAD~1..HEAD   # last commit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	addDiffFlags(reviewCmd)
	reviewCmd.Flags().StringP("reference", "r", "", "reference message to score against")
	reviewCmd.Flags().Bool("commit", false, "commit the staged changes with the accepted message")
}

func runReview(cmd *cobra.Command, args []string) error {
	doCommit, _ := cmd.Flags().GetBool("commit")
	head, _ := cmd.Flags().GetBool("head")
	if doCommit && (len(args) > 0 || head) {
		return fmt.Errorf("--commit only applies to the staged changes")
	}

	raw, err := getDiff(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes to review.")
		return nil
	}

	ds, err := parseDiff(raw)
	if err != nil {
		return err
	}
	if len(ds.Files) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes to review.")
		return nil
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Generating with %s...\n", eng.Generator().Info())
	reference, _ := cmd.Flags().GetString("reference")
	res, err := eng.Generate(ctx, clientID, raw, reference, nil)
	if err != nil {
		return err
	}

	outcome, err := tui.Run(res, ds)
	if err != nil {
		return err
	}

	switch {
	case !outcome.Decided:
		return nil
	case !outcome.Accepted:
		fmt.Fprintln(cmd.ErrOrStderr(), "Message rejected.")
		return nil
	}

	if !doCommit {
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
		return nil
	}
	repoDir, err := gitRepoRoot()
	if err != nil {
		return fmt.Errorf("not in a git repository: %w", err)
	}
	if err := outcome.Commit(repoDir); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Committed.")
	return nil
}

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/report"
)

var checkCmd = &cobra.Command{
	Use:   "check [commit-range | -]",
	Short: "Score an existing commit message against a diff (non-interactive)",
	Long: `Score a commit message against the diff it describes and, optionally, a
reference message. Useful as a commit-msg hook and in CI.

Without a reference the message is compared with itself, so the verdict is
driven by grounding in the diff.

Exit codes:
  0 - message is valid
  1 - message needs review
  2 - human oversight required (high hallucination severity or low confidence)

Examples:
  smartcommit check -m "Fix total to include quantity"
  smartcommit check --message-file .git/COMMIT_EDITMSG   # commit-msg hook
  smartcommit check --head -m "$(git log -1 --format=%B)"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	addDiffFlags(checkCmd)
	checkCmd.Flags().StringP("message", "m", "", "commit message to check")
	checkCmd.Flags().String("message-file", "", "read the commit message from a file; lines starting with # are ignored")
	checkCmd.Flags().StringP("reference", "r", "", "reference message to score against")
	checkCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown, html")
	checkCmd.MarkFlagsMutuallyExclusive("message", "message-file")
	checkCmd.MarkFlagsOneRequired("message", "message-file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	message, err := messageFlag(cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("commit message is empty")
	}

	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}

	raw, err := getDiff(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	start := time.Now()
	if _, err := eng.Admit(ctx, clientID, raw); err != nil {
		return err
	}

	reference, _ := cmd.Flags().GetString("reference")
	rep := eng.Check(ctx, clientID, message, reference, raw)
	recordRun(ctx, eng, "check", raw, start, rep.Message, rep.Evaluation, rep.Assessment)
	if err := report.Write(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}

	if code := report.ExitCode(rep); code != 0 {
		eng.Close()
		os.Exit(code)
	}
	return nil
}

func messageFlag(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("message-file"); path != "" {
		return readMessageFile(path)
	}
	msg, _ := cmd.Flags().GetString("message")
	return msg, nil
}

// readMessageFile reads a commit message the way git leaves it for hooks:
// comment lines are dropped and everything after the scissors line is cut.
func readMessageFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading message file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "# ------------------------ >8 ------------------------") {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading message file: %w", err)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func parseDiff(raw string) (*diff.DiffSet, error) {
	ds, err := diff.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	return ds, nil
}

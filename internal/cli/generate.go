package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/report"
)

var generateCmd = &cobra.Command{
	Use:   "generate [commit-range | -]",
	Short: "Generate a commit message for a diff",
	Long: `Generate a commit message with the generate, validate and refine loop.
By default the staged changes are described; a diff piped on stdin or a
commit range can be given instead.

Examples:
  smartcommit generate                      # staged changes
  smartcommit generate --head               # last commit
  smartcommit generate main...HEAD          # branch vs main
  git diff | smartcommit generate           # any diff
  smartcommit generate -m > .git/COMMIT_MSG # message only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	addDiffFlags(generateCmd)
	generateCmd.Flags().StringP("reference", "r", "", "reference message to score against")
	generateCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown, html")
	generateCmd.Flags().BoolP("message-only", "m", false, "print only the final message")
	generateCmd.Flags().Bool("trail", false, "print each agent decision to stderr as it is made")
	generateCmd.Flags().Bool("stat", false, "print diff stats and exit")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	raw, err := getDiff(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes to describe.")
		return nil
	}

	if stat, _ := cmd.Flags().GetBool("stat"); stat {
		ds, err := parseDiff(raw)
		if err != nil {
			return err
		}
		printStat(cmd.OutOrStdout(), ds)
		return nil
	}

	format, err := formatFlag(cmd)
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

	var observer func(agent.Decision)
	if trail, _ := cmd.Flags().GetBool("trail"); trail {
		observer = func(d agent.Decision) {
			m := d.Meta()
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %s\n", m.Agent, m.Action, m.Reasoning)
		}
	}

	reference, _ := cmd.Flags().GetString("reference")
	start := time.Now()
	res, err := eng.Generate(ctx, clientID, raw, reference, observer)
	if err != nil {
		return err
	}
	recordRun(ctx, eng, "generate", raw, start, res.Message, res.Evaluation, res.Assessment)

	if only, _ := cmd.Flags().GetBool("message-only"); only {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
		return nil
	}
	return report.Write(cmd.OutOrStdout(), format, eng.Report(res, raw))
}

func formatFlag(cmd *cobra.Command) (report.Format, error) {
	s, _ := cmd.Flags().GetString("format")
	return report.ParseFormat(s)
}

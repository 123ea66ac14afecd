package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/engine"
	"github.com/sprite-ai/smartcommit/internal/evaluate"
	"github.com/sprite-ai/smartcommit/internal/history"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/model"
)

var benchCmd = &cobra.Command{
	Use:   "bench [commit-range]",
	Short: "Score generated messages against the human messages in history",
	Long: `Generate a message for each commit in the range (the last --limit
commits by default) and score it against the message its author wrote.

With --input, skip generation and score a JSONL file of
{"candidate", "reference", "diff"} records instead.

Examples:
  smartcommit bench --limit 50
  smartcommit bench v1.2.0..HEAD --output samples.jsonl
  smartcommit bench --input samples.jsonl --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntP("limit", "n", 20, "maximum number of commits to benchmark")
	benchCmd.Flags().IntP("context", "C", 3, "lines of context around changes")
	benchCmd.Flags().IntP("parallel", "j", 4, "evaluation workers")
	benchCmd.Flags().String("input", "", "score samples from a JSONL file instead of history")
	benchCmd.Flags().StringP("output", "o", "", "write the generated samples as JSONL")
	benchCmd.Flags().Bool("json", false, "print results as JSON")
}

// benchRow is one scored sample.
type benchRow struct {
	Commit string `json:"commit,omitempty"`
	evaluate.Sample
	Result model.EvaluationResult `json:"result"`
}

type benchOutput struct {
	Samples []benchRow       `json:"samples"`
	Summary evaluate.Summary `json:"summary"`
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	var (
		samples []evaluate.Sample
		commits []string
	)
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		if samples, err = readSamples(input); err != nil {
			return err
		}
	} else {
		repoDir, err := gitRepoRoot()
		if err != nil {
			return fmt.Errorf("not in a git repository (or git not installed): %w", err)
		}
		opts := history.Options{}
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.ContextLines, _ = cmd.Flags().GetInt("context")
		if len(args) == 1 {
			opts.Range = args[0]
		}
		hist, err := history.Load(ctx, repoDir, opts)
		if err != nil {
			return err
		}

		if samples, commits, err = benchHistory(ctx, eng, hist, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if len(samples) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to benchmark.")
		return nil
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := writeSamples(path, samples); err != nil {
			return err
		}
	}

	parallel, _ := cmd.Flags().GetInt("parallel")
	results, err := eng.Evaluator().EvaluateBatch(ctx, samples, parallel)
	if err != nil {
		return err
	}

	out := benchOutput{Summary: evaluate.Summarize(results)}
	for i, s := range samples {
		row := benchRow{Sample: s, Result: results[i]}
		if i < len(commits) {
			row.Commit = commits[i]
		}
		out.Samples = append(out.Samples, row)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printBench(cmd.OutOrStdout(), out)
	return nil
}

// benchHistory generates a message for each commit the safety gate admits.
// Messages are generated the way they would be at commit time, without the
// author's message as a reference. Each commit is its own gate client so a
// long history is not cut off by the per-minute cap.
func benchHistory(ctx context.Context, eng *engine.Engine, hist []history.Commit, progress io.Writer) ([]evaluate.Sample, []string, error) {
	var (
		samples []evaluate.Sample
		commits []string
	)
	ctrl := eng.Controller()
	for i, c := range hist {
		fmt.Fprintf(progress, "[%d/%d] %s %s\n", i+1, len(hist), c.Short(), c.Subject())
		if _, err := eng.Admit(ctx, "bench:"+c.Hash, c.Diff); err != nil {
			log.Warnf("skipping %s: %v", c.Short(), err)
			continue
		}
		res, err := ctrl.Run(ctx, c.Diff, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.Warnf("skipping %s: %v", c.Short(), err)
			continue
		}
		samples = append(samples, evaluate.Sample{Candidate: res.Message, Reference: c.Message, Diff: c.Diff})
		commits = append(commits, c.Short())
	}
	return samples, commits, nil
}

func printBench(w io.Writer, out benchOutput) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#44475a"))).
		Headers("#", "BLEU", "ROUGE-L", "Quality", "Halluc.", "Generated", "Reference")
	for i, r := range out.Samples {
		id := r.Commit
		if id == "" {
			id = fmt.Sprint(i + 1)
		}
		t.Row(id,
			fmt.Sprintf("%.1f", r.Result.BLEU),
			fmt.Sprintf("%.1f", r.Result.ROUGE.RougeL),
			fmt.Sprintf("%.2f", r.Result.Quality),
			fmt.Sprintf("%.0f%%", r.Result.Hallucination.Rate*100),
			firstLine(r.Candidate, 40),
			firstLine(r.Reference, 40),
		)
	}
	fmt.Fprintln(w, t.Render())

	s := out.Summary
	fmt.Fprintf(w, "\n%d sample(s): mean BLEU %.2f, ROUGE-L %.2f, semantic %.2f, quality %.3f, hallucination rate %.1f%%\n",
		s.Count, s.MeanBLEU, s.MeanRougeL, s.MeanSemantic, s.MeanQuality, s.HallucinationRate*100)
}

func firstLine(s string, max int) string {
	s, _, _ = strings.Cut(s, "\n")
	if r := []rune(s); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

func readSamples(path string) ([]evaluate.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	defer f.Close()

	var samples []evaluate.Sample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var s evaluate.Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	return samples, nil
}

func writeSamples(path string, samples []evaluate.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			f.Close()
			return fmt.Errorf("writing samples: %w", err)
		}
	}
	return f.Close()
}

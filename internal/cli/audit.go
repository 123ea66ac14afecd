package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
	Long: `Inspect the events recorded by generate, check, review and the API server:
API calls, hallucinations, safety violations and agent trails.`,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print request, hallucination and violation counters",
	Args:  cobra.NoArgs,
	RunE: withSink(func(cmd *cobra.Command, sink audit.Sink) error {
		events, err := sink.Query(cmd.Context(), audit.Query{Since: sinceDays(cmd)})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), audit.Tally(events))
	}),
}

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the audit report for the last --days days",
	Args:  cobra.NoArgs,
	RunE: withSink(func(cmd *cobra.Command, sink audit.Sink) error {
		days, _ := cmd.Flags().GetInt("days")
		rep, err := audit.BuildReport(cmd.Context(), sink, days)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rep)
	}),
}

var auditEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the most recent events, newest first",
	Args:  cobra.NoArgs,
	RunE: withSink(func(cmd *cobra.Command, sink audit.Sink) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := audit.Recent(cmd.Context(), sink, kind, limit)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd.OutOrStdout(), events)
		}
		for _, e := range events {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %-8s %s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Severity, eventSummary(e))
		}
		return nil
	}),
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export events as CSV",
	Args:  cobra.NoArgs,
	RunE: withSink(func(cmd *cobra.Command, sink audit.Sink) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		events, err := sink.Query(cmd.Context(), audit.Query{Kind: kind, Since: sinceDays(cmd)})
		if err != nil {
			return err
		}
		return withOutput(cmd, func(w io.Writer) error { return audit.ExportCSV(w, events) })
	}),
}

var auditDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Export per-day metrics as CSV",
	Args:  cobra.NoArgs,
	RunE: withSink(func(cmd *cobra.Command, sink audit.Sink) error {
		events, err := sink.Query(cmd.Context(), audit.Query{Since: sinceDays(cmd)})
		if err != nil {
			return err
		}
		return withOutput(cmd, func(w io.Writer) error { return audit.WriteDailyCSV(w, audit.Daily(events)) })
	}),
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete events older than --days days (sqlite backend)",
	Args:  cobra.NoArgs,
	RunE: withSink(func(cmd *cobra.Command, sink audit.Sink) error {
		db, ok := sink.(*audit.SQLiteSink)
		if !ok {
			return fmt.Errorf("prune needs the sqlite audit backend, configured backend is %q", cfg.Audit.Backend)
		}
		n, err := db.Prune(cmd.Context(), sinceDays(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d event(s).\n", n)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{auditStatsCmd, auditReportCmd, auditExportCmd, auditDailyCmd} {
		c.Flags().Int("days", 7, "window in days")
	}
	auditPruneCmd.Flags().Int("days", 90, "keep events from the last N days")

	auditEventsCmd.Flags().String("kind", "", "event kind: api_call, hallucination, safety_violation, agent_trail")
	auditEventsCmd.Flags().IntP("limit", "n", 20, "maximum number of events")
	auditEventsCmd.Flags().Bool("json", false, "print events as JSON")

	auditExportCmd.Flags().String("kind", "", "event kind to export (default all)")
	for _, c := range []*cobra.Command{auditExportCmd, auditDailyCmd} {
		c.Flags().StringP("output", "o", "", "write CSV to a file instead of stdout")
	}

	auditCmd.AddCommand(auditStatsCmd, auditReportCmd, auditEventsCmd, auditExportCmd, auditDailyCmd, auditPruneCmd)
}

// withSink opens the configured audit sink around fn.
func withSink(fn func(*cobra.Command, audit.Sink) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		sink, err := audit.Open(cfg.Audit)
		if err != nil {
			return err
		}
		defer sink.Close()
		return fn(cmd, sink)
	}
}

func withOutput(cmd *cobra.Command, fn func(io.Writer) error) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Written to %s\n", path)
	return nil
}

func sinceDays(cmd *cobra.Command) time.Time {
	days, _ := cmd.Flags().GetInt("days")
	return time.Now().AddDate(0, 0, -days)
}

func kindFlag(cmd *cobra.Command) (audit.Kind, error) {
	s, _ := cmd.Flags().GetString("kind")
	if s == "" {
		return "", nil
	}
	return audit.ParseKind(s)
}

func eventSummary(e audit.Event) string {
	switch e.Kind {
	case audit.KindAPICall:
		return fmt.Sprintf("%s %d %.0fms", e.Endpoint, e.StatusCode, e.LatencyMS)
	case audit.KindSafetyViolation:
		return fmt.Sprintf("%s: %s", e.ViolationType, e.Details)
	case audit.KindHallucination:
		return fmt.Sprintf("%.0f%% ungrounded %v: %s", e.HallucinationRate*100, e.UngroundedTokens, e.Message)
	default:
		return e.Details
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

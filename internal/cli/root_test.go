package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cartDiff = "diff --git a/cart.py b/cart.py\n" +
	"--- a/cart.py\n" +
	"+++ b/cart.py\n" +
	"@@ -1 +1 @@ def calculate_total(items):\n" +
	"-total += item.price\n" +
	"+total += item.price * item.quantity\n"

// resetFlags restores every flag in the tree to its default, since cobra
// keeps flag values between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testConfig writes a config that keeps the audit log inside a temp dir.
func testConfig(t *testing.T) (path, auditDir string) {
	t.Helper()
	dir := t.TempDir()
	auditDir = filepath.Join(dir, "audit")
	path = filepath.Join(dir, "smartcommit.yaml")
	yaml := "log_level: error\naudit:\n  backend: jsonl\n  dir: " + auditDir + "\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path, auditDir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "check", "bench", "review", "serve", "audit", "version"} {
		assert.True(t, names[want], "root command missing subcommand %q", want)
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	assert.Equal(t, "dev", version)

	cfgPath, _ := testConfig(t)
	out, err := run(t, "", "--config", cfgPath, "version")
	require.NoError(t, err)
	assert.Equal(t, "smartcommit dev (commit none, built unknown)\n", out)
}

func TestGenerateFromStdin(t *testing.T) {
	cfgPath, auditDir := testConfig(t)

	out, err := run(t, cartDiff, "--config", cfgPath, "generate", "-m", "-")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "message-only prints a single line")

	out, err = run(t, "", "--config", cfgPath, "audit", "events", "--kind", "trail", "--json")
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.Len(t, events, 1)
	assert.FileExists(t, filepath.Join(auditDir, "agent_trails.jsonl"))
}

func TestAuditStatsCountCLIRuns(t *testing.T) {
	cfgPath, _ := testConfig(t)

	_, err := run(t, cartDiff, "--config", cfgPath, "generate", "-m", "-")
	require.NoError(t, err)

	out, err := run(t, "", "--config", cfgPath, "audit", "stats")
	require.NoError(t, err)
	var stats struct {
		TotalRequests int            `json:"total_requests"`
		Severity      map[string]int `json:"severity_distribution"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Len(t, stats.Severity, 1)

	out, err = run(t, "", "--config", cfgPath, "audit", "events", "--kind", "api_call", "--json")
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "cli generate", events[0]["endpoint"])
}

func TestGenerateJSONReport(t *testing.T) {
	cfgPath, _ := testConfig(t)

	out, err := run(t, cartDiff, "--config", cfgPath, "generate", "--format", "json", "-")
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Contains(t, rep, "message")
	assert.Contains(t, rep, "quality_metrics")
	assert.Contains(t, rep, "loop")
}

func TestGenerateStat(t *testing.T) {
	cfgPath, _ := testConfig(t)

	out, err := run(t, cartDiff, "--config", cfgPath, "generate", "--stat", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "1 file(s) changed, 1 insertions(+), 1 deletions(-)")
	assert.Contains(t, out, "cart.py")
}

func TestGenerateEmptyDiff(t *testing.T) {
	cfgPath, _ := testConfig(t)

	out, err := run(t, "  \n", "--config", cfgPath, "generate", "-")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCheckRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := testConfig(t)

	_, err := run(t, cartDiff, "--config", cfgPath, "check", "-m", "Update cart total", "-f", "yaml", "-")
	assert.ErrorContains(t, err, "yaml")
}

func TestCheckNeedsMessage(t *testing.T) {
	cfgPath, _ := testConfig(t)

	_, err := run(t, cartDiff, "--config", cfgPath, "check", "-")
	assert.Error(t, err)
}

func TestAuditPruneNeedsSQLite(t *testing.T) {
	cfgPath, _ := testConfig(t)

	_, err := run(t, "", "--config", cfgPath, "audit", "prune")
	assert.ErrorContains(t, err, "sqlite")
}

func TestMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safety: [oops"), 0o644))

	_, err := run(t, "", "--config", path, "version")
	assert.Error(t, err)
}

func TestReadMessageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "COMMIT_EDITMSG")
	content := "Fix cart total\n\nInclude quantity.\n# Please enter the commit message\n" +
		"# ------------------------ >8 ------------------------\ndiff --git a/x b/x\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	msg, err := readMessageFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Fix cart total\n\nInclude quantity.", msg)
}

func TestStdinPiped(t *testing.T) {
	assert.False(t, stdinPiped(strings.NewReader(cartDiff)))

	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer devNull.Close()
	assert.False(t, stdinPiped(devNull))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	assert.True(t, stdinPiped(r))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Fix cart", firstLine("Fix cart\n\nbody", 40))
	assert.Equal(t, "abcd…", firstLine("abcdefgh", 5))
}

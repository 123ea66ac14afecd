package safety

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,3 @@
 func main() {
-	println("hello")
+	println("hello world")
 }
`

func rejection(t *testing.T, err error) *Rejection {
	t.Helper()
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %v", err)
	return rej
}

func TestGateAcceptsDiff(t *testing.T) {
	g := NewGate(DefaultGateConfig(), NewRateLimiter(60))
	rep, err := g.ValidateInput("client", goodDiff)
	require.NoError(t, err)
	assert.Equal(t, []string{CheckRateLimit, CheckEmpty, CheckSizeLimit, CheckLineCount, CheckFormat, CheckSensitiveData}, rep.Checks)
	assert.Equal(t, 10, rep.Lines)
	assert.Greater(t, rep.SizeKB, 0.0)
}

func TestGateRejections(t *testing.T) {
	tests := []struct {
		name  string
		cfg   GateConfig
		diff  string
		check string
	}{
		{"empty", DefaultGateConfig(), "", CheckEmpty},
		{"whitespace", DefaultGateConfig(), " \n\t\n", CheckEmpty},
		{"size", GateConfig{MaxDiffKB: 1, MaxDiffLines: 1000}, "+" + strings.Repeat("a", 2000), CheckSizeLimit},
		{"lines", GateConfig{MaxDiffKB: 100, MaxDiffLines: 3}, "+a\n+b\n+c\n+d\n+e", CheckLineCount},
		{"format", DefaultGateConfig(), "hello\nworld", CheckFormat},
		{"password", DefaultGateConfig(), goodDiff + `+password = "hunter2"` + "\n", CheckSensitiveData},
		{"api key case-insensitive", DefaultGateConfig(), goodDiff + "+API_KEY = 'abc123'\n", CheckSensitiveData},
		{"token", DefaultGateConfig(), goodDiff + `+token="xyz"` + "\n", CheckSensitiveData},
		{"card number", DefaultGateConfig(), goodDiff + "+card := 4111111111111111\n", CheckSensitiveData},
		{"email", DefaultGateConfig(), goodDiff + "+// contact dev@example.com\n", CheckSensitiveData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.cfg, nil)
			_, err := g.ValidateInput("c", tt.diff)
			assert.Equal(t, tt.check, rejection(t, err).Check)
		})
	}
}

func TestGateFormatWarnMode(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.WarnOnFormat = true
	rep, err := NewGate(cfg, nil).ValidateInput("c", "hello\nworld")
	require.NoError(t, err)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "does not appear to be a git diff")
}

func TestGateFormatSniffsFirstTwentyLines(t *testing.T) {
	lines := make([]string, 25)
	for i := range lines {
		lines[i] = "plain text"
	}
	lines[22] = "+late marker"
	_, err := NewGate(DefaultGateConfig(), nil).ValidateInput("c", strings.Join(lines, "\n"))
	assert.Equal(t, CheckFormat, rejection(t, err).Check)

	lines[19] = "@@ -1 +1 @@"
	_, err = NewGate(DefaultGateConfig(), nil).ValidateInput("c", strings.Join(lines, "\n"))
	assert.NoError(t, err)
}

func TestGateRateLimitRunsFirst(t *testing.T) {
	g := NewGate(DefaultGateConfig(), NewRateLimiter(1))
	_, err := g.ValidateInput("c", goodDiff)
	require.NoError(t, err)

	rep, err := g.ValidateInput("c", "")
	assert.Equal(t, CheckRateLimit, rejection(t, err).Check)
	assert.Equal(t, []string{CheckRateLimit}, rep.Checks)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return now }

	n, ok := rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	now = now.Add(30 * time.Second)
	_, ok = rl.Allow("a")
	assert.True(t, ok)
	_, ok = rl.Allow("a")
	assert.False(t, ok)

	_, ok = rl.Allow("b")
	assert.True(t, ok, "clients are independent")

	// The first request falls out of the window.
	now = now.Add(31 * time.Second)
	n, ok = rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	_, ok = rl.Allow("a")
	assert.False(t, ok)
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5)
	rl.now = func() time.Time { return now }

	for _, c := range []string{"a", "b", "c"} {
		_, ok := rl.Allow(c)
		require.True(t, ok)
	}
	assert.Len(t, rl.hits, 3)

	now = now.Add(RateWindow + time.Second)
	_, ok := rl.Allow("d")
	require.True(t, ok)
	assert.Len(t, rl.hits, 1)
	assert.Contains(t, rl.hits, "d")
}

func TestRateLimiterConcurrent(t *testing.T) {
	rl := NewRateLimiter(50)
	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := rl.Allow("shared"); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), admitted.Load())
}

package audit

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/smartcommit/internal/config"
	"github.com/sprite-ai/smartcommit/internal/model"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func stamped(e Event, offset time.Duration) Event {
	e.Timestamp = base.Add(offset)
	return e
}

func sinks(t *testing.T) map[string]Sink {
	t.Helper()
	jsonl, err := OpenJSONL(t.TempDir())
	require.NoError(t, err)
	sqlite, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	out := map[string]Sink{"memory": NewMemory(), "jsonl": jsonl, "sqlite": sqlite}
	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func seed(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()
	report := model.HallucinationReport{Detected: true, Rate: 0.4, UngroundedTokens: []string{"quantum"}, TotalTokensChecked: 3}
	events := []Event{
		stamped(NewAPICall("/api/generate", "a", 200, time.Millisecond, cartDiff), 0),
		stamped(NewAPICall("/api/generate", "b", 200, time.Millisecond, cartDiff), time.Minute),
		stamped(NewHallucination("b", "Fix quantum", cartDiff, report, model.SeverityCritical), time.Minute+time.Second),
		stamped(NewAPICall("/api/check", "a", 400, time.Millisecond, ""), 2*time.Minute),
	}
	ev, ok := NewSafetyViolation("a", "", rejection())
	require.True(t, ok)
	events = append(events, stamped(ev, 2*time.Minute+time.Second))

	for _, e := range events {
		require.NoError(t, s.Record(ctx, e))
	}
}

func TestSinkQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			all, err := s.Query(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 5)
			for i := 1; i < len(all); i++ {
				assert.False(t, all[i].Timestamp.After(all[i-1].Timestamp), "events must be newest first")
			}
			assert.Equal(t, KindSafetyViolation, all[0].Kind)

			calls, err := s.Query(ctx, Query{Kind: KindAPICall, Limit: 2})
			require.NoError(t, err)
			require.Len(t, calls, 2)
			assert.Equal(t, "/api/check", calls[0].Endpoint)
			assert.Equal(t, 400, calls[0].StatusCode)
			assert.Equal(t, "b", calls[1].ClientID)

			recent, err := s.Query(ctx, Query{Since: base.Add(90 * time.Second)})
			require.NoError(t, err)
			assert.Len(t, recent, 2)

			h, err := s.Query(ctx, Query{Kind: KindHallucination})
			require.NoError(t, err)
			require.Len(t, h, 1)
			assert.Equal(t, []string{"quantum"}, h[0].UngroundedTokens)
			assert.True(t, h[0].Timestamp.Equal(base.Add(time.Minute+time.Second)))

			st := s.Stats()
			assert.Equal(t, 3, st.TotalRequests)
			assert.Equal(t, 1, st.TotalHallucinations)
			assert.Equal(t, 1, st.TotalSafetyViolations)
			assert.Equal(t, 33.33, st.HallucinationRate)
		})
	}
}

func TestSinkEmptyQuery(t *testing.T) {
	for name, s := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Query(context.Background(), Query{Kind: KindAgentTrail})
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Equal(t, Stats{SeverityCounts: map[string]int{}, ConfidenceCounts: map[string]int{}}, s.Stats())
		})
	}
}

func TestStatsDistributions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, sev := range []string{"LOW", "LOW", "HIGH"} {
		e := NewAPICall("/api/generate", "a", 200, 0, "")
		e.Severity = sev
		e.Confidence = "MEDIUM"
		require.NoError(t, m.Record(ctx, e))
	}
	st := m.Stats()
	assert.Equal(t, map[string]int{"LOW": 2, "HIGH": 1}, st.SeverityCounts)
	assert.Equal(t, map[string]int{"MEDIUM": 3}, st.ConfidenceCounts)

	st.SeverityCounts["LOW"] = 99
	assert.Equal(t, 2, m.Stats().SeverityCounts["LOW"], "snapshot must not alias session state")
}

func TestTallyMatchesSession(t *testing.T) {
	jsonl, err := OpenJSONL(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { jsonl.Close() })
	seed(t, jsonl)

	// A second process sees only the files, not the session.
	reopened, err := OpenJSONL(jsonl.Dir())
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	events, err := reopened.Query(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, jsonl.Stats(), Tally(events))
	assert.Zero(t, reopened.Stats().TotalRequests)
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Record(context.Background(), NewAPICall("/", "", 200, 0, "")), ErrClosed)
}

func TestJSONLFilesPerKind(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	defer s.Close()
	seed(t, s)

	for _, name := range []string{"api_calls.jsonl", "hallucinations.jsonl", "safety_violations.jsonl"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "agent_trails.jsonl"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "api_calls.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 3, countLines(data))
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

func TestJSONLSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), NewAPICall("/api/generate", "a", 200, 0, "")))
	f, err := os.OpenFile(filepath.Join(dir, "api_calls.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := s.Query(context.Background(), Query{Kind: KindAPICall})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJSONLConcurrentRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Record(context.Background(), NewAPICall("/api/generate", "a", 200, 0, cartDiff)))
		}()
	}
	wg.Wait()

	got, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, 50, s.Stats().TotalRequests)
}

func TestJSONLUnknownKind(t *testing.T) {
	s, err := OpenJSONL(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	assert.Error(t, s.Record(context.Background(), Event{Kind: "bogus"}))
}

func TestSQLitePersistsAndPrunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Zero(t, s.Stats().TotalRequests, "stats are per session")

	n, err := s.Prune(context.Background(), base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err = s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.AuditConfig{Backend: "jsonl", Dir: filepath.Join(dir, "logs")})
	require.NoError(t, err)
	assert.IsType(t, &JSONLSink{}, s)
	s.Close()

	s, err = Open(config.AuditConfig{Backend: "sqlite", Path: filepath.Join(dir, "audit.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteSink{}, s)
	s.Close()

	s, err = Open(config.AuditConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(config.AuditConfig{Backend: "kafka"})
	assert.Error(t, err)
	_, err = Open(config.AuditConfig{Backend: "jsonl"})
	assert.Error(t, err)
}

func TestRecent(t *testing.T) {
	m := NewMemory()
	seed(t, m)

	got, err := Recent(context.Background(), m, KindAPICall, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/api/check", got[0].Endpoint)

	got, err = Recent(context.Background(), m, "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

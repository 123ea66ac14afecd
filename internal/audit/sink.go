package audit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sprite-ai/smartcommit/internal/config"
)

// Query filters events. Zero values match everything.
type Query struct {
	Kind  Kind
	Since time.Time
	Limit int
}

func (q Query) match(e Event) bool {
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	return q.Since.IsZero() || !e.Timestamp.Before(q.Since)
}

// Sink stores audit events. Query returns the most recent events first.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Query(ctx context.Context, q Query) ([]Event, error)
	Stats() Stats
	Close() error
}

// Recent returns up to limit events of kind, most recent first. An empty
// kind matches all events.
func Recent(ctx context.Context, s Sink, kind Kind, limit int) ([]Event, error) {
	return s.Query(ctx, Query{Kind: kind, Limit: limit})
}

// Open returns the sink selected by cfg.
func Open(cfg config.AuditConfig) (Sink, error) {
	switch cfg.Backend {
	case "jsonl":
		return OpenJSONL(cfg.Dir)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "none", "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
}

// Stats are the counters of the current session.
type Stats struct {
	TotalRequests         int            `json:"total_requests"`
	TotalHallucinations   int            `json:"total_hallucinations"`
	HallucinationRate     float64        `json:"hallucination_rate"`
	TotalSafetyViolations int            `json:"total_safety_violations"`
	SeverityCounts        map[string]int `json:"severity_distribution"`
	ConfidenceCounts      map[string]int `json:"confidence_distribution"`
}

// session accumulates Stats for every event recorded through a sink.
type session struct {
	mu    sync.Mutex
	stats Stats
}

func (s *session) add(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case KindAPICall:
		s.stats.TotalRequests++
		if e.Severity != "" {
			if s.stats.SeverityCounts == nil {
				s.stats.SeverityCounts = map[string]int{}
			}
			s.stats.SeverityCounts[e.Severity]++
		}
		if e.Confidence != "" {
			if s.stats.ConfidenceCounts == nil {
				s.stats.ConfidenceCounts = map[string]int{}
			}
			s.stats.ConfidenceCounts[e.Confidence]++
		}
	case KindHallucination:
		s.stats.TotalHallucinations++
	case KindSafetyViolation:
		s.stats.TotalSafetyViolations++
	}
}

func (s *session) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.HallucinationRate = percent(out.TotalHallucinations, out.TotalRequests)
	out.SeverityCounts = copyCounts(s.stats.SeverityCounts)
	out.ConfidenceCounts = copyCounts(s.stats.ConfidenceCounts)
	return out
}

// Tally computes Stats over stored events, e.g. the result of a Query
// made by a process other than the one that recorded them.
func Tally(events []Event) Stats {
	var s session
	for _, e := range events {
		s.add(e)
	}
	return s.snapshot()
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// percent is part/total as a percentage rounded to two decimals.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}

// newestFirst sorts events by timestamp descending and applies limit.
func newestFirst(events []Event, limit int) []Event {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

// ErrClosed is returned by a sink after Close.
var ErrClosed = errors.New("audit sink closed")

// Memory keeps events in process. It backs the "none" backend and tests.
type Memory struct {
	session
	mu     sync.Mutex
	events []Event
	closed bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.events = append(m.events, e)
	m.add(e)
	return nil
}

func (m *Memory) Query(_ context.Context, q Query) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, e := range m.events {
		if q.match(e) {
			out = append(out, e)
		}
	}
	return newestFirst(out, q.Limit), nil
}

func (m *Memory) Stats() Stats { return m.snapshot() }

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

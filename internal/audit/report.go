package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxRecentIncidents caps the HIGH/CRITICAL hallucinations listed in a report.
const maxRecentIncidents = 10

// Report summarizes the audit log over a window of days.
type Report struct {
	GeneratedAt time.Time      `json:"report_generated"`
	PeriodDays  int            `json:"period_days"`
	Summary     Summary        `json:"summary"`
	Daily       []DailyMetrics `json:"daily_metrics"`
	Recent      []Event        `json:"recent_high_severity"`
	Session     Stats          `json:"session"`
}

// Summary totals a report window.
type Summary struct {
	TotalAPICalls         int     `json:"total_api_calls"`
	TotalHallucinations   int     `json:"total_hallucinations"`
	TotalSafetyViolations int     `json:"total_safety_violations"`
	HallucinationRate     float64 `json:"hallucination_rate"`
}

// DailyMetrics aggregates one UTC day.
type DailyMetrics struct {
	Date              string  `json:"date"`
	TotalRequests     int     `json:"total_requests"`
	Hallucinations    int     `json:"hallucination_count"`
	HallucinationRate float64 `json:"hallucination_rate"`
	SafetyViolations  int     `json:"safety_violations"`
	AvgQuality        float64 `json:"avg_quality_score"`
	AvgLatencyMS      float64 `json:"avg_latency_ms"`
	Critical          int     `json:"critical_count"`
	High              int     `json:"high_count"`
	Medium            int     `json:"medium_count"`
	Low               int     `json:"low_count"`
}

// BuildReport reads the last days of events from sink.
func BuildReport(ctx context.Context, sink Sink, days int) (*Report, error) {
	if days <= 0 {
		return nil, fmt.Errorf("report window must be positive, got %d days", days)
	}
	generated := now().UTC()
	events, err := sink.Query(ctx, Query{Since: generated.AddDate(0, 0, -days)})
	if err != nil {
		return nil, fmt.Errorf("loading audit events: %w", err)
	}

	rep := &Report{
		GeneratedAt: generated,
		PeriodDays:  days,
		Daily:       Daily(events),
		Recent:      []Event{},
		Session:     sink.Stats(),
	}
	for _, e := range events {
		switch e.Kind {
		case KindAPICall:
			rep.Summary.TotalAPICalls++
		case KindHallucination:
			rep.Summary.TotalHallucinations++
			if (e.Severity == "HIGH" || e.Severity == "CRITICAL") && len(rep.Recent) < maxRecentIncidents {
				rep.Recent = append(rep.Recent, e)
			}
		case KindSafetyViolation:
			rep.Summary.TotalSafetyViolations++
		}
	}
	rep.Summary.HallucinationRate = percent(rep.Summary.TotalHallucinations, rep.Summary.TotalAPICalls)
	return rep, nil
}

type dayAcc struct {
	DailyMetrics
	qualitySum float64
	qualityN   int
	latencySum float64
	latencyN   int
}

// Daily groups events by UTC date, oldest day first.
func Daily(events []Event) []DailyMetrics {
	byDate := map[string]*dayAcc{}
	for _, e := range events {
		date := e.Timestamp.UTC().Format(time.DateOnly)
		d, ok := byDate[date]
		if !ok {
			d = &dayAcc{DailyMetrics: DailyMetrics{Date: date}}
			byDate[date] = d
		}
		switch e.Kind {
		case KindAPICall:
			d.TotalRequests++
			if e.Quality != nil {
				d.qualitySum += *e.Quality
				d.qualityN++
			}
			if e.LatencyMS > 0 {
				d.latencySum += e.LatencyMS
				d.latencyN++
			}
			switch e.Severity {
			case "CRITICAL":
				d.Critical++
			case "HIGH":
				d.High++
			case "MEDIUM":
				d.Medium++
			case "LOW":
				d.Low++
			}
		case KindHallucination:
			d.Hallucinations++
		case KindSafetyViolation:
			d.SafetyViolations++
		}
	}

	out := make([]DailyMetrics, 0, len(byDate))
	for _, d := range byDate {
		m := d.DailyMetrics
		m.HallucinationRate = percent(m.Hallucinations, m.TotalRequests)
		if d.qualityN > 0 {
			m.AvgQuality = round(d.qualitySum/float64(d.qualityN), 4)
		}
		if d.latencyN > 0 {
			m.AvgLatencyMS = round(d.latencySum/float64(d.latencyN), 2)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

var dailyHeader = []string{
	"date", "total_requests", "hallucination_count", "hallucination_rate",
	"safety_violations", "avg_quality_score", "avg_latency_ms",
	"critical_count", "high_count", "medium_count", "low_count",
}

// WriteDailyCSV writes one row per day with a header.
func WriteDailyCSV(w io.Writer, days []DailyMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dailyHeader); err != nil {
		return err
	}
	for _, d := range days {
		row := []string{
			d.Date,
			strconv.Itoa(d.TotalRequests),
			strconv.Itoa(d.Hallucinations),
			formatFloat(d.HallucinationRate),
			strconv.Itoa(d.SafetyViolations),
			formatFloat(d.AvgQuality),
			formatFloat(d.AvgLatencyMS),
			strconv.Itoa(d.Critical),
			strconv.Itoa(d.High),
			strconv.Itoa(d.Medium),
			strconv.Itoa(d.Low),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// maxListItems bounds how many list elements a flattened CSV cell holds.
const maxListItems = 10

// ExportCSV writes events as CSV. Nested fields become dotted columns
// and lists are joined with ", ". Columns are the sorted union of keys.
func ExportCSV(w io.Writer, events []Event) error {
	rows := make([]map[string]string, 0, len(events))
	columns := map[string]bool{}
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding audit event: %w", err)
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("decoding audit event: %w", err)
		}
		row := map[string]string{}
		flatten("", obj, row)
		for k := range row {
			columns[k] = true
		}
		rows = append(rows, row)
	}

	header := make([]string, 0, len(columns))
	for k := range columns {
		header = append(header, k)
	}
	sort.Strings(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		rec := make([]string, len(header))
		for i, k := range header {
			rec[i] = row[k]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flatten(prefix string, v any, out map[string]string) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, out)
		}
	case []any:
		items := make([]string, 0, min(len(v), maxListItems))
		for _, item := range v[:min(len(v), maxListItems)] {
			items = append(items, scalar(item))
		}
		out[prefix] = strings.Join(items, ", ")
	default:
		out[prefix] = scalar(v)
	}
}

func scalar(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatFloat(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

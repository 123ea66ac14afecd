package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sprite-ai/smartcommit/internal/audit"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcommit_http_requests_total",
		Help: "HTTP requests by endpoint and status code",
	}, []string{"endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartcommit_http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"endpoint"})

	messageSeverity = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcommit_message_severity_total",
		Help: "Scored messages by hallucination severity",
	}, []string{"severity"})

	refinements = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartcommit_refinements",
		Help:    "Refinement passes per generated message",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	})

	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcommit_input_rejections_total",
		Help: "Diffs rejected by the safety gate, by check",
	}, []string{"check"})
)

// callInfo collects what a handler learned about a request so the
// instrumenting wrapper can audit it.
type callInfo struct {
	diff       string
	message    string
	eval       *model.EvaluationResult
	assessment *safety.Assessment
}

type callKey struct{}

func callFrom(ctx context.Context) *callInfo {
	if c, ok := ctx.Value(callKey{}).(*callInfo); ok {
		return c
	}
	return &callInfo{}
}

func (c *callInfo) scored(message string, eval model.EvaluationResult, a safety.Assessment) {
	c.message = message
	c.eval = &eval
	c.assessment = &a
	messageSeverity.WithLabelValues(a.Severity.String()).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records metrics for every request and, when audited is set,
// an api_call audit event.
func (s *Server) instrument(endpoint string, audited bool, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		call := &callInfo{}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h(rec, r.WithContext(context.WithValue(r.Context(), callKey{}, call)))

		latency := time.Since(start)
		httpRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		httpLatency.WithLabelValues(endpoint).Observe(latency.Seconds())

		if !audited {
			return
		}
		ev := audit.NewAPICall(endpoint, clientID(r), rec.status, latency, call.diff)
		if call.eval != nil {
			ev = ev.WithResult(call.message, *call.eval, *call.assessment)
		}
		s.engine.Record(r.Context(), ev)
	})
}

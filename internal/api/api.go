// Package api implements the HTTP API server for smartcommit.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/engine"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// maxBodyBytes caps request bodies; the gate applies the configured diff limits after decoding.
const maxBodyBytes = 4 << 20

// Server is the smartcommit HTTP API server.
type Server struct {
	addr    string
	repoDir string
	engine  *engine.Engine
	mux     *http.ServeMux
	server  *http.Server
}

// New creates a new API server. repoDir is the repository the git
// endpoints inspect.
func New(addr, repoDir string, eng *engine.Engine) *Server {
	s := &Server{addr: addr, repoDir: repoDir, engine: eng}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /health", s.instrument("/health", false, s.handleHealth))
	s.mux.Handle("POST /api/generate", s.instrument("/api/generate", true, s.handleGenerate))
	s.mux.Handle("POST /api/check", s.instrument("/api/check", true, s.handleCheck))
	s.mux.Handle("POST /api/parse", s.instrument("/api/parse", false, s.handleParse))
	s.mux.Handle("GET /api/changes", s.instrument("/api/changes", false, s.handleChanges))
	s.mux.Handle("GET /api/history/{count}", s.instrument("/api/history", false, s.handleHistory))
	s.mux.Handle("GET /api/audit/stats", s.instrument("/api/audit/stats", false, s.handleAuditStats))
	s.mux.Handle("GET /api/audit/report", s.instrument("/api/audit/report", false, s.handleAuditReport))
	s.mux.Handle("GET /api/audit/events", s.instrument("/api/audit/events", false, s.handleAuditEvents))
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	log.Infof("smartcommit API server listening on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Warnf("json encode error: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var validate = validator.New()

// readJSON decodes a JSON request body into v and validates its tags.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		rej *safety.Rejection
		gv  *safety.GovernanceViolation
	)
	switch {
	case errors.As(err, &rej):
		if rej.Check == safety.CheckRateLimit {
			return http.StatusTooManyRequests
		}
		return http.StatusBadRequest
	case errors.As(err, &gv):
		return http.StatusInternalServerError
	case errors.Is(err, agent.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientID identifies the caller for rate limiting and auditing.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

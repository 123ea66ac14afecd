package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/audit"
	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/engine"
	"github.com/sprite-ai/smartcommit/internal/history"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/model"
	"github.com/sprite-ai/smartcommit/internal/report"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"generator": s.engine.Generator().Info().String(),
	})
}

// --- Generate ---

type generateRequest struct {
	Diff      string `json:"diff"`
	Reference string `json:"reference,omitempty" validate:"max=5000"`
}

type generateResponse struct {
	RequestID string `json:"request_id"`
	*agent.Result
	Stats     model.DiffStats `json:"diff_stats"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	call := callFrom(r.Context())
	call.diff = req.Diff

	res, err := s.engine.Generate(r.Context(), clientID(r), req.Diff, req.Reference, nil)
	if err != nil {
		s.fail(w, err)
		return
	}
	call.scored(res.Message, res.Evaluation, res.Assessment)
	refinements.Observe(float64(res.Iterations))

	writeJSON(w, http.StatusOK, generateResponse{
		RequestID: uuid.NewString(),
		Result:    res,
		Stats:     engine.Stats(req.Diff),
		Timestamp: time.Now().UTC(),
	})
}

// fail writes err with its mapped status.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var rej *safety.Rejection
	if errors.As(err, &rej) {
		rejections.WithLabelValues(rej.Check).Inc()
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	writeError(w, status, err.Error())
}

// --- Check ---

type checkRequest struct {
	Diff      string `json:"diff"`
	Message   string `json:"commit_message" validate:"required,max=5000"`
	Reference string `json:"reference_message,omitempty" validate:"max=5000"`
}

type checkResponse struct {
	RequestID string `json:"request_id"`
	*report.Report
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	call := callFrom(r.Context())
	call.diff = req.Diff

	id := clientID(r)
	if _, err := s.engine.Admit(r.Context(), id, req.Diff); err != nil {
		s.fail(w, err)
		return
	}
	rep := s.engine.Check(r.Context(), id, req.Message, req.Reference, req.Diff)
	call.scored(rep.Message, rep.Evaluation, rep.Assessment)

	writeJSON(w, http.StatusOK, checkResponse{RequestID: uuid.NewString(), Report: rep})
}

// --- Parse ---

type parseRequest struct {
	Diff string `json:"diff" validate:"required"`
}

type parseResponse struct {
	Files []fileJSON      `json:"files"`
	Stats model.DiffStats `json:"stats"`
}

type fileJSON struct {
	Name         string   `json:"name"`
	OldName      string   `json:"old_name,omitempty"`
	NewName      string   `json:"new_name,omitempty"`
	IsNew        bool     `json:"is_new,omitempty"`
	IsDeleted    bool     `json:"is_deleted,omitempty"`
	IsRenamed    bool     `json:"is_renamed,omitempty"`
	AddedLines   int      `json:"added_lines"`
	DeletedLines int      `json:"deleted_lines"`
	Fragments    int      `json:"fragments"`
	Contexts     []string `json:"hunk_contexts,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ds, err := diff.Parse(req.Diff)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := parseResponse{Files: []fileJSON{}, Stats: ds.Summary()}
	for _, f := range ds.Files {
		resp.Files = append(resp.Files, fileJSON{
			Name:         f.Name(),
			OldName:      f.OldName,
			NewName:      f.NewName,
			IsNew:        f.IsNew,
			IsDeleted:    f.IsDeleted,
			IsRenamed:    f.IsRenamed,
			AddedLines:   f.AddedLines,
			DeletedLines: f.DeletedLines,
			Fragments:    len(f.Fragments),
			Contexts:     f.HunkContexts(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Repository ---

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	files, err := diff.ChangedFiles(s.repoDir, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed_files": files, "count": len(files)})
}

const maxHistory = 100

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.PathValue("count"))
	if err != nil || count < 1 {
		writeError(w, http.StatusBadRequest, "count must be a positive integer")
		return
	}
	commits, err := history.Log(s.repoDir, history.Options{Limit: min(count, maxHistory)})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if commits == nil {
		commits = []history.Commit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits, "count": len(commits)})
}

// --- Audit ---

func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Sink().Stats())
}

func (s *Server) handleAuditReport(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", 7, 365)
	if !ok {
		return
	}
	rep, err := audit.BuildReport(r.Context(), s.engine.Sink(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 100, 1000)
	if !ok {
		return
	}
	var kind audit.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		var err error
		if kind, err = audit.ParseKind(k); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	events, err := audit.Recent(r.Context(), s.engine.Sink(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// intParam reads a positive query parameter no larger than hi.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > hi {
		writeError(w, http.StatusBadRequest, name+" must be between 1 and "+strconv.Itoa(hi))
		return 0, false
	}
	return n, true
}

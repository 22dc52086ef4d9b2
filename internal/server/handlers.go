package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxNameLen  = 100
	maxNotesLen = 500
)

type createSessionRequest struct {
	Name      string                  `json:"name"`
	Type      models.SessionType      `json:"type"`
	Exercises []models.ExerciseRecord `json:"exercises"`
	StartTime *time.Time              `json:"start_time"`
	Notes     string                  `json:"notes"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := validateSessionInput(req.Name, req.Type, req.Notes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.Type == "" {
		req.Type = models.TypeMixed
	}

	sess := &models.Session{
		UserID:    userIDFromRequest(r),
		Name:      req.Name,
		Type:      req.Type,
		StartTime: start,
		Exercises: req.Exercises,
		Notes:     req.Notes,
	}
	sess.RecomputeScores()

	if err := s.db.CreateSession(r.Context(), sess); err != nil {
		s.log.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.SessionFilter{
		Page:  intParam(q.Get("page"), 1),
		Limit: intParam(q.Get("limit"), 10),
	}
	if t := q.Get("type"); t != "" {
		st := models.SessionType(t)
		if !models.ValidSessionType(st) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session type"})
			return
		}
		filter.Type = st
	}
	if c := q.Get("completed"); c != "" {
		completed := c == "true"
		filter.Completed = &completed
	}

	sessions, total, err := s.db.ListSessions(r.Context(), userIDFromRequest(r), filter)
	if err != nil {
		s.log.Error("list sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":     sessions,
		"total":        total,
		"current_page": filter.Page,
		"total_pages":  int(math.Ceil(float64(total) / float64(filter.Limit))),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	sess, err := s.db.GetSession(r.Context(), id, userIDFromRequest(r))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var patch storage.SessionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := validatePatch(patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sess, err := s.db.UpdateSession(r.Context(), id, userIDFromRequest(r), patch)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteSession(r.Context(), id, userIDFromRequest(r)); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	sess, err := s.db.CompleteSession(r.Context(), id, userIDFromRequest(r), time.Now())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetAccountStats(r.Context(), userIDFromRequest(r))
	if err != nil {
		s.log.Error("account stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	days := intParam(r.URL.Query().Get("days"), 30)
	summary, err := s.db.StatsSummary(r.Context(), userIDFromRequest(r), days)
	if err != nil {
		s.log.Error("stats summary", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// validateSessionInput rejects malformed input at the boundary so the core
// never sees it.
func validateSessionInput(name string, typ models.SessionType, notes string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("session name is required and must be at most %d characters", maxNameLen)
	}
	if typ != "" && !models.ValidSessionType(typ) {
		return fmt.Errorf("invalid session type %q", typ)
	}
	if len(notes) > maxNotesLen {
		return fmt.Errorf("notes cannot exceed %d characters", maxNotesLen)
	}
	return nil
}

func validatePatch(p storage.SessionPatch) error {
	if p.Name != nil && (*p.Name == "" || len(*p.Name) > maxNameLen) {
		return fmt.Errorf("session name must be at most %d characters", maxNameLen)
	}
	if p.Type != nil && !models.ValidSessionType(*p.Type) {
		return fmt.Errorf("invalid session type %q", *p.Type)
	}
	if p.Notes != nil && len(*p.Notes) > maxNotesLen {
		return fmt.Errorf("notes cannot exceed %d characters", maxNotesLen)
	}
	if p.IsCompleted != nil {
		return errors.New("is_completed cannot be patched; use the complete endpoint")
	}
	return nil
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return uuid.Nil, false
	}
	return id, true
}

func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// userIDFromRequest resolves the owner identity. Authentication mechanics are
// out of scope here; the transport layer (or dev default 1) provides the id.
func userIDFromRequest(r *http.Request) int {
	if v := r.Header.Get("X-User-ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			return id
		}
	}
	return 1
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

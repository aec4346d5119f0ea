package server

import (
	"net/http"

	"github.com/breakingdawnisback/Job-Importer/importer"
)

// StartImportResponse is the body of POST /api/feeds/{id}/import.
type StartImportResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ImportStatusResponse is the body of GET /api/imports/{id}/status. Unknown
// session ids report status "not-found" with a 200; absence is data here,
// not an error.
type ImportStatusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// ListImportsResponse is the body of GET /api/imports.
type ListImportsResponse struct {
	Sessions []*importer.Session `json:"sessions"`
	Count    int                 `json:"count"`
}

// ImportDetailsResponse is the body of GET /api/imports/{id}: the session
// fields flattened at the top level plus the jobs currently stored for the
// session's feed.
type ImportDetailsResponse struct {
	*importer.Session
	Jobs []*importer.Job `json:"jobs"`
}

// handleStartImport kicks off an asynchronous import for the feed. The
// session is returned immediately; progress arrives over the WebSocket or
// via the status endpoint.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request, feedID string) {
	session, err := s.orch.StartImport(r.Context(), feedID)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, StartImportResponse{
		SessionID: session.ID,
		Message:   "import started",
	})
}

// HandleImports handles requests to /api/imports
// GET: List import sessions (optional ?feedId= filter, ?limit= cap)
func (s *Server) HandleImports(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	feedID := r.URL.Query().Get("feedId")
	limit := parseIntQueryParam(r, "limit", 50, 1, 500)

	sessions, err := s.sessions.List(feedID, limit)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ListImportsResponse{Sessions: sessions, Count: len(sessions)})
}

// HandleImport handles requests to /api/imports/{id}
// GET: Get session details (404 for unknown ids)
// DELETE: Remove a session record
// GET /api/imports/{id}/status is routed here too and always answers 200.
func (s *Server) HandleImport(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/imports/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing import ID")
		return
	}
	sessionID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] == "status" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleImportStatus(w, r, sessionID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetImport(w, r, sessionID)
	case http.MethodDelete:
		s.handleDeleteImport(w, r, sessionID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleImportStatus serves the polling fallback for clients whose
// WebSocket missed the terminal event.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	status, progress, err := s.orch.Status(sessionID)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ImportStatusResponse{
		Status:   status,
		Progress: progress,
	})
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	limit := parseIntQueryParam(r, "limit", 100, 1, 1000)
	jobs, err := s.jobs.ListByFeed(session.FeedID, limit)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}
	if jobs == nil {
		jobs = []*importer.Job{}
	}

	writeJSON(w, http.StatusOK, ImportDetailsResponse{Session: session, Jobs: jobs})
}

func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.Delete(sessionID); err != nil {
		handleError(w, s.logger, err)
		return
	}

	s.logger.Infow("Import session deleted", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleJobs handles requests to /api/jobs
// GET: List imported jobs for a feed (?feedId= required, ?limit= cap)
func (s *Server) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	feedID := r.URL.Query().Get("feedId")
	if feedID == "" {
		writeError(w, http.StatusBadRequest, "feedId is required")
		return
	}
	limit := parseIntQueryParam(r, "limit", 100, 1, 1000)

	jobs, err := s.jobs.ListByFeed(feedID, limit)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

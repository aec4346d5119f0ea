package server

import (
	"net/http"
	"strings"

	"github.com/breakingdawnisback/Job-Importer/feed"
)

// CreateFeedRequest is the body of POST /api/feeds.
type CreateFeedRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	JobTypes string `json:"jobTypes"`
	Region   string `json:"region"`
}

// UpdateFeedRequest is the body of PUT /api/feeds/{id}. Pointer fields
// distinguish "omitted" from "set to zero value".
type UpdateFeedRequest struct {
	Name     *string `json:"name"`
	URL      *string `json:"url"`
	Category *string `json:"category"`
	JobTypes *string `json:"jobTypes"`
	Region   *string `json:"region"`
	IsActive *bool   `json:"isActive"`
}

// ListFeedsResponse is the body of GET /api/feeds.
type ListFeedsResponse struct {
	Feeds []*feed.Feed `json:"feeds"`
	Count int          `json:"count"`
}

// HandleFeeds handles requests to /api/feeds
// GET: List feeds (optional ?search= substring filter)
// POST: Create a new feed
func (s *Server) HandleFeeds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListFeeds(w, r)
	case http.MethodPost:
		s.handleCreateFeed(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleFeed handles requests to /api/feeds/{id}
// GET: Get feed details
// PUT: Update feed configuration
// DELETE: Remove feed (sessions and jobs cascade)
// POST /api/feeds/{id}/import is routed here too and starts an import.
func (s *Server) HandleFeed(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/feeds/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing feed ID")
		return
	}
	feedID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] == "import" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleStartImport(w, r, feedID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetFeed(w, r, feedID)
	case http.MethodPut:
		s.handleUpdateFeed(w, r, feedID)
	case http.MethodDelete:
		s.handleDeleteFeed(w, r, feedID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	feeds, err := s.feeds.List(search)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ListFeedsResponse{Feeds: feeds, Count: len(feeds)})
}

func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) {
	var req CreateFeedRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	f := feed.New(req.Name, req.URL)
	f.Category = req.Category
	f.JobTypes = req.JobTypes
	f.Region = req.Region

	if err := s.feeds.Create(f); err != nil {
		handleError(w, s.logger, err)
		return
	}

	s.logger.Infow("Feed created",
		"feed_id", f.ID,
		"name", f.Name,
		"url", f.URL,
	)
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request, feedID string) {
	f, err := s.feeds.Get(feedID)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFeed(w http.ResponseWriter, r *http.Request, feedID string) {
	var req UpdateFeedRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	f, err := s.feeds.Get(feedID)
	if err != nil {
		handleError(w, s.logger, err)
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		f.Name = strings.TrimSpace(*req.Name)
	}
	if req.URL != nil {
		if strings.TrimSpace(*req.URL) == "" {
			writeError(w, http.StatusBadRequest, "url cannot be empty")
			return
		}
		f.URL = strings.TrimSpace(*req.URL)
	}
	if req.Category != nil {
		f.Category = *req.Category
	}
	if req.JobTypes != nil {
		f.JobTypes = *req.JobTypes
	}
	if req.Region != nil {
		f.Region = *req.Region
	}
	if req.IsActive != nil {
		f.IsActive = *req.IsActive
	}

	if err := s.feeds.Update(f); err != nil {
		handleError(w, s.logger, err)
		return
	}

	s.logger.Infow("Feed updated", "feed_id", f.ID)
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request, feedID string) {
	if err := s.feeds.Delete(feedID); err != nil {
		handleError(w, s.logger, err)
		return
	}

	s.logger.Infow("Feed deleted", "feed_id", feedID)
	w.WriteHeader(http.StatusNoContent)
}

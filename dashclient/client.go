// Package dashclient is the dashboard-side reconciliation layer: a REST
// client for the importer API, a push subscription over WebSocket, a
// polling fallback, and a tracker that guarantees exactly one user-visible
// resolution per import session no matter which channel wins.
package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/breakingdawnisback/Job-Importer/errors"
	"github.com/breakingdawnisback/Job-Importer/feed"
	"github.com/breakingdawnisback/Job-Importer/importer"
)

// ErrNotFound indicates the server answered 404 for the resource.
var ErrNotFound = errors.New("not found")

// Client is a thin REST wrapper over the importer API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a REST client for the given base URL (no trailing slash).
func NewClient(baseURL string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Named("dashclient"),
	}
}

// StartImport triggers an import for the feed and returns the session id.
func (c *Client) StartImport(ctx context.Context, feedID string) (string, error) {
	var resp struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	url := fmt.Sprintf("%s/api/feeds/%s/import", c.baseURL, feedID)
	if err := c.do(ctx, http.MethodPost, url, nil, http.StatusAccepted, &resp); err != nil {
		return "", errors.Wrap(err, "failed to start import")
	}
	return resp.SessionID, nil
}

// Status polls the lightweight status endpoint. An unknown session id is
// reported as the status value "not-found", not as an error.
func (c *Client) Status(ctx context.Context, sessionID string) (status string, progress int, err error) {
	var resp struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	url := fmt.Sprintf("%s/api/imports/%s/status", c.baseURL, sessionID)
	if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &resp); err != nil {
		return "", 0, errors.Wrap(err, "failed to get import status")
	}
	return resp.Status, resp.Progress, nil
}

// Session fetches full session details.
func (c *Client) Session(ctx context.Context, sessionID string) (*importer.Session, error) {
	var session importer.Session
	url := fmt.Sprintf("%s/api/imports/%s", c.baseURL, sessionID)
	if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &session); err != nil {
		return nil, errors.Wrap(err, "failed to get import session")
	}
	return &session, nil
}

// Feeds lists feeds, optionally filtered by a substring search.
func (c *Client) Feeds(ctx context.Context, search string) ([]*feed.Feed, error) {
	var resp struct {
		Feeds []*feed.Feed `json:"feeds"`
		Count int          `json:"count"`
	}
	url := c.baseURL + "/api/feeds"
	if search != "" {
		url += "?search=" + search
	}
	if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to list feeds")
	}
	return resp.Feeds, nil
}

// Sessions lists recent import sessions, optionally for one feed.
func (c *Client) Sessions(ctx context.Context, feedID string) ([]*importer.Session, error) {
	var resp struct {
		Sessions []*importer.Session `json:"sessions"`
		Count    int                 `json:"count"`
	}
	url := c.baseURL + "/api/imports"
	if feedID != "" {
		url += "?feedId=" + feedID
	}
	if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to list import sessions")
	}
	return resp.Sessions, nil
}

// do executes one request and decodes the JSON response into out (if
// non-nil). Any status other than want is translated into an error using
// the server's {"error": ...} body when present.
func (c *Client) do(ctx context.Context, method, url string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			if resp.StatusCode == http.StatusNotFound {
				return errors.Wrapf(ErrNotFound, "%s", apiErr.Error)
			}
			return errors.Newf("unexpected status %d: %s", resp.StatusCode, apiErr.Error)
		}
		if resp.StatusCode == http.StatusNotFound {
			return errors.Wrapf(ErrNotFound, "%s %s", method, url)
		}
		return errors.Newf("unexpected status %d for %s %s", resp.StatusCode, method, url)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/breakingdawnisback/Job-Importer/config"
	"github.com/breakingdawnisback/Job-Importer/feed"
	"github.com/breakingdawnisback/Job-Importer/importer"
	importertest "github.com/breakingdawnisback/Job-Importer/internal/testing"
)

// stubFetcher serves canned postings per feed URL.
type stubFetcher struct {
	postings map[string][]importer.Posting
	err      error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]importer.Posting, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.postings[url], nil
}

// newTestServer wires a full server over an in-memory database and returns
// it with an httptest frontend.
func newTestServer(t *testing.T, fetcher importer.Fetcher) (*Server, *httptest.Server) {
	t.Helper()

	db := importertest.CreateTestDB(t)
	log := zaptest.NewLogger(t).Sugar()
	feeds := feed.NewStore(db)
	sessions := importer.NewSessionStore(db)
	jobs := importer.NewJobStore(db)

	orch := importer.New(context.Background(), feeds, sessions, jobs, fetcher, nil, importer.Config{
		FetchTimeout:  5 * time.Second,
		RatePerMinute: 6000,
		MaxBodyBytes:  1 << 20,
	}, log)

	cfg := config.ServerConfig{
		ListenAddr: ":0",
		MaxClients: 10,
	}
	s := New(context.Background(), db, cfg, feeds, sessions, jobs, orch, log)

	go s.Run()

	ts := httptest.NewServer(s.setupHTTPRoutes())
	t.Cleanup(func() {
		ts.Close()
		orch.Close()
		s.cancel()
	})
	return s, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	decodeBody(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["version"])
}

func TestCreateFeedEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp := postJSON(t, ts.URL+"/api/feeds", CreateFeedRequest{
		Name:     "Go Jobs",
		URL:      "https://example.com/go.rss",
		Category: "engineering",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created feed.Feed
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Go Jobs", created.Name)
	assert.True(t, created.IsActive)
}

func TestCreateFeedValidation(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp := postJSON(t, ts.URL+"/api/feeds", CreateFeedRequest{URL: "https://example.com/x.rss"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/feeds", CreateFeedRequest{Name: "No URL"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFeedDuplicateURL(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp := postJSON(t, ts.URL+"/api/feeds", CreateFeedRequest{Name: "A", URL: "https://example.com/dup.rss"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/feeds", CreateFeedRequest{Name: "B", URL: "https://example.com/dup.rss"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetFeedNotFound(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Get(ts.URL + "/api/feeds/no-such-id")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListFeedsWithSearch(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	require.NoError(t, s.feeds.Create(feed.New("Backend", "https://example.com/backend.rss")))
	require.NoError(t, s.feeds.Create(feed.New("Frontend", "https://example.com/frontend.rss")))

	resp, err := http.Get(ts.URL + "/api/feeds?search=Backend")
	require.NoError(t, err)

	var list ListFeedsResponse
	decodeBody(t, resp, &list)
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Feeds, 1)
	assert.Equal(t, "Backend", list.Feeds[0].Name)
}

func TestUpdateFeedEndpoint(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	f := feed.New("Old", "https://example.com/u.rss")
	require.NoError(t, s.feeds.Create(f))

	newName := "New"
	inactive := false
	body, err := json.Marshal(UpdateFeedRequest{Name: &newName, IsActive: &inactive})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/feeds/"+f.ID, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	var updated feed.Feed
	decodeBody(t, resp, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "New", updated.Name)
	assert.False(t, updated.IsActive)
	// URL untouched when omitted from the request.
	assert.Equal(t, f.URL, updated.URL)
}

func TestDeleteFeedEndpoint(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	f := feed.New("Doomed", "https://example.com/d.rss")
	require.NoError(t, s.feeds.Create(f))

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/feeds/"+f.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/feeds/" + f.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartImportEndpoint(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{postings: map[string][]importer.Posting{
		"https://example.com/i.rss": {{SourceJobID: "j1", Title: "J1", URL: "https://example.com/jobs/1"}},
	}})

	f := feed.New("Importable", "https://example.com/i.rss")
	require.NoError(t, s.feeds.Create(f))

	resp := postJSON(t, ts.URL+"/api/feeds/"+f.ID+"/import", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started StartImportResponse
	decodeBody(t, resp, &started)
	assert.NotEmpty(t, started.SessionID)
}

func TestStartImportUnknownFeed(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp := postJSON(t, ts.URL+"/api/feeds/no-such-id/import", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartImportInactiveFeed(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	f := feed.New("Dormant", "https://example.com/dorm.rss")
	f.IsActive = false
	require.NoError(t, s.feeds.Create(f))

	resp := postJSON(t, ts.URL+"/api/feeds/"+f.ID+"/import", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// The status endpoint reports unknown ids as a value with a 200, never as
// an HTTP error.
func TestImportStatusNotFoundSentinel(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Get(ts.URL + "/api/imports/no-such-session/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status ImportStatusResponse
	decodeBody(t, resp, &status)
	assert.Equal(t, "not-found", status.Status)
	assert.Equal(t, 0, status.Progress)
}

func TestGetImportNotFound(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Get(ts.URL + "/api/imports/no-such-session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Session details carry the feed's stored jobs alongside the session
// fields so the dashboard can render both from one request.
func TestGetImportIncludesJobs(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{postings: map[string][]importer.Posting{
		"https://example.com/jobs.rss": {
			{SourceJobID: "j1", Title: "Backend Engineer", URL: "https://example.com/jobs/1"},
			{SourceJobID: "j2", Title: "Data Engineer", URL: "https://example.com/jobs/2"},
		},
	}})

	f := feed.New("Jobs", "https://example.com/jobs.rss")
	require.NoError(t, s.feeds.Create(f))

	resp := postJSON(t, ts.URL+"/api/feeds/"+f.ID+"/import", nil)
	var started StartImportResponse
	decodeBody(t, resp, &started)
	require.NotEmpty(t, started.SessionID)

	require.Eventually(t, func() bool {
		status, _, err := s.orch.Status(started.SessionID)
		return err == nil && status == string(importer.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	detailsResp, err := http.Get(ts.URL + "/api/imports/" + started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, detailsResp.StatusCode)

	var details map[string]interface{}
	decodeBody(t, detailsResp, &details)
	assert.Equal(t, started.SessionID, details["id"])
	jobs, ok := details["jobs"].([]interface{})
	require.True(t, ok, "details must include a jobs array")
	assert.Len(t, jobs, 2)
}

func TestDeleteImportEndpoint(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	f := feed.New("Feed", "https://example.com/del.rss")
	require.NoError(t, s.feeds.Create(f))
	session := importer.NewSession(f)
	require.NoError(t, s.sessions.Create(session))

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/imports/"+session.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/imports/" + session.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListImportsByFeed(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	f := feed.New("Feed", "https://example.com/l.rss")
	require.NoError(t, s.feeds.Create(f))
	session := importer.NewSession(f)
	require.NoError(t, s.sessions.Create(session))

	resp, err := http.Get(ts.URL + "/api/imports?feedId=" + f.ID)
	require.NoError(t, err)

	var list ListImportsResponse
	decodeBody(t, resp, &list)
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, session.ID, list.Sessions[0].ID)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/feeds", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

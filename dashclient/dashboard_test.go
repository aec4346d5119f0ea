package dashclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeImporterAPI answers the start-import and status endpoints.
func fakeImporterAPI(t *testing.T, sessionID, status string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/import"):
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"sessionId": sessionID,
				"message":   "import started",
			})
		case strings.HasSuffix(r.URL.Path, "/status"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":   status,
				"progress": 100,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestDashboardStartImportResolvesViaPoll(t *testing.T) {
	ts := fakeImporterAPI(t, "session-42", "completed")

	log := zaptest.NewLogger(t).Sugar()
	notifier := &countingNotifier{}
	tracker := NewTracker(notifier, nil, time.Millisecond, log)
	dash := NewDashboard(NewClient(ts.URL, log), tracker, log)
	dash.poller.initialDelay = time.Millisecond
	dash.poller.backoffBase = time.Millisecond

	sessionID, err := dash.StartImport(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Equal(t, "session-42", sessionID)
	assert.True(t, tracker.Importing("feed-1"))

	dash.Wait()

	assert.True(t, tracker.Resolved("session-42"))
	assert.False(t, tracker.Importing("feed-1"))
	assert.Equal(t, 1, notifier.count())
}

func TestDashboardRejectsConcurrentImportOfSameFeed(t *testing.T) {
	ts := fakeImporterAPI(t, "session-42", "in_progress")

	log := zaptest.NewLogger(t).Sugar()
	tracker := NewTracker(nil, nil, time.Millisecond, log)
	dash := NewDashboard(NewClient(ts.URL, log), tracker, log)
	dash.poller.initialDelay = time.Millisecond
	dash.poller.backoffBase = time.Millisecond
	dash.poller.maxAttempts = 1

	ctx := context.Background()
	_, err := dash.StartImport(ctx, "feed-1")
	require.NoError(t, err)

	_, err = dash.StartImport(ctx, "feed-1")
	assert.Error(t, err)

	dash.Wait()
}

func TestDashboardStartImportServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "feed not found"})
	}))
	t.Cleanup(ts.Close)

	log := zaptest.NewLogger(t).Sugar()
	tracker := NewTracker(nil, nil, time.Millisecond, log)
	dash := NewDashboard(NewClient(ts.URL, log), tracker, log)

	_, err := dash.StartImport(context.Background(), "ghost")
	assert.Error(t, err)
	assert.False(t, tracker.Importing("ghost"))
}

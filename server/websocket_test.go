package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakingdawnisback/Job-Importer/feed"
	"github.com/breakingdawnisback/Job-Importer/importer"
)

// wireEvent mirrors the envelope as a subscriber decodes it.
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env wireEvent
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketConnectionEstablished(t *testing.T) {
	_, ts := newTestServer(t, &stubFetcher{})

	conn := dialWS(t, ts.URL)

	env := readEvent(t, conn)
	assert.Equal(t, EventConnectionEstablished, env.Type)

	var data ConnectionData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.ClientID)
}

// A connected subscriber observes import_started followed by
// import_completed, and the completion payload carries the final counts.
func TestWebSocketImportLifecycleEvents(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{postings: map[string][]importer.Posting{
		"https://example.com/ws.rss": {
			{SourceJobID: "a", Title: "A", URL: "https://example.com/jobs/a"},
			{SourceJobID: "b", Title: "B", URL: "https://example.com/jobs/b"},
		},
	}})

	f := feed.New("Pushy", "https://example.com/ws.rss")
	require.NoError(t, s.feeds.Create(f))

	conn := dialWS(t, ts.URL)
	env := readEvent(t, conn)
	require.Equal(t, EventConnectionEstablished, env.Type)

	resp, err := http.Post(ts.URL+"/api/feeds/"+f.ID+"/import", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	env = readEvent(t, conn)
	require.Equal(t, EventImportStarted, env.Type)
	var started ImportStartedData
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, f.ID, started.FeedID)
	assert.NotEmpty(t, started.ImportID)

	// Progress events only fire on larger feeds; the next event here is
	// the terminal one.
	env = readEvent(t, conn)
	require.Equal(t, EventImportCompleted, env.Type)
	var completed ImportCompletedData
	require.NoError(t, json.Unmarshal(env.Data, &completed))
	assert.Equal(t, started.ImportID, completed.ImportID)
	assert.Equal(t, 2, completed.Counts.NewJobs)
	assert.Equal(t, 2, completed.Counts.TotalFetched)
	assert.Equal(t, 0, completed.Counts.FailedJobs)
}

func TestWebSocketImportFailedEvent(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{err: assertableError("feed unreachable")})

	f := feed.New("Broken", "https://example.com/broken.rss")
	require.NoError(t, s.feeds.Create(f))

	conn := dialWS(t, ts.URL)
	env := readEvent(t, conn)
	require.Equal(t, EventConnectionEstablished, env.Type)

	resp, err := http.Post(ts.URL+"/api/feeds/"+f.ID+"/import", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	env = readEvent(t, conn)
	require.Equal(t, EventImportStarted, env.Type)

	env = readEvent(t, conn)
	require.Equal(t, EventImportFailed, env.Type)
	var failed ImportFailedData
	require.NoError(t, json.Unmarshal(env.Data, &failed))
	assert.Equal(t, f.ID, failed.FeedID)
	assert.Contains(t, failed.Error, "feed unreachable")
}

// assertableError is a trivial error type for stubbing fetch failures.
type assertableError string

func (e assertableError) Error() string { return string(e) }

func TestBroadcastReachesAllClients(t *testing.T) {
	s, ts := newTestServer(t, &stubFetcher{})

	conn1 := dialWS(t, ts.URL)
	conn2 := dialWS(t, ts.URL)
	readEvent(t, conn1)
	readEvent(t, conn2)

	// Wait for both registrations to land in the hub.
	require.Eventually(t, func() bool {
		return s.clientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	sent := s.broadcastMessage(Event{Type: "test_event", Data: map[string]string{"k": "v"}})
	assert.Equal(t, 2, sent)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		env := readEvent(t, conn)
		assert.Equal(t, "test_event", env.Type)
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{})

	sent := s.broadcastMessage(Event{Type: "test_event"})
	assert.Equal(t, 0, sent)
}

package server

import "time"

const (
	// MaxClientMessageQueueSize is the size of per-client message queues
	MaxClientMessageQueueSize = 64

	// ShutdownTimeout is how long to wait for graceful shutdown
	ShutdownTimeout = 15 * time.Second
)

// Event is the JSON envelope every WebSocket message uses.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Event types delivered over the socket.
const (
	EventConnectionEstablished = "connection_established"
	EventImportStarted         = "import_started"
	EventImportProgress        = "import_progress"
	EventImportCompleted       = "import_completed"
	EventImportFailed          = "import_failed"
)

// ConnectionData is the payload of connection_established. It is a liveness
// signal only; missed events are never resent.
type ConnectionData struct {
	ClientID string `json:"clientId"`
	Version  string `json:"version"`
}

// ImportStartedData is the payload of import_started.
type ImportStartedData struct {
	FeedID   string `json:"feedId"`
	FeedName string `json:"feedName"`
	ImportID string `json:"importId"`
}

// ImportProgressData is the payload of import_progress.
type ImportProgressData struct {
	FeedID   string `json:"feedId"`
	ImportID string `json:"importId"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
}

// ImportCounts carries the aggregate counters of a terminal session.
type ImportCounts struct {
	TotalFetched  int `json:"totalFetched"`
	NewJobs       int `json:"newJobs"`
	UpdatedJobs   int `json:"updatedJobs"`
	FailedJobs    int `json:"failedJobs"`
	TotalImported int `json:"totalImported"`
}

// ImportCompletedData is the payload of import_completed.
type ImportCompletedData struct {
	FeedID   string       `json:"feedId"`
	FeedName string       `json:"feedName"`
	ImportID string       `json:"importId"`
	Counts   ImportCounts `json:"counts"`
}

// ImportFailedData is the payload of import_failed.
type ImportFailedData struct {
	FeedID   string `json:"feedId"`
	FeedName string `json:"feedName"`
	ImportID string `json:"importId"`
	Error    string `json:"error"`
}

// clientMessage is what clients may send us. Only ping is meaningful; the
// socket exists for server-to-client push.
type clientMessage struct {
	Type string `json:"type"`
}

// Package importer implements the import-session lifecycle: session
// creation, asynchronous feed processing, job upserts, and the write-back
// of feed aggregates on completion.
package importer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/breakingdawnisback/Job-Importer/errors"
	"github.com/breakingdawnisback/Job-Importer/feed"
)

// SessionStatus represents the current state of an import session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// StatusNotFound is the sentinel status value reported for unknown session
// ids on the status endpoint. It is a wire value, never persisted.
const StatusNotFound = "not-found"

// IsTerminal returns true once a session can no longer change.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureDetail records one posting that could not be imported.
type FailureDetail struct {
	SourceJobID string `json:"sourceJobId"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Reason      string `json:"reason"`
}

// Session is one import attempt for a feed. FeedURL and FeedName are
// snapshots taken at session start; editing the feed later does not change
// them. Terminal sessions are immutable.
type Session struct {
	ID             string          `json:"id"`
	FeedID         string          `json:"feedId"`
	FeedURL        string          `json:"feedUrl"`
	FeedName       string          `json:"feedName"`
	Status         SessionStatus   `json:"status"`
	TotalFetched   int             `json:"totalFetched"`
	NewCount       int             `json:"newCount"`
	UpdatedCount   int             `json:"updatedCount"`
	FailedCount    int             `json:"failedCount"`
	TotalImported  int             `json:"totalImported"`
	FailureDetails []FailureDetail `json:"failureDetails"`
	StartedAt      time.Time       `json:"startedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	DurationMs     *int64          `json:"durationMs,omitempty"`
}

// NewSession creates an in-progress session for the given feed, snapshotting
// the feed identity.
func NewSession(f *feed.Feed) *Session {
	return &Session{
		ID:             uuid.NewString(),
		FeedID:         f.ID,
		FeedURL:        f.URL,
		FeedName:       f.Name,
		Status:         StatusInProgress,
		FailureDetails: []FailureDetail{},
		StartedAt:      time.Now().UTC(),
	}
}

// Complete marks the session completed with the aggregated counts.
// TotalImported and TotalFetched are derived so the count invariant
// (new + updated + failed == fetched) holds by construction.
func (s *Session) Complete(newCount, updatedCount int, failures []FailureDetail) {
	now := time.Now().UTC()
	s.Status = StatusCompleted
	s.NewCount = newCount
	s.UpdatedCount = updatedCount
	s.FailedCount = len(failures)
	s.TotalImported = newCount + updatedCount
	s.TotalFetched = newCount + updatedCount + len(failures)
	if failures == nil {
		failures = []FailureDetail{}
	}
	s.FailureDetails = failures
	s.CompletedAt = &now
	ms := now.Sub(s.StartedAt).Milliseconds()
	s.DurationMs = &ms
}

// Fail marks the session failed after an infrastructure failure (the feed
// could not be fetched at all). A single synthetic failure detail records
// the reason; counts stay zero and feed aggregates are never touched.
func (s *Session) Fail(reason string) {
	now := time.Now().UTC()
	s.Status = StatusFailed
	s.FailedCount = 1
	s.FailureDetails = []FailureDetail{{
		SourceJobID: "",
		URL:         s.FeedURL,
		Reason:      reason,
	}}
	s.CompletedAt = &now
	ms := now.Sub(s.StartedAt).Milliseconds()
	s.DurationMs = &ms
}

// Progress reports coarse progress: 0 while in progress, 100 once terminal.
func (s *Session) Progress() int {
	if s.Status.IsTerminal() {
		return 100
	}
	return 0
}

// MarshalFailureDetails converts failure details to their JSON column form.
func MarshalFailureDetails(details []FailureDetail) (string, error) {
	if details == nil {
		details = []FailureDetail{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal failure details")
	}
	return string(data), nil
}

// UnmarshalFailureDetails converts the JSON column form back.
func UnmarshalFailureDetails(data string) ([]FailureDetail, error) {
	if data == "" {
		return []FailureDetail{}, nil
	}
	var details []FailureDetail
	if err := json.Unmarshal([]byte(data), &details); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal failure details")
	}
	return details, nil
}

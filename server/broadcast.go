package server

// This file implements the notification broadcaster side of the server:
// session-transition events fan out to every connected WebSocket client.
// Delivery is best-effort and at-most-once — consumers are required to run
// a fallback poll loop for correctness.

import (
	"github.com/breakingdawnisback/Job-Importer/importer"
)

// ImportStarted broadcasts that a session was created and is in progress.
func (s *Server) ImportStarted(session *importer.Session) {
	sent := s.broadcastMessage(Event{
		Type: EventImportStarted,
		Data: ImportStartedData{
			FeedID:   session.FeedID,
			FeedName: session.FeedName,
			ImportID: session.ID,
		},
	})
	s.logger.Debugw("Broadcasted import started",
		"session_id", session.ID,
		"feed_id", session.FeedID,
		"clients", sent,
	)
}

// ImportProgress broadcasts a coarse progress update for a running session.
func (s *Server) ImportProgress(session *importer.Session, current, total int) {
	if s.clientCount() == 0 {
		return
	}
	s.broadcastMessage(Event{
		Type: EventImportProgress,
		Data: ImportProgressData{
			FeedID:   session.FeedID,
			ImportID: session.ID,
			Current:  current,
			Total:    total,
		},
	})
}

// ImportCompleted broadcasts the terminal outcome of a completed session.
// The orchestrator persists the session and feed aggregates before calling
// this, so clients refreshing on the event observe consistent data.
func (s *Server) ImportCompleted(session *importer.Session) {
	sent := s.broadcastMessage(Event{
		Type: EventImportCompleted,
		Data: ImportCompletedData{
			FeedID:   session.FeedID,
			FeedName: session.FeedName,
			ImportID: session.ID,
			Counts: ImportCounts{
				TotalFetched:  session.TotalFetched,
				NewJobs:       session.NewCount,
				UpdatedJobs:   session.UpdatedCount,
				FailedJobs:    session.FailedCount,
				TotalImported: session.TotalImported,
			},
		},
	})
	s.logger.Debugw("Broadcasted import completed",
		"session_id", session.ID,
		"feed_id", session.FeedID,
		"new", session.NewCount,
		"updated", session.UpdatedCount,
		"failed", session.FailedCount,
		"clients", sent,
	)
}

// ImportFailed broadcasts an infrastructure failure for a session.
func (s *Server) ImportFailed(session *importer.Session, reason string) {
	sent := s.broadcastMessage(Event{
		Type: EventImportFailed,
		Data: ImportFailedData{
			FeedID:   session.FeedID,
			FeedName: session.FeedName,
			ImportID: session.ID,
			Error:    reason,
		},
	})
	s.logger.Debugw("Broadcasted import failed",
		"session_id", session.ID,
		"feed_id", session.FeedID,
		"error", reason,
		"clients", sent,
	)
}

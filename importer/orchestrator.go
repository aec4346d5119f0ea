package importer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/breakingdawnisback/Job-Importer/errors"
	"github.com/breakingdawnisback/Job-Importer/feed"
)

// ErrFeedInactive is returned when an import is requested for a feed whose
// active flag is off.
var ErrFeedInactive = errors.New("feed is not active")

// EventSink receives session-transition events. The server's WebSocket
// broadcaster implements it; tests substitute a recorder.
type EventSink interface {
	ImportStarted(session *Session)
	ImportProgress(session *Session, current, total int)
	ImportCompleted(session *Session)
	ImportFailed(session *Session, reason string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) ImportStarted(*Session)            {}
func (NopSink) ImportProgress(*Session, int, int) {}
func (NopSink) ImportCompleted(*Session)          {}
func (NopSink) ImportFailed(*Session, string)     {}

// progressEvery controls how often import_progress events are emitted while
// walking a feed's postings.
const progressEvery = 25

// Config tunes orchestrator behavior.
type Config struct {
	FetchTimeout  time.Duration
	RatePerMinute float64
	MaxBodyBytes  int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:  30 * time.Second,
		RatePerMinute: 60,
		MaxBodyBytes:  5 * 1024 * 1024,
	}
}

// Orchestrator owns the import-session lifecycle. StartImport acknowledges
// immediately; the fetch/parse/upsert pipeline runs in a supervised
// goroutine per session, exactly once per session id.
type Orchestrator struct {
	feeds    *feed.Store
	sessions *SessionStore
	jobs     *JobStore
	fetcher  Fetcher
	events   EventSink
	limiter  *rate.Limiter
	cfg      Config
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator. A nil fetcher gets the default HTTP-backed
// FeedFetcher; a nil sink discards events.
func New(ctx context.Context, feeds *feed.Store, sessions *SessionStore, jobs *JobStore, fetcher Fetcher, events EventSink, cfg Config, logger *zap.SugaredLogger) *Orchestrator {
	if fetcher == nil {
		fetcher = NewFeedFetcher(&http.Client{Timeout: cfg.FetchTimeout}, cfg.MaxBodyBytes)
	}
	if events == nil {
		events = NopSink{}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		feeds:    feeds,
		sessions: sessions,
		jobs:     jobs,
		fetcher:  fetcher,
		events:   events,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), 1),
		cfg:      cfg,
		logger:   logger.Named("importer"),
		ctx:      workerCtx,
		cancel:   cancel,
	}
}

// SetEvents replaces the event sink. Used during wiring when the broadcaster
// is constructed after the orchestrator.
func (o *Orchestrator) SetEvents(events EventSink) {
	if events == nil {
		events = NopSink{}
	}
	o.events = events
}

// StartImport creates an in-progress session for the feed and returns it
// immediately. Processing runs out of band; the caller learns the outcome
// through the status endpoint or broadcast events. Retrying StartImport
// always creates a new session, never re-runs an existing one.
func (o *Orchestrator) StartImport(ctx context.Context, feedID string) (*Session, error) {
	f, err := o.feeds.Get(feedID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		return nil, errors.Wrapf(ErrFeedInactive, "feed %s", feedID)
	}

	session := NewSession(f)
	if err := o.sessions.Create(session); err != nil {
		return nil, err
	}

	o.logger.Infow("Import session started",
		"session_id", session.ID,
		"feed_id", f.ID,
		"feed_url", f.URL,
	)
	o.events.ImportStarted(session)

	o.wg.Add(1)
	go o.runSession(session)

	return session, nil
}

// Status reports the coarse status of a session. Unknown ids are reported
// as the StatusNotFound value rather than an error so callers can tell
// "no such session" apart from "still in progress".
func (o *Orchestrator) Status(sessionID string) (status string, progress int, err error) {
	session, err := o.sessions.Get(sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return StatusNotFound, 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return string(session.Status), session.Progress(), nil
}

// Close stops accepting background work and waits for in-flight sessions.
// Sessions are never cancelled mid-flight; Close blocks until they finish.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// runSession executes the fetch/upsert pipeline for one session. Every exit
// path finalizes the session; panics are recovered into a failed session so
// a bad feed can never kill the process silently.
func (o *Orchestrator) runSession(session *Session) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("Import session panicked",
				"session_id", session.ID,
				"panic", r,
			)
			session.Fail(errors.Newf("internal error: %v", r).Error())
			o.finalizeFailed(session)
		}
	}()

	if err := o.limiter.Wait(o.ctx); err != nil {
		session.Fail("importer shutting down before fetch started")
		o.finalizeFailed(session)
		return
	}

	fetchCtx, cancel := context.WithTimeout(context.Background(), o.cfg.FetchTimeout)
	defer cancel()

	postings, err := o.fetcher.Fetch(fetchCtx, session.FeedURL)
	if err != nil {
		// Infrastructure failure: the feed could not be fetched at all.
		// The session fails with one synthetic detail and the feed's
		// aggregates stay untouched.
		o.logger.Warnw("Feed fetch failed",
			"session_id", session.ID,
			"feed_url", session.FeedURL,
			"error", err,
		)
		session.Fail(err.Error())
		o.finalizeFailed(session)
		return
	}

	var newCount, updatedCount int
	var failures []FailureDetail

	for i, posting := range postings {
		if posting.ParseError != "" {
			failures = append(failures, FailureDetail{
				SourceJobID: posting.SourceJobID,
				Title:       posting.Title,
				URL:         posting.URL,
				Reason:      posting.ParseError,
			})
			continue
		}

		created, err := o.jobs.Upsert(&Job{
			SourceJobID: posting.SourceJobID,
			FeedID:      session.FeedID,
			Title:       posting.Title,
			URL:         posting.URL,
			Company:     posting.Company,
			Location:    posting.Location,
			Description: posting.Description,
			PublishedAt: posting.PublishedAt,
		})
		if err != nil {
			// One bad posting never aborts the session.
			failures = append(failures, FailureDetail{
				SourceJobID: posting.SourceJobID,
				Title:       posting.Title,
				URL:         posting.URL,
				Reason:      err.Error(),
			})
			continue
		}
		if created {
			newCount++
		} else {
			updatedCount++
		}

		if (i+1)%progressEvery == 0 {
			o.events.ImportProgress(session, i+1, len(postings))
		}
	}

	session.Complete(newCount, updatedCount, failures)

	// Required ordering: persist session, then feed aggregates, then
	// broadcast — so a client refresh triggered by the event always
	// observes consistent aggregates.
	if err := o.sessions.Finalize(session); err != nil {
		if errors.Is(err, ErrSessionTerminal) {
			// Already finalized elsewhere; completion is idempotent.
			o.logger.Debugw("Session already terminal, skipping finalize",
				"session_id", session.ID)
			return
		}
		o.logger.Errorw("Failed to finalize session",
			"session_id", session.ID,
			"error", err,
		)
		return
	}

	if err := o.feeds.RecordImport(session.FeedID, session.NewCount, *session.CompletedAt); err != nil {
		// The feed may have been deleted mid-import; the session record
		// still stands on its own.
		o.logger.Warnw("Failed to record feed aggregates",
			"session_id", session.ID,
			"feed_id", session.FeedID,
			"error", err,
		)
	}

	o.logger.Infow("Import session completed",
		"session_id", session.ID,
		"feed_id", session.FeedID,
		"total_fetched", session.TotalFetched,
		"new", session.NewCount,
		"updated", session.UpdatedCount,
		"failed", session.FailedCount,
		"duration_ms", *session.DurationMs,
	)
	o.events.ImportCompleted(session)
}

// finalizeFailed persists a failed session and emits import_failed. The
// feed registry is deliberately left unmodified on failure.
func (o *Orchestrator) finalizeFailed(session *Session) {
	if err := o.sessions.Finalize(session); err != nil {
		if errors.Is(err, ErrSessionTerminal) {
			return
		}
		o.logger.Errorw("Failed to finalize failed session",
			"session_id", session.ID,
			"error", err,
		)
		return
	}
	reason := ""
	if len(session.FailureDetails) > 0 {
		reason = session.FailureDetails[0].Reason
	}
	o.events.ImportFailed(session, reason)
}
